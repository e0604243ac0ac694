package pipeline

import (
	"fmt"
	"os"
	"sort"

	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/spf13/cobra"
)

// EvalCmd creates the eval command.
func EvalCmd() *cobra.Command {
	var (
		file    string
		k       int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "eval --file <suite.json>",
		Short: "Evaluate retrieval quality",
		Long: `Ingest a suite's documents, run its queries and report Recall@k, MRR and Hit@k.

The input file can be either:
  - { "documents": [ { "provenance": "...", "text": "..." } ],
      "cases": [ { "query": "...", "expected_ids": ["c1", "guide.md#c2"] } ], "k": 5 }
  - [ { "query": "...", "expected_ids": [...] } ]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 0 {
				return fmt.Errorf("--k must not be negative")
			}
			return runEval(cmd, file, k, verbose)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Evaluation JSON file (required)")
	cmd.Flags().IntVar(&k, "k", 0, "Compute recall@k and hit@k (default: suite k, then pipeline top_k)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print per-case results")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEval(cmd *cobra.Command, file string, k int, verbose bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read eval file: %w", err)
	}

	suite, err := service.ParseEvalSuite(data)
	if err != nil {
		return err
	}
	if k > 0 {
		suite.K = k
	}

	ctx, stack, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := stack.Engine.Evaluate(ctx, *suite, stack.Pipeline)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if !verbose {
		report.Cases = nil
	}

	w := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return writeJSON(w, report)
	}

	s := report.Summary
	fmt.Fprintf(w, "Cases: %d  k=%d  ingested=%d\n", s.Total, s.K, s.CountIngested)
	fmt.Fprintf(w, "Recall@%d: %.3f\n", s.K, s.RecallAtK)
	fmt.Fprintf(w, "MRR: %.3f\n", s.MRR)
	fmt.Fprintf(w, "Hit@%d: %.3f\n", s.K, s.HitRateAtK)

	if verbose {
		cases := append([]service.EvalCaseResult(nil), report.Cases...)
		sort.SliceStable(cases, func(i, j int) bool {
			return cases[i].RecallAtK < cases[j].RecallAtK
		})
		fmt.Fprintln(w)
		for _, c := range cases {
			fmt.Fprintf(w, "- %s\n  rank=%d recall=%.3f rr=%.3f\n", c.Query, c.Rank, c.RecallAtK, c.RR)
		}
	}
	return nil
}
