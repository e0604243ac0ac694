package pipeline

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/spf13/cobra"
)

// QueryCmd creates the query command.
func QueryCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the chunks most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 0 {
				return fmt.Errorf("--k must not be negative")
			}
			return runQuery(cmd, args[0], k)
		},
	}

	cmd.Flags().IntVar(&k, "k", 0, "Number of matches (default: pipeline top_k)")

	return cmd
}

func runQuery(cmd *cobra.Command, text string, k int) error {
	ctx, stack, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := stack.Engine.Query(ctx, service.QueryInput{Text: text, TopK: k}, stack.Pipeline)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return writeJSON(w, res)
	}

	if len(res.Matches) == 0 {
		fmt.Fprintf(w, "No matches among %d records.\n", res.CountSearched)
		return nil
	}

	fmt.Fprintf(w, "Found %d matches among %d records:\n\n", len(res.Matches), res.CountSearched)
	for i, m := range res.Matches {
		fmt.Fprintf(w, "%d. %s (%.4f)\n", i+1, service.MatchID(m), m.Score)
		snippet := strings.Join(strings.Fields(m.Text), " ")
		if len(snippet) > 100 {
			snippet = snippet[:97] + "..."
		}
		fmt.Fprintf(w, "   %s\n", snippet)
		if i < len(res.Matches)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	return nil
}
