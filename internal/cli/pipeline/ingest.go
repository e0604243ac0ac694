package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/cloo-solutions/ragindex/internal/source"
	"github.com/spf13/cobra"
)

// IngestOutput is printed with --output.
type IngestOutput struct {
	Documents     []*domain.EvalResult `json:"documents"`
	CountIngested int                  `json:"count_ingested"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var (
		text       string
		provenance string
	)

	cmd := &cobra.Command{
		Use:   "ingest [path|s3://bucket/key ...]",
		Short: "Chunk, embed and store documents",
		Long: `Chunk, embed and store documents.

Inputs are files, directories (walked for .txt, .md and .pdf files) and
s3://bucket/key references; an s3:// reference ending in "/" is a prefix.
With no arguments the text comes from --text or standard input.

The memory store lives only as long as the command; use --store sqlite or
--store postgres to keep records between runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if text != "" && len(args) > 0 {
				return fmt.Errorf("--text cannot be combined with file arguments")
			}
			return runIngest(cmd, args, text, provenance)
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Text to ingest")
	cmd.Flags().StringVar(&provenance, "provenance", "", "Provenance for --text or stdin input (default: generated)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, text, provenance string) error {
	ctx, stack, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := ingestInputs(ctx, cmd, stack.Sources, args, text, provenance)
	if err != nil {
		return err
	}

	out := IngestOutput{Documents: make([]*domain.EvalResult, 0, len(docs))}
	for _, doc := range docs {
		res, err := stack.Engine.Ingest(ctx, service.IngestInput{
			Text:       doc.Text,
			Provenance: doc.Provenance,
			Metadata:   doc.Metadata,
		}, stack.Pipeline)
		if err != nil {
			return fmt.Errorf("ingest %s failed: %w", doc.Provenance, err)
		}
		out.Documents = append(out.Documents, res)
		out.CountIngested += res.CountIngested
	}

	w := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return writeJSON(w, out)
	}

	for _, res := range out.Documents {
		fmt.Fprintf(w, "%s: %d chunks (%dms)\n", res.Provenance, res.CountIngested, res.ElapsedMs)
	}
	fmt.Fprintf(w, "Ingested %d chunks from %d documents into %s.\n", out.CountIngested, len(out.Documents), stack.Pipeline.Store)
	return nil
}

func ingestInputs(ctx context.Context, cmd *cobra.Command, sources *source.Resolver, args []string, text, provenance string) ([]*source.Document, error) {
	if len(args) == 0 {
		if text == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}
		return []*source.Document{{Provenance: provenance, Text: text}}, nil
	}

	refs, err := sources.Expand(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no supported documents found")
	}

	docs := make([]*source.Document, 0, len(refs))
	for _, ref := range refs {
		doc, err := sources.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
