package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ragindex/internal/cli"
	"github.com/cloo-solutions/ragindex/internal/cli/pipeline"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragindex",
		Short: "ragindex - chunk, embed, store and search documents",
		Long: `ragindex runs the indexing pipeline in-process.

Environment variables (each also read with a RAGINDEX_ prefix):
  CHUNKER, CHUNK_SIZE, OVERLAP   Default chunker (sentence)
  EMBEDDER                       reference or openai (reference)
  STORE                          memory, sqlite or postgres (memory)
  PIPELINE_FILE                  YAML profile replacing the settings above
  SQLITE_PATH, DATABASE_URL      Persistent stores
  OPENAI_API_KEY                 Required for the openai embedder
  S3_ENDPOINT, S3_BUCKET, ...    Enables s3:// inputs to ingest`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	pipeline.AddPipelineFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	for _, cmd := range pipeline.Commands() {
		rootCmd.AddCommand(cmd)
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
