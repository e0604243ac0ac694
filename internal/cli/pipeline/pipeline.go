// Package pipeline holds the ragindex commands that run the indexing
// pipeline in-process.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/ragindex/internal/cli"
	"github.com/cloo-solutions/ragindex/internal/config"
	"github.com/cloo-solutions/ragindex/internal/logging"
	"github.com/spf13/cobra"
)

// Commands returns every pipeline command.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		IngestCmd(),
		QueryCmd(),
		ClearCmd(),
		EvalCmd(),
	}
}

// AddPipelineFlags registers the flags that select pipeline components.
func AddPipelineFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("pipeline", "", "YAML pipeline profile")
	flags.String("chunker", "", "Chunker: fixed, sentence or window")
	flags.Int("chunk-size", 0, "Chunk size in characters (fixed) or sentences (window)")
	flags.Int("overlap", 0, "Characters shared by consecutive fixed chunks")
	flags.String("embedder", "", "Embedding adapter: reference or openai")
	flags.String("store", "", "Storage backend: memory, postgres or sqlite")
}

// overrides collects only the flags the user actually set, so defaults from
// the environment or the profile survive.
func overrides(cmd *cobra.Command) cli.PipelineOverrides {
	flags := cmd.Flags()
	o := cli.PipelineOverrides{}
	o.File, _ = flags.GetString("pipeline")

	if flags.Changed("chunker") {
		v, _ := flags.GetString("chunker")
		o.Chunker = &v
	}
	if flags.Changed("chunk-size") {
		v, _ := flags.GetInt("chunk-size")
		o.ChunkSize = &v
	}
	if flags.Changed("overlap") {
		v, _ := flags.GetInt("overlap")
		o.Overlap = &v
	}
	if flags.Changed("embedder") {
		v, _ := flags.GetString("embedder")
		o.Embedder = &v
	}
	if flags.Changed("store") {
		v, _ := flags.GetString("store")
		o.Store = &v
	}
	return o
}

// setup loads configuration and builds the stack for one command. The
// returned context is cancelled on SIGINT or SIGTERM.
func setup(cmd *cobra.Command) (context.Context, *cli.Stack, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, nil, nil, err
	}

	pipeline, err := cli.ResolvePipeline(cfg, overrides(cmd))
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	stack, err := cli.BuildStack(ctx, cfg, pipeline, logger)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	cleanup := func() {
		stack.Close()
		_ = logger.Sync()
		stop()
	}
	return ctx, stack, cleanup, nil
}

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
