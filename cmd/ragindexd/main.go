package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ragindex/internal/cli"
	"github.com/cloo-solutions/ragindex/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragindexd",
		Short: "ragindex daemon",
		Long:  "ragindex daemon for serving the pipeline over HTTP and managing the Postgres schema",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
