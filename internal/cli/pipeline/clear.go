package pipeline

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ClearCmd creates the clear command.
func ClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every record in the selected store",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, stack, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := stack.Engine.Clear(ctx, stack.Pipeline); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return writeJSON(w, map[string]string{"store": stack.Pipeline.Store, "status": "cleared"})
	}
	fmt.Fprintf(w, "Cleared %s store.\n", stack.Pipeline.Store)
	return nil
}
