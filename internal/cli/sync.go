package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taskbridge/internal/engine"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

func newSyncCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Long: "Run a single reconciliation pass. The --source flag names the store\n" +
			"whose change triggered the pass; it controls the direction of the work\n" +
			"and the echo-suppression cooldown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", string(types.SourceNotes),
		"change origin for this pass (notes or tasks)")
	return cmd
}

func runSync(cmd *cobra.Command, source string) error {
	src := types.Source(source)
	if !src.Valid() {
		return fmt.Errorf("%w: %q (want notes or tasks)", types.ErrUnknownSource, source)
	}

	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	sum, err := app.runPass(cmd.Context(), src)
	if err != nil {
		return err
	}
	printSummary(cmd, sum)
	return nil
}

func printSummary(cmd *cobra.Command, sum engine.Summary) {
	if sum.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do.")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"Created %d, completed %d, adopted %d, skipped %d, removed %d.\n",
		sum.Created, sum.Completed, sum.Adopted, sum.Skipped, sum.Removed)
}
