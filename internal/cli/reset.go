package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taskbridge/internal/paths"
	"github.com/mesh-intelligence/taskbridge/internal/state"
)

func newResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the sync state",
		Long: "Delete the sync state file so every checkbox item is treated as new\n" +
			"on the next pass. Items already present in the task manager are\n" +
			"re-adopted by name rather than duplicated, but a reset is still only\n" +
			"needed to recover from a corrupt state file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
			if err != nil {
				return err
			}
			store := state.NewStore(dataDir)

			if !force {
				fmt.Fprintf(cmd.OutOrStdout(),
					"This would delete %s.\nRe-run with --force to proceed.\n", store.Path())
				return nil
			}

			removed := false
			for _, path := range []string{store.Path(), store.BackupPath()} {
				err := os.Remove(path)
				if err == nil {
					removed = true
					continue
				}
				if !os.IsNotExist(err) {
					return fmt.Errorf("remove %s: %w", path, err)
				}
			}

			if removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Sync state removed.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Sync state does not exist (already reset).")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "actually delete the state file")
	return cmd
}
