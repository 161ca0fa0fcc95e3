// Package cli implements the taskbridge command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

// Exit codes: 0 success, 1 user error, 2 system error.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
}

var flags rootFlags

// NewRootCmd creates the top-level "taskbridge" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskbridge",
		Short: "Keep notes-app checkboxes and task-manager to-dos in sync",
		Long: "Taskbridge reconciles checkbox items in your notes app with to-dos\n" +
			"in your task manager: new items are created, completions propagate in\n" +
			"both directions, and nothing is ever deleted in either app.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		// Bare "taskbridge" runs one notes-origin pass.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, string(types.SourceNotes))
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory for sync state and logs")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newUninstallCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
// Infrastructure failures (corrupt state, schema drift, unreachable store)
// exit 2; everything else exits 1.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrStateCorrupt),
		errors.Is(err, types.ErrSchemaDrift),
		errors.Is(err, types.ErrStoreUnavailable):
		return exitSysError
	default:
		return exitUserError
	}
}
