package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taskbridge/internal/watcher"
	"github.com/mesh-intelligence/taskbridge/pkg/types"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch both databases and sync continuously",
		Long: "Run an initial pass, then monitor both database files and trigger a\n" +
			"pass whenever one changes. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			// Initial pass so a restart catches up immediately.
			if sum, err := app.runPass(ctx, types.SourceNotes); err != nil {
				app.log.WithError(err).Error("initial pass failed")
			} else if !sum.Empty() {
				printSummary(cmd, sum)
			}

			targets := []watcher.Target{
				{Source: types.SourceNotes, DatabasePath: app.notesDBPath},
			}
			if app.cfg.Bidirectional {
				targets = append(targets, watcher.Target{
					Source: types.SourceTasks, DatabasePath: app.tasksDBPath,
				})
			}

			w := watcher.New(targets, app.cfg.MinSyncInterval,
				func(ctx context.Context, source types.Source) error {
					_, err := app.runPass(ctx, source)
					return err
				}, app.log)

			err = w.Run(ctx)
			if ctx.Err() != nil {
				app.log.Info("watch stopped")
				return nil
			}
			return err
		},
	}
}
