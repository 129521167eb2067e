package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/leetrecall/internal/bootstrap"
	"github.com/at-ishikawa/leetrecall/internal/datasync"
	"github.com/at-ishikawa/leetrecall/internal/ingest"
)

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import completed problems and inspect sync state",
	}
	cmd.AddCommand(newSyncImportCommand())
	cmd.AddCommand(newSyncStatusCommand())
	return cmd
}

func newSyncImportCommand() *cobra.Command {
	var fresh bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import completion events from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = cfg.Sync.BatchSize
			}

			events, err := datasync.LoadEventsFile(args[0])
			if err != nil {
				return fmt.Errorf("datasync.LoadEventsFile() > %w", err)
			}

			app := bootstrap.New()
			return app.Run(cmd.Context(), func(ctx context.Context) error {
				env, err := openEnvironment(ctx, cfg)
				if err != nil {
					return err
				}
				app.AddShutdownHook("storage", func(ctx context.Context) error {
					return env.close()
				})

				session := datasync.NewSession(env.kv, ingest.NewMerger(env.store),
					datasync.WithPollInterval(time.Duration(cfg.Sync.PollIntervalMillis)*time.Millisecond),
					datasync.WithClock(now))
				cursor, err := session.Start(ctx, len(events), fresh)
				if err != nil {
					return fmt.Errorf("session.Start() > %w", err)
				}
				for _, page := range datasync.Paginate(events, cursor.Offset, batchSize) {
					session.Progress(page)
				}

				waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Sync.DrainTimeoutSeconds)*time.Second)
				defer cancel()
				report, err := session.Complete(waitCtx)
				if err != nil {
					failErr := session.Fail(context.WithoutCancel(ctx), err)
					return errors.Join(fmt.Errorf("session.Complete() > %w", err), failErr)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Sync Summary:")
				fmt.Fprintf(out, "  Processed:      %d/%d events in %d pages\n", report.Processed, report.Total, report.Pages)
				fmt.Fprintf(out, "  New items:      %d\n", report.Initialized)
				fmt.Fprintf(out, "  Malformed:      %d\n", report.Malformed)
				if report.FailedBatches > 0 {
					color.New(color.FgRed).Fprintf(out, "  Failed batches: %d\n", report.FailedBatches)
					return fmt.Errorf("%d batches failed, run sync import again to resume from the first failed batch", report.FailedBatches)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Discard the saved cursor and start from the first event")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Events per batch (defaults to sync.batch_size)")
	return cmd
}

func newSyncStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last sync and whether a new one is needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			env, err := openEnvironment(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = env.close()
			}()

			statuses := datasync.NewStatusRepository(env.kv)
			status, err := statuses.Load(ctx)
			if err != nil {
				return fmt.Errorf("statuses.Load() > %w", err)
			}
			needsSync, err := statuses.NeedsSync(ctx, now(), time.Duration(cfg.Sync.IntervalHours)*time.Hour)
			if err != nil {
				return fmt.Errorf("statuses.NeedsSync() > %w", err)
			}
			cursor, err := ingest.NewCursorRepository(env.kv).Load(ctx)
			if err != nil {
				return fmt.Errorf("cursors.Load() > %w", err)
			}

			out := cmd.OutOrStdout()
			if status == nil || status.LastSyncedAt.IsZero() {
				fmt.Fprintln(out, "Last sync:   never")
			} else {
				fmt.Fprintf(out, "Last sync:   %s (session %s)\n", status.LastSyncedAt.Format(time.RFC3339), status.LastSessionID)
			}
			if status != nil && status.LastError != "" {
				color.New(color.FgRed).Fprintf(out, "Last error:  %s at %s\n", status.LastError, status.LastFailedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "Cursor:      offset %d, complete %t\n", cursor.Offset, cursor.IsComplete)
			if needsSync {
				color.New(color.FgYellow).Fprintln(out, "Sync needed: yes")
			} else {
				fmt.Fprintln(out, "Sync needed: no")
			}
			return nil
		},
	}
}
