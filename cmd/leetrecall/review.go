package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/leetrecall/internal/review"
	"github.com/at-ishikawa/leetrecall/internal/schedule"
)

func newReviewCommand() *cobra.Command {
	outcomes := make([]string, 0, len(schedule.Outcomes))
	for _, o := range schedule.Outcomes {
		outcomes = append(outcomes, o.String())
	}

	return &cobra.Command{
		Use:       "review <item> <outcome>",
		Short:     "Record how a review went",
		Long:      "Record how a review went. Outcome is one of " + strings.Join(outcomes, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: outcomes,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			itemID := strings.TrimSpace(args[0])
			outcome, err := schedule.ParseOutcome(args[1])
			if err != nil {
				return err
			}

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

			out := cmd.OutOrStdout()
			var tracked bool
			var state *review.ReviewState
			err = env.store.Update(ctx, []string{itemID}, func(b *review.Batch) error {
				_, current, err := b.Get(itemID)
				if err != nil {
					return err
				}
				tracked = current != nil
				state, err = b.RecordOutcome(itemID, outcome, now())
				return err
			})
			if err != nil {
				return fmt.Errorf("store.Update(%s) > %w", itemID, err)
			}
			if !tracked {
				color.New(color.FgYellow).Fprintf(out, "%s was never synced, started a new schedule\n", itemID)
			}
			fmt.Fprintf(out, "Recorded %s for %s\n", outcome, itemID)
			fmt.Fprintf(out, "  Next review: %s (in %d days)\n", state.NextReviewAt.Format("2006-01-02"), state.Interval)
			fmt.Fprintf(out, "  Ease: %.2f, streak: %d\n", state.EaseFactor, state.ConsecutiveCorrect)
			return nil
		},
	}
}
