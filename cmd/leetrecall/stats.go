package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/leetrecall/internal/schedule"
	"github.com/at-ishikawa/leetrecall/internal/statistics"
)

type statsOutput struct {
	Summary statistics.Summary            `json:"summary" yaml:"summary"`
	Periods []statistics.PeriodStatistics `json:"periods" yaml:"periods"`
}

func newStatsCommand() *cobra.Command {
	var year, month int
	format := OutputText

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show review statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != 0 && year == 0 {
				return fmt.Errorf("--month requires --year to be specified")
			}
			if month < 0 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12")
			}

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

			records, err := env.store.All(ctx)
			if err != nil {
				return fmt.Errorf("store.All() > %w", err)
			}
			result := statsOutput{
				Summary: statistics.Summarize(records, now()),
				Periods: statistics.ReviewPeriods(records, year, month),
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, format, result); ok {
				return err
			}

			s := result.Summary
			fmt.Fprintf(out, "Tracked: %d, due now: %d\n", s.Tracked, s.Due)
			fmt.Fprintf(out, "Difficulty: Easy %d, Medium %d, Hard %d", s.ByDifficulty["Easy"], s.ByDifficulty["Medium"], s.ByDifficulty["Hard"])
			if other := s.ByDifficulty["Other"]; other > 0 {
				fmt.Fprintf(out, ", Other %d", other)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Outcomes: again %d, hard %d, good %d, easy %d\n",
				s.Outcomes[schedule.Again], s.Outcomes[schedule.Hard], s.Outcomes[schedule.Good], s.Outcomes[schedule.Easy])
			fmt.Fprintf(out, "Average ease: %.2f\n", s.AverageEase)
			if !s.LastReviewedAt.IsZero() {
				fmt.Fprintf(out, "Last review: %s\n", s.LastReviewedAt.Format(time.RFC3339))
			}
			if len(result.Periods) > 0 {
				fmt.Fprintln(out, "\nPeriod    Reviews  Items  Again")
				for _, p := range result.Periods {
					fmt.Fprintf(out, "%-9s %7d %6d %6d\n", p.Period, p.Reviews, p.UniqueItems, p.AgainReviews)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Filter periods by year (e.g., 2025)")
	cmd.Flags().IntVar(&month, "month", 0, "Filter periods by month (1-12), requires --year")
	cmd.Flags().Var(&format, "format", "Output format. Options: text, yaml, json")
	return cmd
}
