package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/leetrecall/internal/due"
)

func newDueCommand() *cobra.Command {
	var limit int
	format := OutputText

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List the items that should be reviewed now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Due.DefaultLimit
			}
			env, err := openEnvironment(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = env.close()
			}()

			current := now()
			selector := due.NewSelector(env.store)
			count, err := selector.Count(ctx, current)
			if err != nil {
				return fmt.Errorf("selector.Count() > %w", err)
			}
			items, err := selector.List(ctx, current, limit)
			if err != nil {
				return fmt.Errorf("selector.List() > %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, format, items); ok {
				return err
			}

			if count == 0 {
				color.New(color.FgGreen).Fprintln(out, "Nothing is due. Well done!")
				return nil
			}
			bold := color.New(color.Bold)
			fmt.Fprintf(out, "%d due, showing %d\n", count, len(items))
			for i, item := range items {
				overdue := int(current.Sub(item.NextReviewAt).Hours() / 24)
				bold.Fprintf(out, "%2d. %s", i+1, item.Title)
				fmt.Fprintf(out, " [%s] %s\n", item.Difficulty, item.ItemID)
				line := fmt.Sprintf("    ease %.2f, interval %dd", item.EaseFactor, item.Interval)
				if overdue > 0 {
					line += fmt.Sprintf(", overdue %dd", overdue)
				}
				if len(item.Tags) > 0 {
					line += ", tags " + strings.Join(item.Tags, ", ")
				}
				fmt.Fprintln(out, line)
				if item.URL != "" {
					fmt.Fprintf(out, "    %s\n", item.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items (defaults to due.default_limit)")
	cmd.Flags().Var(&format, "format", "Output format. Options: text, yaml, json")
	return cmd
}
