package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markerlane/markerlane-agent/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Review rules utilities",
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default review.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ctx.reviewPath()
			if overwrite {
				if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove existing config: %w", err)
				}
			}
			if err := config.WriteDefaultReview(target); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					return fmt.Errorf("%w (use --overwrite to replace it)", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote default review rules to %s\n", target)
			fmt.Fprintln(out, "Set the [tags] ids to your Stash tag ids before reviewing.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate review.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.reviewPath()
			rules, exists, err := config.LoadReview(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Review config: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "File does not exist; defaults are used")
			}
			for _, w := range missingTagWarnings(rules) {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "Configuration valid: %d corresponding tags, %d derivation edges\n",
				len(rules.CorrespondingTags), rules.DerivationGraph().Len())
			return nil
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the data directory and review config locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:      %s\n", ctx.config.DataDir())
			fmt.Fprintf(out, "database:      %s\n", ctx.config.DBPath())
			fmt.Fprintf(out, "review_config: %s\n", ctx.reviewPath())
			return nil
		},
	}
}

// missingTagWarnings lists reserved tags left unset. Review still works
// without them, but the matching actions are refused.
func missingTagWarnings(r *config.Review) []string {
	var out []string
	for _, t := range []struct{ name, id string }{
		{"tags.confirmed", r.Tags.Confirmed},
		{"tags.rejected", r.Tags.Rejected},
		{"tags.shot_boundary", r.Tags.ShotBoundary},
		{"tags.ai_reviewed", r.Tags.AIReviewed},
	} {
		if t.id == "" {
			out = append(out, t.name+" is not set")
		}
	}
	return out
}
