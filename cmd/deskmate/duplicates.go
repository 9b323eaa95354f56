package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <ticket-id>",
	Short: "Find likely duplicates of a ticket",
	Long: `Score recent tickets from the same client against the given ticket
and list the ones that look like the same underlying problem.

Examples:
  deskmate duplicates 4821
  deskmate duplicates 4821 --threshold 0.3   # Cast a wider net`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid ticket id %q", args[0]))
		}
		if cmd.Flags().Changed("threshold") {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			cfg.Dedup.ScoreThreshold = threshold
		}

		b, err := newBackends()
		if err != nil {
			fatal(err)
		}

		ctx := context.Background()
		source, err := b.tickets.Get(ctx, id)
		if err != nil {
			fatal(err)
		}

		candidates, err := b.detector.FindDuplicates(ctx, id)
		if err != nil {
			fatal(err)
		}

		if len(candidates) == 0 {
			fmt.Printf("No likely duplicates found for #%d (threshold %.2f)\n", id, cfg.Dedup.ScoreThreshold)
			return
		}

		bold := color.New(color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("Found %d likely duplicates of %s %s\n\n", len(candidates),
			bold(fmt.Sprintf("#%d", source.ID)), oneLine(source.Summary, 60))
		for _, c := range candidates {
			fmt.Printf("  %.2f  #%-7d %-12s %s\n", c.Score, c.ID, c.Status, oneLine(c.Summary, 60))
			if len(c.MatchedWords) > 0 {
				fmt.Printf("        %s\n", gray("shared: "+strings.Join(c.MatchedWords, ", ")))
			}
		}
		fmt.Printf("\nReview with 'deskmate tickets show <id>', merge with 'deskmate merge'.\n")
	},
}

func init() {
	duplicatesCmd.Flags().Float64("threshold", 0, "Override the configured score threshold")
	rootCmd.AddCommand(duplicatesCmd)
}
