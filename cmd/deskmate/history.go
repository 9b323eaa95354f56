package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the local merge history",
	Long: `List merges recorded in the local audit store, newest first.

The store only tracks merges performed from this machine; the remote
helpdesk itself keeps no merge records.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		hist, err := openHistory()
		if err != nil {
			fatal(err)
		}
		defer hist.Close()

		records, err := hist.ListMerges(context.Background(), limit)
		if err != nil {
			fatal(err)
		}

		if len(records) == 0 {
			fmt.Println("No merges recorded yet")
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, r := range records {
			line := fmt.Sprintf("%s  %s  %-10s #%-7d %d merged, %d notes",
				gray(r.StartedAt.Format("2006-01-02 15:04")), r.ID, r.Profile, r.PrimaryID,
				r.MergedCount, r.TotalNotesCopied)
			if r.ErrorCount > 0 {
				line += red(fmt.Sprintf(", %d failed", r.ErrorCount))
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d merges. Use 'deskmate history show <merge-id>' for detail.\n", len(records))
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <merge-id>",
	Short: "Show one recorded merge in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hist, err := openHistory()
		if err != nil {
			fatal(err)
		}
		defer hist.Close()

		record, err := hist.GetMerge(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}
		if record == nil {
			fmt.Fprintf(os.Stderr, "Error: no merge found with id %s\n", args[0])
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		fmt.Printf("%s\n", bold("Merge "+record.ID))
		fmt.Printf("When:    %s (took %s)\n", record.StartedAt.Format("2006-01-02 15:04:05 UTC"),
			record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
		fmt.Printf("Profile: %s\n", record.Profile)
		fmt.Printf("Primary: #%d\n", record.PrimaryID)
		if record.Note != "" {
			fmt.Printf("Note:    %s\n", record.Note)
		}
		fmt.Printf("Totals:  %d merged, %d failed, %d notes copied\n",
			record.MergedCount, record.ErrorCount, record.TotalNotesCopied)

		if len(record.Tickets) == 0 {
			return
		}
		fmt.Println()
		for _, t := range record.Tickets {
			if t.Error != "" {
				fmt.Printf("  %s #%-7d %s\n", red("✗"), t.TicketID, t.Error)
			} else {
				fmt.Printf("  %s #%-7d %s (%d notes copied)\n", green("✓"), t.TicketID,
					oneLine(t.Summary, 60), t.NotesCopied)
			}
		}
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old merge records per the retention settings",
	Run: func(cmd *cobra.Command, args []string) {
		retention, err := cfg.Store.Retention.ApplyEnvOverrides()
		if err != nil {
			fatal(err)
		}

		hist, err := openHistory()
		if err != nil {
			fatal(err)
		}
		defer hist.Close()

		pruned, err := hist.Prune(context.Background(), retention)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Pruned %d merge records (keeping %d days, at most %d records)\n",
			pruned, retention.MaxAgeDays, retention.MaxEntries)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of merges to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
