package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deskmate-io/deskmate/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <primary-id> <secondary-id>...",
	Short: "Merge duplicate tickets into a primary",
	Long: `Fold one or more duplicate tickets into a primary ticket.

Every note on each secondary is copied to the primary, then the
secondary is closed with a pointer to the primary. The primary gets a
visible note announcing the merge. Tickets that fail partway keep
whatever notes were already copied; merging does not roll back.

Examples:
  deskmate merge 4821 4830 4835              # Merge two tickets into #4821
  deskmate merge 4821 4830 --note "Same outage"
  deskmate merge 4821 4830 --yes             # Skip the confirmation prompt`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		note, _ := cmd.Flags().GetString("note")
		yes, _ := cmd.Flags().GetBool("yes")

		ids := make([]int, len(args))
		for i, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				fatal(fmt.Errorf("invalid ticket id %q", arg))
			}
			ids[i] = id
		}
		req := merge.MergeRequest{
			PrimaryID:    ids[0],
			SecondaryIDs: ids[1:],
			Note:         note,
		}

		b, err := newBackends()
		if err != nil {
			fatal(err)
		}

		ctx := context.Background()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		primary, err := b.tickets.Get(ctx, req.PrimaryID)
		if err != nil {
			fatal(fmt.Errorf("failed to load primary ticket %d: %w", req.PrimaryID, err))
		}

		if !yes {
			fmt.Printf("Merging into %s %s\n", bold(fmt.Sprintf("#%d", primary.ID)), oneLine(primary.Summary, 60))
			for _, id := range req.SecondaryIDs {
				if t, err := b.tickets.Get(ctx, id); err == nil {
					fmt.Printf("  #%-7d %s\n", t.ID, oneLine(t.Summary, 60))
				} else {
					fmt.Printf("  #%-7d %s\n", id, yellow("(could not load: "+err.Error()+")"))
				}
			}
			fmt.Printf("\nThis copies all notes to #%d and closes the tickets above. It cannot be undone.\n", primary.ID)
			fmt.Printf("Proceed? [y/N]: ")

			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			if answer != "y" && answer != "yes" {
				fmt.Println("Aborted")
				return
			}
			fmt.Println()
		}

		started := time.Now()
		result, err := b.coordinator.Merge(ctx, req)
		finished := time.Now()
		if err != nil {
			fatal(err)
		}

		for _, m := range result.Merged {
			fmt.Printf("%s #%d closed (%d notes copied)\n", green("✓"), m.ID, m.NotesCopied)
		}
		for _, e := range result.Errors {
			fmt.Printf("%s #%d failed: %s\n", red("✗"), e.ID, e.Message)
		}
		fmt.Printf("\nMerged %d of %d tickets into #%d, %d notes copied.\n",
			len(result.Merged), len(req.SecondaryIDs), result.PrimaryID, result.TotalNotesCopied)

		if hist, err := openHistory(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: merge history not recorded: %v\n", err)
		} else {
			if recordID, err := hist.RecordMerge(ctx, b.profile, req.Note, result, started, finished); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: merge history not recorded: %v\n", err)
			} else {
				fmt.Printf("Recorded as merge %s\n", recordID)
			}
			hist.Close()
		}

		if result.Failed() {
			fmt.Printf("\n%s Some tickets may be partially processed; review them before retrying.\n", yellow("⚠"))
			os.Exit(1)
		}
	},
}

func init() {
	mergeCmd.Flags().String("note", "", "Override the merge announcement note on the primary")
	mergeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(mergeCmd)
}
