package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deskmate-io/deskmate/internal/types"
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List and inspect helpdesk tickets",
	Long:  `Commands for listing recent tickets and showing ticket detail.`,
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tickets",
	Long: `List recently created tickets, optionally scoped to one client.

Examples:
  deskmate tickets list                      # Recent tickets, all clients
  deskmate tickets list --client 512         # One client's recent tickets
  deskmate tickets list --since 24h -n 10    # Last day, at most 10`,
	Run: func(cmd *cobra.Command, args []string) {
		clientID, _ := cmd.Flags().GetInt("client")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		b, err := newBackends()
		if err != nil {
			fatal(err)
		}

		ctx := context.Background()
		cutoff := time.Now().Add(-since)

		var tickets []types.Ticket
		if clientID > 0 {
			tickets, err = b.tickets.RecentForClient(ctx, clientID, cutoff, limit)
		} else {
			params := url.Values{}
			params.Set("start_date", cutoff.UTC().Format(time.RFC3339))
			params.Set("page_size", strconv.Itoa(limit))
			tickets, err = b.tickets.List(ctx, params)
		}
		if err != nil {
			fatal(err)
		}

		if len(tickets) == 0 {
			fmt.Printf("No tickets created in the last %s\n", since)
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, t := range tickets {
			fmt.Printf("#%-7d %-12s %s  %s\n",
				t.ID, t.Status, gray(t.CreatedAt.Format("Jan 02 15:04")), oneLine(t.Summary, 70))
		}
		fmt.Printf("\n%d tickets\n", len(tickets))
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show one ticket in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withNotes, _ := cmd.Flags().GetBool("notes")

		id, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid ticket id %q", args[0]))
		}

		b, err := newBackends()
		if err != nil {
			fatal(err)
		}

		ctx := context.Background()

		var ticket types.Ticket
		if withNotes {
			ticket, err = b.tickets.GetWithActions(ctx, id)
		} else {
			ticket, err = b.tickets.Get(ctx, id)
		}
		if err != nil {
			fatal(err)
		}

		printTicket(ticket, withNotes)
	},
}

// printTicket renders one ticket for terminal output
func printTicket(t types.Ticket, withNotes bool) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s %s\n", bold(fmt.Sprintf("#%d", t.ID)), bold(t.Summary))
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Client:   %d\n", t.ClientID)
	if t.Category != "" {
		fmt.Printf("Category: %s\n", t.Category)
	}
	if t.PriorityID > 0 {
		fmt.Printf("Priority: %d\n", t.PriorityID)
	}
	fmt.Printf("Created:  %s\n", t.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if t.Details != "" {
		fmt.Printf("\n%s\n", t.Details)
	}

	if !withNotes {
		return
	}
	if len(t.Actions) == 0 {
		fmt.Printf("\nNo notes\n")
		return
	}
	fmt.Printf("\nNotes (%d):\n", len(t.Actions))
	for _, a := range t.Actions {
		who := a.Who
		if who == "" {
			who = "unknown"
		}
		marker := ""
		if a.Hidden {
			marker = " (internal)"
		}
		fmt.Printf("  %s %s%s\n", gray(a.Timestamp.Format("2006-01-02 15:04")), who, marker)
		fmt.Printf("    %s\n", oneLine(a.Note, 120))
	}
}

// oneLine flattens and truncates text for single-line table output
func oneLine(s string, max int) string {
	flat := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		flat = append(flat, r)
	}
	if len(flat) > max {
		return string(flat[:max-3]) + "..."
	}
	return string(flat)
}

func init() {
	ticketsListCmd.Flags().IntP("client", "c", 0, "Only tickets for this client id")
	ticketsListCmd.Flags().Duration("since", 72*time.Hour, "How far back to look")
	ticketsListCmd.Flags().IntP("limit", "n", 25, "Maximum number of tickets to show")
	ticketsShowCmd.Flags().Bool("notes", false, "Include the ticket's notes")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsShowCmd)
	rootCmd.AddCommand(ticketsCmd)
}
