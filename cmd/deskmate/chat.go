package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskmate-io/deskmate/internal/repl"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive assistant",
	Long: `Open an interactive shell backed by an AI assistant that can look up
tickets, find duplicates, and merge them on your behalf.

Requires ANTHROPIC_API_KEY for the natural-language assistant; the
built-in commands (help, ticket, dupes, exit) work without it.`,
	Run: func(cmd *cobra.Command, args []string) {
		b, err := newBackends()
		if err != nil {
			fatal(err)
		}

		services := repl.Services{
			Tickets:     b.tickets,
			Clients:     b.clients,
			Detector:    b.detector,
			Coordinator: b.coordinator,
			Profile:     b.profile,
		}

		// A broken local store should not keep the assistant from
		// starting; merges just go unrecorded.
		hist, err := openHistory()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: merge history unavailable: %v\n", err)
		} else {
			defer hist.Close()
			services.History = hist
		}

		r, err := repl.New(&repl.Config{
			Services: services,
			Chat:     cfg.Chat,
			Log:      log,
		})
		if err != nil {
			fatal(err)
		}

		if err := r.Run(context.Background()); err != nil {
			fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
