package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Verify the connection to the helpdesk",
	Long: `Authenticate against the configured helpdesk instance and perform a
minimal read to prove the credentials work end to end.

Examples:
  deskmate connect                 # Test the default profile
  deskmate connect -p staging      # Test a named profile
  deskmate connect --fresh         # Force a new token exchange`,
	Run: func(cmd *cobra.Command, args []string) {
		fresh, _ := cmd.Flags().GetBool("fresh")

		green := color.New(color.FgGreen).SprintFunc()

		name, client, err := newClient()
		if err != nil {
			fatal(err)
		}
		if fresh {
			client.ClearToken()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		start := time.Now()
		if err := client.TestConnection(ctx); err != nil {
			fatal(fmt.Errorf("connection to profile %q failed: %w", name, err))
		}

		fmt.Printf("%s Connected to profile %q (%s)\n", green("✓"), name, time.Since(start).Round(time.Millisecond))
	},
}

func init() {
	connectCmd.Flags().Bool("fresh", false, "Discard any cached token before authenticating")
	rootCmd.AddCommand(connectCmd)
}
