// Package repl implements the interactive deskmate shell. Direct
// commands hit the helpdesk API without spending AI tokens; anything
// else is handed to the assistant conversation, which drives the same
// services through tool calls.
package repl

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/config"
	"github.com/deskmate-io/deskmate/internal/merge"
	"github.com/deskmate-io/deskmate/internal/types"
)

// TicketReader is the slice of the ticket API the shell needs
type TicketReader interface {
	Get(ctx context.Context, id int) (types.Ticket, error)
	GetWithActions(ctx context.Context, id int) (types.Ticket, error)
	RecentForClient(ctx context.Context, clientID int, since time.Time, max int) ([]types.Ticket, error)
}

// ClientLister lists helpdesk clients
type ClientLister interface {
	List(ctx context.Context, params url.Values) ([]types.Client, error)
}

// DuplicateFinder scans for likely duplicates of a ticket
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, ticketID int) ([]types.DuplicateCandidate, error)
}

// Merger folds secondary tickets into a primary
type Merger interface {
	Merge(ctx context.Context, req merge.MergeRequest) (*types.MergeResult, error)
}

// MergeRecorder writes merge outcomes to the local audit trail
type MergeRecorder interface {
	RecordMerge(ctx context.Context, profile, note string, result *types.MergeResult, started, finished time.Time) (string, error)
}

// Services bundles the backends the shell and its assistant tools use.
// History may be nil; merges then simply go unrecorded locally.
type Services struct {
	Tickets     TicketReader
	Clients     ClientLister
	Detector    DuplicateFinder
	Coordinator Merger
	History     MergeRecorder
	Profile     string
}

// REPL represents the interactive shell
type REPL struct {
	services     Services
	chat         config.ChatConfig
	log          *logrus.Logger
	rl           *readline.Instance
	ctx          context.Context
	commands     map[string]CommandHandler
	conversation *ConversationHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Services Services
	Chat     config.ChatConfig
	Log      *logrus.Logger
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Services.Tickets == nil {
		return nil, fmt.Errorf("ticket service is required")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	r := &REPL{
		services: cfg.Services,
		chat:     cfg.Chat,
		log:      cfg.Log,
		commands: make(map[string]CommandHandler),
	}

	r.registerCommands()

	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	prompt := cyan("deskmate> ")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C - just show prompt again
				continue
			} else if err == io.EOF {
				// Ctrl+D - exit
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				// Exit command - graceful shutdown
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	// Everything that is not a command goes to the assistant
	return r.processNaturalLanguage(line)
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["clear"] = r.cmdClear
	r.commands["ticket"] = r.cmdTicket
	r.commands["dupes"] = r.cmdDupes
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Welcome to Deskmate"))
	fmt.Println("AI assistant for your helpdesk queue")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println("Anything else is sent to the assistant:")
	fmt.Println("  'find duplicates of 4821'")
	fmt.Println("  'merge 4830 and 4833 into 4821'")
	fmt.Println()
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Available Commands:"))
	fmt.Println()

	commands := []struct {
		name string
		desc string
	}{
		{"help, ?", "Show this help message"},
		{"ticket <id>", "Show a ticket with its recent notes"},
		{"dupes <id>", "Scan for likely duplicates of a ticket"},
		{"clear", "Clear the assistant conversation history"},
		{"exit, quit", "Exit the shell"},
	}

	for _, cmd := range commands {
		fmt.Printf("  %-14s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Println()
	fmt.Println("Natural language input:")
	fmt.Println("  'what has Acme reported this week?'")
	fmt.Println("  'find duplicates of 4821'")
	fmt.Println("  'merge 4830 and 4833 into 4821 with a note'")
	fmt.Println()

	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	r.rl.Close()
	return io.EOF // Signal to exit the loop
}

// cmdClear resets the assistant conversation
func (r *REPL) cmdClear(args []string) error {
	if r.conversation != nil {
		r.conversation.ClearHistory()
	}
	fmt.Println("Conversation history cleared.")
	return nil
}

// cmdTicket shows one ticket with its recent notes
func (r *REPL) cmdTicket(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ticket <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid ticket id: %s", args[0])
	}

	ticket, err := r.services.Tickets.GetWithActions(r.ctx, id)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(formatTicket(ticket))
	return nil
}

// cmdDupes scans for likely duplicates of a ticket
func (r *REPL) cmdDupes(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dupes <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid ticket id: %s", args[0])
	}
	if r.services.Detector == nil {
		return fmt.Errorf("duplicate detection is not configured")
	}

	candidates, err := r.services.Detector.FindDuplicates(r.ctx, id)
	if err != nil {
		return err
	}

	fmt.Println()
	if len(candidates) == 0 {
		fmt.Printf("No likely duplicates found for ticket #%d.\n", id)
		return nil
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s for ticket #%d:\n\n", yellow("Likely duplicates"), id)
	for _, c := range candidates {
		fmt.Printf("  #%-6d %.2f  [%s]  %s\n", c.ID, c.Score, c.Status, c.Summary)
	}
	fmt.Println()
	return nil
}
