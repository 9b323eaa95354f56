package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deskmate-io/deskmate/internal/merge"
	"github.com/deskmate-io/deskmate/internal/types"
)

// maxNotesShown caps how many notes a formatted ticket includes
const maxNotesShown = 5

// executeTool executes a tool and returns the result.
// This dispatcher routes tool calls from the AI to the appropriate handler function.
func (c *ConversationHandler) executeTool(ctx context.Context, name string, input interface{}) (string, error) {
	var inputMap map[string]interface{}

	// The Anthropic SDK may provide input as different types:
	// - map[string]interface{} (already decoded)
	// - []byte (raw JSON)
	// - json.RawMessage (JSON bytes)
	switch v := input.(type) {
	case map[string]interface{}:
		inputMap = v
	case []byte:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input from bytes: %w", err)
		}
	case json.RawMessage:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input from RawMessage: %w", err)
		}
	default:
		return "", fmt.Errorf("invalid tool input format: expected map[string]interface{}, []byte, or json.RawMessage, got %T", input)
	}

	switch name {
	case "get_ticket":
		return c.toolGetTicket(ctx, inputMap)
	case "recent_tickets":
		return c.toolRecentTickets(ctx, inputMap)
	case "find_duplicates":
		return c.toolFindDuplicates(ctx, inputMap)
	case "merge_tickets":
		return c.toolMergeTickets(ctx, inputMap)
	case "list_clients":
		return c.toolListClients(ctx, inputMap)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// toolGetTicket loads one ticket with its notes.
// Input: ticket_id (required)
// Returns: Formatted ticket with up to five of its latest notes
func (c *ConversationHandler) toolGetTicket(ctx context.Context, input map[string]interface{}) (string, error) {
	id, ok := input["ticket_id"].(float64)
	if !ok || id <= 0 {
		return "", fmt.Errorf("ticket_id is required")
	}

	ticket, err := c.services.Tickets.GetWithActions(ctx, int(id))
	if err != nil {
		return "", fmt.Errorf("failed to load ticket %d: %w", int(id), err)
	}

	return formatTicket(ticket), nil
}

// toolRecentTickets lists a client's recent tickets, newest first.
// Input: client_id (required), hours (default: 72), limit (default: 20)
// Returns: Formatted ticket list or "No tickets found..."
func (c *ConversationHandler) toolRecentTickets(ctx context.Context, input map[string]interface{}) (string, error) {
	clientID, ok := input["client_id"].(float64)
	if !ok || clientID <= 0 {
		return "", fmt.Errorf("client_id is required")
	}

	hours := 72
	if h, ok := input["hours"].(float64); ok && h > 0 {
		hours = int(h)
	}
	limit := 20
	if l, ok := input["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	tickets, err := c.services.Tickets.RecentForClient(ctx, int(clientID), since, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list recent tickets: %w", err)
	}

	if len(tickets) == 0 {
		return fmt.Sprintf("No tickets found for client %d in the last %d hours", int(clientID), hours), nil
	}

	result := fmt.Sprintf("Found %d tickets for client %d (last %d hours):\n", len(tickets), int(clientID), hours)
	for _, t := range tickets {
		result += fmt.Sprintf("- #%d [%s] %s (created %s)\n", t.ID, t.Status, t.Summary, t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}

	return result, nil
}

// toolFindDuplicates scans for likely duplicates of a ticket.
// Input: ticket_id (required)
// Returns: Scored candidate list, best match first, with shared words
func (c *ConversationHandler) toolFindDuplicates(ctx context.Context, input map[string]interface{}) (string, error) {
	id, ok := input["ticket_id"].(float64)
	if !ok || id <= 0 {
		return "", fmt.Errorf("ticket_id is required")
	}
	if c.services.Detector == nil {
		return "", fmt.Errorf("duplicate detection is not configured")
	}

	candidates, err := c.services.Detector.FindDuplicates(ctx, int(id))
	if err != nil {
		return "", fmt.Errorf("duplicate scan failed: %w", err)
	}

	if len(candidates) == 0 {
		return fmt.Sprintf("No likely duplicates found for ticket %d", int(id)), nil
	}

	result := fmt.Sprintf("Found %d duplicate candidates for ticket %d:\n\n", len(candidates), int(id))
	for _, cand := range candidates {
		result += fmt.Sprintf("- #%d (score %.2f, %s) %s\n", cand.ID, cand.Score, cand.Status, cand.Summary)
		if len(cand.MatchedWords) > 0 {
			result += fmt.Sprintf("  shared words: %s\n", strings.Join(cand.MatchedWords, ", "))
		}
	}

	return result, nil
}

// toolMergeTickets folds secondary tickets into a primary and records
// the outcome in the local history.
// Input: primary_id (required), secondary_ids (required), note (optional)
// Returns: Per-ticket merge summary including any partial failures
func (c *ConversationHandler) toolMergeTickets(ctx context.Context, input map[string]interface{}) (string, error) {
	if c.services.Coordinator == nil {
		return "", fmt.Errorf("merging is not configured")
	}

	primary, ok := input["primary_id"].(float64)
	if !ok || primary <= 0 {
		return "", fmt.Errorf("primary_id is required")
	}

	rawIDs, ok := input["secondary_ids"].([]interface{})
	if !ok || len(rawIDs) == 0 {
		return "", fmt.Errorf("secondary_ids is required")
	}
	secondaries := make([]int, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, ok := raw.(float64)
		if !ok {
			return "", fmt.Errorf("secondary_ids must be integers, got %v", raw)
		}
		secondaries = append(secondaries, int(id))
	}

	note, _ := input["note"].(string)

	started := time.Now()
	result, err := c.services.Coordinator.Merge(ctx, merge.MergeRequest{
		PrimaryID:    int(primary),
		SecondaryIDs: secondaries,
		Note:         note,
	})
	finished := time.Now()
	if err != nil {
		return "", fmt.Errorf("merge failed: %w", err)
	}

	if c.services.History != nil {
		// The remote merge already happened; a failed local record must
		// not turn the tool result into an error.
		if _, err := c.services.History.RecordMerge(ctx, c.services.Profile, note, result, started, finished); err != nil {
			c.log.WithError(err).Warn("failed to record merge history")
		}
	}

	return formatMergeResult(result), nil
}

// toolListClients lists helpdesk clients, optionally filtered.
// Input: search (optional), limit (default: 25)
// Returns: Formatted client list with ids or "No clients found"
func (c *ConversationHandler) toolListClients(ctx context.Context, input map[string]interface{}) (string, error) {
	if c.services.Clients == nil {
		return "", fmt.Errorf("client lookup is not configured")
	}

	limit := 25
	if l, ok := input["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	params := url.Values{}
	params.Set("page_size", strconv.Itoa(limit))
	if search, ok := input["search"].(string); ok && search != "" {
		params.Set("search", search)
	}

	clients, err := c.services.Clients.List(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to list clients: %w", err)
	}

	if len(clients) == 0 {
		return "No clients found", nil
	}

	result := fmt.Sprintf("Found %d clients:\n", len(clients))
	for _, client := range clients {
		result += fmt.Sprintf("- [%d] %s", client.ID, client.Name)
		if client.Inactive {
			result += " (inactive)"
		}
		result += "\n"
	}

	return result, nil
}

// formatTicket renders one ticket for the shell and for tool results
func formatTicket(t types.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d  %s\n", t.ID, t.Summary)
	fmt.Fprintf(&b, "Status: %s | Client: %d", t.Status, t.ClientID)
	if t.Category != "" {
		fmt.Fprintf(&b, " | Category: %s", t.Category)
	}
	if t.PriorityID != 0 {
		fmt.Fprintf(&b, " | Priority: %d", t.PriorityID)
	}
	fmt.Fprintf(&b, "\nCreated: %s\n", t.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))

	if t.Details != "" {
		b.WriteString("\n")
		b.WriteString(truncate(t.Details, 300))
		b.WriteString("\n")
	}

	if len(t.Actions) > 0 {
		fmt.Fprintf(&b, "\nNotes (%d):\n", len(t.Actions))
		actions := t.Actions
		if len(actions) > maxNotesShown {
			fmt.Fprintf(&b, "  ... %d older notes omitted\n", len(actions)-maxNotesShown)
			actions = actions[len(actions)-maxNotesShown:]
		}
		for _, a := range actions {
			who := a.Who
			if who == "" {
				who = "unknown"
			}
			marker := ""
			if a.Hidden {
				marker = " (internal)"
			}
			fmt.Fprintf(&b, "  [%s] %s%s: %s\n", a.Timestamp.UTC().Format("2006-01-02 15:04"), who, marker, truncate(a.Note, 200))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatMergeResult renders a merge outcome, including partial failures
func formatMergeResult(result *types.MergeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merged %d tickets into #%d, %d notes copied.\n", len(result.Merged), result.PrimaryID, result.TotalNotesCopied)
	for _, m := range result.Merged {
		fmt.Fprintf(&b, "- #%d closed (%d notes copied): %s\n", m.ID, m.NotesCopied, m.Summary)
	}
	if result.Failed() {
		fmt.Fprintf(&b, "\n%d tickets failed to merge and may be partially processed:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- #%d: %s\n", e.ID, e.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate shortens long text for display
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
