package repl

import "github.com/anthropics/anthropic-sdk-go"

// systemPrompt returns the system prompt for deskmate conversations
func (c *ConversationHandler) systemPrompt() string {
	return `You are Deskmate, an AI assistant for helpdesk engineers.

You are having a conversation with a support engineer through the deskmate shell. Your role is to help them work their ticket queue: look tickets up, spot duplicates, and merge tickets that describe the same underlying problem.

# TOOLS

- get_ticket: Load one ticket with its notes
  • Use when: User references a specific ticket id
  • Parameters: ticket_id (required)

- recent_tickets: List a client's recent tickets
  • Use when: User asks what a client has reported lately
  • Parameters: client_id (required), hours (default: 72), limit (default: 20)

- find_duplicates: Scan for likely duplicates of a ticket
  • Use when: User suspects a ticket was reported more than once
  • Parameters: ticket_id (required)
  • Results are advisory: each candidate carries a similarity score, not a verdict

- merge_tickets: Fold secondary tickets into a primary ticket
  • Use when: User has decided which tickets to merge
  • Parameters: primary_id (required), secondary_ids (required), note (optional)
  • This closes the secondaries and copies their notes - it cannot be undone

- list_clients: List helpdesk clients
  • Use when: User asks about clients or needs a client id
  • Parameters: search (optional), limit (default: 25)

# INTENT PATTERNS

"show me 4821" → get_ticket(ticket_id: 4821)
"what's in ticket 4821?" → get_ticket(ticket_id: 4821)

"what has Acme reported?" → list_clients(search: "Acme") then recent_tickets(client_id)
"anything new from client 42 today?" → recent_tickets(client_id: 42, hours: 24)

"is 4821 a duplicate?" → find_duplicates(ticket_id: 4821)
"did anyone else report this?" → find_duplicates on the ticket under discussion

"merge 4830 into 4821" → merge_tickets(primary_id: 4821, secondary_ids: [4830])
"merge those into the first one" → merge_tickets using ids from earlier in the conversation

# BEHAVIORAL GUIDELINES

1. LOOK BEFORE YOU MERGE
   • Merging closes tickets in the live helpdesk and cannot be undone
   • Always confirm the primary and secondary ids with the user before calling merge_tickets
   • Never merge on a hunch; run find_duplicates first and show the scores

2. BE CONTEXTUAL
   • Remember which tickets were just discussed
   • Resolve references like "that one" or "the printer ticket" from the conversation

3. BE TRANSPARENT
   • Duplicate scores are heuristics; present them as likelihood, not fact
   • If a merge partially fails, report exactly which tickets failed and why
   • If a tool fails, explain clearly and suggest alternatives

4. BE CONVERSATIONAL
   • Natural language only, no command syntax in responses
   • Concise but friendly

# CRITICAL RULES

• ALWAYS use tools to answer questions about tickets - never invent ticket data
• NEVER call merge_tickets without explicit user confirmation of the exact ids
• A failed secondary in a merge does NOT undo the rest; say so when it happens
• BE CONCISE

You are the conversational interface to a live helpdesk. Engineers trust what you report; make sure it comes from the tools.`
}

// getTools returns the tool definitions for function calling
func (c *ConversationHandler) getTools() []anthropic.ToolUnionParam {
	toolParams := []anthropic.ToolParam{
		{
			Name:        "get_ticket",
			Description: anthropic.String("Load one ticket with its summary, status, client and recent notes."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"ticket_id": map[string]interface{}{"type": "integer", "description": "Ticket id (required)"},
				},
				Required: []string{"ticket_id"},
			},
		},
		{
			Name:        "recent_tickets",
			Description: anthropic.String("List a client's recent tickets, newest first. Useful for spotting repeat reports."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"client_id": map[string]interface{}{"type": "integer", "description": "Client id (required)"},
					"hours":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 2160, "description": "Lookback window in hours (default: 72)"},
					"limit":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "description": "Max results (default: 20)"},
				},
				Required: []string{"client_id"},
			},
		},
		{
			Name:        "find_duplicates",
			Description: anthropic.String("Scan recent tickets from the same client for likely duplicates of the given ticket. Returns scored candidates, best match first."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"ticket_id": map[string]interface{}{"type": "integer", "description": "Ticket id to scan against (required)"},
				},
				Required: []string{"ticket_id"},
			},
		},
		{
			Name:        "merge_tickets",
			Description: anthropic.String("Merge secondary tickets into a primary: copies their notes onto the primary and closes them. Irreversible - confirm ids with the user first."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"primary_id":    map[string]interface{}{"type": "integer", "description": "Surviving ticket id (required)"},
					"secondary_ids": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}, "description": "Ticket ids to fold into the primary (required)"},
					"note":          map[string]interface{}{"type": "string", "description": "Announcement note for the primary (optional, auto-generated when empty)"},
				},
				Required: []string{"primary_id", "secondary_ids"},
			},
		},
		{
			Name:        "list_clients",
			Description: anthropic.String("List helpdesk clients, optionally filtered by a search term. Use to resolve a client name to an id."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"search": map[string]interface{}{"type": "string", "description": "Filter by name fragment (optional)"},
					"limit":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "description": "Max results (default: 25)"},
				},
			},
		},
	}

	tools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		// Create a copy to avoid capturing loop variable address
		tool := toolParams[i]
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return tools
}
