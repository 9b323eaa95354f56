package types

import (
	"fmt"
	"time"
)

// Ticket represents a helpdesk ticket as held by the remote system
type Ticket struct {
	ID         int       `json:"id"`
	Summary    string    `json:"summary"`
	Details    string    `json:"details,omitempty"`
	ClientID   int       `json:"client_id"`
	Category   string    `json:"category,omitempty"`
	PriorityID int       `json:"priority_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	Actions    []Action  `json:"actions,omitempty"` // ordered as returned by the remote
}

// Validate checks if the ticket has valid field values
func (t *Ticket) Validate() error {
	if len(t.Summary) == 0 {
		return fmt.Errorf("summary is required")
	}
	if len(t.Summary) > 500 {
		return fmt.Errorf("summary must be 500 characters or less (got %d)", len(t.Summary))
	}
	if t.ClientID < 0 {
		return fmt.Errorf("client_id cannot be negative (got %d)", t.ClientID)
	}
	if t.PriorityID < 0 {
		return fmt.Errorf("priority_id cannot be negative (got %d)", t.PriorityID)
	}
	return nil
}

// HasClient reports whether the ticket is linked to a client.
// Tickets without a client linkage are excluded from duplicate detection.
func (t *Ticket) HasClient() bool {
	return t.ClientID > 0
}

// Action represents a note attached to a ticket
type Action struct {
	ID        int       `json:"id"`
	TicketID  int       `json:"ticket_id"`
	Note      string    `json:"note"`
	Who       string    `json:"who,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Hidden    bool      `json:"hidden"` // hidden from the end user when true
}

// TicketState represents the well-known lifecycle states this tool
// reads and writes. The remote system allows arbitrary status names;
// these are the ones the merge and filter flows depend on.
type TicketState string

const (
	StateNew        TicketState = "New"
	StateOpen       TicketState = "Open"
	StateInProgress TicketState = "In Progress"
	StateClosed     TicketState = "Closed"
)

// IsValid checks if the ticket state value is valid
func (s TicketState) IsValid() bool {
	switch s {
	case StateNew, StateOpen, StateInProgress, StateClosed:
		return true
	}
	return false
}

// IsClosed reports whether a remote status name counts as closed
func IsClosed(status string) bool {
	return status == string(StateClosed)
}

// Client represents a customer organization in the remote system
type Client struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Inactive bool   `json:"inactive"`
}

// Agent represents a helpdesk agent in the remote system
type Agent struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Status represents a ticket status definition (reference data)
type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DuplicateCandidate is one ranked result from duplicate detection
type DuplicateCandidate struct {
	ID        int       `json:"id"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	// Score is the final similarity in [0,1], rounded to two decimals
	Score float64 `json:"score"`
	// MatchedWords are the summary words shared with the source, sorted
	MatchedWords []string `json:"matched_words"`
}

// MergedTicket summarizes one secondary ticket successfully folded
// into a primary
type MergedTicket struct {
	ID          int    `json:"id"`
	Summary     string `json:"summary"`
	NotesCopied int    `json:"notes_copied"`
}

// MergeError records one secondary ticket that could not be merged
type MergeError struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// MergeResult is the aggregate outcome of a merge operation. It is
// returned even when some secondaries fail; per-ticket failures are
// carried in Errors rather than aborting the whole operation.
type MergeResult struct {
	PrimaryID        int            `json:"primary_id"`
	Merged           []MergedTicket `json:"merged"`
	TotalNotesCopied int            `json:"total_notes_copied"`
	Errors           []MergeError   `json:"errors"`
}

// Failed reports whether any secondary ticket failed to merge
func (r *MergeResult) Failed() bool {
	return len(r.Errors) > 0
}
