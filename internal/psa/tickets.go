package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/deskmate-io/deskmate/internal/types"
)

// wireTicket is the remote record shape for tickets
type wireTicket struct {
	ID         int          `json:"id"`
	Summary    string       `json:"summary"`
	Details    string       `json:"details"`
	ClientID   int          `json:"client_id"`
	Category   string       `json:"category"`
	PriorityID int          `json:"priority_id"`
	Status     string       `json:"status"`
	Created    time.Time    `json:"created"`
	Actions    []wireAction `json:"actions"`
}

// ticketFromWire maps one raw ticket record to the domain model
func ticketFromWire(raw json.RawMessage) (types.Ticket, error) {
	var w wireTicket
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Ticket{}, fmt.Errorf("decode ticket: %w", err)
	}
	t := types.Ticket{
		ID:         w.ID,
		Summary:    w.Summary,
		Details:    w.Details,
		ClientID:   w.ClientID,
		Category:   w.Category,
		PriorityID: w.PriorityID,
		Status:     w.Status,
		CreatedAt:  w.Created,
	}
	for _, wa := range w.Actions {
		t.Actions = append(t.Actions, wa.toAction())
	}
	return t, nil
}

// TicketService wraps the generic repository with the ticket-specific
// calls the duplicate detection and merge flows depend on
type TicketService struct {
	repo Repository[types.Ticket]
}

// NewTicketService creates the ticket service for one client
func NewTicketService(client *Client) *TicketService {
	return &TicketService{repo: NewRepository(client, "/tickets", ticketFromWire)}
}

// List fetches tickets matching the given query parameters
func (s *TicketService) List(ctx context.Context, params url.Values) ([]types.Ticket, error) {
	return s.repo.List(ctx, params)
}

// Get fetches one ticket without its action list
func (s *TicketService) Get(ctx context.Context, id int) (types.Ticket, error) {
	return s.repo.Get(ctx, id, nil)
}

// GetWithActions fetches one ticket with its full action list included
func (s *TicketService) GetWithActions(ctx context.Context, id int) (types.Ticket, error) {
	params := url.Values{}
	params.Set("includedetails", "true")
	return s.repo.Get(ctx, id, params)
}

// RecentForClient lists tickets belonging to one client created on or
// after since, capped at max results. The remote's return order is
// preserved; duplicate ranking uses it as the tie-break.
func (s *TicketService) RecentForClient(ctx context.Context, clientID int, since time.Time, max int) ([]types.Ticket, error) {
	params := url.Values{}
	params.Set("client_id", strconv.Itoa(clientID))
	params.Set("start_date", since.UTC().Format(time.RFC3339))
	params.Set("page_size", strconv.Itoa(max))
	return s.repo.List(ctx, params)
}

// Create submits new tickets as partial entities
func (s *TicketService) Create(ctx context.Context, items []map[string]any) ([]types.Ticket, error) {
	return s.repo.Create(ctx, items)
}

// Update submits ticket changes as partial entities carrying ids
func (s *TicketService) Update(ctx context.Context, items []map[string]any) ([]types.Ticket, error) {
	return s.repo.Update(ctx, items)
}

// Delete removes a ticket
func (s *TicketService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// CloseWithNote transitions a ticket to the closed state, attaching a
// visible note in the same update so the transition and its reason
// land together.
func (s *TicketService) CloseWithNote(ctx context.Context, id int, note string) error {
	_, err := s.repo.Update(ctx, []map[string]any{{
		"id":     id,
		"status": string(types.StateClosed),
		"note":   note,
	}})
	return err
}
