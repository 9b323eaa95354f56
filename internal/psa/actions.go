package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/deskmate-io/deskmate/internal/types"
)

// wireAction is the remote record shape for ticket notes
type wireAction struct {
	ID             int       `json:"id"`
	TicketID       int       `json:"ticket_id"`
	Note           string    `json:"note"`
	Who            string    `json:"who"`
	Timestamp      time.Time `json:"timestamp"`
	HiddenFromUser bool      `json:"hiddenfromuser"`
}

func (w wireAction) toAction() types.Action {
	return types.Action{
		ID:        w.ID,
		TicketID:  w.TicketID,
		Note:      w.Note,
		Who:       w.Who,
		Timestamp: w.Timestamp,
		Hidden:    w.HiddenFromUser,
	}
}

// actionFromWire maps one raw action record to the domain model
func actionFromWire(raw json.RawMessage) (types.Action, error) {
	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Action{}, fmt.Errorf("decode action: %w", err)
	}
	return w.toAction(), nil
}

// ActionService manages ticket notes through the actions endpoint
type ActionService struct {
	repo Repository[types.Action]
}

// NewActionService creates the action service for one client
func NewActionService(client *Client) *ActionService {
	return &ActionService{repo: NewRepository(client, "/actions", actionFromWire)}
}

// List fetches actions matching the given query parameters
func (s *ActionService) List(ctx context.Context, params url.Values) ([]types.Action, error) {
	return s.repo.List(ctx, params)
}

// ForTicket lists the actions attached to one ticket
func (s *ActionService) ForTicket(ctx context.Context, ticketID int) ([]types.Action, error) {
	params := url.Values{}
	params.Set("ticket_id", fmt.Sprintf("%d", ticketID))
	return s.repo.List(ctx, params)
}

// AddNote appends one note to a ticket. Hidden notes stay invisible to
// the end user; merge provenance notes are posted visible.
func (s *ActionService) AddNote(ctx context.Context, ticketID int, note string, hidden bool) (types.Action, error) {
	created, err := s.repo.Create(ctx, []map[string]any{{
		"ticket_id":      ticketID,
		"note":           note,
		"hiddenfromuser": hidden,
	}})
	if err != nil {
		return types.Action{}, err
	}
	if len(created) == 0 {
		// Some remote versions return an empty body on create; the
		// note was still posted.
		return types.Action{TicketID: ticketID, Note: note, Hidden: hidden}, nil
	}
	return created[0], nil
}

// Delete removes an action
func (s *ActionService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
