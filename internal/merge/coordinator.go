package merge

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/psa"
	"github.com/deskmate-io/deskmate/internal/types"
)

// TicketStore is the slice of the ticket API the coordinator needs
type TicketStore interface {
	GetWithActions(ctx context.Context, id int) (types.Ticket, error)
	CloseWithNote(ctx context.Context, id int, note string) error
}

// NoteAppender posts notes to tickets
type NoteAppender interface {
	AddNote(ctx context.Context, ticketID int, note string, hidden bool) (types.Action, error)
}

// MergeRequest describes one merge: the surviving primary ticket, the
// secondary tickets to fold into it, and an optional announcement note
// for the primary (auto-generated when empty).
type MergeRequest struct {
	PrimaryID    int
	SecondaryIDs []int
	Note         string
}

// Validate rejects malformed requests before any remote side effect.
// A primary id appearing in the secondary list is rejected outright:
// processing it as a secondary would close the surviving ticket.
func (r MergeRequest) Validate() error {
	if r.PrimaryID <= 0 {
		return psa.NewValidationError("primary_id", "must be a positive ticket id")
	}
	if len(r.SecondaryIDs) == 0 {
		return psa.NewValidationError("secondary_ids", "at least one secondary ticket id is required")
	}
	for _, id := range r.SecondaryIDs {
		if id <= 0 {
			return psa.NewValidationError("secondary_ids", fmt.Sprintf("invalid ticket id %d", id))
		}
		if id == r.PrimaryID {
			return psa.NewValidationError("secondary_ids",
				fmt.Sprintf("primary ticket %d cannot be merged into itself", r.PrimaryID))
		}
	}
	return nil
}

// Coordinator consolidates secondary tickets into a primary ticket,
// copying their notes with provenance and closing them.
type Coordinator struct {
	tickets TicketStore
	notes   NoteAppender
	log     *logrus.Logger
}

// NewCoordinator creates a merge coordinator
func NewCoordinator(tickets TicketStore, notes NoteAppender, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Coordinator{tickets: tickets, notes: notes, log: log}
}

// Merge folds the secondary tickets into the primary, strictly in
// order: the announcement note lands first, then each secondary's
// notes in their original order. Secondaries are processed one at a
// time so note ordering on the primary stays deterministic and the
// rate-limited remote is never hit in bursts.
//
// A failure on one secondary is recorded in the result and does not
// stop the others; only an unreachable primary (or a failed
// announcement) aborts the whole merge. Side effects already applied
// when a later step fails stay applied. Notes are posted and tickets
// closed remotely as we go, so there is nothing transactional to roll
// back; the result reports exactly what happened.
func (c *Coordinator) Merge(ctx context.Context, req MergeRequest) (*types.MergeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	primary, err := c.tickets.GetWithActions(ctx, req.PrimaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary ticket %d: %w", req.PrimaryID, err)
	}

	announcement := strings.TrimSpace(req.Note)
	if announcement == "" {
		announcement = mergeAnnouncement(req.SecondaryIDs)
	}
	if _, err := c.notes.AddNote(ctx, primary.ID, announcement, false); err != nil {
		return nil, fmt.Errorf("failed to announce merge on ticket %d: %w", primary.ID, err)
	}

	c.log.WithFields(logrus.Fields{
		"primary_id":  primary.ID,
		"secondaries": len(req.SecondaryIDs),
	}).Info("merge started")

	result := &types.MergeResult{PrimaryID: primary.ID}
	for _, secondaryID := range req.SecondaryIDs {
		summary, copied, err := c.mergeOne(ctx, primary.ID, secondaryID)
		result.TotalNotesCopied += copied
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"secondary_id": secondaryID,
				"error":        err.Error(),
			}).Warn("secondary merge failed, continuing")
			result.Errors = append(result.Errors, types.MergeError{ID: secondaryID, Message: err.Error()})
			continue
		}
		result.Merged = append(result.Merged, summary)
	}

	c.log.WithFields(logrus.Fields{
		"primary_id":   primary.ID,
		"merged":       len(result.Merged),
		"failed":       len(result.Errors),
		"notes_copied": result.TotalNotesCopied,
	}).Info("merge finished")

	return result, nil
}

// mergeOne processes a single secondary: copy its notes to the
// primary, close it pointing at the primary. The copied count is
// returned even on failure, because notes posted before the failing
// step have already landed on the primary.
func (c *Coordinator) mergeOne(ctx context.Context, primaryID, secondaryID int) (types.MergedTicket, int, error) {
	secondary, err := c.tickets.GetWithActions(ctx, secondaryID)
	if err != nil {
		return types.MergedTicket{}, 0, fmt.Errorf("failed to load secondary ticket: %w", err)
	}

	copied := 0
	for _, action := range secondary.Actions {
		if strings.TrimSpace(action.Note) == "" {
			continue
		}
		note := provenanceNote(secondary.ID, action)
		if _, err := c.notes.AddNote(ctx, primaryID, note, action.Hidden); err != nil {
			return types.MergedTicket{}, copied, fmt.Errorf("failed to copy note %d: %w", action.ID, err)
		}
		copied++
	}

	closeNote := fmt.Sprintf("Merged into ticket #%d.", primaryID)
	if err := c.tickets.CloseWithNote(ctx, secondary.ID, closeNote); err != nil {
		return types.MergedTicket{}, copied, fmt.Errorf("failed to close secondary ticket: %w", err)
	}

	return types.MergedTicket{
		ID:          secondary.ID,
		Summary:     secondary.Summary,
		NotesCopied: copied,
	}, copied, nil
}

// provenanceNote prefixes a copied note with where it came from
func provenanceNote(fromID int, action types.Action) string {
	author := action.Who
	if author == "" {
		author = "unknown"
	}
	stamp := action.Timestamp.UTC().Format("2006-01-02 15:04 UTC")
	return fmt.Sprintf("[From ticket #%d | %s | %s]\n%s", fromID, author, stamp, action.Note)
}

// mergeAnnouncement builds the default note for the primary
func mergeAnnouncement(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	if len(parts) == 1 {
		return fmt.Sprintf("Merging ticket %s into this ticket.", parts[0])
	}
	return fmt.Sprintf("Merging tickets %s into this ticket.", strings.Join(parts, ", "))
}
