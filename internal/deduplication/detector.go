package deduplication

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/types"
)

// TicketSource is the slice of the ticket API the detector needs. It
// is satisfied by psa.TicketService and by fakes in tests.
type TicketSource interface {
	Get(ctx context.Context, id int) (types.Ticket, error)
	RecentForClient(ctx context.Context, clientID int, since time.Time, max int) ([]types.Ticket, error)
}

// Detector scores recent same-client tickets against a source ticket
// and reports the ones likely describing the same underlying issue.
type Detector struct {
	source TicketSource
	cfg    Config
	log    *logrus.Logger
	now    func() time.Time
}

// NewDetector creates a detector with the given configuration
func NewDetector(source TicketSource, cfg Config, log *logrus.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector configuration: %w", err)
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Detector{source: source, cfg: cfg, log: log, now: time.Now}, nil
}

// FindDuplicates scans recent tickets of the source ticket's client and
// returns the ones scoring at or above the configured threshold, best
// match first.
//
// A source ticket without a client produces an empty result, not an
// error: cross-client duplicates are out of scope, and duplicate
// detection is advisory, so it must never block the caller's workflow.
// The ranking is a heuristic; false positives and false negatives are
// expected, which is why results carry scores instead of verdicts.
func (d *Detector) FindDuplicates(ctx context.Context, ticketID int) ([]types.DuplicateCandidate, error) {
	source, err := d.source.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source ticket %d: %w", ticketID, err)
	}
	if !source.HasClient() {
		d.log.WithField("ticket_id", ticketID).Debug("source ticket has no client, skipping scan")
		return nil, nil
	}

	since := d.now().Add(-d.cfg.LookbackWindow)
	candidates, err := d.source.RecentForClient(ctx, source.ClientID, since, d.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate tickets for client %d: %w", source.ClientID, err)
	}
	if len(candidates) > d.cfg.MaxCandidates {
		candidates = candidates[:d.cfg.MaxCandidates]
	}

	sourceWords := tokenize(source.Summary)
	if len(sourceWords) == 0 {
		return nil, nil
	}

	matches := make([]types.DuplicateCandidate, 0)
	for _, cand := range candidates {
		if cand.ID == source.ID {
			continue
		}
		candWords := tokenize(cand.Summary)
		if len(candWords) == 0 {
			continue
		}

		matched := matchedWords(sourceWords, candWords)
		score := jaccard(len(sourceWords), len(candWords), len(matched))
		if source.Category != "" && cand.Category == source.Category {
			score += d.cfg.CategoryBoost
		}
		if source.PriorityID > 0 && cand.PriorityID == source.PriorityID {
			score += d.cfg.PriorityBoost
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < d.cfg.ScoreThreshold {
			continue
		}

		matches = append(matches, types.DuplicateCandidate{
			ID:           cand.ID,
			Summary:      cand.Summary,
			Status:       cand.Status,
			CreatedAt:    cand.CreatedAt,
			Score:        math.Round(score*100) / 100,
			MatchedWords: matched,
		})
	}

	// Best score first; fetch order breaks ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	d.log.WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"client_id":  source.ClientID,
		"candidates": len(candidates),
		"matches":    len(matches),
	}).Debug("duplicate scan complete")

	return matches, nil
}

// tokenize splits text into a set of lower-cased words
func tokenize(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// matchedWords returns the sorted intersection of two word sets
func matchedWords(a, b map[string]struct{}) []string {
	matched := make([]string, 0)
	for w := range a {
		if _, ok := b[w]; ok {
			matched = append(matched, w)
		}
	}
	sort.Strings(matched)
	return matched
}

// jaccard computes |intersection| / |union| from the set sizes
func jaccard(sizeA, sizeB, shared int) float64 {
	union := sizeA + sizeB - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
