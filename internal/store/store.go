// Package store keeps a local audit trail of merge runs in SQLite.
//
// Merges mutate a remote system without rollback, so the only reliable
// account of what happened is the one we write ourselves at the moment
// of the merge. The store records each run (which tickets folded into
// which, how many notes moved, what failed) and supports retention
// pruning so the database stays small on long-lived installs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/config"
	"github.com/deskmate-io/deskmate/internal/types"
)

// Store is the SQLite-backed merge history.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
	now func() time.Time
}

// MergeRecord is one recorded merge run. Note is the operator-supplied
// merge note, empty when the announcement was auto-generated. Tickets
// is populated by GetMerge; ListMerges returns header rows only.
type MergeRecord struct {
	ID               string
	Profile          string
	PrimaryID        int
	Note             string
	MergedCount      int
	ErrorCount       int
	TotalNotesCopied int
	StartedAt        time.Time
	FinishedAt       time.Time
	Tickets          []TicketOutcome
}

// TicketOutcome is the per-secondary result within a merge run. Error
// is empty for tickets that merged cleanly.
type TicketOutcome struct {
	TicketID    int
	Summary     string
	NotesCopied int
	Error       string
}

// Open opens (creating if necessary) the merge history database at path
func Open(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, log: log, now: time.Now}, nil
}

// RecordMerge writes one merge result to the audit trail and returns
// the generated record id. The note is the operator's requested merge
// note; started and finished bound the remote mutation window.
func (s *Store) RecordMerge(ctx context.Context, profile, note string, result *types.MergeResult, started, finished time.Time) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot record a nil merge result")
	}

	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO merges (id, profile, primary_id, note, merged_count, error_count, total_notes_copied, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, profile, result.PrimaryID, note, len(result.Merged), len(result.Errors), result.TotalNotesCopied,
		started.UTC().Unix(), finished.UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to insert merge record: %w", err)
	}

	for _, m := range result.Merged {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO merge_tickets (merge_id, ticket_id, summary, notes_copied, error)
			VALUES (?, ?, ?, ?, '')
		`, id, m.ID, m.Summary, m.NotesCopied)
		if err != nil {
			return "", fmt.Errorf("failed to insert merged ticket %d: %w", m.ID, err)
		}
	}

	for _, e := range result.Errors {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO merge_tickets (merge_id, ticket_id, summary, notes_copied, error)
			VALUES (?, ?, '', 0, ?)
		`, id, e.ID, e.Message)
		if err != nil {
			return "", fmt.Errorf("failed to insert failed ticket %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit merge record: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"merge_id":   id,
		"primary_id": result.PrimaryID,
		"merged":     len(result.Merged),
		"errors":     len(result.Errors),
	}).Debug("merge recorded")

	return id, nil
}

// GetMerge loads one merge record with its per-ticket outcomes.
// Returns nil (no error) when the id is unknown.
func (s *Store) GetMerge(ctx context.Context, id string) (*MergeRecord, error) {
	var rec MergeRecord
	var startedAt, finishedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile, primary_id, note, merged_count, error_count, total_notes_copied, started_at, finished_at
		FROM merges
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Profile, &rec.PrimaryID, &rec.Note, &rec.MergedCount, &rec.ErrorCount, &rec.TotalNotesCopied,
		&startedAt, &finishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merge record: %w", err)
	}
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	rec.FinishedAt = time.Unix(finishedAt, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket_id, summary, notes_copied, error
		FROM merge_tickets
		WHERE merge_id = ?
		ORDER BY ticket_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome TicketOutcome
		if err := rows.Scan(&outcome.TicketID, &outcome.Summary, &outcome.NotesCopied, &outcome.Error); err != nil {
			return nil, fmt.Errorf("failed to scan merge ticket: %w", err)
		}
		rec.Tickets = append(rec.Tickets, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read merge tickets: %w", err)
	}

	return &rec, nil
}

// ListMerges returns the most recent merge runs, newest first
func (s *Store) ListMerges(ctx context.Context, limit int) ([]MergeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, primary_id, note, merged_count, error_count, total_notes_copied, started_at, finished_at
		FROM merges
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge records: %w", err)
	}
	defer rows.Close()

	var records []MergeRecord
	for rows.Next() {
		var rec MergeRecord
		var startedAt, finishedAt int64
		if err := rows.Scan(&rec.ID, &rec.Profile, &rec.PrimaryID, &rec.Note, &rec.MergedCount, &rec.ErrorCount, &rec.TotalNotesCopied,
			&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merge record: %w", err)
		}
		rec.StartedAt = time.Unix(startedAt, 0).UTC()
		rec.FinishedAt = time.Unix(finishedAt, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read merge records: %w", err)
	}

	return records, nil
}

// Prune deletes merge records outside the retention policy and returns
// how many were removed. Age pruning runs first, then the entry cap;
// per-ticket outcomes go with their parent row via cascade.
func (s *Store) Prune(ctx context.Context, retention config.HistoryRetentionConfig) (int64, error) {
	if err := retention.Validate(); err != nil {
		return 0, fmt.Errorf("invalid retention config: %w", err)
	}

	var pruned int64

	if retention.MaxAgeDays > 0 {
		cutoff := s.now().UTC().AddDate(0, 0, -retention.MaxAgeDays).Unix()
		res, err := s.db.ExecContext(ctx, `DELETE FROM merges WHERE started_at < ?`, cutoff)
		if err != nil {
			return pruned, fmt.Errorf("failed to prune by age: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pruned, fmt.Errorf("failed to count pruned rows: %w", err)
		}
		pruned += n
	}

	if retention.MaxEntries > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM merges WHERE id NOT IN (
				SELECT id FROM merges
				ORDER BY started_at DESC, id DESC
				LIMIT ?
			)
		`, retention.MaxEntries)
		if err != nil {
			return pruned, fmt.Errorf("failed to prune by count: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pruned, fmt.Errorf("failed to count pruned rows: %w", err)
		}
		pruned += n
	}

	if pruned > 0 {
		s.log.WithField("pruned", pruned).Info("merge history pruned")
	}

	return pruned, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
