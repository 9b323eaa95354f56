package store

const schema = `
-- Merge audit trail. One row per merge run; timestamps are unix
-- seconds (UTC) so age pruning is plain integer arithmetic.
CREATE TABLE IF NOT EXISTS merges (
    id TEXT PRIMARY KEY,
    profile TEXT NOT NULL DEFAULT '',
    primary_id INTEGER NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    merged_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    total_notes_copied INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_merges_started_at ON merges(started_at);

-- Per-ticket outcomes for each merge run
CREATE TABLE IF NOT EXISTS merge_tickets (
    merge_id TEXT NOT NULL,
    ticket_id INTEGER NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    notes_copied INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (merge_id, ticket_id),
    FOREIGN KEY (merge_id) REFERENCES merges(id) ON DELETE CASCADE
);
`
