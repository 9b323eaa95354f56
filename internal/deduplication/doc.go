// Package deduplication finds likely duplicate tickets for a client.
//
// # Overview
//
// When the same outage gets reported several times in quick
// succession, the helpdesk ends up holding near-identical tickets for
// one underlying issue. The detector takes one source ticket, scans
// its client's recent tickets, and returns the ones that look like
// the same problem, ranked by confidence. The output is advisory: the
// caller decides whether to merge, and a failed or empty scan never
// blocks the caller's workflow.
//
// # Scoring
//
// Scoring is word-set overlap, not semantics. Both summaries are
// lower-cased and split on whitespace into word sets, and the base
// score is the Jaccard similarity of the two sets (shared words over
// total distinct words). Matching the source's category adds 0.10 and
// matching its priority adds 0.05, capped at 1.0. Candidates at or
// above the threshold (default 0.70) are kept, their scores rounded
// to two decimals, and sorted best first.
//
// Both false positives and false negatives are expected outcomes of a
// heuristic like this. Tuning happens through Config, not by adding
// special cases to the scorer.
//
// # Scope
//
// Only tickets of the same client are compared; a source ticket with
// no client produces an empty result. The scan window (default 72
// hours) and candidate cap (default 100) keep one scan to a single
// bounded list call against the rate-limited remote.
//
// See DefaultConfig() for the full default values and
// Config.ApplyEnvOverrides for the DESKMATE_DEDUP_* overrides.
package deduplication
