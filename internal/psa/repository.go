package psa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// listWrapperKeys is the fixed, ordered set of wrapper keys the remote
// uses for collection payloads. The generic "records" wrapper is
// probed first, then the per-endpoint collection names.
var listWrapperKeys = []string{"records", "tickets", "actions", "clients", "agents", "statuses"}

// listShape classifies the payload shapes the remote is known to
// return for collection calls
type listShape int

const (
	// shapeArray is a bare JSON array of records
	shapeArray listShape = iota
	// shapeWrapped is an object carrying the records under one of the
	// known wrapper keys
	shapeWrapped
	// shapeUnknown is anything else; it normalizes to an empty
	// collection rather than an error
	shapeUnknown
)

// Repository provides uniform list/get/create/update/delete semantics
// over one remote collection endpoint. Each concrete repository is a
// value built from an endpoint path and a pure transform mapping one
// raw remote record to one typed entity; adding an entity type never
// touches this file.
type Repository[T any] struct {
	client    *Client
	endpoint  string
	transform func(json.RawMessage) (T, error)
}

// NewRepository builds a repository for one endpoint
func NewRepository[T any](client *Client, endpoint string, transform func(json.RawMessage) (T, error)) Repository[T] {
	return Repository[T]{client: client, endpoint: endpoint, transform: transform}
}

// List fetches the collection and normalizes whatever payload shape
// the remote returned. Different endpoints wrap their records
// differently, and shapes have drifted across remote versions; an
// unrecognized shape produces an empty slice, not an error.
func (r Repository[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	raw, err := r.client.Get(ctx, r.endpoint, params)
	if err != nil {
		return nil, err
	}
	return r.mapCollection(raw)
}

// Get fetches a single record by id and maps it
func (r Repository[T]) Get(ctx context.Context, id int, params url.Values) (T, error) {
	var zero T
	raw, err := r.client.Get(ctx, fmt.Sprintf("%s/%d", r.endpoint, id), params)
	if err != nil {
		return zero, err
	}
	return r.transform(raw)
}

// Create submits new partial entities. The remote convention is that
// an item carrying an id is updated and an item without one is
// created; Create and Update share one wire call and exist separately
// only to keep call sites readable.
func (r Repository[T]) Create(ctx context.Context, items []map[string]any) ([]T, error) {
	return r.submit(ctx, items)
}

// Update submits changed partial entities, each carrying its id
func (r Repository[T]) Update(ctx context.Context, items []map[string]any) ([]T, error) {
	return r.submit(ctx, items)
}

func (r Repository[T]) submit(ctx context.Context, items []map[string]any) ([]T, error) {
	raw, err := r.client.Post(ctx, r.endpoint, items, nil)
	if err != nil {
		return nil, err
	}
	return r.mapCollection(raw)
}

// Delete removes a record and discards the response body
func (r Repository[T]) Delete(ctx context.Context, id int) error {
	_, err := r.client.Delete(ctx, fmt.Sprintf("%s/%d", r.endpoint, id), nil)
	return err
}

// mapCollection runs the transform over every record extracted from a
// list payload. A transform failure surfaces; silently dropping a
// record would hide real contract drift.
func (r Repository[T]) mapCollection(raw json.RawMessage) ([]T, error) {
	records, _ := splitCollection(raw)
	out := make([]T, 0, len(records))
	for _, rec := range records {
		entity, err := r.transform(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to map %s record: %w", r.endpoint, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// splitCollection extracts raw records from a list payload and reports
// which shape it matched: a bare array, an object wrapped under one of
// the known keys (probed in listWrapperKeys order), or unknown. A
// wrapper key whose value is not an array is skipped in favor of the
// next key.
func splitCollection(raw json.RawMessage) ([]json.RawMessage, listShape) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, shapeUnknown
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, shapeUnknown
		}
		return records, shapeArray

	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, shapeUnknown
		}
		for _, key := range listWrapperKeys {
			inner, ok := wrapper[key]
			if !ok {
				continue
			}
			var records []json.RawMessage
			if err := json.Unmarshal(inner, &records); err != nil {
				continue
			}
			return records, shapeWrapped
		}
		return nil, shapeUnknown

	default:
		return nil, shapeUnknown
	}
}
