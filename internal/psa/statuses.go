package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/deskmate-io/deskmate/internal/types"
)

// wireStatus is the remote record shape for status definitions
type wireStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func statusFromWire(raw json.RawMessage) (types.Status, error) {
	var w wireStatus
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return types.Status{ID: w.ID, Name: w.Name}, nil
}

// StatusService reads the remote's ticket status definitions
type StatusService struct {
	repo Repository[types.Status]
}

// NewStatusService creates the status service for one connection
func NewStatusService(client *Client) *StatusService {
	return &StatusService{repo: NewRepository(client, "/statuses", statusFromWire)}
}

// List fetches all status definitions
func (s *StatusService) List(ctx context.Context, params url.Values) ([]types.Status, error) {
	return s.repo.List(ctx, params)
}
