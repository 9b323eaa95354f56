package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/deskmate-io/deskmate/internal/types"
)

// wireClient is the remote record shape for customer organizations
type wireClient struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Inactive bool   `json:"inactive"`
}

func clientFromWire(raw json.RawMessage) (types.Client, error) {
	var w wireClient
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Client{}, fmt.Errorf("decode client: %w", err)
	}
	return types.Client{ID: w.ID, Name: w.Name, Inactive: w.Inactive}, nil
}

// ClientService manages customer organizations
type ClientService struct {
	repo Repository[types.Client]
}

// NewClientService creates the client service for one connection
func NewClientService(client *Client) *ClientService {
	return &ClientService{repo: NewRepository(client, "/clients", clientFromWire)}
}

// List fetches clients matching the given query parameters
func (s *ClientService) List(ctx context.Context, params url.Values) ([]types.Client, error) {
	return s.repo.List(ctx, params)
}

// Get fetches one client by id
func (s *ClientService) Get(ctx context.Context, id int) (types.Client, error) {
	return s.repo.Get(ctx, id, nil)
}

// Create submits new clients as partial entities
func (s *ClientService) Create(ctx context.Context, items []map[string]any) ([]types.Client, error) {
	return s.repo.Create(ctx, items)
}

// Update submits client changes as partial entities carrying ids
func (s *ClientService) Update(ctx context.Context, items []map[string]any) ([]types.Client, error) {
	return s.repo.Update(ctx, items)
}

// Delete removes a client
func (s *ClientService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
