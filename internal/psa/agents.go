package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/deskmate-io/deskmate/internal/types"
)

// wireAgent is the remote record shape for helpdesk agents
type wireAgent struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func agentFromWire(raw json.RawMessage) (types.Agent, error) {
	var w wireAgent
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Agent{}, fmt.Errorf("decode agent: %w", err)
	}
	return types.Agent{ID: w.ID, Name: w.Name, Email: w.Email}, nil
}

// AgentService manages helpdesk agents
type AgentService struct {
	repo Repository[types.Agent]
}

// NewAgentService creates the agent service for one connection
func NewAgentService(client *Client) *AgentService {
	return &AgentService{repo: NewRepository(client, "/agents", agentFromWire)}
}

// List fetches agents matching the given query parameters
func (s *AgentService) List(ctx context.Context, params url.Values) ([]types.Agent, error) {
	return s.repo.List(ctx, params)
}

// Get fetches one agent by id
func (s *AgentService) Get(ctx context.Context, id int) (types.Agent, error) {
	return s.repo.Get(ctx, id, nil)
}
