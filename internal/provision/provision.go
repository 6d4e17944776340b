package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dom/scrimhub/internal/domain"
)

// AllocateRequest describes the match a game server should be set up for.
type AllocateRequest struct {
	MatchCode int64              `json:"matchCode"`
	Map       string             `json:"map"`
	TeamAlpha []domain.PlayerRef `json:"teamAlpha"`
	TeamBeta  []domain.PlayerRef `json:"teamBeta"`
}

// Provisioner allocates and tears down game servers for matches.
type Provisioner interface {
	Allocate(ctx context.Context, req AllocateRequest) (*domain.ServerInfo, error)
	Teardown(ctx context.Context, matchCode int64) error
}

// HTTPProvisioner talks to an external game server fleet API.
type HTTPProvisioner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvisioner(baseURL, apiKey string) *HTTPProvisioner {
	return &HTTPProvisioner{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvisioner) Allocate(ctx context.Context, req AllocateRequest) (*domain.ServerInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/servers", p.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("allocate server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("allocate server: unexpected status %d", resp.StatusCode)
	}

	var info domain.ServerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("allocate server: decode response: %w", err)
	}
	return &info, nil
}

func (p *HTTPProvisioner) Teardown(ctx context.Context, matchCode int64) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/servers/%d", p.baseURL, matchCode), nil)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("teardown server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("teardown server: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Noop is used when no fleet API is configured. Matches still go live,
// players coordinate a server themselves.
type Noop struct{}

func (Noop) Allocate(context.Context, AllocateRequest) (*domain.ServerInfo, error) {
	return nil, nil
}

func (Noop) Teardown(context.Context, int64) error {
	return nil
}
