// Package agentconfig is the REST client for the session configuration
// store. Writes are full-replace: the caller always sends the whole document.
package agentconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brdge/internal/domain"
)

// Client implements ports.ConfigStore against the agent-config endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch reads the session's current configuration document.
func (c *Client) Fetch(ctx context.Context, sessionID string) (domain.AgentConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.configURL(sessionID), nil)
	if err != nil {
		return domain.AgentConfig{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AgentConfig{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AgentConfig{}, fmt.Errorf("config store returned %d", resp.StatusCode)
	}

	var cfg domain.AgentConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("failed to decode agent config: %w", err)
	}
	return cfg, nil
}

// Save replaces the session's configuration document.
func (c *Client) Save(ctx context.Context, sessionID string, cfg domain.AgentConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.configURL(sessionID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("config store returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) configURL(sessionID string) string {
	return c.baseURL + "/sessions/" + url.PathEscape(sessionID) + "/agent-config"
}
