// Package token mints room access tokens against the session token endpoint
// and derives the participant identity string.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildIdentity derives the participant identity from the identifiers at
// hand, in priority order: session-user-personalization, session-user,
// session-anon_random-personalization, session-random. The same inputs always
// map to the same shape, but anonymous identities carry a random suffix so
// two anonymous viewers never collide.
func BuildIdentity(sessionID, userID, personalizationID string) string {
	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	personalizationID = strings.TrimSpace(personalizationID)

	switch {
	case userID != "" && personalizationID != "":
		return fmt.Sprintf("%s-%s-%s", sessionID, userID, personalizationID)
	case userID != "":
		return fmt.Sprintf("%s-%s", sessionID, userID)
	case personalizationID != "":
		return fmt.Sprintf("%s-anon_%s-%s", sessionID, randomSuffix(), personalizationID)
	default:
		return fmt.Sprintf("%s-%s", sessionID, randomSuffix())
	}
}

func randomSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Client talks to the token endpoint.
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

type mintRequest struct {
	SessionID         string `json:"sessionId"`
	UserID            string `json:"userId,omitempty"`
	PersonalizationID string `json:"personalizationId,omitempty"`
}

type mintResponse struct {
	Identity    string `json:"identity"`
	AccessToken string `json:"accessToken"`
}

// Mint requests a room token for the given identifiers.
func (c *Client) Mint(ctx context.Context, sessionID, userID, personalizationID string) (string, string, error) {
	body, err := json.Marshal(mintRequest{
		SessionID:         sessionID,
		UserID:            userID,
		PersonalizationID: personalizationID,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var minted mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		return "", "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if minted.AccessToken == "" {
		return "", "", fmt.Errorf("token endpoint returned an empty token")
	}
	return minted.Identity, minted.AccessToken, nil
}
