package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bluewire-labs/callgo-ai/src/logger"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1"

// Client talks to the ElevenLabs Conversational AI REST API. The websocket
// side of a conversation is handled by Conversation; this client only covers
// the request/response endpoints (signed URL issuance, call listing).
type Client struct {
	apiKey  string
	agentID string
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// ClientConfig holds ElevenLabs credentials and the agent to converse with.
type ClientConfig struct {
	APIKey  string
	AgentID string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// NewClient creates an ElevenLabs API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		agentID: cfg.AgentID,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logger.Component("elevenlabs"),
	}
}

// GetSignedURL obtains a short-lived single-use websocket URL for a new
// conversation with the configured agent. Failure here aborts the relay
// session before any state is created.
func (c *Client) GetSignedURL(ctx context.Context) (string, error) {
	if c.apiKey == "" || c.agentID == "" {
		return "", fmt.Errorf("elevenlabs: missing API key or agent ID")
	}

	url := fmt.Sprintf("%s/convai/conversation/get_signed_url?agent_id=%s", c.baseURL, c.agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build signed URL request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: get signed URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error("Failed to get signed URL: %s", string(body))
		return "", fmt.Errorf("elevenlabs: get signed URL: status %d", resp.StatusCode)
	}

	var payload struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("elevenlabs: decode signed URL response: %w", err)
	}
	if payload.SignedURL == "" {
		return "", fmt.Errorf("elevenlabs: empty signed URL in response")
	}

	c.log.Info("Successfully obtained signed URL")
	return payload.SignedURL, nil
}

// GetCalls lists recent calls handled through the conversational AI agent.
func (c *Client) GetCalls(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 10
	}

	url := fmt.Sprintf("%s/convai/phone/calls?limit=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build calls request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: get calls: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error("Failed to get calls: %s", string(body))
		return nil, fmt.Errorf("elevenlabs: get calls: status %d", resp.StatusCode)
	}

	var calls []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode calls response: %w", err)
	}

	c.log.Info("Retrieved %d calls", len(calls))
	return calls, nil
}
