package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/playbooks"
	"github.com/bluewire-labs/callgo-ai/src/services"
	"github.com/bluewire-labs/callgo-ai/src/timing"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// LLMClient provides conversational replies through the OpenRouter chat
// completions API, following the configured telemarketing playbook.
type LLMClient struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	playbook  *playbooks.Playbook
	http      *http.Client
	log       *logger.Logger

	// Metrics records llm_processing timings when set.
	Metrics timing.MetricSink

	mu      sync.Mutex
	history []services.Message
}

// LLMConfig holds configuration for OpenRouter.
type LLMConfig struct {
	APIKey    string
	Model     string // default "openrouter/auto"
	MaxTokens int    // default 150, replies must stay short for voice
	BaseURL   string // overridden by tests
	Playbook  *playbooks.Playbook
}

// NewLLMClient creates an OpenRouter-backed LLM service.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.Model == "" {
		cfg.Model = "openrouter/auto"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &LLMClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   baseURL,
		playbook:  cfg.Playbook,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       logger.Component("llm"),
	}
	c.history = []services.Message{{Role: "system", Content: cfg.Playbook.ComposePrompt()}}

	if cfg.Playbook != nil {
		c.log.Info("Using playbook: %s", cfg.Playbook.Name)
	}
	return c
}

type chatRequest struct {
	Model     string             `json:"model"`
	Messages  []services.Message `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message services.Message `json:"message"`
	} `json:"choices"`
}

// GetResponse implements services.LLMService. Empty input is seeded from the
// playbook's default opener so outbound calls can speak first.
func (c *LLMClient) GetResponse(ctx context.Context, userInput, callID string) string {
	if userInput == "" {
		if c.playbook != nil && c.playbook.DefaultInput != "" {
			userInput = c.playbook.DefaultInput
		} else {
			userInput = "Hello, who am I speaking with?"
		}
	}

	c.log.Info("User input: %s", userInput)

	c.mu.Lock()
	c.history = append(c.history, services.Message{Role: "user", Content: userInput})
	messages := make([]services.Message, len(c.history))
	copy(messages, c.history)
	c.mu.Unlock()

	reply, err := c.complete(ctx, messages, callID, len(userInput))
	if err != nil {
		c.log.Error("Error getting LLM response: %v", err)
		reply = services.FallbackUnavailable
	}

	c.mu.Lock()
	c.history = append(c.history, services.Message{Role: "assistant", Content: reply})
	c.mu.Unlock()

	c.log.Info("LLM response: %s", reply)
	return reply
}

func (c *LLMClient) complete(ctx context.Context, messages []services.Message, callID string, inputLen int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	stop := timing.Measure(callID, "llm_processing", c.Metrics, map[string]interface{}{
		"input_length": inputLen,
	})
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openrouter: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		c.log.Error("Unexpected response format: %s", string(raw))
		return services.FallbackBadResponse, nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// ResetConversation clears the history, keeping only the system message.
func (c *LLMClient) ResetConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []services.Message{{Role: "system", Content: c.playbook.ComposePrompt()}}
}
