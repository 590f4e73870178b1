package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/playbooks"
	"github.com/bluewire-labs/callgo-ai/src/services"
	"github.com/bluewire-labs/callgo-ai/src/timing"
)

// LLMClient provides conversational replies through the Gemini API. It is
// the alternate backend to OpenRouter and implements the same
// services.LLMService contract.
type LLMClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
	playbook  *playbooks.Playbook
	log       *logger.Logger

	// Metrics records llm_processing timings when set.
	Metrics timing.MetricSink

	mu      sync.Mutex
	history []*genai.Content
}

// LLMConfig holds configuration for Gemini.
type LLMConfig struct {
	APIKey    string
	Model     string // default "gemini-2.0-flash"
	MaxTokens int32  // default 150
	Playbook  *playbooks.Playbook
}

// NewLLMClient creates a Gemini-backed LLM service.
func NewLLMClient(ctx context.Context, cfg LLMConfig) (*LLMClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c := &LLMClient{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		playbook:  cfg.Playbook,
		log:       logger.Component("llm"),
	}
	if cfg.Playbook != nil {
		c.log.Info("Using playbook: %s", cfg.Playbook.Name)
	}
	return c, nil
}

// GetResponse implements services.LLMService.
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
	c.history = append(c.history, genai.NewContentFromText(userInput, genai.RoleUser))
	contents := make([]*genai.Content, len(c.history))
	copy(contents, c.history)
	c.mu.Unlock()

	stop := timing.Measure(callID, "llm_processing", c.Metrics, map[string]interface{}{
		"input_length": len(userInput),
	})
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.playbook.ComposePrompt(), genai.RoleUser),
		MaxOutputTokens:   c.maxTokens,
	})
	stop()

	var reply string
	if err != nil {
		c.log.Error("Error getting LLM response: %v", err)
		reply = services.FallbackUnavailable
	} else if reply = strings.TrimSpace(resp.Text()); reply == "" {
		c.log.Error("Empty Gemini response")
		reply = services.FallbackBadResponse
	}

	c.mu.Lock()
	c.history = append(c.history, genai.NewContentFromText(reply, genai.RoleModel))
	c.mu.Unlock()

	c.log.Info("LLM response: %s", reply)
	return reply
}

// ResetConversation clears the history, keeping only the system prompt.
func (c *LLMClient) ResetConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}
