package services

import "context"

// LLMService produces one conversational reply per user turn. Both backends
// (OpenRouter, Gemini) keep their own conversation history so follow-up
// turns carry context.
type LLMService interface {
	// GetResponse returns the assistant's reply for the given user input.
	// Implementations never return an error to the call path: on failure
	// they log and return a spoken fallback so the caller still hears
	// something.
	GetResponse(ctx context.Context, userInput, callID string) string

	// ResetConversation clears the history, keeping only the system prompt.
	ResetConversation()
}

// Message is one turn in a conversation history.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Fallback replies spoken when the language model cannot be reached or
// returns an unusable response. These go straight to text-to-speech, so
// they must read as natural speech.
const (
	FallbackBadResponse = "I'm having trouble processing your request right now."
	FallbackUnavailable = "I'm sorry, I'm having technical difficulties at the moment."
)
