package elevenlabs

// InitialConfig is the conversation_initiation_client_data message sent as
// the very first frame of a conversation. Prompt and first-message overrides
// are omitted from the wire entirely when unset so the agent's own defaults
// apply; sending empty strings would override them with silence.
type InitialConfig struct {
	Type                       string            `json:"type"`
	DynamicVariables           map[string]string `json:"dynamic_variables"`
	ConversationConfigOverride ConfigOverride    `json:"conversation_config_override"`
}

// ConfigOverride wraps the per-conversation agent overrides.
type ConfigOverride struct {
	Agent AgentOverride `json:"agent"`
}

// AgentOverride customizes the agent for one conversation.
type AgentOverride struct {
	Prompt       *PromptOverride `json:"prompt,omitempty"`
	FirstMessage string          `json:"first_message,omitempty"`
}

// PromptOverride replaces the agent's system prompt.
type PromptOverride struct {
	Prompt string `json:"prompt"`
}

// BuildInitialConfig assembles the handshake payload for a new conversation.
// Pure: no side effects, safe to call from any goroutine.
func BuildInitialConfig(prompt, firstMessage string, dynamicVariables map[string]string) *InitialConfig {
	cfg := &InitialConfig{
		Type:             "conversation_initiation_client_data",
		DynamicVariables: dynamicVariables,
	}
	if cfg.DynamicVariables == nil {
		cfg.DynamicVariables = map[string]string{}
	}
	if prompt != "" {
		cfg.ConversationConfigOverride.Agent.Prompt = &PromptOverride{Prompt: prompt}
	}
	if firstMessage != "" {
		cfg.ConversationConfigOverride.Agent.FirstMessage = firstMessage
	}
	return cfg
}
