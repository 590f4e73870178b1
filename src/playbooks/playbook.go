package playbooks

import "fmt"

// Playbook describes one telemarketing campaign: the sales script the agent
// follows plus the system prompt framing how it should be followed.
type Playbook struct {
	Name         string
	SystemPrompt string
	Content      string
	// DefaultInput seeds the conversation when the callee has not said
	// anything yet (e.g. the very first turn of an outbound call).
	DefaultInput string
}

// ComposePrompt combines the playbook's system prompt with its script into
// the full system message handed to the LLM. A nil playbook yields the
// generic phone-assistant prompt.
func (p *Playbook) ComposePrompt() string {
	if p == nil {
		return GenericAssistantPrompt
	}
	return fmt.Sprintf("%s\n\nTELEMARKETING PLAYBOOK TO FOLLOW:\n\n%s", p.SystemPrompt, p.Content)
}

// GenericAssistantPrompt is used when no campaign playbook is configured.
const GenericAssistantPrompt = `You are a helpful AI phone assistant. Keep your responses concise, clear, and conversational.
Speak in a friendly tone as if you're having a natural phone conversation.
Avoid lengthy explanations since this is a voice call.
If you don't know something, be honest about it.`

// MagazineDemo is a small built-in campaign used for demos and tests.
var MagazineDemo = &Playbook{
	Name: "Magazine Subscription Demo",
	SystemPrompt: `You are an AI telemarketer selling magazine subscriptions.
Follow the playbook below, but adapt naturally to the customer's responses.
Introduce yourself only on the first message and never reintroduce yourself
after the conversation has started. Be direct but never pushy.`,
	Content: `## OPENING
- Greet the customer, give your name and the magazine's name, and ask if
  this is a good time to talk.

## OFFER
- Three month trial subscription at a reduced price.
- Cancellation possible at any time, first issue delivered immediately.

## OBJECTION HANDLING
- "No time to read" -> short articles, digital edition travels with you.
- "Too expensive" -> per-week price is less than a cup of coffee.

## CLOSING
- Confirm the order details one item at a time, then thank the customer.
- If there is no sale, thank them for their time and end politely.`,
	DefaultInput: "Start the sales call for the magazine subscription.",
}
