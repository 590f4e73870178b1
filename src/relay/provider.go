package relay

import (
	"context"
	"time"

	"github.com/bluewire-labs/callgo-ai/src/services/elevenlabs"
)

// ElevenLabsProvider adapts the ElevenLabs client and dialer to the
// AIProvider contract.
type ElevenLabsProvider struct {
	Client *elevenlabs.Client
	// ReadTimeout bounds blocking reads on dialed conversations.
	ReadTimeout time.Duration
}

func (p *ElevenLabsProvider) GetSignedURL(ctx context.Context) (string, error) {
	return p.Client.GetSignedURL(ctx)
}

func (p *ElevenLabsProvider) Dial(ctx context.Context, signedURL string) (AIConversation, error) {
	conv, err := elevenlabs.Dial(signedURL, p.ReadTimeout)
	if err != nil {
		return nil, err
	}
	return conv, nil
}
