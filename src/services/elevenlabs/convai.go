package elevenlabs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ServerMessageType discriminates messages arriving from the conversational
// AI websocket after boundary decoding.
type ServerMessageType string

const (
	MessageAudio          ServerMessageType = "audio"
	MessageInterruption   ServerMessageType = "interruption"
	MessagePing           ServerMessageType = "ping"
	MessageAgentResponse  ServerMessageType = "agent_response"
	MessageUserTranscript ServerMessageType = "user_transcript"
	MessageUnknown        ServerMessageType = "unknown"
)

// ServerMessage is one decoded message from the agent. The provider emits
// audio in two equivalent payload shapes (audio.chunk and
// audio_event.audio_base_64); both decode into AudioBase64 so downstream
// code never needs to know which shape arrived.
type ServerMessage struct {
	Type ServerMessageType

	// AudioBase64 is set for MessageAudio.
	AudioBase64 string

	// PingEventID is set for MessagePing, kept raw so the pong reply echoes
	// the identifier byte for byte whatever its JSON type.
	PingEventID json.RawMessage

	// Transcript is set for MessageAgentResponse and MessageUserTranscript.
	Transcript string

	// RawType preserves the wire discriminator for MessageUnknown logging.
	RawType string
}

type serverEnvelope struct {
	Type  string `json:"type"`
	Audio *struct {
		Chunk string `json:"chunk"`
	} `json:"audio"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`
	PingEvent *struct {
		EventID json.RawMessage `json:"event_id"`
	} `json:"ping_event"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
}

// DecodeServerMessage parses one raw websocket payload into a ServerMessage.
// Unrecognized discriminators decode to MessageUnknown rather than erroring;
// a session must survive vocabulary the provider adds later.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed message", Err: err}
	}

	msg := &ServerMessage{RawType: env.Type}
	switch env.Type {
	case "audio":
		msg.Type = MessageAudio
		switch {
		case env.Audio != nil && env.Audio.Chunk != "":
			msg.AudioBase64 = env.Audio.Chunk
		case env.AudioEvent != nil && env.AudioEvent.AudioBase64 != "":
			msg.AudioBase64 = env.AudioEvent.AudioBase64
		default:
			return nil, &ProtocolError{Reason: "audio message without payload"}
		}
	case "interruption":
		msg.Type = MessageInterruption
	case "ping":
		msg.Type = MessagePing
		if env.PingEvent == nil {
			return nil, &ProtocolError{Reason: "ping message without ping_event"}
		}
		msg.PingEventID = env.PingEvent.EventID
	case "agent_response":
		msg.Type = MessageAgentResponse
		if env.AgentResponseEvent != nil {
			msg.Transcript = env.AgentResponseEvent.AgentResponse
		}
	case "user_transcript":
		msg.Type = MessageUserTranscript
		if env.UserTranscriptionEvent != nil {
			msg.Transcript = env.UserTranscriptionEvent.UserTranscript
		}
	default:
		msg.Type = MessageUnknown
	}
	return msg, nil
}

// Conversation is one live websocket conversation with the agent. Reads are
// single-consumer (the relay's listener goroutine); writes may come from
// both relay loops and are serialized by an internal mutex.
type Conversation struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to a conversation using a signed URL previously obtained
// from Client.GetSignedURL. The URL embeds its own credentials; no headers
// are required.
func Dial(signedURL string, readTimeout time.Duration) (*Conversation, error) {
	conn, _, err := websocket.DefaultDialer.Dial(signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial conversation: %w", err)
	}
	return &Conversation{conn: conn, readTimeout: readTimeout}, nil
}

// NewConversation wraps an already-established websocket connection, used by
// tests to drive a conversation against an in-process server.
func NewConversation(conn *websocket.Conn, readTimeout time.Duration) *Conversation {
	return &Conversation{conn: conn, readTimeout: readTimeout}
}

// SendInitialConfig sends the handshake payload. Must be the first message
// on the conversation.
func (c *Conversation) SendInitialConfig(cfg *InitialConfig) error {
	return c.writeJSON(cfg)
}

// SendUserAudio forwards one chunk of caller audio, still base64-encoded
// exactly as it arrived from telephony.
func (c *Conversation) SendUserAudio(payloadB64 string) error {
	return c.writeJSON(map[string]string{"user_audio_chunk": payloadB64})
}

// SendPong answers a provider keepalive, echoing the event identifier from
// the ping.
func (c *Conversation) SendPong(eventID json.RawMessage) error {
	return c.writeJSON(struct {
		Type    string          `json:"type"`
		EventID json.RawMessage `json:"event_id"`
	}{Type: "pong", EventID: eventID})
}

// Receive blocks until the next message from the agent. A *ProtocolError
// means one malformed message that may be dropped; any other error means the
// conversation is no longer usable.
func (c *Conversation) Receive() (*ServerMessage, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, fmt.Errorf("elevenlabs: set read deadline: %w", err)
		}
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read: %w", err)
	}
	return DecodeServerMessage(data)
}

func (c *Conversation) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("elevenlabs: write: %w", err)
	}
	return nil
}

// Close closes the websocket. Idempotent; either relay loop may call it
// during teardown.
func (c *Conversation) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// ProtocolError reports a message that could not be decoded. The
// conversation remains usable; callers log, drop the message and keep
// reading.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("elevenlabs: %s: %v", e.Reason, e.Err)
	}
	return "elevenlabs: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
