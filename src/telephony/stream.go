package telephony

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Twilio Media Streams event discriminators.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// StreamMessage is one frame on the Media Streams websocket, inbound or
// outbound, discriminated by Event.
type StreamMessage struct {
	Event     string                 `json:"event"`
	StreamSid string                 `json:"streamSid,omitempty"`
	Media     *Media                 `json:"media,omitempty"`
	Start     *Start                 `json:"start,omitempty"`
	Mark      *Mark                  `json:"mark,omitempty"`
	Stop      map[string]interface{} `json:"stop,omitempty"`
}

// Media carries one chunk of base64-encoded mulaw audio.
type Media struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// Start describes the stream leg Twilio opened for a call. CustomParameters
// carries the optional per-call overrides set on the <Stream> TwiML noun
// (keys "prompt" and "first_message").
type Start struct {
	StreamSid        string                 `json:"streamSid"`
	CallSid          string                 `json:"callSid"`
	AccountSid       string                 `json:"accountSid"`
	Tracks           []string               `json:"tracks"`
	MediaFormat      map[string]interface{} `json:"mediaFormat"`
	CustomParameters map[string]string      `json:"customParameters,omitempty"`
}

// Mark is Twilio's playback checkpoint event.
type Mark struct {
	Name string `json:"name"`
}

// ProtocolError reports a frame that could not be parsed. The stream remains
// usable; callers log the error, drop the frame and keep reading.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telephony: %s: %v", e.Reason, e.Err)
	}
	return "telephony: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// MediaStream wraps one Media Streams websocket connection. Reads are
// single-consumer; writes may come from several goroutines and are
// serialized by an internal mutex (gorilla connections allow at most one
// concurrent writer).
type MediaStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewMediaStream wraps an upgraded websocket connection. readTimeout bounds
// every blocking read as a defense against a hung peer; zero disables the
// deadline.
func NewMediaStream(conn *websocket.Conn, readTimeout time.Duration) *MediaStream {
	return &MediaStream{conn: conn, readTimeout: readTimeout}
}

// ReadMessage blocks until the next frame arrives. A *ProtocolError means
// the frame was malformed and may be dropped; any other error means the
// connection is no longer usable.
func (s *MediaStream) ReadMessage() (*StreamMessage, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("telephony: set read deadline: %w", err)
		}
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("telephony: read: %w", err)
	}

	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &ProtocolError{Reason: "malformed frame", Err: err}
	}
	if msg.Event == "" {
		return nil, &ProtocolError{Reason: "frame missing event discriminator"}
	}
	return &msg, nil
}

// SendMedia sends synthesized audio back to the caller, addressed to the
// stream leg it belongs to.
func (s *MediaStream) SendMedia(streamSid, payloadB64 string) error {
	return s.writeJSON(&StreamMessage{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &Media{Payload: payloadB64},
	})
}

// SendClear tells Twilio to discard any buffered audio that has not played
// yet. This implements barge-in: the caller spoke over the agent.
func (s *MediaStream) SendClear(streamSid string) error {
	return s.writeJSON(&StreamMessage{
		Event:     EventClear,
		StreamSid: streamSid,
	})
}

func (s *MediaStream) writeJSON(msg *StreamMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("telephony: write %s: %w", msg.Event, err)
	}
	return nil
}

// Close closes the underlying connection. Safe to call more than once and
// from either relay loop.
func (s *MediaStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
