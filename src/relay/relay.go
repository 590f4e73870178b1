package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/services/elevenlabs"
	"github.com/bluewire-labs/callgo-ai/src/telephony"
	"github.com/bluewire-labs/callgo-ai/src/timing"
)

// TelephonyStream is the inbound side of a relay: the duplex media stream
// Twilio opened for one call. *telephony.MediaStream satisfies it; tests
// substitute fakes.
type TelephonyStream interface {
	ReadMessage() (*telephony.StreamMessage, error)
	SendMedia(streamSid, payloadB64 string) error
	SendClear(streamSid string) error
	Close() error
}

// AIConversation is the outbound side: the websocket conversation with the
// AI agent. *elevenlabs.Conversation satisfies it.
type AIConversation interface {
	SendInitialConfig(cfg *elevenlabs.InitialConfig) error
	SendUserAudio(payloadB64 string) error
	SendPong(eventID json.RawMessage) error
	Receive() (*elevenlabs.ServerMessage, error)
	Close() error
}

// AIProvider obtains signed connection URLs and dials conversations. Each
// signed URL is single-use and fetched immediately before dialing.
type AIProvider interface {
	GetSignedURL(ctx context.Context) (string, error)
	Dial(ctx context.Context, signedURL string) (AIConversation, error)
}

// TranscriptSink records one transcript line from the conversation. Role is
// "user" or "assistant". Implementations must not block the relay.
type TranscriptSink func(callID, role, text string)

// Engine bridges telephony media streams to AI conversations, one session
// per call. It owns the session lifecycle: start handshake, steady-state
// bidirectional relay, and teardown on stop or failure from either side.
type Engine struct {
	provider    AIProvider
	registry    *Registry
	metrics     timing.MetricSink
	transcripts TranscriptSink
	log         *logger.Logger
}

// EngineConfig wires an Engine's collaborators. Metrics and Transcripts are
// optional; the relay runs identically without them.
type EngineConfig struct {
	Provider    AIProvider
	Registry    *Registry
	Metrics     timing.MetricSink
	Transcripts TranscriptSink
}

// NewEngine creates a relay engine.
func NewEngine(cfg EngineConfig) *Engine {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{
		provider:    cfg.Provider,
		registry:    registry,
		metrics:     cfg.Metrics,
		transcripts: cfg.Transcripts,
		log:         logger.Component("relay"),
	}
}

// Registry exposes the session registry for read-only consumers (admin
// stats).
func (e *Engine) Registry() *Registry {
	return e.registry
}

// HandleStream runs one relay session end to end and returns when the
// session has fully torn down. The stream is always closed on return,
// whichever side ended the call.
func (e *Engine) HandleStream(ctx context.Context, stream TelephonyStream) error {
	defer stream.Close()

	// AwaitingStart: nothing is registered yet. Media arriving before the
	// start frame is pre-start jitter and dropped silently.
	for {
		msg, err := stream.ReadMessage()
		if err != nil {
			var pe *telephony.ProtocolError
			if errors.As(err, &pe) {
				e.log.Warn("Dropping malformed frame before start: %v", pe)
				continue
			}
			return err
		}

		switch msg.Event {
		case telephony.EventStart:
			if msg.Start == nil {
				e.log.Warn("Start frame without start payload, dropping")
				continue
			}
			return e.runSession(ctx, stream, msg.Start)
		case telephony.EventStop:
			e.log.Info("Stream stopped before start frame")
			return nil
		case telephony.EventMedia, telephony.EventMark, telephony.EventConnected:
			// Ignored until the session starts.
		default:
			e.log.Warn("Unknown event before start: %s", msg.Event)
		}
	}
}

// runSession performs the start transition and runs the Active state until
// teardown. Any failure to obtain a working AI channel aborts the session
// with no registry entry created.
func (e *Engine) runSession(ctx context.Context, stream TelephonyStream, start *telephony.Start) error {
	callID := start.CallSid
	streamID := start.StreamSid
	e.log.Info("Stream started: %s (Call: %s)", streamID, callID)

	// Reject duplicate starts before spending a signed URL. Add below
	// closes the race window this check leaves open.
	if e.registry.Has(callID) {
		e.log.Error("Duplicate start for active call %s, rejecting", callID)
		return ErrDuplicateCall
	}

	signedURL, err := e.provider.GetSignedURL(ctx)
	if err != nil {
		e.log.Error("Aborting session for call %s: %v", callID, err)
		return err
	}

	conv, err := e.provider.Dial(ctx, signedURL)
	if err != nil {
		e.log.Error("Aborting session for call %s: %v", callID, err)
		return err
	}

	sess := &CallSession{
		CallID:    callID,
		StreamID:  streamID,
		AI:        conv,
		StartTime: time.Now(),
	}
	if err := e.registry.Add(sess); err != nil {
		conv.Close()
		e.log.Error("Duplicate start for active call %s, rejecting", callID)
		return err
	}

	rt := &sessionRuntime{engine: e, sess: sess, stream: stream}
	defer rt.teardown("session handler exit")

	prompt := start.CustomParameters["prompt"]
	firstMessage := start.CustomParameters["first_message"]
	cfg := elevenlabs.BuildInitialConfig(prompt, firstMessage, map[string]string{
		"call_id": callID,
	})
	if err := conv.SendInitialConfig(cfg); err != nil {
		e.log.Error("Failed to send initial config for call %s: %v", callID, err)
		return err
	}

	// One dedicated worker drains the AI side for the session's lifetime.
	// The two loops never share frame buffers; they only forward onto each
	// other's send paths.
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		e.listenAI(rt)
	}()

	err = e.relayTelephony(rt)

	// Teardown closes the AI connection, which unblocks the listener's
	// Receive. Wait for it so no goroutine outlives the session.
	rt.teardown("telephony loop exit")
	<-listenerDone
	return err
}

// relayTelephony is the Active-state loop for the telephony side: caller
// audio is forwarded to the AI channel unmodified, in arrival order.
func (e *Engine) relayTelephony(rt *sessionRuntime) error {
	for {
		msg, err := rt.stream.ReadMessage()
		if err != nil {
			var pe *telephony.ProtocolError
			if errors.As(err, &pe) {
				e.log.Warn("Dropping malformed frame for call %s: %v", rt.sess.CallID, pe)
				continue
			}
			if isExpectedClose(err) {
				e.log.Info("Telephony stream closed for call %s", rt.sess.CallID)
				return nil
			}
			e.log.Error("Telephony read error for call %s: %v", rt.sess.CallID, err)
			return err
		}

		switch msg.Event {
		case telephony.EventMedia:
			if msg.Media == nil || msg.Media.Payload == "" {
				continue
			}
			if err := rt.sess.AI.SendUserAudio(msg.Media.Payload); err != nil {
				e.log.Error("Failed to forward audio for call %s: %v", rt.sess.CallID, err)
				return err
			}
		case telephony.EventStop:
			e.log.Info("Stop received for call %s", rt.sess.CallID)
			return nil
		case telephony.EventStart:
			e.log.Warn("Unexpected start frame mid-session for call %s, dropping", rt.sess.CallID)
		case telephony.EventMark, telephony.EventConnected:
			// Informational, nothing to forward.
		default:
			e.log.Warn("Unknown telephony event %q for call %s", msg.Event, rt.sess.CallID)
		}
	}
}

// listenAI is the Active-state loop for the AI side: synthesized audio and
// control events are translated to telephony frames, in arrival order.
func (e *Engine) listenAI(rt *sessionRuntime) {
	for {
		msg, err := rt.sess.AI.Receive()
		if err != nil {
			var pe *elevenlabs.ProtocolError
			if errors.As(err, &pe) {
				e.log.Warn("Dropping malformed AI message for call %s: %v", rt.sess.CallID, pe)
				continue
			}
			if !isExpectedClose(err) {
				e.log.Error("AI channel error for call %s: %v", rt.sess.CallID, err)
			}
			rt.teardown("ai listener exit")
			return
		}

		switch msg.Type {
		case elevenlabs.MessageAudio:
			if err := rt.stream.SendMedia(rt.sess.StreamID, msg.AudioBase64); err != nil {
				e.log.Error("Failed to forward AI audio for call %s: %v", rt.sess.CallID, err)
				rt.teardown("ai listener exit")
				return
			}
		case elevenlabs.MessageInterruption:
			// Barge-in: flush whatever synthesized audio Twilio has queued.
			if err := rt.stream.SendClear(rt.sess.StreamID); err != nil {
				e.log.Error("Failed to send clear for call %s: %v", rt.sess.CallID, err)
				rt.teardown("ai listener exit")
				return
			}
		case elevenlabs.MessagePing:
			// Keepalive contract: reply immediately, ahead of any other
			// handling.
			if err := rt.sess.AI.SendPong(msg.PingEventID); err != nil {
				e.log.Error("Failed to send pong for call %s: %v", rt.sess.CallID, err)
				rt.teardown("ai listener exit")
				return
			}
		case elevenlabs.MessageAgentResponse:
			e.log.Info("Agent response for call %s: %s", rt.sess.CallID, msg.Transcript)
			e.recordTranscript(rt.sess.CallID, "assistant", msg.Transcript)
		case elevenlabs.MessageUserTranscript:
			e.log.Info("User transcript for call %s: %s", rt.sess.CallID, msg.Transcript)
			e.recordTranscript(rt.sess.CallID, "user", msg.Transcript)
		default:
			e.log.Debug("Ignoring AI message type %q for call %s", msg.RawType, rt.sess.CallID)
		}
	}
}

func (e *Engine) recordTranscript(callID, role, text string) {
	if e.transcripts == nil || text == "" {
		return
	}
	e.transcripts(callID, role, text)
}

// sessionRuntime binds one session to its channels and makes teardown
// idempotent: either loop (or both, racing) may trigger it, the cleanup
// runs once.
type sessionRuntime struct {
	engine *Engine
	sess   *CallSession
	stream TelephonyStream
	once   sync.Once
}

// teardown is the Closing -> Closed transition: close the AI channel
// (which releases the listener), close the telephony stream, deregister
// the session and report its duration.
func (rt *sessionRuntime) teardown(reason string) {
	rt.once.Do(func() {
		e := rt.engine
		e.log.Info("Tearing down session for call %s (%s)", rt.sess.CallID, reason)

		if err := rt.sess.AI.Close(); err != nil {
			e.log.Warn("Error closing AI channel for call %s: %v", rt.sess.CallID, err)
		}
		if err := rt.stream.Close(); err != nil {
			e.log.Warn("Error closing telephony stream for call %s: %v", rt.sess.CallID, err)
		}
		e.registry.Remove(rt.sess.CallID)

		if e.metrics != nil {
			e.metrics(rt.sess.CallID, "ai_session", rt.sess.StartTime, time.Now(), map[string]interface{}{
				"stream_sid": rt.sess.StreamID,
			})
		}
	})
}

// isExpectedClose reports whether a read error is the normal end of a
// websocket rather than a failure worth logging at error level.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
