package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/telephony"
)

// StreamHandler upgrades incoming media-stream requests from Twilio and
// hands each connection to the relay engine. One HTTP request is one call.
type StreamHandler struct {
	engine      *Engine
	readTimeout time.Duration
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// NewStreamHandler creates the websocket endpoint for Twilio Media Streams.
func NewStreamHandler(engine *Engine, readTimeout time.Duration) *StreamHandler {
	return &StreamHandler{
		engine:      engine,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			// Twilio does not send a browser Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Component("relay"),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Info("New media stream connection from %s", r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection: %v", err)
		return
	}

	stream := telephony.NewMediaStream(conn, h.readTimeout)
	if err := h.engine.HandleStream(r.Context(), stream); err != nil {
		h.log.Warn("Session ended with error: %v", err)
	}
}
