package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bluewire-labs/callgo-ai/src/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so websocket upgrades
// (the media-stream endpoint) work behind this middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// RequestLogging wraps a handler with per-request logging: method, path,
// status, duration and client address, plus a generated request ID echoed
// in the X-Request-Id header. Twilio webhook requests additionally log the
// call SID and caller number from the form body.
func RequestLogging(next http.Handler) http.Handler {
	log := logger.Component("server")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		durationMs := time.Since(start).Milliseconds()

		callSID := r.FormValue("CallSid")
		if callSID != "" {
			from := r.FormValue("From")
			if from == "" {
				from = "Unknown"
			}
			log.Info("REQ: %s %s | STATUS: %d | DURATION: %dms | IP: %s | CALL_FROM: %s | SID: %s | ID: %s",
				r.Method, r.URL.Path, rec.status, durationMs, r.RemoteAddr, from, callSID, requestID)
			return
		}

		log.Info("REQ: %s %s | STATUS: %d | DURATION: %dms | IP: %s | ID: %s",
			r.Method, r.URL.Path, rec.status, durationMs, r.RemoteAddr, requestID)
	})
}
