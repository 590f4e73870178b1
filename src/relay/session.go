package relay

import (
	"fmt"
	"sync"
	"time"
)

// CallSession is the state of one active relay, created when the start
// frame arrives and immutable afterwards; only registry membership changes.
type CallSession struct {
	// CallID is Twilio's call SID, the identifier space for sessions.
	CallID string
	// StreamID addresses outbound media frames to the right stream leg.
	StreamID string
	// AI is the conversation channel, exclusively owned by this session.
	// The registry holds it for lookup only and never closes it.
	AI AIConversation
	// StartTime is set once at session start, used for duration reporting.
	StartTime time.Time
}

// ErrDuplicateCall is returned when a start frame arrives for a call SID
// that already has an active session. The later arrival is rejected; the
// original session is left untouched.
var ErrDuplicateCall = fmt.Errorf("relay: call already has an active session")

// Registry tracks the sessions of all concurrently active calls. It is the
// only state shared between different calls' goroutines, so every access
// goes through the mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*CallSession)}
}

// Add registers a new session. Fails with ErrDuplicateCall if the call SID
// is already active, without replacing the existing session.
func (r *Registry) Add(sess *CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sess.CallID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCall, sess.CallID)
	}
	r.sessions[sess.CallID] = sess
	return nil
}

// Has reports whether the call SID currently has an active session.
func (r *Registry) Has(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[callID]
	return ok
}

// Get returns the session for a call SID, or nil. The returned reference is
// non-owning; callers must not close the session's AI channel.
func (r *Registry) Get(callID string) *CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[callID]
}

// Remove deregisters a session. Removing an absent call SID is a no-op, so
// concurrent teardown from both relay loops is safe.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ActiveCallIDs returns the call SIDs of all active sessions, in no
// particular order.
func (r *Registry) ActiveCallIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
