package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/store"
)

// SessionCounter reports live relay sessions. *relay.Registry satisfies it.
type SessionCounter interface {
	Len() int
	ActiveCallIDs() []string
}

// API serves the read-only admin endpoints for browsing call data.
type API struct {
	store    store.CallStore
	sessions SessionCounter
	log      *logger.Logger
}

// NewAPI creates the admin API. sessions may be nil when the relay is not
// running in this process.
func NewAPI(callStore store.CallStore, sessions SessionCounter) *API {
	return &API{
		store:    callStore,
		sessions: sessions,
		log:      logger.Component("admin"),
	}
}

// Register mounts the admin routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/api/calls", a.handleCalls)
	mux.HandleFunc("GET /admin/api/calls/{id}", a.handleCallDetails)
	mux.HandleFunc("GET /admin/api/performance", a.handlePerformance)
	mux.HandleFunc("GET /admin/api/db/stats", a.handleDBStats)
}

func (a *API) handleCalls(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)

	calls, err := a.store.GetCalls(r.Context(), limit, offset)
	if err != nil {
		a.log.Error("Error getting calls: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if calls == nil {
		calls = []store.Call{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"calls":   calls,
	})
}

func (a *API) handleCallDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid call id",
		})
		return
	}

	call, err := a.store.GetCallDetails(r.Context(), id)
	if err != nil {
		a.log.Error("Error getting call details: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if call == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   "Call not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"call":    call,
	})
}

func (a *API) handlePerformance(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetPerformanceStatistics(r.Context())
	if err != nil {
		a.log.Error("Error getting performance stats: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if stats == nil {
		stats = []store.StepStatistics{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (a *API) handleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats(r.Context())
	if err != nil {
		a.log.Error("Error getting database stats: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := map[string]interface{}{
		"calls":                stats.Calls,
		"conversation_entries": stats.ConversationEntries,
		"performance_metrics":  stats.PerformanceMetrics,
		"active_calls":         stats.ActiveCalls,
	}
	if a.sessions != nil {
		payload["active_relay_sessions"] = a.sessions.Len()
		payload["active_relay_call_sids"] = a.sessions.ActiveCallIDs()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   payload,
	})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
