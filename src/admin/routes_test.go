package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bluewire-labs/callgo-ai/src/store"
)

// fakeStore implements store.CallStore with canned data.
type fakeStore struct {
	calls      []store.Call
	details    map[int64]*store.CallDetails
	stats      []store.StepStatistics
	tableStats *store.TableStats
	err        error

	gotLimit, gotOffset int
}

func (f *fakeStore) CreateCall(ctx context.Context, callSID, callerNumber string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeStore) UpdateCallStatus(ctx context.Context, callID int64, status string, duration *int) error {
	return errors.New("not implemented")
}

func (f *fakeStore) UpdateCallWithTwilioData(ctx context.Context, callSID, status string, duration *int) error {
	return errors.New("not implemented")
}

func (f *fakeStore) AddConversationEntry(ctx context.Context, callSID, role, content string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) AddPerformanceMetric(ctx context.Context, callSID, stepName string, startTime, endTime time.Time, metadata map[string]interface{}) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetCalls(ctx context.Context, limit, offset int) ([]store.Call, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.calls, f.err
}

func (f *fakeStore) GetCallDetails(ctx context.Context, callID int64) (*store.CallDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details[callID], nil
}

func (f *fakeStore) GetCallBySID(ctx context.Context, callSID string) (*store.Call, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetPerformanceStatistics(ctx context.Context) ([]store.StepStatistics, error) {
	return f.stats, f.err
}

func (f *fakeStore) Stats(ctx context.Context) (*store.TableStats, error) {
	return f.tableStats, f.err
}

type fakeSessions struct {
	ids []string
}

func (f *fakeSessions) Len() int                { return len(f.ids) }
func (f *fakeSessions) ActiveCallIDs() []string { return f.ids }

func serve(t *testing.T, api *API, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	mux := http.NewServeMux()
	api.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, body
}

func TestHandleCalls(t *testing.T) {
	fs := &fakeStore{calls: []store.Call{
		{ID: 1, CallSID: "CA1", Status: "completed"},
		{ID: 2, CallSID: "CA2", Status: "in-progress"},
	}}
	api := NewAPI(fs, nil)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/calls?limit=10&offset=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if calls := body["calls"].([]interface{}); len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
	if fs.gotLimit != 10 || fs.gotOffset != 5 {
		t.Errorf("limit/offset = %d/%d, want 10/5", fs.gotLimit, fs.gotOffset)
	}
}

func TestHandleCallsDefaults(t *testing.T) {
	fs := &fakeStore{}
	api := NewAPI(fs, nil)

	_, body := serve(t, api, http.MethodGet, "/admin/api/calls")
	if fs.gotLimit != 50 || fs.gotOffset != 0 {
		t.Errorf("limit/offset = %d/%d, want defaults 50/0", fs.gotLimit, fs.gotOffset)
	}
	// nil from the store still serializes as an empty list.
	if calls := body["calls"].([]interface{}); len(calls) != 0 {
		t.Errorf("calls = %v", calls)
	}
}

func TestHandleCallsStoreError(t *testing.T) {
	api := NewAPI(&fakeStore{err: errors.New("connection refused")}, nil)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/calls")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != false {
		t.Errorf("success = %v", body["success"])
	}
}

func TestHandleCallDetails(t *testing.T) {
	fs := &fakeStore{details: map[int64]*store.CallDetails{
		7: {
			Call: store.Call{ID: 7, CallSID: "CA7"},
			Conversation: []store.ConversationEntry{
				{ID: 1, CallID: 7, Role: "user", Content: "Hi."},
			},
		},
	}}
	api := NewAPI(fs, nil)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/calls/7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	call := body["call"].(map[string]interface{})
	if call["call_sid"] != "CA7" {
		t.Errorf("call = %v", call)
	}
}

func TestHandleCallDetailsNotFound(t *testing.T) {
	api := NewAPI(&fakeStore{}, nil)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/calls/99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != false {
		t.Errorf("success = %v", body["success"])
	}
}

func TestHandleCallDetailsBadID(t *testing.T) {
	api := NewAPI(&fakeStore{}, nil)

	rec, _ := serve(t, api, http.MethodGet, "/admin/api/calls/not-a-number")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlePerformance(t *testing.T) {
	api := NewAPI(&fakeStore{stats: []store.StepStatistics{
		{StepName: "llm_processing", Count: 3, AvgDuration: 420},
	}}, nil)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/performance")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := body["stats"].([]interface{})
	if len(stats) != 1 {
		t.Fatalf("stats = %v", stats)
	}
	if stats[0].(map[string]interface{})["step_name"] != "llm_processing" {
		t.Errorf("stats = %v", stats)
	}
}

func TestHandleDBStats(t *testing.T) {
	api := NewAPI(
		&fakeStore{tableStats: &store.TableStats{Calls: 12, ConversationEntries: 80, PerformanceMetrics: 30, ActiveCalls: 2}},
		&fakeSessions{ids: []string{"CA1", "CA2"}},
	)

	rec, body := serve(t, api, http.MethodGet, "/admin/api/db/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := body["stats"].(map[string]interface{})
	if stats["calls"] != float64(12) {
		t.Errorf("calls = %v", stats["calls"])
	}
	if stats["active_relay_sessions"] != float64(2) {
		t.Errorf("active_relay_sessions = %v", stats["active_relay_sessions"])
	}
	ids := stats["active_relay_call_sids"].([]interface{})
	if len(ids) != 2 {
		t.Errorf("active_relay_call_sids = %v", ids)
	}
}

func TestHandleDBStatsWithoutSessions(t *testing.T) {
	api := NewAPI(&fakeStore{tableStats: &store.TableStats{}}, nil)

	_, body := serve(t, api, http.MethodGet, "/admin/api/db/stats")
	stats := body["stats"].(map[string]interface{})
	if _, present := stats["active_relay_sessions"]; present {
		t.Error("relay session stats present without a registry")
	}
}
