package elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/convai/conversation/get_signed_url" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent_id"); got != "agent-1" {
			t.Errorf("agent_id = %q, want agent-1", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-1" {
			t.Errorf("xi-api-key = %q, want key-1", got)
		}
		w.Write([]byte(`{"signed_url":"wss://api.elevenlabs.io/v1/convai/conversation?token=t1"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key-1", AgentID: "agent-1", BaseURL: srv.URL})
	url, err := c.GetSignedURL(context.Background())
	if err != nil {
		t.Fatalf("GetSignedURL: %v", err)
	}
	if url != "wss://api.elevenlabs.io/v1/convai/conversation?token=t1" {
		t.Errorf("url = %q", url)
	}
}

func TestGetSignedURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "bad", AgentID: "agent-1", BaseURL: srv.URL})
	if _, err := c.GetSignedURL(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestGetSignedURLMissingCredentials(t *testing.T) {
	c := NewClient(ClientConfig{})
	if _, err := c.GetSignedURL(context.Background()); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestGetSignedURLEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key-1", AgentID: "agent-1", BaseURL: srv.URL})
	if _, err := c.GetSignedURL(context.Background()); err == nil {
		t.Fatal("expected error for empty signed URL")
	}
}

func TestGetCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/convai/phone/calls" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		w.Write([]byte(`[{"call_id":"c1"},{"call_id":"c2"}]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "key-1", AgentID: "agent-1", BaseURL: srv.URL})
	calls, err := c.GetCalls(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetCalls: %v", err)
	}
	if len(calls) != 2 || calls[0]["call_id"] != "c1" {
		t.Errorf("calls = %v", calls)
	}
}
