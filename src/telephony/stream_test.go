package telephony

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestStream upgrades an in-process server, hands the peer socket to the
// handler and wraps the client socket in a MediaStream.
func dialTestStream(t *testing.T, handler func(*websocket.Conn)) *MediaStream {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stream := NewMediaStream(conn, 5*time.Second)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func TestReadMessageStartFrame(t *testing.T) {
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event": "start",
			"streamSid": "ST1",
			"start": {
				"streamSid": "ST1",
				"callSid": "CA1",
				"accountSid": "AC1",
				"tracks": ["inbound"],
				"customParameters": {"prompt": "sell magazines", "first_message": "Hello"}
			}
		}`))
	})

	msg, err := stream.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Event != EventStart {
		t.Fatalf("event = %q, want start", msg.Event)
	}
	if msg.Start == nil {
		t.Fatal("start payload missing")
	}
	if msg.Start.CallSid != "CA1" || msg.Start.StreamSid != "ST1" {
		t.Errorf("start = %+v", msg.Start)
	}
	if msg.Start.CustomParameters["prompt"] != "sell magazines" {
		t.Errorf("customParameters = %v", msg.Start.CustomParameters)
	}
}

func TestReadMessageMediaFrame(t *testing.T) {
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event": "media",
			"streamSid": "ST1",
			"media": {"track": "inbound", "chunk": "3", "timestamp": "120", "payload": "AAAA"}
		}`))
	})

	msg, err := stream.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Event != EventMedia || msg.Media == nil || msg.Media.Payload != "AAAA" {
		t.Errorf("got %+v", msg)
	}
}

func TestReadMessageMalformedFrame(t *testing.T) {
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop"}`))
	})

	_, err := stream.ReadMessage()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}

	// The stream stays usable after a dropped frame.
	msg, err := stream.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage after dropped frame: %v", err)
	}
	if msg.Event != EventStop {
		t.Errorf("event = %q, want stop", msg.Event)
	}
}

func TestReadMessageMissingEvent(t *testing.T) {
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"streamSid":"ST1"}`))
	})

	_, err := stream.ReadMessage()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestSendMediaWireShape(t *testing.T) {
	got := make(chan []byte, 1)
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		got <- data
	})

	if err := stream.SendMedia("ST1", "BBBB"); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}

	select {
	case data := <-got:
		var frame struct {
			Event     string `json:"event"`
			StreamSid string `json:"streamSid"`
			Media     struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if frame.Event != "media" || frame.StreamSid != "ST1" || frame.Media.Payload != "BBBB" {
			t.Errorf("frame = %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the media frame")
	}
}

func TestSendClearWireShape(t *testing.T) {
	got := make(chan []byte, 1)
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		got <- data
	})

	if err := stream.SendClear("ST1"); err != nil {
		t.Fatalf("SendClear: %v", err)
	}

	select {
	case data := <-got:
		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if frame["event"] != "clear" || frame["streamSid"] != "ST1" {
			t.Errorf("frame = %s", data)
		}
		if _, present := frame["media"]; present {
			t.Errorf("clear frame carries a media payload: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the clear frame")
	}
}

func TestConcurrentWrites(t *testing.T) {
	var served sync.WaitGroup
	served.Add(1)
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer served.Done()
		defer conn.Close()
		for i := 0; i < 40; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.Errorf("server read %d: %v", i, err)
				return
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := stream.SendMedia("ST1", "AAAA"); err != nil {
				t.Errorf("SendMedia: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := stream.SendClear("ST1"); err != nil {
				t.Errorf("SendClear: %v", err)
			}
		}()
	}
	wg.Wait()
	served.Wait()
}

func TestCloseIdempotent(t *testing.T) {
	stream := dialTestStream(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.ReadMessage()
	})

	first := stream.Close()
	second := stream.Close()
	if first != second {
		t.Errorf("Close returned %v then %v, want the same result", first, second)
	}
}
