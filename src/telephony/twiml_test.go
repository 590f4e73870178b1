package telephony

import (
	"strings"
	"testing"
)

func TestSayTwiML(t *testing.T) {
	got := SayTwiML("Hello, caller!", "")
	if !strings.Contains(got, `<Say voice="Polly.Amy">Hello, caller!</Say>`) {
		t.Errorf("unexpected TwiML:\n%s", got)
	}
	if !strings.Contains(got, `<Pause length="1"/>`) {
		t.Errorf("missing pause:\n%s", got)
	}
}

func TestSayTwiMLCustomVoice(t *testing.T) {
	got := SayTwiML("Bonjour", "Polly.Celine")
	if !strings.Contains(got, `<Say voice="Polly.Celine">Bonjour</Say>`) {
		t.Errorf("unexpected TwiML:\n%s", got)
	}
}

func TestSayTwiMLEscapesText(t *testing.T) {
	got := SayTwiML(`Tom & Jerry <live>`, "")
	if strings.Contains(got, "<live>") {
		t.Errorf("text not escaped:\n%s", got)
	}
	if !strings.Contains(got, "Tom &amp; Jerry") {
		t.Errorf("ampersand not escaped:\n%s", got)
	}
}

func TestConnectStreamTwiML(t *testing.T) {
	got := ConnectStreamTwiML("wss://example.com/media-stream", map[string]string{
		"prompt":        "sell magazines",
		"first_message": "Hello there",
	})

	if !strings.Contains(got, `<Stream url="wss://example.com/media-stream">`) {
		t.Errorf("missing stream url:\n%s", got)
	}
	if !strings.Contains(got, `<Parameter name="first_message" value="Hello there"/>`) {
		t.Errorf("missing first_message parameter:\n%s", got)
	}
	if !strings.Contains(got, `<Parameter name="prompt" value="sell magazines"/>`) {
		t.Errorf("missing prompt parameter:\n%s", got)
	}
	// Parameters are emitted in sorted order for stable output.
	if strings.Index(got, "first_message") > strings.Index(got, `name="prompt"`) {
		t.Errorf("parameters out of order:\n%s", got)
	}
}

func TestConnectStreamTwiMLNoParameters(t *testing.T) {
	got := ConnectStreamTwiML("wss://example.com/media-stream", nil)
	if strings.Contains(got, "<Parameter") {
		t.Errorf("unexpected parameters:\n%s", got)
	}
	if !strings.Contains(got, "<Connect>") {
		t.Errorf("missing connect verb:\n%s", got)
	}
}
