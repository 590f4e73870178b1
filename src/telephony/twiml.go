package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
)

// SayTwiML builds the voice response for the simple non-streaming answer
// mode: speak the given text, then pause briefly so Twilio does not hang up
// mid-sentence.
func SayTwiML(text, voice string) string {
	if voice == "" {
		voice = "Polly.Amy"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say voice=%q>%s</Say>
    <Pause length="1"/>
</Response>`, voice, escapeXML(text))
}

// ConnectStreamTwiML builds the voice response that bridges the call onto
// the media-stream websocket. Custom parameters are echoed back by Twilio
// in the start frame of the stream.
func ConnectStreamTwiML(wsURL string, customParameters map[string]string) string {
	var params bytes.Buffer
	for _, name := range sortedKeys(customParameters) {
		fmt.Fprintf(&params, "\n            <Parameter name=%q value=%q/>", escapeXML(name), escapeXML(customParameters[name]))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url=%q>%s
        </Stream>
    </Connect>
</Response>`, escapeXML(wsURL), params.String())
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
