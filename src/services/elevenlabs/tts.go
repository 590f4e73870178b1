package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/timing"
)

// TTSClient synthesizes speech over the ElevenLabs HTTP API. It serves the
// simple non-streaming answer mode; relay sessions receive their audio
// through the conversational AI websocket instead.
type TTSClient struct {
	apiKey  string
	voiceID string
	model   string
	baseURL string
	http    *http.Client
	log     *logger.Logger

	// Metrics records tts_processing timings when set.
	Metrics timing.MetricSink
}

// TTSConfig holds configuration for speech synthesis.
type TTSConfig struct {
	APIKey  string
	VoiceID string // e.g. "21m00Tcm4TlvDq8ikWAM" (Rachel)
	Model   string // e.g. "eleven_multilingual_v1"
	BaseURL string // overridden by tests
}

// NewTTSClient creates a new synthesis client.
func NewTTSClient(cfg TTSConfig) *TTSClient {
	if cfg.VoiceID == "" {
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v1"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &TTSClient{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		model:   cfg.Model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.Component("tts"),
	}
}

// Synthesize converts text to MP3 audio bytes.
func (c *TTSClient) Synthesize(ctx context.Context, text, callID string) ([]byte, error) {
	preview := text
	if len(preview) > 50 {
		preview = preview[:50]
	}
	c.log.Info("Converting text to speech: %s...", preview)

	stop := timing.Measure(callID, "tts_processing", c.Metrics, map[string]interface{}{
		"text_length": len(text),
	})
	defer stop()

	body, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": c.model,
		"voice_settings": map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.5,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		c.log.Error("ElevenLabs API error: %d - %s", resp.StatusCode, string(msg))
		return nil, fmt.Errorf("elevenlabs: tts: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read tts audio: %w", err)
	}
	return audio, nil
}

// SynthesizeToFile converts text to speech and writes the audio to a
// uniquely named file in the OS temp directory, returning its path. The
// caller owns the file and removes it when done.
func (c *TTSClient) SynthesizeToFile(ctx context.Context, text, callID string) (string, error) {
	audio, err := c.Synthesize(ctx, text, callID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(os.TempDir(), "callgo-tts-"+uuid.NewString()+".mp3")
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", fmt.Errorf("elevenlabs: write tts file: %w", err)
	}

	c.log.Info("TTS conversion successful, saved to %s", path)
	return path, nil
}
