package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the call service, loaded from
// the environment. Credentials for providers that a deployment does not use
// may be left empty; the affected endpoints report a configuration error at
// call time rather than failing startup.
type Config struct {
	Addr string

	// PublicHost is the externally reachable host (e.g. an ngrok domain)
	// used when building TwiML callback and media stream URLs.
	PublicHost string

	// Twilio telephony credentials.
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// ElevenLabs conversational AI / TTS credentials.
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string
	ElevenLabsVoiceID string

	// LLM backends.
	OpenRouterAPIKey string
	GeminiAPIKey     string

	// Postgres DSN for the call store. Empty disables persistence.
	DatabaseURL string

	// Defensive read timeout applied to both media websockets. A hung
	// provider connection surfaces as a transport error and tears the
	// session down instead of leaking it.
	StreamReadTimeout time.Duration

	ShutdownGracePeriod time.Duration
}

// FromEnv loads configuration from environment variables, applying defaults
// for everything that is optional.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                getenvDefault("ADDR", ":5001"),
		PublicHost:          os.Getenv("NGROK_URL"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber:   os.Getenv("TWILIO_PHONE_NUMBER"),
		ElevenLabsAPIKey:    os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsAgentID:   os.Getenv("ELEVENLABS_AGENT_ID"),
		ElevenLabsVoiceID:   getenvDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StreamReadTimeout:   90 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}

	var err error
	if cfg.StreamReadTimeout, err = durationEnv("STREAM_READ_TIMEOUT", cfg.StreamReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownGracePeriod, err = durationEnv("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// HasElevenLabs reports whether conversational AI relay sessions can be
// established with this configuration.
func (c Config) HasElevenLabs() bool {
	return c.ElevenLabsAPIKey != "" && c.ElevenLabsAgentID != ""
}

// HasTwilio reports whether outbound calls can be placed.
func (c Config) HasTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	// Accept either a Go duration ("90s") or a bare number of seconds.
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("config: invalid duration for %s: %q", key, v)
}
