// callgo-server is the AI telemarketing call service: it answers Twilio
// voice webhooks, relays live call audio to the ElevenLabs conversational
// agent over websockets, and persists call data for the admin panel.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bluewire-labs/callgo-ai/src/admin"
	"github.com/bluewire-labs/callgo-ai/src/config"
	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/middleware"
	"github.com/bluewire-labs/callgo-ai/src/playbooks"
	"github.com/bluewire-labs/callgo-ai/src/relay"
	"github.com/bluewire-labs/callgo-ai/src/services"
	"github.com/bluewire-labs/callgo-ai/src/services/elevenlabs"
	"github.com/bluewire-labs/callgo-ai/src/services/gemini"
	"github.com/bluewire-labs/callgo-ai/src/services/openrouter"
	"github.com/bluewire-labs/callgo-ai/src/store"
	"github.com/bluewire-labs/callgo-ai/src/telephony"
	"github.com/bluewire-labs/callgo-ai/src/timing"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	log := logger.Component("server")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence is optional: without DATABASE_URL the service still
	// relays calls, it just records nothing.
	var callStore *store.Store
	var metricSink timing.MetricSink
	var transcriptSink relay.TranscriptSink
	if cfg.DatabaseURL != "" {
		callStore, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("%v", err)
			os.Exit(1)
		}
		defer callStore.Close()
		metricSink = callStore.RecordMetric
		transcriptSink = callStore.RecordTranscript
	} else {
		log.Warn("DATABASE_URL not set, call persistence disabled")
	}

	llm := buildLLM(ctx, cfg, metricSink, log)

	elClient := elevenlabs.NewClient(elevenlabs.ClientConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		AgentID: cfg.ElevenLabsAgentID,
	})

	engine := relay.NewEngine(relay.EngineConfig{
		Provider: &relay.ElevenLabsProvider{
			Client:      elClient,
			ReadTimeout: cfg.StreamReadTimeout,
		},
		Metrics:     metricSink,
		Transcripts: transcriptSink,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Pong!")
	})
	mux.HandleFunc("/answer", answerHandler(llm, callStore))
	mux.HandleFunc("/media-answer", mediaAnswerHandler(cfg))
	mux.Handle("/media-stream", relay.NewStreamHandler(engine, cfg.StreamReadTimeout))

	if callStore != nil {
		admin.NewAPI(callStore, engine.Registry()).Register(mux)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware.RequestLogging(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting AI Telemarketer server on %s...", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown error: %v", err)
	}
}

// buildLLM picks the configured language model backend, preferring
// OpenRouter (the primary) over Gemini (the alternate). Both follow the
// same playbook.
func buildLLM(ctx context.Context, cfg config.Config, metrics timing.MetricSink, log *logger.Logger) services.LLMService {
	playbook := playbooks.MagazineDemo

	if cfg.OpenRouterAPIKey != "" {
		c := openrouter.NewLLMClient(openrouter.LLMConfig{
			APIKey:   cfg.OpenRouterAPIKey,
			Playbook: playbook,
		})
		c.Metrics = metrics
		return c
	}
	if cfg.GeminiAPIKey != "" {
		c, err := gemini.NewLLMClient(ctx, gemini.LLMConfig{
			APIKey:   cfg.GeminiAPIKey,
			Playbook: playbook,
		})
		if err != nil {
			log.Error("Failed to create Gemini client: %v", err)
			return nil
		}
		c.Metrics = metrics
		return c
	}

	log.Warn("No LLM API key configured, /answer will use a canned reply")
	return nil
}

// answerHandler serves the simple non-streaming answer mode: speech input
// from the webhook goes to the LLM and the reply is spoken with <Say>.
func answerHandler(llm services.LLMService, callStore *store.Store) http.HandlerFunc {
	log := logger.Component("server")

	return func(w http.ResponseWriter, r *http.Request) {
		userInput := r.FormValue("SpeechResult")
		callSID := r.FormValue("CallSid")
		log.Info("Received call with input: '%s'", userInput)

		reply := services.FallbackUnavailable
		if llm != nil {
			reply = llm.GetResponse(r.Context(), userInput, callSID)
		}

		if callStore != nil && callSID != "" {
			if userInput != "" {
				callStore.RecordTranscript(callSID, "user", userInput)
			}
			callStore.RecordTranscript(callSID, "assistant", reply)
		}

		log.Info("Response sent to caller: '%s'", reply)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, telephony.SayTwiML(reply, ""))
	}
}

// mediaAnswerHandler bridges an answered call onto the media-stream
// websocket. Optional prompt and first_message query parameters are passed
// through to the relay as stream custom parameters.
func mediaAnswerHandler(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := cfg.PublicHost
		if host == "" {
			host = r.Host
		}
		wsURL := fmt.Sprintf("wss://%s/media-stream", host)

		params := map[string]string{}
		if v := r.FormValue("prompt"); v != "" {
			params["prompt"] = v
		}
		if v := r.FormValue("first_message"); v != "" {
			params["first_message"] = v
		}

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, telephony.ConnectStreamTwiML(wsURL, params))
	}
}
