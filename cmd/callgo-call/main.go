// callgo-call places an outbound call through Twilio and points it at a
// running callgo-server instance for handling.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bluewire-labs/callgo-ai/src/config"
	"github.com/bluewire-labs/callgo-ai/src/logger"
	"github.com/bluewire-labs/callgo-ai/src/telephony"
)

func main() {
	to := flag.String("to", "", "phone number to call (E.164, required)")
	mode := flag.String("mode", "media", "call handling mode: media (AI relay) or simple (LLM + TTS)")
	prompt := flag.String("prompt", "", "optional prompt override for the AI agent")
	firstMessage := flag.String("first-message", "", "optional first message for the AI agent")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init()
	log := logger.Component("twilio")

	if *to == "" {
		fmt.Fprintln(os.Stderr, "usage: callgo-call -to +358401234567 [-mode media|simple] [-prompt ...] [-first-message ...]")
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	if cfg.PublicHost == "" {
		log.Error("NGROK_URL must be set so Twilio can reach the server")
		os.Exit(1)
	}

	client, err := telephony.NewClient(telephony.ClientConfig{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		PhoneNumber: cfg.TwilioPhoneNumber,
	})
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	path := "/media-answer"
	if *mode == "simple" {
		path = "/answer"
	}
	callbackURL := fmt.Sprintf("https://%s%s", strings.TrimPrefix(cfg.PublicHost, "https://"), path)

	params := map[string]string{}
	if *prompt != "" {
		params["prompt"] = *prompt
	}
	if *firstMessage != "" {
		params["first_message"] = *firstMessage
	}

	info, err := client.CreateCall(*to, callbackURL, params)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	fmt.Printf("Call SID: %s (status: %s)\n", info.CallSID, info.Status)
}
