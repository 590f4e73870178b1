package telephony

import (
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/bluewire-labs/callgo-ai/src/logger"
)

// CallInfo is the subset of Twilio call state the rest of the service needs.
type CallInfo struct {
	CallSID  string
	Status   string
	Duration string
	To       string
	From     string
}

// Client places and inspects calls through the Twilio REST API.
type Client struct {
	phoneNumber string
	rest        *twilio.RestClient
	log         *logger.Logger
}

// ClientConfig holds Twilio account credentials.
type ClientConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// NewClient creates a Twilio REST client. Returns an error when credentials
// are missing so a misconfigured deployment fails at startup, not when the
// first call is placed.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.PhoneNumber == "" {
		return nil, fmt.Errorf("telephony: missing Twilio credentials")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{
		phoneNumber: cfg.PhoneNumber,
		rest:        rest,
		log:         logger.Component("twilio"),
	}, nil
}

// CreateCall initiates an outbound call. Twilio fetches TwiML instructions
// from callbackURL once the callee answers; callbackParams are appended to
// that URL as query parameters.
func (c *Client) CreateCall(toNumber, callbackURL string, callbackParams map[string]string) (*CallInfo, error) {
	fullURL := callbackURL
	if len(callbackParams) > 0 {
		q := url.Values{}
		for k, v := range callbackParams {
			q.Set(k, v)
		}
		fullURL = callbackURL + "?" + q.Encode()
	}

	c.log.Info("Initiating call to %s with callback URL: %s", toNumber, fullURL)

	params := &api.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.phoneNumber)
	params.SetUrl(fullURL)

	resp, err := c.rest.Api.CreateCall(params)
	if err != nil {
		c.log.Error("Error initiating call: %v", err)
		return nil, fmt.Errorf("telephony: create call: %w", err)
	}

	info := &CallInfo{
		CallSID: deref(resp.Sid),
		Status:  deref(resp.Status),
		To:      deref(resp.To),
		From:    deref(resp.From),
	}
	c.log.Info("Call initiated with SID: %s", info.CallSID)
	return info, nil
}

// GetCall fetches the current state of a call by its SID.
func (c *Client) GetCall(callSID string) (*CallInfo, error) {
	resp, err := c.rest.Api.FetchCall(callSID, &api.FetchCallParams{})
	if err != nil {
		c.log.Error("Error fetching call %s: %v", callSID, err)
		return nil, fmt.Errorf("telephony: fetch call %s: %w", callSID, err)
	}
	return &CallInfo{
		CallSID:  deref(resp.Sid),
		Status:   deref(resp.Status),
		Duration: deref(resp.Duration),
		To:       deref(resp.To),
		From:     deref(resp.From),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
