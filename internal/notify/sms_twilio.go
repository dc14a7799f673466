package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medconnect/scheduling-api/pkg/logging"
)

// TwilioConfig holds configuration for the Twilio messaging API.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL overrides the API host, used by tests.
	BaseURL string
}

// TwilioSender sends SMS via the Twilio REST API.
type TwilioSender struct {
	cfg    TwilioConfig
	client *http.Client
	logger *logging.Logger
}

// NewTwilioSender creates a Twilio SMS sender. Returns nil when credentials
// are absent so callers can fall back to the stub.
func NewTwilioSender(cfg TwilioConfig, logger *logging.Logger) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// SendSMS posts one message to the Twilio messages endpoint.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (SMSResult, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)
	form := url.Values{
		"To":   {to},
		"From": {s.cfg.FromNumber},
		"Body": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SMSResult{}, fmt.Errorf("notify: build twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("twilio send failed", "error", err, "to", to)
		return SMSResult{}, fmt.Errorf("notify: twilio send failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode < 400 {
		return SMSResult{}, fmt.Errorf("notify: decode twilio response: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("twilio returned error status", "status", resp.StatusCode, "message", out.Message, "to", to)
		return SMSResult{}, fmt.Errorf("notify: twilio returned status %d", resp.StatusCode)
	}

	s.logger.Info("sms sent via twilio", "to", to, "sid", out.SID)
	return SMSResult{SID: out.SID}, nil
}

var _ SMSSender = (*TwilioSender)(nil)
