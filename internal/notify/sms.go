// Package notify sends patient SMS and doctor email after committed
// scheduling changes. Delivery is best-effort: outcomes are surfaced to the
// caller, never raised as request failures.
package notify

import (
	"context"

	"github.com/medconnect/scheduling-api/pkg/logging"
)

// SMSResult is the provider's outcome for one accepted message.
type SMSResult struct {
	SID string
}

// SMSSender sends SMS messages to patients.
// Implementations can be swapped (Twilio-style gateway, stub) without
// changing callers.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (SMSResult, error)
}

// StubSMSSender is a no-op sender for testing or when SMS is disabled.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) (SMSResult, error) {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return SMSResult{SID: "stub"}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ SMSSender = (*StubSMSSender)(nil)
