package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSink texts the sales team via Twilio when a lead reaches a notable
// stage.
type SMSSink struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewSMSSink creates a Twilio-backed SMS sink.
func NewSMSSink(accountSID, authToken, from, to string) (*SMSSink, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token must be provided")
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("twilio from and to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSSink{client: client, from: from, to: to}, nil
}

// Name identifies the sink in logs.
func (s *SMSSink) Name() string {
	return "sms"
}

// Deliver sends a short text with the lead summary.
func (s *SMSSink) Deliver(ctx context.Context, n Notification) error {
	body := fmt.Sprintf("New lead reached %s (thread %s). %s", n.StageReached, n.ThreadID, n.Summary)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS notification: %w", err)
	}
	return nil
}
