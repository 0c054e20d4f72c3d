package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SlackSink posts a block-formatted message to a Slack incoming webhook.
type SlackSink struct {
	webhookURL   string
	dashboardURL string
	client       *http.Client
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string          `json:"type"`
	Text     *slackText      `json:"text,omitempty"`
	Elements []slackElement  `json:"elements,omitempty"`
}

type slackElement struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
	URL  string    `json:"url"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// NewSlackSink creates a Slack sink. dashboardURL is optional; when set,
// the message carries a button linking to the conversation.
func NewSlackSink(webhookURL, dashboardURL string) *SlackSink {
	return &SlackSink{
		webhookURL:   webhookURL,
		dashboardURL: dashboardURL,
		client:       &http.Client{},
	}
}

// Name identifies the sink in logs.
func (s *SlackSink) Name() string {
	return "slack"
}

// Deliver posts the notification to the Slack webhook.
func (s *SlackSink) Deliver(ctx context.Context, n Notification) error {
	message := slackMessage{
		Text: "New Hot Lead Ready to Book!",
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*New Lead Ready to Book Strategy Call*\n\n*Business Type:* %s\n*Timeline:* %s\n*Budget:* %s",
						orFallback(n.BusinessType, "unknown"),
						orFallback(n.Timeline, "not specified"),
						orFallback(n.Budget, "not specified")),
				},
			},
			{
				Type: "section",
				Text: &slackText{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Summary:* %s", n.Summary),
				},
			},
		},
	}

	if s.dashboardURL != "" {
		message.Blocks = append(message.Blocks, slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type: "button",
					Text: slackText{Type: "plain_text", Text: "View Conversation"},
					URL:  fmt.Sprintf("%s/conversations/%s", s.dashboardURL, n.ThreadID),
				},
			},
		})
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
