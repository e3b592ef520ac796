package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Slack mirrors every notification into one incoming webhook, whatever the
// subscriber. The owning subscriber is shown in a context line.
type Slack struct {
	Webhook  string
	Username string
	Client   *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook:  webhook,
		Username: "domainwatch",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text     string       `json:"text"` // fallback for notifications
	Username string       `json:"username,omitempty"`
	Blocks   []slackBlock `json:"blocks"`
}

func slackPayload(username, subscriberID, text string) slackMessage {
	icon := ":red_circle:"
	if strings.Contains(text, " is UP ") {
		icon = ":large_green_circle:"
	}
	return slackMessage{
		Text:     text,
		Username: username,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: icon + " *" + text + "*"}},
			{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: "subscriber `" + subscriberID + "`"}}},
		},
	}
}

func (s *Slack) Notify(ctx context.Context, subscriberID, text string) error {
	body, err := json.Marshal(slackPayload(s.Username, subscriberID, text))
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
