package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Slack posts to an incoming webhook. The recipient is ignored; the webhook
// decides the channel.
type Slack struct {
	Webhook  string
	Username string
	Client   *http.Client
}

// NewSlack returns nil when webhook is empty.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook:  webhook,
		Username: "healthwatch",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Username    string            `json:"username,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Fallback string `json:"fallback"`
	Color    string `json:"color"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}

func slackColor(subject string) string {
	if strings.Contains(strings.ToUpper(subject), "DOWN") {
		return "danger"
	}
	return "warning"
}

func (s *Slack) Send(ctx context.Context, _ string, subject, body string) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	msg := slackMessage{
		Username: s.Username,
		Text:     "*" + subject + "*",
		Attachments: []slackAttachment{{
			Fallback: subject,
			Color:    slackColor(subject),
			Text:     body,
			Ts:       time.Now().Unix(),
		}},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(payload))
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
		// Slack explains rejections in a short plain-text body.
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack status %d: %s", resp.StatusCode, strings.TrimSpace(string(reason)))
	}
	return nil
}
