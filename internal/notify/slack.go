// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
)

const channelSlack = "slack"

// slackFieldsPerSection is Slack's limit on fields in one section block.
const slackFieldsPerSection = 10

// Slack delivers notifications to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	username   string
	channel    string
	client     *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// SlackOption configures a Slack notifier.
type SlackOption func(*Slack)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *Slack) { s.client = c }
}

// WithRateLimit overrides the send pacing (default one message per second).
func WithRateLimit(limit rate.Limit, burst int) SlackOption {
	return func(s *Slack) { s.limiter = rate.NewLimiter(limit, burst) }
}

// NewSlack creates a Slack notifier for cfg.SlackWebhookURL.
func NewSlack(cfg *config.NotifyConfig, opts ...SlackOption) *Slack {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Slack{
		webhookURL: cfg.SlackWebhookURL,
		username:   cfg.Username,
		channel:    cfg.Channel,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New returns a Slack notifier, or Nop when no webhook URL is configured.
func New(cfg *config.NotifyConfig) Notifier {
	if cfg.SlackWebhookURL == "" {
		logging.Info().Msg("Slack webhook not configured, notifications disabled")
		return Nop{}
	}
	return NewSlack(cfg)
}

// slackPayload is the Slack incoming webhook message structure.
type slackPayload struct {
	Channel   string       `json:"channel,omitempty"`
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
	Text      string       `json:"text"`
	Blocks    []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"` // plain_text or mrkdwn
	Text string `json:"text"`
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, title string, success bool, details []Field, errMsg string) {
	log := logging.Ctx(ctx)

	if err := s.limiter.Wait(ctx); err != nil {
		metrics.RecordNotification(channelSlack, "skipped")
		log.Warn().Err(err).Str("title", title).Msg("Slack notification skipped")
		return
	}

	if err := s.send(ctx, s.buildPayload(title, success, details, errMsg)); err != nil {
		metrics.RecordNotification(channelSlack, "error")
		log.Warn().Err(err).Str("title", title).Msg("Slack notification failed")
		return
	}
	metrics.RecordNotification(channelSlack, "success")
	log.Debug().Str("title", title).Msg("Slack notification sent")
}

func (s *Slack) buildPayload(title string, success bool, details []Field, errMsg string) slackPayload {
	status, emoji := "Success", ":white_check_mark:"
	if !success {
		status, emoji = "Failed", ":x:"
	}
	heading := fmt.Sprintf("%s: %s", title, status)

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: heading}},
	}

	for start := 0; start < len(details); start += slackFieldsPerSection {
		end := start + slackFieldsPerSection
		if end > len(details) {
			end = len(details)
		}
		fields := make([]slackText, 0, end-start)
		for _, d := range details[start:end] {
			fields = append(fields, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", d.Label, d.Value)})
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: fields})
	}

	if errMsg != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Error:*\n```" + Truncate(errMsg, MaxErrorLength) + "```"},
		})
	}

	blocks = append(blocks, slackBlock{
		Type:     "context",
		Elements: []slackText{{Type: "mrkdwn", Text: s.now().UTC().Format(time.RFC3339)}},
	})

	return slackPayload{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: emoji,
		Text:      heading,
		Blocks:    blocks,
	}
}

func (s *Slack) send(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
