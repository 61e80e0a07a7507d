// Package notifier delivers incident alerts to chat.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// WebhookNotifier posts Slack-compatible {"text": ...} messages.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier for the incoming-webhook url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	body, err := json.Marshal(webhookPayload{Text: Format(msg)})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes alerts to the log. It is used when no webhook is set.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.logger.Info(msg.Title,
		"service_name", msg.ServiceName,
		"log_hash", msg.LogHash,
		"error_code", msg.ErrorCode,
		"repeat_count", msg.RepeatCount,
		"impacted_hosts", msg.ImpactedHostCount,
		"summary", msg.Summary,
	)
	return nil
}

// Format renders the chat text for an alert.
func Format(msg domain.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* [%s]\n", msg.Title, msg.ServiceName)
	if msg.ErrorCode != "" {
		fmt.Fprintf(&b, "code: %s\n", msg.ErrorCode)
	}
	fmt.Fprintf(&b, "hosts: %d, repeats: %d\n", msg.ImpactedHostCount, msg.RepeatCount)
	fmt.Fprintf(&b, "hash: %s\n", msg.LogHash)
	b.WriteString(msg.Summary)
	return b.String()
}
