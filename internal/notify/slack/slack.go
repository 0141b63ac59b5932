// Package slack posts triage policy audit messages to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/costguard/internal/actuate"
)

const httpTimeout = 10 * time.Second

// Notifier sends policy application events to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, PolicyApplied
// is a no-op. A nil logger falls back to Nop.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// PolicyApplied posts an audit message for an applied triage policy.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) PolicyApplied(ctx context.Context, event *actuate.PolicyEvent) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(event)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack audit message sent",
		"policy", event.PolicyName,
		"resource", event.ResourceARN,
	)
	return nil
}

func buildMessage(e *actuate.PolicyEvent) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(e),
			{"type": "divider"},
			fieldsBlock(e),
			{"type": "divider"},
			contextBlock(),
		},
	}
}

func headerBlock(e *actuate.PolicyEvent) map[string]any {
	emoji := statusEmoji(e.Status)
	text := fmt.Sprintf("%s Triage Policy Applied: %s", emoji, e.PolicyName)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(e *actuate.PolicyEvent) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Resource:* %s", e.ResourceARN),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Policy:* %s", e.PolicyName),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", e.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", e.DurationS),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func contextBlock() map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("costguard • %s", time.Now().UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func statusEmoji(status string) string {
	if status == actuate.StatusSuccess {
		return "\U0001f7e2" // green circle
	}
	return "\U0001f534" // red circle
}
