// Package notifier pushes flag configuration changes to interested
// parties: webhooks, Slack channels, or the process log.
package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
)

const sendTimeout = 10 * time.Second

// A Notifier delivers a configuration diff to one destination.
type Notifier interface {
	Notify(ctx context.Context, diff Diff) error
}

// NotifyAll fans a diff out to every notifier and joins the failures.
// An empty diff is not delivered.
func NotifyAll(ctx context.Context, notifiers []Notifier, diff Diff) error {
	if diff.Empty() {
		return nil
	}
	var errs []error
	for _, n := range notifiers {
		if err := n.Notify(ctx, diff); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Webhook POSTs the diff as JSON. When Secret is set, the request
// carries an X-Hub-Signature-256 header with the HMAC-SHA256 of the
// body so receivers can authenticate the sender.
type Webhook struct {
	EndpointURL string
	Secret      string
	Headers     map[string]string
	Meta        map[string]string

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

type webhookPayload struct {
	Meta  map[string]string `json:"meta,omitempty"`
	Flags Diff              `json:"flags"`
}

func (w *Webhook) Notify(ctx context.Context, diff Diff) error {
	body, err := json.Marshal(webhookPayload{Meta: w.Meta, Flags: diff})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	if w.Secret != "" {
		req.Header.Set("X-Hub-Signature-256", "sha256="+sign(body, w.Secret))
	}

	return send(w.Client, req, w.EndpointURL)
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Slack posts a change summary to an incoming webhook URL.
type Slack struct {
	WebhookURL string

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

func (s *Slack) Notify(ctx context.Context, diff Diff) error {
	summary := fmt.Sprintf("Flag configuration changed: %d added, %d removed, %d updated",
		len(diff.Added), len(diff.Removed), len(diff.Updated))

	var details string
	for _, key := range diff.Keys() {
		switch {
		case hasKey(diff.Added, key):
			details += fmt.Sprintf("• `%s` added\n", key)
		case hasKey(diff.Removed, key):
			details += fmt.Sprintf("• `%s` removed\n", key)
		default:
			details += fmt.Sprintf("• `%s` updated\n", key)
		}
	}

	payload := map[string]any{
		"text": summary,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": "*" + summary + "*\n" + details},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return send(s.Client, req, "slack webhook")
}

func hasKey[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}

// Log writes a line per changed flag to the given logger.
type Log struct {
	Logger *charmlog.Logger
}

func (l *Log) Notify(ctx context.Context, diff Diff) error {
	for key := range diff.Added {
		l.Logger.Info("flag added", "key", key)
	}
	for key := range diff.Removed {
		l.Logger.Info("flag removed", "key", key)
	}
	for key := range diff.Updated {
		l.Logger.Info("flag updated", "key", key)
	}
	return nil
}

func send(client *http.Client, req *http.Request, target string) error {
	if client == nil {
		client = &http.Client{Timeout: sendTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify %s: status %d", target, resp.StatusCode)
	}
	return nil
}
