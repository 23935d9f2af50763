// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/czhaoca/pathfinder-sub009/internal/logging"
)

// Notifier delivers security alerts for critical events. Implementations
// register explicitly with the Service; there are no implicit global
// listeners.
type Notifier interface {
	// Name identifies the notifier in logs.
	Name() string

	// Enabled reports whether the notifier should receive alerts.
	Enabled() bool

	// Send delivers one alert. Errors are logged by the caller, never
	// propagated to Log callers.
	Send(ctx context.Context, alert *SecurityAlert) error
}

// LogNotifier writes alerts to the operational log. Always enabled; serves
// as the baseline alert sink when no external notifier is configured.
type LogNotifier struct{}

func (n *LogNotifier) Name() string  { return "log" }
func (n *LogNotifier) Enabled() bool { return true }

func (n *LogNotifier) Send(_ context.Context, alert *SecurityAlert) error {
	logging.Warn().
		Str("alert_id", alert.AlertID).
		Str("threat_type", string(alert.ThreatType)).
		Str("actor_id", alert.ActorID).
		Int("risk_score", alert.RiskScore).
		Msg(alert.Summary)
	return nil
}

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL         string            `koanf:"url"`
	Headers     map[string]string `koanf:"headers"`
	Enabled     bool              `koanf:"enabled"`
	RateLimitMs int               `koanf:"rate_limit_ms"`
}

// WebhookNotifier POSTs alerts to an external endpoint as JSON.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	enabled bool

	mu        sync.Mutex
	lastSent  time.Time
	rateLimit time.Duration
}

// webhookPayload is the JSON body sent to the webhook endpoint.
type webhookPayload struct {
	Alert     *SecurityAlert `json:"alert"`
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	rateLimit := time.Duration(cfg.RateLimitMs) * time.Millisecond
	if rateLimit == 0 {
		rateLimit = 500 * time.Millisecond
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		url:       cfg.URL,
		headers:   headers,
		enabled:   cfg.Enabled,
		rateLimit: rateLimit,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Enabled() bool {
	return n.enabled && n.url != ""
}

// Send POSTs the alert, dropping it if the rate limit has not elapsed since
// the previous delivery.
func (n *WebhookNotifier) Send(ctx context.Context, alert *SecurityAlert) error {
	n.mu.Lock()
	if time.Since(n.lastSent) < n.rateLimit {
		n.mu.Unlock()
		logging.Debug().Str("alert_id", alert.AlertID).Msg("webhook rate limited, dropping alert")
		return nil
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	body, err := json.Marshal(webhookPayload{
		Alert:     alert,
		EventType: "security_alert",
		Source:    "pathfinder",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Broadcaster pushes alerts to connected clients (WebSocket fan-out).
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// BroadcastNotifier adapts a Broadcaster into a Notifier.
type BroadcastNotifier struct {
	broadcaster Broadcaster
}

// NewBroadcastNotifier wraps a Broadcaster for alert delivery.
func NewBroadcastNotifier(b Broadcaster) *BroadcastNotifier {
	return &BroadcastNotifier{broadcaster: b}
}

func (n *BroadcastNotifier) Name() string  { return "broadcast" }
func (n *BroadcastNotifier) Enabled() bool { return n.broadcaster != nil }

func (n *BroadcastNotifier) Send(_ context.Context, alert *SecurityAlert) error {
	n.broadcaster.BroadcastJSON("security_alert", alert)
	return nil
}
