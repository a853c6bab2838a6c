// Package monitoring delivers fire-and-forget operational reports to an
// external collector. Delivery must never block or fail the caller: every
// send is bounded by a short timeout and errors are swallowed after logging.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// reportTimeout is the hard abort on a single delivery so a slow collector
// can never stall request handling.
const reportTimeout = time.Second

// Reporter sends an event with optional error and context fields.
type Reporter interface {
	Report(ctx context.Context, event string, err error, fields map[string]any)
}

// WebhookReporter POSTs reports as JSON to a collector URL.
type WebhookReporter struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookReporter creates a reporter for the given collector URL.
func NewWebhookReporter(url string, logger *slog.Logger) *WebhookReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookReporter{
		url:    url,
		client: &http.Client{Timeout: reportTimeout},
		logger: logger,
	}
}

type reportPayload struct {
	Event      string         `json:"event"`
	Error      string         `json:"error,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	ReportedAt time.Time      `json:"reportedAt"`
}

// Report delivers one event. The parent context's cancellation is honored,
// additionally capped at reportTimeout. Failures are logged at Debug and
// dropped.
func (r *WebhookReporter) Report(ctx context.Context, event string, reportErr error, fields map[string]any) {
	payload := reportPayload{
		Event:      event,
		Context:    fields,
		ReportedAt: time.Now().UTC(),
	}
	if reportErr != nil {
		payload.Error = reportErr.Error()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Debug("monitoring payload marshal failed", "event", event, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		r.logger.Debug("monitoring request build failed", "event", event, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("monitoring delivery failed", "event", event, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Debug("monitoring collector rejected report",
			"event", event,
			"status", resp.StatusCode,
		)
	}
}

// NopReporter discards every report. Used when no collector is configured.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(context.Context, string, error, map[string]any) {}
