package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
)

// SignatureHeader carries the HMAC-SHA256 of the request body as
// "sha256=<hex digest>".
const SignatureHeader = "X-Vidforge-Signature"

const maxDeliveryAttempts = 3

// Event is the payload delivered when a render job reaches a terminal
// state.
type Event struct {
	JobID      string          `json:"jobId"`
	State      domain.JobState `json:"state"`
	Result     *domain.Result  `json:"result,omitempty"`
	Failure    *domain.Failure `json:"failure,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Dispatcher posts terminal job events to caller-supplied URLs. Delivery
// is best effort: failures are logged, never propagated to the render
// outcome.
type Dispatcher struct {
	client *http.Client
	secret string
	logger zerolog.Logger
}

func NewDispatcher(timeout time.Duration, secret string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		logger: logger,
	}
}

// Notify delivers the event to the URL, retrying transient failures a
// bounded number of times. A nil URL check is the caller's concern; an
// empty URL is a no-op.
func (d *Dispatcher) Notify(ctx context.Context, url string, event Event) {
	if url == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Err(err).Str("job_id", event.JobID).Msg("webhook: encode event")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if lastErr = d.post(ctx, url, body); lastErr == nil {
			d.logger.Info().Str("job_id", event.JobID).Str("url", url).Msg("webhook: delivered")
			return
		}
	}
	d.logger.Warn().Err(lastErr).Str("job_id", event.JobID).Str("url", url).
		Int("attempts", maxDeliveryAttempts).Msg("webhook: delivery gave up")
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set(SignatureHeader, Sign(d.secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: receiver returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the signature header value receivers verify the payload
// with: "sha256=" followed by the hex HMAC-SHA256 of the body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
