// This file implements the Evolution API gateway transport. Inbound events
// arrive through the HTTP webhook; outbound messages go through the gateway's
// REST endpoints with typing simulation, bounded retry and capability
// auto-detection.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// sendAttempts is how many times a text send is tried before giving up.
const sendAttempts = 3

// sendBackoffStep grows the wait between send attempts linearly.
const sendBackoffStep = 400 * time.Millisecond

// ApologyMessage is the canned fallback sent when every delivery attempt of
// the real reply failed.
const ApologyMessage = "Opa, deu uma engasgada aqui do meu lado. 😅 Pode repetir pra mim?"

// EvolutionOpts holds configuration for the Evolution transport.
type EvolutionOpts struct {
	BaseURL    string
	APIKey     string
	Instance   string
	HTTPClient *http.Client
}

// EvolutionOption configures the Evolution transport.
type EvolutionOption func(*EvolutionOpts)

// WithEvolutionBaseURL sets the gateway base URL.
func WithEvolutionBaseURL(base string) EvolutionOption {
	return func(o *EvolutionOpts) { o.BaseURL = base }
}

// WithEvolutionAPIKey sets the gateway API key.
func WithEvolutionAPIKey(key string) EvolutionOption {
	return func(o *EvolutionOpts) { o.APIKey = key }
}

// WithEvolutionInstance sets the gateway instance name.
func WithEvolutionInstance(name string) EvolutionOption {
	return func(o *EvolutionOpts) { o.Instance = name }
}

// WithEvolutionHTTPClient overrides the HTTP client.
func WithEvolutionHTTPClient(c *http.Client) EvolutionOption {
	return func(o *EvolutionOpts) { o.HTTPClient = c }
}

// EvolutionService sends messages through an Evolution API gateway. Not
// every gateway build supports presence or read receipts; each capability is
// disabled after the first 400/404 so later sends skip the extra round trip.
type EvolutionService struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client

	presenceSupported    atomic.Bool
	readReceiptSupported atomic.Bool

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewEvolutionService creates an Evolution transport from options.
func NewEvolutionService(opts ...EvolutionOption) (*EvolutionService, error) {
	var o EvolutionOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.BaseURL == "" || o.APIKey == "" || o.Instance == "" {
		return nil, fmt.Errorf("messaging: Evolution base URL, API key and instance are required")
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	s := &EvolutionService{
		baseURL:    strings.TrimRight(o.BaseURL, "/"),
		apiKey:     o.APIKey,
		instance:   o.Instance,
		httpClient: o.HTTPClient,
		sleep:      time.Sleep,
	}
	s.presenceSupported.Store(true)
	s.readReceiptSupported.Store(true)
	return s, nil
}

// ValidateAndCanonicalizeRecipient accepts a phone number or JID and returns
// the canonical JID form.
func (s *EvolutionService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	number := jidNumber(recipient)
	if len(number) < 8 {
		return "", fmt.Errorf("messaging: invalid recipient %q: %w", recipient, models.ErrEmptyRecipient)
	}
	return number + "@s.whatsapp.net", nil
}

// jidNumber strips a JID suffix and any non-digits, leaving the bare number.
func jidNumber(recipient string) string {
	if at := strings.IndexByte(recipient, '@'); at >= 0 {
		recipient = recipient[:at]
	}
	var b strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SendMessage delivers a text reply: presence first, a typing pause sized to
// the message, then the send with bounded retry. When every attempt fails it
// tries a single canned apology so the user is not left hanging, and reports
// the original error.
func (s *EvolutionService) SendMessage(ctx context.Context, to, body string) error {
	if body == "" {
		return models.ErrEmptyMessageBody
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	number := jidNumber(canonical)

	delay := TypingDelay(len(body))
	s.sendPresence(ctx, number, delay)
	s.sleep(delay)

	if err := s.sendTextWithRetry(ctx, number, body); err != nil {
		slog.Error("Evolution send failed after retries, sending apology", "to", number, "error", err)
		if apologyErr := s.sendText(ctx, number, ApologyMessage); apologyErr != nil {
			slog.Error("Evolution apology send failed", "to", number, "error", apologyErr)
		}
		return err
	}
	slog.Debug("Evolution message sent", "to", number, "chars", len(body))
	return nil
}

func (s *EvolutionService) sendTextWithRetry(ctx context.Context, number, body string) error {
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		err := s.sendText(ctx, number, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if attempt < sendAttempts {
			backoff := time.Duration(attempt) * sendBackoffStep
			slog.Debug("Evolution send retrying", "attempt", attempt, "backoff", backoff, "error", err)
			s.sleep(backoff)
		}
	}
	return lastErr
}

// httpStatusError marks gateway failures that carry an HTTP status, so the
// retry loop can tell transient from permanent.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bad gateway") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout")
}

func (s *EvolutionService) sendText(ctx context.Context, number, text string) error {
	payload := map[string]interface{}{
		"number": number,
		"text":   text,
	}
	return s.post(ctx, "/message/sendText/"+s.instance, payload)
}

// sendPresence shows the "composing" indicator. Best effort: a gateway that
// rejects the endpoint has the capability switched off for the process
// lifetime.
func (s *EvolutionService) sendPresence(ctx context.Context, number string, delay time.Duration) {
	if !s.presenceSupported.Load() {
		return
	}
	payload := map[string]interface{}{
		"number":   number,
		"delay":    delay.Milliseconds(),
		"presence": "composing",
	}
	if err := s.post(ctx, "/chat/sendPresence/"+s.instance, payload); err != nil {
		if isUnsupported(err) {
			slog.Info("Evolution presence endpoint unsupported, disabling", "error", err)
			s.presenceSupported.Store(false)
			return
		}
		slog.Debug("Evolution presence failed", "error", err)
	}
}

// MarkRead acknowledges an inbound message. Best effort with the same
// capability auto-disable as presence.
func (s *EvolutionService) MarkRead(ctx context.Context, from, messageID string) error {
	if !s.readReceiptSupported.Load() || messageID == "" {
		return nil
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"readMessages": []map[string]interface{}{
			{"remoteJid": canonical, "id": messageID, "fromMe": false},
		},
	}
	if err := s.post(ctx, "/chat/markMessageAsRead/"+s.instance, payload); err != nil {
		if isUnsupported(err) {
			slog.Info("Evolution read receipt endpoint unsupported, disabling", "error", err)
			s.readReceiptSupported.Store(false)
			return nil
		}
		slog.Debug("Evolution read receipt failed", "error", err)
	}
	return nil
}

func isUnsupported(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && (se.status == http.StatusBadRequest || se.status == http.StatusNotFound)
}

func (s *EvolutionService) post(ctx context.Context, path string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("messaging: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: string(body)}
	}
	return nil
}

// Start implements Service. The Evolution transport is webhook-driven, so
// there is no socket loop to run.
func (s *EvolutionService) Start(ctx context.Context) error { return nil }

// Stop implements Service.
func (s *EvolutionService) Stop() error { return nil }

// Events implements Service. Inbound traffic arrives through the webhook.
func (s *EvolutionService) Events() <-chan models.Event { return nil }
