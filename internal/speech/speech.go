// Package speech transcribes WhatsApp voice notes through the Google
// Cloud Speech-to-Text REST API so they can enter the conversation flow as
// plain text.
package speech

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

	"github.com/iae-bsb/iae-bot/internal/models"
)

// Transcriber converts an inbound audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *models.Audio) (string, error)
}

// Opts holds configuration for the Google transcriber.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Language   string
}

// Option configures the Google transcriber.
type Option func(*Opts)

// WithAPIKey sets the Speech API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithLanguage overrides the recognition language.
func WithLanguage(lang string) Option {
	return func(o *Opts) { o.Language = lang }
}

// Google is the Speech-to-Text REST client. WhatsApp voice notes arrive as
// Opus in an OGG container at 48 kHz; the recognition config declares that
// only when the payload's mime type says ogg.
type Google struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	language   string
}

// NewGoogle creates a Speech-to-Text client.
func NewGoogle(opts ...Option) (*Google, error) {
	o := Opts{
		BaseURL:  "https://speech.googleapis.com",
		Language: "pt-BR",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("speech: API key is required")
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Google{
		apiKey:     o.APIKey,
		baseURL:    o.BaseURL,
		httpClient: o.HTTPClient,
		language:   o.Language,
	}, nil
}

type recognizeRequest struct {
	Config struct {
		Encoding                   string `json:"encoding,omitempty"`
		SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
		LanguageCode               string `json:"languageCode"`
		EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe implements Transcriber.
func (g *Google) Transcribe(ctx context.Context, audio *models.Audio) (string, error) {
	if audio == nil || audio.Base64 == "" {
		return "", fmt.Errorf("speech: empty audio payload")
	}

	var reqBody recognizeRequest
	// WhatsApp voice notes come as Opus in an OGG container at 48 kHz; for
	// other containers the encoding is left for the service to detect.
	if strings.Contains(strings.ToLower(audio.MimeType), "ogg") {
		reqBody.Config.Encoding = "OGG_OPUS"
		reqBody.Config.SampleRateHertz = 48000
	}
	reqBody.Config.LanguageCode = g.language
	reqBody.Config.EnableAutomaticPunctuation = true
	reqBody.Audio.Content = audio.Base64

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("speech: failed to encode request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/speech:recognize?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("speech: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speech: failed to read response: %w", err)
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("speech: failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("speech: recognition failed: %s", parsed.Error.Message)
	}

	var sb strings.Builder
	for _, r := range parsed.Results {
		if len(r.Alternatives) > 0 {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(r.Alternatives[0].Transcript)
		}
	}
	transcript := strings.TrimSpace(sb.String())
	slog.Debug("speech.Transcribe completed", "chars", len(transcript))
	return transcript, nil
}
