// Package sarvam provides an STT provider backed by the Sarvam Saarika API.
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
)

// DefaultModel is the default Sarvam speech-to-text model.
const DefaultModel = "saarika:v2.5"

// DefaultBaseURL is the default Sarvam API base URL.
const DefaultBaseURL = "https://api.sarvam.ai"

// DefaultTimeout bounds a single transcription request.
const DefaultTimeout = 15 * time.Second

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the Sarvam speech-to-text API.
// Utterance PCM is wrapped into a WAV container and uploaded as a
// multipart form, the way the API expects file input.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Sarvam API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client. It takes precedence over
// WithTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// New constructs a new Sarvam STT Provider.
// If model is empty, DefaultModel (saarika:v2.5) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sarvam stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.client
	if client == nil {
		timeout := cfg.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// transcribeResponse is the subset of the Sarvam response body we consume.
type transcribeResponse struct {
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	if len(req.PCM) == 0 {
		return "", nil
	}
	if req.SampleRate <= 0 {
		return "", fmt.Errorf("sarvam stt: sample rate must be positive, got %d", req.SampleRate)
	}

	wav := audio.EncodeWAV(req.PCM, req.SampleRate)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("sarvam stt: build form: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("sarvam stt: build form: %w", err)
	}
	if err := form.WriteField("model", p.model); err != nil {
		return "", fmt.Errorf("sarvam stt: build form: %w", err)
	}
	if req.Language != "" {
		if err := form.WriteField("language_code", req.Language); err != nil {
			return "", fmt.Errorf("sarvam stt: build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("sarvam stt: build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/speech-to-text", &body)
	if err != nil {
		return "", fmt.Errorf("sarvam stt: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("api-subscription-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sarvam stt: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sarvam stt: transcribe: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("sarvam stt: decode response: %w", err)
	}
	return parsed.Transcript, nil
}
