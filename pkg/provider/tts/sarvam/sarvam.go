// Package sarvam provides a TTS provider backed by the Sarvam Bulbul API.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
)

// DefaultModel is the default Sarvam text-to-speech model.
const DefaultModel = "bulbul:v2"

// DefaultVoice is the default Bulbul speaker.
const DefaultVoice = "anushka"

// DefaultBaseURL is the default Sarvam API base URL.
const DefaultBaseURL = "https://api.sarvam.ai"

// DefaultTimeout bounds a single synthesis request.
const DefaultTimeout = 15 * time.Second

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the Sarvam text-to-speech API.
// The API returns base64-encoded WAV clips; the provider strips the
// container and resamples to the requested rate.
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

// New constructs a new Sarvam TTS Provider.
// If model is empty, DefaultModel (bulbul:v2) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sarvam tts: apiKey must not be empty")
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

// synthesizeRequest is the Sarvam text-to-speech request body.
type synthesizeRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
	Model              string `json:"model"`
	SpeechSampleRate   int    `json:"speech_sample_rate,omitempty"`
}

// synthesizeResponse is the subset of the Sarvam response body we consume.
type synthesizeResponse struct {
	Audios []string `json:"audios"`
}

// Transcribed in the Sarvam docs as the rates Bulbul can emit natively.
var nativeRates = map[int]bool{8000: true, 16000: true, 22050: true, 24000: true}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("sarvam tts: text must not be empty")
	}
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("sarvam tts: sample rate must be positive, got %d", req.SampleRate)
	}

	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	language := req.Language
	if language == "" {
		language = "en-IN"
	}
	body := synthesizeRequest{
		Text:               req.Text,
		TargetLanguageCode: language,
		Speaker:            voice,
		Model:              p.model,
	}
	if nativeRates[req.SampleRate] {
		body.SpeechSampleRate = req.SampleRate
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/text-to-speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-subscription-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sarvam tts: synthesize: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("sarvam tts: decode response: %w", err)
	}
	if len(parsed.Audios) == 0 || parsed.Audios[0] == "" {
		return nil, fmt.Errorf("sarvam tts: empty audio in response")
	}

	wav, err := base64.StdEncoding.DecodeString(parsed.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("sarvam tts: decode audio: %w", err)
	}
	rate := audio.WAVSampleRate(wav)
	pcm := audio.TrimWAV(wav)
	if rate == 0 {
		// Raw PCM without a header arrives at the rate we asked for.
		rate = req.SampleRate
	}
	if rate != req.SampleRate {
		pcm = audio.ResampleMono16(pcm, rate, req.SampleRate)
	}
	return pcm, nil
}
