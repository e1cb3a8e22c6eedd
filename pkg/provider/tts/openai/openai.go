// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = string(oai.SpeechModelTTS1)

// DefaultVoice is the default OpenAI speaker.
const DefaultVoice = string(oai.AudioSpeechNewParamsVoiceAlloy)

// pcmRate is the fixed sample rate of the API's PCM response format.
const pcmRate = 24000

// maxClipBytes caps a single synthesized clip; a scripted reply is a few
// seconds of audio, so anything past a minute of 24 kHz PCM is a fault.
const maxClipBytes = 60 * pcmRate * 2

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech API. The API
// only emits 24 kHz PCM, so clips are resampled to the requested rate.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
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

// New constructs a new OpenAI TTS Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("openai tts: sample rate must be positive, got %d", req.SampleRate)
	}

	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("openai tts: empty audio in response")
	}
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}

	if req.SampleRate != pcmRate {
		pcm = audio.ResampleMono16(pcm, pcmRate, req.SampleRate)
	}
	return pcm, nil
}
