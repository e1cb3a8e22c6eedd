// Package config provides the configuration schema, loader, and provider
// registry for the voicebot server.
package config

import "github.com/RupeekSJ/ai-calling-Somil/pkg/audio"

// LogLevel controls log verbosity for the voicebot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the voicebot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Script    ScriptConfig    `yaml:"script"`
}

// ServerConfig holds network and logging settings for the voicebot server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// PublicHost is the externally reachable hostname returned to the
	// telephony provider in the handshake (e.g., "bot.example.com").
	PublicHost string `yaml:"public_host"`

	// WSPath is the WebSocket media-stream path. Defaults to "/ws".
	WSPath string `yaml:"ws_path"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// speech stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`

	// STTFallback and TTSFallback, when set, are tried whenever the primary
	// provider fails or its circuit breaker is open.
	STTFallback *ProviderEntry `yaml:"stt_fallback"`
	TTSFallback *ProviderEntry `yaml:"tts_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "sarvam", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "saarika:v2.5", "whisper-1").
	Model string `yaml:"model"`

	// Voice is the provider-specific voice identifier for TTS providers.
	// Ignored for STT.
	Voice string `yaml:"voice"`

	// TimeoutMs bounds each provider request in milliseconds.
	// Zero means the provider's built-in default.
	TimeoutMs int `yaml:"timeout_ms"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AudioConfig describes the telephony wire format and the internal PCM format.
type AudioConfig struct {
	// WireEncoding is the codec on the media stream: "mulaw" or "pcm16".
	WireEncoding audio.Encoding `yaml:"wire_encoding"`

	// WireRate is the sample rate of wire audio in Hz (typically 8000).
	WireRate int `yaml:"wire_rate"`

	// PCMRate is the internal processing sample rate in Hz (typically 16000).
	PCMRate int `yaml:"pcm_rate"`

	// FrameMs is the duration of each inbound media frame in milliseconds.
	FrameMs int `yaml:"frame_ms"`

	// ChunkMs is the outbound playback chunk duration in milliseconds.
	ChunkMs int `yaml:"chunk_ms"`

	// MinUtteranceMs discards shorter sealed utterances as noise blips.
	MinUtteranceMs int `yaml:"min_utterance_ms"`

	// MaxUtteranceMs force-seals an utterance that exceeds this duration.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`
}

// VADConfig holds voice activity detection tuning. Zero values fall back to
// the detector defaults.
type VADConfig struct {
	// EnergyThreshold is the mean absolute 16-bit sample amplitude above
	// which a frame counts as speech.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// MinSpeechFrames is the number of consecutive speech frames required
	// before an utterance start is declared.
	MinSpeechFrames int `yaml:"min_speech_frames"`

	// SilenceFrames is the number of consecutive silence frames required
	// before an utterance end is declared.
	SilenceFrames int `yaml:"silence_frames"`
}

// DialogConfig tunes the dialog state machine.
type DialogConfig struct {
	// MaxFailures is the consecutive-failure count that triggers escalation.
	MaxFailures int `yaml:"max_failures"`

	// FailureCooldownMs debounces the failure counter: failures inside this
	// window count once.
	FailureCooldownMs int `yaml:"failure_cooldown_ms"`
}

// ScriptConfig locates the call script.
type ScriptConfig struct {
	// Path is the YAML script file. When empty, the built-in loan renewal
	// script is used.
	Path string `yaml:"path"`
}
