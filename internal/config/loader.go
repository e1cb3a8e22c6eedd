package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"sarvam", "openai", "mock"},
	"tts": {"sarvam", "openai", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every optional field set to its default.
// The result still requires provider API keys before use.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.WSPath == "" {
		cfg.Server.WSPath = "/ws"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "sarvam"
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "sarvam"
	}
	if cfg.Audio.WireEncoding == "" {
		cfg.Audio.WireEncoding = "pcm16"
	}
	if cfg.Audio.WireRate == 0 {
		cfg.Audio.WireRate = 8000
	}
	if cfg.Audio.PCMRate == 0 {
		cfg.Audio.PCMRate = 16000
	}
	if cfg.Audio.FrameMs == 0 {
		cfg.Audio.FrameMs = 20
	}
	if cfg.Audio.ChunkMs == 0 {
		cfg.Audio.ChunkMs = 20
	}
	if cfg.Audio.MinUtteranceMs == 0 {
		cfg.Audio.MinUtteranceMs = 200
	}
	if cfg.Audio.MaxUtteranceMs == 0 {
		cfg.Audio.MaxUtteranceMs = 30000
	}
	if cfg.VAD.EnergyThreshold == 0 {
		cfg.VAD.EnergyThreshold = 500
	}
	if cfg.VAD.MinSpeechFrames == 0 {
		cfg.VAD.MinSpeechFrames = 3
	}
	if cfg.VAD.SilenceFrames == 0 {
		cfg.VAD.SilenceFrames = 30
	}
	if cfg.Dialog.MaxFailures == 0 {
		cfg.Dialog.MaxFailures = 3
	}
	if cfg.Dialog.FailureCooldownMs == 0 {
		cfg.Dialog.FailureCooldownMs = 2000
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PublicHost == "" {
		slog.Warn("server.public_host is empty; the handshake endpoint will return an unusable URL")
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.STT.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("providers.stt.timeout_ms %d is negative", cfg.Providers.STT.TimeoutMs))
	}
	if cfg.Providers.TTS.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("providers.tts.timeout_ms %d is negative", cfg.Providers.TTS.TimeoutMs))
	}
	if fb := cfg.Providers.STTFallback; fb != nil {
		validateProviderName("stt", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallback.name is required when stt_fallback is set"))
		}
		if fb.TimeoutMs < 0 {
			errs = append(errs, fmt.Errorf("providers.stt_fallback.timeout_ms %d is negative", fb.TimeoutMs))
		}
	}
	if fb := cfg.Providers.TTSFallback; fb != nil {
		validateProviderName("tts", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.tts_fallback.name is required when tts_fallback is set"))
		}
		if fb.TimeoutMs < 0 {
			errs = append(errs, fmt.Errorf("providers.tts_fallback.timeout_ms %d is negative", fb.TimeoutMs))
		}
	}

	// Audio
	if !cfg.Audio.WireEncoding.IsValid() {
		errs = append(errs, fmt.Errorf("audio.wire_encoding %q is invalid; valid values: mulaw, pcm16", cfg.Audio.WireEncoding))
	}
	if cfg.Audio.WireRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.wire_rate %d must be positive", cfg.Audio.WireRate))
	}
	if cfg.Audio.PCMRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.pcm_rate %d must be positive", cfg.Audio.PCMRate))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d must be positive", cfg.Audio.FrameMs))
	}
	if cfg.Audio.ChunkMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_ms %d must be positive", cfg.Audio.ChunkMs))
	}
	if cfg.Audio.MinUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("audio.min_utterance_ms %d is negative", cfg.Audio.MinUtteranceMs))
	}
	if cfg.Audio.MaxUtteranceMs > 0 && cfg.Audio.MaxUtteranceMs <= cfg.Audio.MinUtteranceMs {
		errs = append(errs, fmt.Errorf("audio.max_utterance_ms %d must exceed min_utterance_ms %d", cfg.Audio.MaxUtteranceMs, cfg.Audio.MinUtteranceMs))
	}

	// VAD
	if cfg.VAD.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("vad.energy_threshold %.1f is negative", cfg.VAD.EnergyThreshold))
	}
	if cfg.VAD.MinSpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.min_speech_frames %d is negative", cfg.VAD.MinSpeechFrames))
	}
	if cfg.VAD.SilenceFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.silence_frames %d is negative", cfg.VAD.SilenceFrames))
	}

	// Dialog
	if cfg.Dialog.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("dialog.max_failures %d is negative", cfg.Dialog.MaxFailures))
	}
	if cfg.Dialog.FailureCooldownMs < 0 {
		errs = append(errs, fmt.Errorf("dialog.failure_cooldown_ms %d is negative", cfg.Dialog.FailureCooldownMs))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
