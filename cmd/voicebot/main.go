// Command voicebot is the entry point for the Rupeek outbound calling server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/internal/app"
	"github.com/RupeekSJ/ai-calling-Somil/internal/config"
	"github.com/RupeekSJ/ai-calling-Somil/internal/resilience"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
	oaistt "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/openai"
	sarvamstt "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/sarvam"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
	oaitts "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/openai"
	sarvamtts "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/sarvam"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicebot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicebot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voicebot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Log level applies immediately; anything needing a restart is logged so
	// operators know the edit did not take effect.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.DialogChanged || d.VADChanged || d.ScriptChanged {
			slog.Info("dialog/vad/script tuning changed; applies to new calls after restart")
		}
		if d.RestartRequired {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("sarvam", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sarvamstt.Option
		if entry.BaseURL != "" {
			opts = append(opts, sarvamstt.WithBaseURL(entry.BaseURL))
		}
		if entry.TimeoutMs > 0 {
			opts = append(opts, sarvamstt.WithTimeout(time.Duration(entry.TimeoutMs)*time.Millisecond))
		}
		return sarvamstt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		if entry.TimeoutMs > 0 {
			opts = append(opts, oaistt.WithTimeout(time.Duration(entry.TimeoutMs)*time.Millisecond))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("sarvam", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []sarvamtts.Option
		if entry.BaseURL != "" {
			opts = append(opts, sarvamtts.WithBaseURL(entry.BaseURL))
		}
		if entry.TimeoutMs > 0 {
			opts = append(opts, sarvamtts.WithTimeout(time.Duration(entry.TimeoutMs)*time.Millisecond))
		}
		return sarvamtts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if entry.TimeoutMs > 0 {
			opts = append(opts, oaitts.WithTimeout(time.Duration(entry.TimeoutMs)*time.Millisecond))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// When a fallback entry is configured, the primary is wrapped in a fallback
// group with a per-provider circuit breaker.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = p
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if entry := cfg.Providers.STTFallback; entry != nil {
		fallback, err := reg.CreateSTT(*entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback provider %q: %w", entry.Name, err)
		}
		group := resilience.NewSTTFallback(p, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		group.AddFallback(entry.Name, fallback)
		ps.STT = group
		slog.Info("provider fallback enabled", "kind", "stt", "name", entry.Name)
	}

	q, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = q
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if entry := cfg.Providers.TTSFallback; entry != nil {
		fallback, err := reg.CreateTTS(*entry)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback provider %q: %w", entry.Name, err)
		}
		group := resilience.NewTTSFallback(q, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		group.AddFallback(entry.Name, fallback)
		ps.TTS = group
		slog.Info("provider fallback enabled", "kind", "tts", "name", entry.Name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voicebot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printValue("Wire codec", fmt.Sprintf("%s @ %d Hz", cfg.Audio.WireEncoding, cfg.Audio.WireRate))
	printValue("Listen addr", cfg.Server.ListenAddr)
	printValue("Public host", cfg.Server.PublicHost)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printValue(kind, value)
}

func printValue(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
