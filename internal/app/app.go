// Package app wires the voicebot subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/RupeekSJ/ai-calling-Somil/internal/config"
	"github.com/RupeekSJ/ai-calling-Somil/internal/dialer"
	"github.com/RupeekSJ/ai-calling-Somil/internal/dialog"
	"github.com/RupeekSJ/ai-calling-Somil/internal/health"
	"github.com/RupeekSJ/ai-calling-Somil/internal/intent"
	"github.com/RupeekSJ/ai-calling-Somil/internal/observe"
	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
	"github.com/RupeekSJ/ai-calling-Somil/internal/session"
	"github.com/RupeekSJ/ai-calling-Somil/internal/transport"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
	sarvamstt "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/sarvam"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/vad"
)

// DefaultMaxCalls bounds concurrent calls per instance. Each call costs a
// goroutine, an audio buffer, and provider quota.
const DefaultMaxCalls = 64

// Providers holds the speech providers resolved from the config registry.
type Providers struct {
	STT stt.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	met       *observe.Metrics
	scr       *script.Script

	calls      *CallManager
	originator dialer.Originator
	httpServer *http.Server

	otelShutdown func(context.Context) error

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithMetrics injects a metrics bundle instead of building one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.met = m }
}

// WithScript injects a call script instead of loading one from config.
func WithScript(s *script.Script) Option {
	return func(a *App) { a.scr = s }
}

// WithOriginator enables the outbound dial endpoint, backed by the given
// originator. Dialing stays disabled when no originator is supplied.
func WithOriginator(d dialer.Originator) Option {
	return func(a *App) { a.originator = d }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		calls:     NewCallManager(DefaultMaxCalls),
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	if a.scr == nil {
		scr, err := loadScript(cfg.Script.Path)
		if err != nil {
			return nil, err
		}
		a.scr = scr
	}

	if a.met == nil {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.otelShutdown = shutdown

		met, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.met = met
	}

	a.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.met)(a.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func loadScript(path string) (*script.Script, error) {
	if path == "" {
		return script.Default(), nil
	}
	scr, err := script.Load(path)
	if err != nil {
		return nil, fmt.Errorf("app: load script: %w", err)
	}
	return scr, nil
}

// sessionFactory builds one session per call. Dialog state is per call; the
// classifier and script are shared and read-only after construction.
func (a *App) sessionFactory() transport.SessionFactory {
	classifier := intent.New(a.scr)

	return func(start transport.CallStart, conn session.Transport) (*session.Session, error) {
		machine := dialog.New(a.scr,
			dialog.WithMaxFailures(a.cfg.Dialog.MaxFailures),
			dialog.WithFailureCooldown(time.Duration(a.cfg.Dialog.FailureCooldownMs)*time.Millisecond),
		)

		sess, err := session.New(
			start.CallID,
			a.sessionConfig(),
			conn,
			a.providers.STT,
			a.providers.TTS,
			machine,
			classifier,
			vad.EnergyEngine{},
			a.log.With(slog.String("call_id", start.CallID)),
			a.met,
		)
		if err != nil {
			return nil, err
		}

		info := CallInfo{CallID: start.CallID, From: start.From, StartedAt: time.Now()}
		if err := a.calls.Add(info, sess); err != nil {
			sess.Close(context.WithoutCancel(context.Background()))
			return nil, err
		}
		return sess, nil
	}
}

func (a *App) sessionConfig() session.Config {
	cfg := a.cfg
	return session.Config{
		WireEncoding: cfg.Audio.WireEncoding,
		WireRate:     cfg.Audio.WireRate,
		PCMRate:      cfg.Audio.PCMRate,
		FrameMs:      cfg.Audio.FrameMs,
		ChunkMs:      cfg.Audio.ChunkMs,
		VAD: vad.Config{
			SampleRate:      cfg.Audio.PCMRate,
			FrameSizeMs:     cfg.Audio.FrameMs,
			EnergyThreshold: cfg.VAD.EnergyThreshold,
			MinSpeechFrames: cfg.VAD.MinSpeechFrames,
			SilenceFrames:   cfg.VAD.SilenceFrames,
		},
		MinUtteranceMs: cfg.Audio.MinUtteranceMs,
		MaxUtteranceMs: cfg.Audio.MaxUtteranceMs,
		STTTimeout:     providerTimeout(cfg.Providers.STT.TimeoutMs),
		TTSTimeout:     providerTimeout(cfg.Providers.TTS.TimeoutMs),
		Language:       a.scr.Language,
		Voice:          cfg.Providers.TTS.Voice,
		STTName:        cfg.Providers.STT.Name,
		TTSName:        cfg.Providers.TTS.Name,
	}
}

func providerTimeout(ms int) time.Duration {
	if ms <= 0 {
		return 15 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// routes assembles the HTTP mux: media stream, handshake, dialing, health,
// metrics, and call admin.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	wsServer := transport.NewServer(a.sessionFactory(), a.log,
		transport.WithCallEndHook(a.calls.Remove),
	)
	mux.Handle(a.cfg.Server.WSPath, wsServer)
	mux.Handle("POST /exotel/voicebot", transport.HandshakeHandler(a.cfg.Server.PublicHost, a.cfg.Server.WSPath))
	mux.HandleFunc("GET /exotel/voicebot", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","message":"voicebot endpoint reachable"}`)
	})
	mux.HandleFunc("GET /exoml/outbound.xml", a.handleExoML)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	if a.originator != nil {
		mux.HandleFunc("POST /dial", a.handleDial)
	}

	hh := health.New(a.readinessChecks()...)
	hh.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /calls", a.calls.Handler())

	return mux
}

// readinessChecks probes whatever provider endpoints the config names.
func (a *App) readinessChecks() []health.Checker {
	var checks []health.Checker
	if u := providerProbeURL(a.cfg.Providers.STT); u != "" {
		checks = append(checks, health.Endpoint("stt", u))
	}
	if u := providerProbeURL(a.cfg.Providers.TTS); u != "" {
		checks = append(checks, health.Endpoint("tts", u))
	}
	return checks
}

func providerProbeURL(entry config.ProviderEntry) string {
	if entry.BaseURL != "" {
		return entry.BaseURL
	}
	if entry.Name == "sarvam" {
		return sarvamstt.DefaultBaseURL
	}
	return ""
}

// handleExoML serves a minimal call flow document. Production accounts host
// the real flow (with the voicebot applet) on the provider's dashboard.
func (a *App) handleExoML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>Connecting you to the Rupeek voice assistant.</Say>
  <Hangup/>
</Response>
`)
}

// handleDial forwards an outbound call request to the injected originator.
func (a *App) handleDial(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To      string `json:"to"`
		From    string `json:"from"`
		FlowURL string `json:"exoml_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if body.To == "" || body.From == "" || body.FlowURL == "" {
		http.Error(w, `{"error":"to, from, and exoml_url are required"}`, http.StatusBadRequest)
		return
	}

	call, err := a.originator.Originate(r.Context(), dialer.CallRequest{
		To:      body.To,
		From:    body.From,
		FlowURL: body.FlowURL,
	})
	if err != nil {
		a.log.Error("originate failed", slog.String("to", body.To), slog.String("error", err.Error()))
		http.Error(w, `{"error":"originate failed"}`, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(struct {
		OK   bool        `json:"ok"`
		Call dialer.Call `json:"call"`
	}{OK: true, Call: *call})
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server listening",
			slog.String("addr", a.cfg.Server.ListenAddr),
			slog.String("ws_path", a.cfg.Server.WSPath),
		)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown drains active calls and flushes telemetry. Safe to call more than
// once; later calls return the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.calls.CloseAll(ctx)

		var errs []error
		if err := a.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		if a.otelShutdown != nil {
			if err := a.otelShutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}
