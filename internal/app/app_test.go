package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/RupeekSJ/ai-calling-Somil/internal/config"
	"github.com/RupeekSJ/ai-calling-Somil/internal/dialer"
	"github.com/RupeekSJ/ai-calling-Somil/internal/observe"
	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
	sttmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/mock"
	ttsmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return met
}

func newTestApp(t *testing.T, mutate func(*config.Config), extra ...Option) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Server.PublicHost = "bot.example.com"
	if mutate != nil {
		mutate(cfg)
	}

	opts := append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(testMetrics(t)),
		WithScript(script.Default()),
	}, extra...)
	a, err := New(context.Background(), cfg,
		&Providers{STT: &sttmock.Provider{}, TTS: &ttsmock.Provider{}},
		opts...,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestRootStatusRoute(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestHandshakeRoute(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/exotel/voicebot", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.URL != "wss://bot.example.com/ws" {
		t.Errorf("url = %q", body.URL)
	}
}

func TestHandshakeRouteGETProbe(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/exotel/voicebot")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHealthRoute(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, func(c *config.Config) {
		// No provider base URLs: readiness has no checkers and always passes.
		c.Providers.STT.Name = "mock"
		c.Providers.TTS.Name = "mock"
	})
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestCallsRouteEmpty(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/calls")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestDialRouteDisabledWithoutOriginator(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/dial", "application/json", strings.NewReader(`{"to":"+911234567890"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no originator is wired", resp.StatusCode)
	}
}

type fakeOriginator struct {
	got dialer.CallRequest
}

func (f *fakeOriginator) Originate(_ context.Context, req dialer.CallRequest) (*dialer.Call, error) {
	f.got = req
	return &dialer.Call{SID: "call-1", Status: "in-progress"}, nil
}

func TestDialRouteWithOriginator(t *testing.T) {
	t.Parallel()
	orig := &fakeOriginator{}
	a := newTestApp(t, nil, WithOriginator(orig))
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	payload := `{"to":"+911234567890","from":"08012345678","exoml_url":"https://bot.example.com/exoml/outbound.xml"}`
	resp, err := http.Post(srv.URL+"/dial", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		OK   bool `json:"ok"`
		Call struct {
			SID string `json:"SID"`
		} `json:"call"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK {
		t.Error("ok = false")
	}
	if orig.got.To != "+911234567890" {
		t.Errorf("to = %q", orig.got.To)
	}
	if orig.got.FlowURL == "" {
		t.Error("flow URL not forwarded")
	}
}

func TestDialRouteMissingFields(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil, WithOriginator(&fakeOriginator{}))
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/dial", "application/json", strings.NewReader(`{"to":"+911234567890"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestLoadScriptFallsBackToDefault(t *testing.T) {
	t.Parallel()
	scr, err := loadScript("")
	if err != nil {
		t.Fatalf("loadScript: %v", err)
	}
	if len(scr.Steps) == 0 {
		t.Error("default script should have steps")
	}
}

func TestLoadScriptMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := loadScript("/nonexistent/script.yaml"); err == nil {
		t.Error("expected error for missing script file")
	}
}
