package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/internal/dialog"
	"github.com/RupeekSJ/ai-calling-Somil/internal/intent"
	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
	"github.com/RupeekSJ/ai-calling-Somil/internal/session"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	sttmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/mock"
	ttsmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/mock"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/vad"
)

type noopTransport struct{}

func (noopTransport) SendMedia(context.Context, string) error { return nil }
func (noopTransport) SendClear(context.Context) error         { return nil }
func (noopTransport) SendMark(context.Context, string) error  { return nil }
func (noopTransport) Hangup(context.Context) error            { return nil }

func newIdleSession(t *testing.T, id string) *session.Session {
	t.Helper()
	scr := script.Default()
	sess, err := session.New(
		id,
		session.Config{
			WireEncoding: audio.EncodingPCM16,
			WireRate:     16000,
			PCMRate:      16000,
			FrameMs:      20,
			ChunkMs:      20,
			VAD: vad.Config{
				SampleRate:      16000,
				FrameSizeMs:     20,
				EnergyThreshold: 500,
				MinSpeechFrames: 2,
				SilenceFrames:   3,
			},
			MinUtteranceMs: 20,
			MaxUtteranceMs: 10000,
			STTTimeout:     time.Second,
			TTSTimeout:     time.Second,
			Language:       "en-IN",
		},
		noopTransport{},
		&sttmock.Provider{},
		&ttsmock.Provider{},
		dialog.New(scr),
		intent.New(scr),
		vad.EnergyEngine{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		testMetrics(t),
	)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return sess
}

func TestCallManagerAddRemove(t *testing.T) {
	t.Parallel()
	cm := NewCallManager(0)

	cm.Add(CallInfo{CallID: "CA1", StartedAt: time.Now()}, newIdleSession(t, "CA1"))
	cm.Add(CallInfo{CallID: "CA2", StartedAt: time.Now()}, newIdleSession(t, "CA2"))
	if cm.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cm.Len())
	}

	cm.Remove("CA1")
	if cm.Len() != 1 {
		t.Errorf("Len = %d after remove, want 1", cm.Len())
	}

	// Removing an unknown ID is a no-op.
	cm.Remove("CA99")
	if cm.Len() != 1 {
		t.Errorf("Len = %d, want 1", cm.Len())
	}
}

func TestCallManagerLimit(t *testing.T) {
	t.Parallel()
	cm := NewCallManager(1)

	if err := cm.Add(CallInfo{CallID: "CA1"}, newIdleSession(t, "CA1")); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := cm.Add(CallInfo{CallID: "CA2"}, newIdleSession(t, "CA2"))
	if !errors.Is(err, ErrTooManyCalls) {
		t.Errorf("second Add: got %v, want ErrTooManyCalls", err)
	}

	// A duplicate SID replaces the stale entry even at the limit.
	if err := cm.Add(CallInfo{CallID: "CA1"}, newIdleSession(t, "CA1")); err != nil {
		t.Errorf("replacing Add: %v", err)
	}
	if cm.Len() != 1 {
		t.Errorf("Len = %d, want 1", cm.Len())
	}
}

func TestCallManagerActiveOrdered(t *testing.T) {
	t.Parallel()
	cm := NewCallManager(0)
	base := time.Now()

	cm.Add(CallInfo{CallID: "CA2", StartedAt: base.Add(time.Second)}, newIdleSession(t, "CA2"))
	cm.Add(CallInfo{CallID: "CA1", StartedAt: base}, newIdleSession(t, "CA1"))

	active := cm.Active()
	if len(active) != 2 {
		t.Fatalf("Active = %d entries, want 2", len(active))
	}
	if active[0].CallID != "CA1" || active[1].CallID != "CA2" {
		t.Errorf("order = %s, %s; want CA1, CA2", active[0].CallID, active[1].CallID)
	}
}

func TestCallManagerCloseAll(t *testing.T) {
	t.Parallel()
	cm := NewCallManager(0)
	cm.Add(CallInfo{CallID: "CA1"}, newIdleSession(t, "CA1"))
	cm.Add(CallInfo{CallID: "CA2"}, newIdleSession(t, "CA2"))

	cm.CloseAll(context.Background())
	if cm.Len() != 0 {
		t.Errorf("Len = %d after CloseAll, want 0", cm.Len())
	}

	// Second CloseAll is a no-op.
	cm.CloseAll(context.Background())
}

func TestCallManagerHandler(t *testing.T) {
	t.Parallel()
	cm := NewCallManager(0)
	cm.Add(CallInfo{CallID: "CA7", From: "+911234567890", StartedAt: time.Now()}, newIdleSession(t, "CA7"))

	rec := httptest.NewRecorder()
	cm.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/calls", nil))

	var body struct {
		Count int        `json:"count"`
		Calls []CallInfo `json:"calls"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Calls) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if body.Calls[0].CallID != "CA7" || body.Calls[0].From != "+911234567890" {
		t.Errorf("call = %+v", body.Calls[0])
	}
}
