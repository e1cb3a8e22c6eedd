package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RupeekSJ/ai-calling-Somil/internal/dialog"
	"github.com/RupeekSJ/ai-calling-Somil/internal/intent"
	"github.com/RupeekSJ/ai-calling-Somil/internal/observe"
	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	sttmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt/mock"
	ttsmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/mock"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/vad"
)

// fakeTransport records everything the session sends.
type fakeTransport struct {
	mu      sync.Mutex
	media   []string
	clears  int
	marks   []string
	hangups int
}

func (f *fakeTransport) SendMedia(ctx context.Context, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, payload)
	return nil
}

func (f *fakeTransport) SendClear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeTransport) SendMark(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, name)
	return nil
}

func (f *fakeTransport) Hangup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangups++
	return nil
}

func (f *fakeTransport) mediaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.media)
}

func (f *fakeTransport) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeTransport) markCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

func (f *fakeTransport) hangupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hangups
}

func testSessionConfig() Config {
	return Config{
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
		STTName:        "mock",
		TTSName:        "mock",
	}
}

func newTestSession(t *testing.T, sttP *sttmock.Provider, ttsP *ttsmock.Provider) (*Session, *fakeTransport) {
	t.Helper()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	scr := script.Default()
	transport := &fakeTransport{}
	s, err := New(
		"test-call",
		testSessionConfig(),
		transport,
		sttP,
		ttsP,
		dialog.New(scr),
		intent.New(scr),
		vad.EnergyEngine{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		met,
	)
	if err != nil {
		t.Fatalf("New session: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, transport
}

// loudPayload is one 20ms frame of speech-level PCM16 as a wire payload.
func loudPayload() string {
	pcm := make([]byte, 640)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], 2000)
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

// quietPayload is one 20ms frame of silence as a wire payload.
func quietPayload() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 640))
}

// speakUtterance pushes enough loud then quiet frames through the session to
// produce one sealed utterance.
func speakUtterance(ctx context.Context, s *Session) {
	for i := 0; i < 5; i++ {
		s.HandleMedia(ctx, loudPayload())
	}
	for i := 0; i < 5; i++ {
		s.HandleMedia(ctx, quietPayload())
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionSpeaksOpeningPitch(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	s.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool { return transport.mediaCount() > 0 },
		"opening pitch was never streamed")

	if got := firstSynthesizedText(ttsP); !strings.Contains(got, "Rupeek") {
		t.Errorf("first synthesized text = %q, want the opening pitch", got)
	}
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"mark was never sent after the pitch finished")
}

func firstSynthesizedText(p *ttsmock.Provider) string {
	calls := p.Calls()
	if len(calls) == 0 {
		return ""
	}
	return calls[0].Req.Text
}

func TestSessionAffirmAdvancesToFirstStep(t *testing.T) {
	t.Parallel()

	scr := script.Default()
	sttP := &sttmock.Provider{TranscribeResult: "yes please"}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")

	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return len(ttsP.Calls()) >= 2 },
		"reply to the affirmation was never synthesized")
	if got := ttsP.Calls()[1].Req.Text; got != scr.Steps[0] {
		t.Errorf("reply = %q, want step 0 %q", got, scr.Steps[0])
	}
	if len(sttP.Calls()) != 1 {
		t.Fatalf("transcribe calls = %d, want 1", len(sttP.Calls()))
	}
	if rate := sttP.Calls()[0].Req.SampleRate; rate != 16000 {
		t.Errorf("transcription sample rate = %d, want 16000", rate)
	}
}

func TestSessionEmptyTranscriptReprompts(t *testing.T) {
	t.Parallel()

	scr := script.Default()
	sttP := &sttmock.Provider{TranscribeResult: ""}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")

	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return len(ttsP.Calls()) >= 2 },
		"re-prompt was never synthesized")
	if got := ttsP.Calls()[1].Req.Text; got != scr.Reprompt {
		t.Errorf("reply = %q, want reprompt %q", got, scr.Reprompt)
	}
	if transport.hangupCount() != 0 {
		t.Error("an empty transcript must not end the call")
	}
}

func TestSessionSTTFailureIsSoft(t *testing.T) {
	t.Parallel()

	scr := script.Default()
	sttP := &sttmock.Provider{TranscribeErr: io.ErrUnexpectedEOF}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")

	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return len(ttsP.Calls()) >= 2 },
		"failed transcription should still produce a re-prompt")
	if got := ttsP.Calls()[1].Req.Text; got != scr.Reprompt {
		t.Errorf("reply = %q, want reprompt", got)
	}
}

func TestSessionSynthesisFailureKeepsCallAlive(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{TranscribeResult: "yes"}
	ttsP := &ttsmock.Provider{SynthesizeErr: io.ErrUnexpectedEOF}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)

	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return len(ttsP.Calls()) >= 2 },
		"turn never reached synthesis")
	time.Sleep(50 * time.Millisecond)
	if transport.hangupCount() != 0 {
		t.Error("synthesis failure must not end the call")
	}
	if transport.mediaCount() != 0 {
		t.Error("no audio should reach the caller when synthesis fails")
	}
}

func TestSessionDenyHangsUpAfterFarewell(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{TranscribeResult: "no thanks"}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")

	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return transport.hangupCount() == 1 },
		"deny should end the call after the farewell")
}

func TestSessionBargeInCancelsPlayback(t *testing.T) {
	t.Parallel()

	// A long reply: 50 chunks of 20ms gives a full second to interrupt.
	long := make([]byte, 50*640)
	sttP := &sttmock.Provider{TranscribeResult: ""}
	ttsP := &ttsmock.Provider{SynthesizeResult: long}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return transport.mediaCount() >= 2 },
		"reply never started streaming")

	// Caller talks over the bot.
	for i := 0; i < 3; i++ {
		s.HandleMedia(ctx, loudPayload())
	}

	waitFor(t, 2*time.Second, func() bool { return transport.clearCount() == 1 },
		"barge-in should flush the transport's outbound buffer")

	// Streaming must stop well before all 50 chunks have gone out.
	stopped := transport.mediaCount()
	time.Sleep(200 * time.Millisecond)
	if after := transport.mediaCount(); after > stopped+1 {
		t.Errorf("playback kept going after barge-in: %d then %d chunks", stopped, after)
	}
}

func TestSessionBargeInStartsNewUtterance(t *testing.T) {
	t.Parallel()

	long := make([]byte, 50*640)
	sttP := &sttmock.Provider{TranscribeResult: "what is the interest rate"}
	ttsP := &ttsmock.Provider{SynthesizeResult: long}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.mediaCount() >= 2 },
		"opening pitch never started streaming")

	// Interrupt with a complete utterance.
	speakUtterance(ctx, s)

	waitFor(t, 2*time.Second, func() bool { return len(sttP.Calls()) == 1 },
		"interrupting speech should become a new utterance")
	if got := len(sttP.Calls()[0].Req.PCM); got < 4*640 {
		t.Errorf("utterance audio = %d bytes, want the interrupting speech included", got)
	}
}

func TestSessionDropsMalformedPayloads(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, _ := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)

	// Invalid base64 and odd-length PCM must both be dropped silently.
	s.HandleMedia(ctx, "!!!not-base64!!!")
	s.HandleMedia(ctx, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))

	// The stream keeps working afterwards.
	speakUtterance(ctx, s)
	waitFor(t, 2*time.Second, func() bool { return len(sttP.Calls()) == 1 },
		"session should keep ingesting after dropped frames")
}

func TestSessionUtterancesProcessedInOrder(t *testing.T) {
	t.Parallel()

	scr := script.Default()
	sttP := &sttmock.Provider{TranscribeResults: []string{"yes please", "next"}}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")

	// Two complete utterances back to back.
	speakUtterance(ctx, s)
	speakUtterance(ctx, s)

	waitFor(t, 3*time.Second, func() bool { return len(ttsP.Calls()) >= 3 },
		"both turns should produce replies")
	if got := ttsP.Calls()[1].Req.Text; got != scr.Steps[0] {
		t.Errorf("first reply = %q, want step 0", got)
	}
	if got := ttsP.Calls()[2].Req.Text; got != scr.Steps[1] {
		t.Errorf("second reply = %q, want step 1 (utterances reordered)", got)
	}
}

func TestSessionQueueOverflowDropsOldest(t *testing.T) {
	t.Parallel()

	// The worker is never started, so jobs pile up in the queue.
	s, _ := newTestSession(t, &sttmock.Provider{}, &ttsmock.Provider{})
	for i := 0; i < turnQueueDepth+2; i++ {
		s.enqueue(turnJob{speak: fmt.Sprintf("line-%d", i)})
	}

	// The two oldest jobs were discarded; the head is now the third.
	head := <-s.turns
	if head.speak != "line-2" {
		t.Errorf("queue head = %q, want line-2", head.speak)
	}
	if got := len(s.turns); got != turnQueueDepth-1 {
		t.Errorf("queue depth = %d, want %d", got, turnQueueDepth-1)
	}
}

func TestSessionOutboundCodecIsSeparate(t *testing.T) {
	t.Parallel()

	// The read loop decodes while the worker encodes, so the two paths must
	// not go through one codec.
	s, _ := newTestSession(t, &sttmock.Provider{}, &ttsmock.Provider{})
	if s.streamer.codec == s.codec {
		t.Error("streamer shares the inbound codec")
	}
}

func TestSessionTurnRecordsSpans(t *testing.T) {
	// Swaps the global tracer provider, so no t.Parallel.
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	sttP := &sttmock.Provider{TranscribeResult: "yes please"}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, transport := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"opening pitch did not finish")
	speakUtterance(ctx, s)
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 2 },
		"reply did not finish")
	s.Close(ctx)

	names := make(map[string]bool)
	var callID string
	for _, sp := range exp.GetSpans() {
		names[sp.Name] = true
		if sp.Name == "session.turn" {
			for _, a := range sp.Attributes {
				if string(a.Key) == "call_id" {
					callID = a.Value.AsString()
				}
			}
		}
	}
	for _, want := range []string{"session.turn", "stt.transcribe", "tts.synthesize"} {
		if !names[want] {
			t.Errorf("missing span %q", want)
		}
	}
	if callID != "test-call" {
		t.Errorf("turn span call_id = %q, want test-call", callID)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{}
	ttsP := &ttsmock.Provider{SynthesizeResult: make([]byte, 640)}
	s, _ := newTestSession(t, sttP, ttsP)

	ctx := context.Background()
	s.Start(ctx)
	s.Close(ctx)
	s.Close(ctx)
}

func TestSessionFrameBytesMatchChunking(t *testing.T) {
	t.Parallel()

	// The outbound chunks decode back to the configured chunk size.
	sttP := &sttmock.Provider{}
	ttsP := &ttsmock.Provider{SynthesizeResult: bytes.Repeat([]byte{1}, 3*640)}
	s, transport := newTestSession(t, sttP, ttsP)

	s.Start(context.Background())
	waitFor(t, 2*time.Second, func() bool { return transport.markCount() == 1 },
		"pitch did not finish")

	transport.mu.Lock()
	defer transport.mu.Unlock()
	for i, p := range transport.media {
		raw, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			t.Fatalf("chunk %d is not base64: %v", i, err)
		}
		if len(raw) != 640 {
			t.Errorf("chunk %d = %d bytes, want 640", i, len(raw))
		}
	}
}
