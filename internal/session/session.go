// Package session implements the per-call turn-taking engine: frame ingest,
// voice activity detection, utterance assembly, the transcribe → classify →
// advance → synthesize → stream turn pipeline, and barge-in.
//
// One call maps to one Session. The transport read loop feeds events into the
// Session from a single goroutine; turn work runs on one worker goroutine per
// session so slow speech-API calls never block inbound frames, and utterances
// are processed strictly in arrival order. The playback cancel func is the
// only state crossed between the two goroutines; it is guarded by a mutex and
// observed by the streamer at chunk boundaries.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RupeekSJ/ai-calling-Somil/internal/dialog"
	"github.com/RupeekSJ/ai-calling-Somil/internal/intent"
	"github.com/RupeekSJ/ai-calling-Somil/internal/observe"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/vad"
)

// Transport is what a session needs from the telephony connection.
type Transport interface {
	// SendMedia sends one base64 audio chunk to the caller.
	SendMedia(ctx context.Context, payload string) error

	// SendClear tells the transport to discard buffered outbound audio.
	// Used for instantaneous barge-in cutoff.
	SendClear(ctx context.Context) error

	// SendMark asks the transport to echo a named marker once the audio
	// queued before it has played out.
	SendMark(ctx context.Context, name string) error

	// Hangup ends the call. Invoked after a terminal reply finishes
	// streaming.
	Hangup(ctx context.Context) error
}

// Config carries the per-call tuning a Session needs.
type Config struct {
	// WireEncoding, WireRate describe audio on the telephony wire.
	WireEncoding audio.Encoding
	WireRate     int

	// PCMRate is the canonical pipeline sample rate.
	PCMRate int

	// FrameMs is the VAD analysis frame length.
	FrameMs int

	// ChunkMs is the outbound chunk length; it bounds barge-in latency.
	ChunkMs int

	// VAD tunes the voice activity detector.
	VAD vad.Config

	// MinUtteranceMs discards shorter utterances as noise blips.
	MinUtteranceMs int

	// MaxUtteranceMs force-seals utterances that grow past this.
	MaxUtteranceMs int

	// STTTimeout and TTSTimeout bound each provider call.
	STTTimeout time.Duration
	TTSTimeout time.Duration

	// Language and Voice are passed through to the speech providers.
	Language string
	Voice    string

	// STTName and TTSName label provider metrics and logs.
	STTName string
	TTSName string
}

// Session is the turn-taking engine for one call.
type Session struct {
	id  string
	cfg Config
	log *slog.Logger
	met *observe.Metrics

	transport  Transport
	stt        stt.Provider
	tts        tts.Provider
	machine    *dialog.Machine
	classifier *intent.Classifier

	codec     *audio.WireCodec
	frames    *audio.FrameBuffer
	detector  vad.Detector
	assembler *Assembler
	streamer  *Streamer

	turns  chan turnJob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	playMu     sync.Mutex
	playCancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	ended   bool

	marks int
}

// turnJob is one unit of worker-side work: either a sealed caller utterance
// or a scripted line to speak as-is (the opening pitch).
type turnJob struct {
	utterance *Utterance
	speak     string
	end       bool
}

// turnQueueDepth bounds pending utterances per call. A caller cannot
// realistically out-talk the pipeline by this much; past it we drop the
// oldest behaviourally-stale utterance rather than block frame ingest.
const turnQueueDepth = 8

// New assembles a Session from its collaborators. vadEngine builds the
// detector so alternative VAD implementations can be plugged in per call.
func New(
	id string,
	cfg Config,
	transport Transport,
	sttProvider stt.Provider,
	ttsProvider tts.Provider,
	machine *dialog.Machine,
	classifier *intent.Classifier,
	vadEngine vad.Engine,
	log *slog.Logger,
	met *observe.Metrics,
) (*Session, error) {
	codec, err := audio.NewWireCodec(cfg.WireEncoding, cfg.WireRate, cfg.PCMRate)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	// The outbound path gets its own codec. Decode keeps resampler state per
	// direction, and the worker encodes while the read loop decodes.
	outCodec, err := audio.NewWireCodec(cfg.WireEncoding, cfg.WireRate, cfg.PCMRate)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	detector, err := vadEngine.NewDetector(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	frames := audio.NewFrameBuffer(cfg.PCMRate, cfg.FrameMs)
	bytesPerMs := cfg.PCMRate * 2 / 1000
	s := &Session{
		id:         id,
		cfg:        cfg,
		log:        log.With(slog.String("call_id", id)),
		met:        met,
		transport:  transport,
		stt:        sttProvider,
		tts:        ttsProvider,
		machine:    machine,
		classifier: classifier,
		codec:      codec,
		frames:     frames,
		detector:   detector,
		assembler: NewAssembler(AssemblerConfig{
			PrerollFrames: cfg.VAD.MinSpeechFrames,
			MinBytes:      cfg.MinUtteranceMs * bytesPerMs,
			MaxBytes:      cfg.MaxUtteranceMs * bytesPerMs,
		}),
		turns: make(chan turnJob, turnQueueDepth),
	}
	s.streamer = NewStreamer(outCodec, transport, cfg.PCMRate, cfg.ChunkMs)
	return s, nil
}

// Start launches the turn worker and queues the opening pitch. It must be
// called once, before any media is handled.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.met.ActiveSessions.Add(ctx, 1)
	s.log.Info("call started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(workerCtx)
	}()

	s.enqueue(turnJob{speak: s.machine.Opening()})
}

// HandleMedia ingests one inbound wire payload. Malformed payloads are
// dropped and counted; they never fail the call.
func (s *Session) HandleMedia(ctx context.Context, payload string) {
	frame, err := s.codec.Decode(payload)
	if err != nil {
		var ce *audio.CodecError
		if errors.As(err, &ce) {
			s.met.DroppedFrames.Add(ctx, 1)
			s.log.Warn("dropped malformed frame", slog.String("reason", ce.Reason))
			return
		}
		s.log.Error("frame decode failed", slog.String("error", err.Error()))
		return
	}

	for _, f := range s.frames.Push(frame.Data) {
		s.observeFrame(ctx, f)
	}
}

func (s *Session) observeFrame(ctx context.Context, f audio.AudioFrame) {
	ev, err := s.detector.ProcessFrame(f.Data)
	if err != nil {
		s.log.Warn("vad rejected frame", slog.String("error", err.Error()))
		return
	}

	if ev.Type == vad.SpeechStart && s.interruptPlayback(ctx) {
		// Caller spoke over the bot. The reply is abandoned, buffered
		// transport audio is flushed, and this frame opens the caller's
		// next utterance.
		s.met.BargeIns.Add(ctx, 1)
		s.log.Info("barge-in", slog.Duration("at", f.Timestamp))
	}

	if u := s.assembler.Observe(f, ev); u != nil {
		s.log.Debug("utterance sealed",
			slog.Duration("start", u.Start),
			slog.Duration("length", u.Duration()),
		)
		s.enqueue(turnJob{utterance: u})
	}
}

// HandleStop tears the session down on transport end-of-call.
func (s *Session) HandleStop(ctx context.Context) {
	s.log.Info("call stopped by transport")
	s.Close(ctx)
}

// Close releases the session. Safe to call more than once; any in-flight
// provider calls are abandoned rather than awaited.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}

	s.interruptPlayback(ctx)
	s.cancel()
	s.wg.Wait()
	s.met.ActiveSessions.Add(ctx, -1)
	s.log.Info("call closed")
}

// enqueue hands a job to the worker without ever blocking the frame path.
// On overflow the oldest pending job is discarded: a caller who has said
// several newer things no longer wants an answer to the first one.
func (s *Session) enqueue(job turnJob) {
	for {
		select {
		case s.turns <- job:
			return
		default:
		}
		select {
		case <-s.turns:
			s.log.Warn("turn queue full, dropping oldest utterance")
		default:
		}
	}
}

func (s *Session) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.turns:
			s.runTurn(ctx, job)
		}
	}
}

// runTurn executes one full turn: transcribe, classify, advance the dialog,
// synthesize, stream. STT failures degrade to an empty transcript;
// synthesis failures skip the reply and keep the call alive.
func (s *Session) runTurn(ctx context.Context, job turnJob) {
	ctx, span := observe.StartSpan(ctx, "session.turn",
		trace.WithAttributes(attribute.String("call_id", s.id)),
	)
	defer span.End()

	text := job.speak
	end := job.end

	if job.utterance != nil {
		started := time.Now()
		transcript := s.transcribe(ctx, job.utterance)
		in := s.classifier.Classify(transcript)
		s.met.RecordUtterance(ctx, in.Kind.String())
		s.log.Info("turn",
			slog.String("transcript", transcript),
			slog.String("intent", in.Kind.String()),
			slog.String("phase", s.machine.Phase().String()),
		)

		reply := s.machine.Advance(in)
		if reply.Text == "" {
			return
		}
		text = reply.Text
		end = reply.End
		s.met.TurnDuration.Record(ctx, time.Since(started).Seconds())
	}

	if text != "" {
		s.speak(ctx, text)
	}

	// A terminal reply ends the call even when its audio was cut short;
	// the dialog is over either way.
	if end {
		s.hangup(ctx)
	}
}

// transcribe runs STT with its timeout. Any failure is soft and returns "".
func (s *Session) transcribe(ctx context.Context, u *Utterance) string {
	sttCtx, cancel := context.WithTimeout(ctx, s.cfg.STTTimeout)
	defer cancel()
	sttCtx, span := observe.StartSpan(sttCtx, "stt.transcribe",
		trace.WithAttributes(attribute.String("provider", s.cfg.STTName)),
	)
	defer span.End()

	started := time.Now()
	text, err := s.stt.Transcribe(sttCtx, stt.Request{
		PCM:        u.PCM,
		SampleRate: s.cfg.PCMRate,
		Language:   s.cfg.Language,
	})
	s.met.STTDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		s.met.RecordProviderError(ctx, s.cfg.STTName, "stt")
		s.log.Warn("transcription failed, treating as silence", slog.String("error", err.Error()))
		return ""
	}
	s.met.RecordProviderRequest(ctx, s.cfg.STTName, "stt", "ok")
	return text
}

// speak synthesizes text and streams it, reporting whether the full reply
// reached the caller.
func (s *Session) speak(ctx context.Context, text string) bool {
	ttsCtx, cancel := context.WithTimeout(ctx, s.cfg.TTSTimeout)
	ttsCtx, span := observe.StartSpan(ttsCtx, "tts.synthesize",
		trace.WithAttributes(attribute.String("provider", s.cfg.TTSName)),
	)
	started := time.Now()
	pcm, err := s.tts.Synthesize(ttsCtx, tts.Request{
		Text:       text,
		Language:   s.cfg.Language,
		Voice:      s.cfg.Voice,
		SampleRate: s.cfg.PCMRate,
	})
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	cancel()
	s.met.TTSDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		s.met.RecordProviderError(ctx, s.cfg.TTSName, "tts")
		s.log.Warn("synthesis failed, skipping reply", slog.String("error", err.Error()))
		return false
	}
	s.met.RecordProviderRequest(ctx, s.cfg.TTSName, "tts", "ok")

	playCtx := s.beginPlayback(ctx)
	err = s.streamer.Stream(playCtx, pcm)
	s.endPlayback()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		s.log.Warn("reply streaming failed", slog.String("error", err.Error()))
		return false
	}

	s.mu.Lock()
	s.marks++
	mark := fmt.Sprintf("reply-%d", s.marks)
	s.mu.Unlock()
	if err := s.transport.SendMark(ctx, mark); err != nil {
		s.log.Debug("mark send failed", slog.String("error", err.Error()))
	}
	return true
}

// beginPlayback installs the cancellable playback context the media path can
// interrupt.
func (s *Session) beginPlayback(ctx context.Context) context.Context {
	playCtx, cancel := context.WithCancel(ctx)
	s.playMu.Lock()
	s.playCancel = cancel
	s.playMu.Unlock()
	return playCtx
}

func (s *Session) endPlayback() {
	s.playMu.Lock()
	if s.playCancel != nil {
		s.playCancel()
		s.playCancel = nil
	}
	s.playMu.Unlock()
}

// interruptPlayback cancels an in-flight reply, if any, and flushes the
// transport's outbound buffer. Reports whether a reply was interrupted.
func (s *Session) interruptPlayback(ctx context.Context) bool {
	s.playMu.Lock()
	cancel := s.playCancel
	s.playCancel = nil
	s.playMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	if err := s.transport.SendClear(ctx); err != nil {
		s.log.Debug("clear send failed", slog.String("error", err.Error()))
	}
	return true
}

// hangup ends the call after a terminal reply.
func (s *Session) hangup(ctx context.Context) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.log.Info("dialog complete, hanging up", slog.String("phase", s.machine.Phase().String()))
	if err := s.transport.Hangup(ctx); err != nil {
		s.log.Debug("hangup failed", slog.String("error", err.Error()))
	}
}
