// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to return pre-canned transcripts without a live service and
// to verify the audio that was submitted for transcription.
//
// Example:
//
//	p := &mock.Provider{TranscribeResult: "yes please"}
//	text, _ := p.Transcribe(ctx, stt.Request{PCM: pcm, SampleRate: 16000})
package mock

import (
	"context"
	"sync"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe, with a copied PCM slice.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// TranscribeResult is returned by Transcribe.
	TranscribeResult string

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeResults, if non-empty, is consumed one element per call,
	// taking precedence over TranscribeResult. After the last element is
	// used, further calls fall back to TranscribeResult.
	TranscribeResults []string

	// TranscribeFunc, if non-nil, is invoked instead of the canned results.
	TranscribeFunc func(ctx context.Context, req stt.Request) (string, error)

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	pcm := make([]byte, len(req.PCM))
	copy(pcm, req.PCM)
	rec := req
	rec.PCM = pcm
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: rec})

	fn := p.TranscribeFunc
	result := p.TranscribeResult
	err := p.TranscribeErr
	if len(p.TranscribeResults) > 0 {
		result = p.TranscribeResults[0]
		p.TranscribeResults = p.TranscribeResults[1:]
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return result, err
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TranscribeCall(nil), p.TranscribeCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
