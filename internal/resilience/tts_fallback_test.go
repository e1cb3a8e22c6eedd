package resilience

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts"
	ttsmock "github.com/RupeekSJ/ai-calling-Somil/pkg/provider/tts/mock"
)

func ttsReq() tts.Request {
	return tts.Request{Text: "please hold", Language: "en-IN", SampleRate: 16000}
}

func TestTTSFallback_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeResult: []byte{1, 2, 3, 4}}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	pcm, err := fb.Synthesize(context.Background(), ttsReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4}) {
		t.Errorf("pcm = %v, want primary's clip", pcm)
	}
	if got := len(secondary.Calls()); got != 0 {
		t.Errorf("secondary called %d times, want 0", got)
	}
}

func TestTTSFallback_Failover(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeResult: []byte{9, 9}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	pcm, err := fb.Synthesize(context.Background(), ttsReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(pcm, []byte{9, 9}) {
		t.Errorf("pcm = %v, want secondary's clip", pcm)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeErr: errors.New("secondary down")}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Synthesize(context.Background(), ttsReq())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
