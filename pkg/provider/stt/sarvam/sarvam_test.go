package sarvam

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/provider/stt"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New("", ""); err == nil {
		t.Fatal("New with empty api key should fail")
	}
}

func TestNewDefaultModel(t *testing.T) {
	t.Parallel()

	p, err := New("key", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.model != DefaultModel {
		t.Fatalf("model = %q, want %q", p.model, DefaultModel)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotKey, gotModel, gotLang string
	var gotWAV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/speech-to-text" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("api-subscription-key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language_code")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotWAV, _ = io.ReadAll(file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"transcript":"haan theek hai","language_code":"hi-IN"}`)
	}))
	defer srv.Close()

	p, err := New("secret", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pcm := make([]byte, 320)
	binary.LittleEndian.PutUint16(pcm, 1000)
	text, err := p.Transcribe(context.Background(), stt.Request{
		PCM:        pcm,
		SampleRate: 16000,
		Language:   "hi-IN",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "haan theek hai" {
		t.Errorf("transcript = %q, want %q", text, "haan theek hai")
	}
	if gotKey != "secret" {
		t.Errorf("api-subscription-key = %q, want %q", gotKey, "secret")
	}
	if gotModel != DefaultModel {
		t.Errorf("model field = %q, want %q", gotModel, DefaultModel)
	}
	if gotLang != "hi-IN" {
		t.Errorf("language_code field = %q, want %q", gotLang, "hi-IN")
	}
	if len(gotWAV) != 44+len(pcm) {
		t.Errorf("uploaded WAV length = %d, want %d", len(gotWAV), 44+len(pcm))
	}
	if string(gotWAV[:4]) != "RIFF" {
		t.Errorf("uploaded file is not a WAV, starts with %q", gotWAV[:4])
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty utterance should not reach the API")
	}))
	defer srv.Close()

	p, err := New("key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	text, err := p.Transcribe(context.Background(), stt.Request{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "" {
		t.Errorf("transcript = %q, want empty", text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p, err := New("bad-key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = p.Transcribe(context.Background(), stt.Request{
		PCM:        make([]byte, 320),
		SampleRate: 16000,
	})
	if err == nil {
		t.Fatal("Transcribe should fail on a non-200 response")
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("error should carry the status code, got: %v", err)
	}
}

func TestTranscribeInvalidSampleRate(t *testing.T) {
	t.Parallel()

	p, err := New("key", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{PCM: make([]byte, 320)}); err == nil {
		t.Fatal("Transcribe with zero sample rate should fail")
	}
}
