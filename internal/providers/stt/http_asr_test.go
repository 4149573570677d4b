package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPASRTranscribe(t *testing.T) {
	var gotLang, gotType string
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("language")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":       "  the cat  ",
			"confidence": 0.91,
			"segments":   []map[string]any{{"start": 0.2, "end": 0.9, "text": "the cat"}},
		})
	}))
	defer srv.Close()

	tr, err := NewHTTPASR(srv.URL, time.Second).Transcribe(context.Background(), []byte("RIFF...."), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "the cat" || tr.Model != "http-asr" || tr.Language != "en" || len(tr.Segments) != 1 {
		t.Fatalf("transcript = %+v", tr)
	}
	if gotLang != "en" || gotType != "audio/wav" || gotLen != 8 {
		t.Fatalf("request lang=%q type=%q len=%d", gotLang, gotType, gotLen)
	}
}

func TestHTTPASRStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPASR(srv.URL, time.Second).Transcribe(context.Background(), nil, "en"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{"": "en-US", "en": "en-US", "id": "id-ID", " id-ID ": "id-ID", "fr-FR": "fr-FR"}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
