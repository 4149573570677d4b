package stt

import (
	"context"
	"errors"
	"strings"
)

var ErrUnavailable = errors.New("asr provider not configured")

// Segment times are in seconds from the start of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments"`
	Language   string    `json:"language"`
	Model      string    `json:"model"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type Provider interface {
	// Transcribe expects mono 16 kHz LINEAR16 WAV bytes.
	Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error)
	Name() string
	Close() error
}

type Unavailable struct{}

func (Unavailable) Transcribe(context.Context, []byte, string) (*Transcript, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Name() string { return "none" }
func (Unavailable) Close() error { return nil }

// NormalizeLanguage maps short codes to BCP-47 tags, defaulting to en-US.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "id", "id-ID":
		return "id-ID"
	case "en", "en-US", "":
		return "en-US"
	case "ur", "ur-PK":
		return "ur-PK"
	default:
		return v
	}
}
