package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by providers that are not configured.
var ErrUnavailable = errors.New("llm provider not configured")

// Attachment is inline binary content sent alongside the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

type Provider interface {
	// Generate returns the full model answer for prompt. JSON mode is on:
	// callers ask for strict JSON and parse it themselves.
	Generate(ctx context.Context, prompt string, attachments ...Attachment) (string, error)
	Name() string
	Close() error
}

type Unavailable struct{}

func (Unavailable) Generate(context.Context, string, ...Attachment) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Name() string { return "none" }
func (Unavailable) Close() error { return nil }
