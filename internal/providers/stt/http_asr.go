package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPASR posts WAV bytes to an external transcription service and expects
// {"text": "...", "confidence": 0.9, "segments": [...], "language": "...", "model": "..."}.
type HTTPASR struct {
	endpoint string
	client   *http.Client
}

func NewHTTPASR(endpoint string, timeout time.Duration) *HTTPASR {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPASR{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPASR) Name() string { return "http-asr" }
func (h *HTTPASR) Close() error { return nil }

func (h *HTTPASR) Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("language", language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("asr http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Transcript
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode asr response: %w", err)
	}
	out.Text = strings.TrimSpace(out.Text)
	if out.Language == "" {
		out.Language = language
	}
	if out.Model == "" {
		out.Model = h.Name()
	}
	return &out, nil
}
