package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yoockh/yootherapy/internal/speech"
)

// HTTPVAD sends the decoded clip as 16-bit mono WAV to an external detector
// returning {"segments":[{"start_ms":0,"end_ms":0}], "model":"..."}.
type HTTPVAD struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVAD(endpoint string, timeout time.Duration) *HTTPVAD {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPVAD{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPVAD) Name() string { return "http-vad" }

type response struct {
	Segments []struct {
		StartMS int `json:"start_ms"`
		EndMS   int `json:"end_ms"`
	} `json:"segments"`
	Model string `json:"model"`
}

func (h *HTTPVAD) Detect(ctx context.Context, samples []float64, sampleRate, durationMS int) (speech.VADResult, error) {
	body, err := encode(samples, sampleRate)
	if err != nil {
		return speech.VADResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return speech.VADResult{}, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := h.client.Do(req)
	if err != nil {
		return speech.VADResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return speech.VADResult{}, fmt.Errorf("vad http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return speech.VADResult{}, fmt.Errorf("decode vad response: %w", err)
	}

	segs := make([]speech.VADSegment, 0, len(out.Segments))
	for _, s := range out.Segments {
		if s.EndMS <= s.StartMS {
			continue
		}
		segs = append(segs, speech.VADSegment{StartMS: s.StartMS, EndMS: s.EndMS, IsSpeech: true})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].StartMS < segs[j].StartMS })

	model := out.Model
	if model == "" {
		model = h.Name()
	}
	return speech.VADFromSegments(segs, durationMS, model), nil
}

// encode goes through a temp file since the wav encoder needs a seeker.
func encode(samples []float64, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "vad-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())

	if err := speech.EncodeWAV(f, samples, sampleRate); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Name())
}
