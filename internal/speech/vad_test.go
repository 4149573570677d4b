package speech

import (
	"context"
	"testing"
)

func TestEnergyVAD(t *testing.T) {
	tests := []struct {
		name      string
		samples   []float64
		segments  []VADSegment
		speechMS  int
		pauses    int
		pauseMS   int
		ratio     float64
	}{
		{
			name:     "silence",
			samples:  silence(900),
			segments: []VADSegment{},
			pauseMS:  900,
			ratio:    1.0,
		},
		{
			name:     "single burst with leading pause",
			samples:  concat(silence(300), tone(600, 0.5), silence(600)),
			segments: []VADSegment{{StartMS: 300, EndMS: 900, IsSpeech: true}},
			speechMS: 600,
			pauses:   1,
			pauseMS:  300,
			ratio:    0.2,
		},
		{
			name:     "short gap bridged",
			samples:  concat(silence(300), tone(300, 0.5), silence(60), tone(240, 0.5), silence(600)),
			segments: []VADSegment{{StartMS: 300, EndMS: 900, IsSpeech: true}},
			speechMS: 600,
			pauses:   1,
			pauseMS:  300,
			ratio:    0.2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dur := len(tt.samples) * 1000 / TargetSampleRate
			got, err := EnergyVAD{}.Detect(context.Background(), tt.samples, TargetSampleRate, dur)
			if err != nil {
				t.Fatal(err)
			}
			if got.Model != "energy-based" {
				t.Errorf("Model = %q", got.Model)
			}
			if len(got.Segments) != len(tt.segments) {
				t.Fatalf("Segments = %+v, want %+v", got.Segments, tt.segments)
			}
			for i := range tt.segments {
				if got.Segments[i] != tt.segments[i] {
					t.Errorf("segment %d = %+v, want %+v", i, got.Segments[i], tt.segments[i])
				}
			}
			if got.SpeechTimeMS != tt.speechMS || got.PauseCount != tt.pauses || got.PauseTotalMS != tt.pauseMS {
				t.Errorf("timing = %d/%d/%d, want %d/%d/%d",
					got.SpeechTimeMS, got.PauseCount, got.PauseTotalMS, tt.speechMS, tt.pauses, tt.pauseMS)
			}
			if got.PauseRatio != tt.ratio {
				t.Errorf("PauseRatio = %v, want %v", got.PauseRatio, tt.ratio)
			}
		})
	}
}

func TestEnergyVADEmpty(t *testing.T) {
	got := energyVAD(nil, TargetSampleRate, 0)
	if got.PauseRatio != 1.0 || got.PauseTotalMS != 0 || len(got.Segments) != 0 {
		t.Fatalf("empty = %+v", got)
	}
}

func TestVADFromSegments(t *testing.T) {
	segs := []VADSegment{
		{StartMS: 150, EndMS: 400, IsSpeech: true},
		{StartMS: 450, EndMS: 800, IsSpeech: true},
		{StartMS: 1000, EndMS: 1200, IsSpeech: true},
	}
	got := VADFromSegments(segs, 1500, "remote")
	// leading 150 ms and the 50 ms gap are too short to count
	if got.PauseCount != 1 || got.PauseTotalMS != 200 {
		t.Fatalf("pauses = %d/%d", got.PauseCount, got.PauseTotalMS)
	}
	if got.SpeechTimeMS != 800 {
		t.Fatalf("SpeechTimeMS = %d", got.SpeechTimeMS)
	}
	if got.PauseRatio != 0.1333 {
		t.Fatalf("PauseRatio = %v", got.PauseRatio)
	}
	if got.Model != "remote" {
		t.Fatalf("Model = %q", got.Model)
	}
}
