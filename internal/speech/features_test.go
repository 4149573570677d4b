package speech

import (
	"testing"

	"github.com/yoockh/yootherapy/internal/providers/stt"
)

func TestComputeFeaturesFromVAD(t *testing.T) {
	samples := concat(silence(300), tone(600, 0.5), silence(600))
	vad := energyVAD(samples, TargetSampleRate, 1500)
	f := ComputeFeatures(samples, TargetSampleRate, 1500, vad, &stt.Transcript{Text: "hello there"})

	if f.WordCount != 2 || f.SpeechRateWPM != 200 {
		t.Errorf("words/wpm = %d/%v", f.WordCount, f.SpeechRateWPM)
	}
	if f.EnergyMean != 0.05 || f.EnergyRMS != 0.2236 {
		t.Errorf("energy = %v/%v", f.EnergyMean, f.EnergyRMS)
	}
	if f.ResponseLatencyMS != 300 {
		t.Errorf("latency = %d", f.ResponseLatencyMS)
	}
	if f.SpeechContinuity != 0.8 || f.AvgPauseDurationMS != 300 {
		t.Errorf("continuity/avg pause = %v/%d", f.SpeechContinuity, f.AvgPauseDurationMS)
	}
	if f.PitchProxyZCR <= 0 || f.PitchEstimateHz <= 0 {
		t.Errorf("zcr = %v, pitch = %v", f.PitchProxyZCR, f.PitchEstimateHz)
	}
}

func TestComputeFeaturesReconcilesWithASR(t *testing.T) {
	vad := VADFromSegments(nil, 2000, energyVADModel)
	tr := &stt.Transcript{
		Text:     "hello there friend",
		Segments: []stt.Segment{{Start: 0.5, End: 1.0}, {Start: 1.2, End: 1.5}},
	}
	f := ComputeFeatures(nil, TargetSampleRate, 2000, vad, tr)

	if f.SpeechTimeMS != 800 {
		t.Errorf("SpeechTimeMS = %d", f.SpeechTimeMS)
	}
	if f.PauseRatio != 0.6 || f.PauseTotalMS != 1200 {
		t.Errorf("pause = %v/%d", f.PauseRatio, f.PauseTotalMS)
	}
	if f.SpeechRateWPM != 225 {
		t.Errorf("wpm = %v", f.SpeechRateWPM)
	}
	if f.ResponseLatencyMS != 2000 {
		t.Errorf("latency = %d", f.ResponseLatencyMS)
	}
	if f.EnergyMean != 0 || f.PitchProxyZCR != 0 {
		t.Errorf("no samples should give zero energy, got %+v", f)
	}
}

func TestComputeFeaturesDurationFromASR(t *testing.T) {
	tr := &stt.Transcript{Text: "ball", Segments: []stt.Segment{{Start: 0.2, End: 1.5}}}
	f := ComputeFeatures(nil, TargetSampleRate, 0, VADFromSegments(nil, 0, energyVADModel), tr)
	if f.DurationMS != 1500 {
		t.Fatalf("DurationMS = %d", f.DurationMS)
	}
	if f.ResponseLatencyMS != 1500 {
		t.Fatalf("latency = %d", f.ResponseLatencyMS)
	}
}

func TestComputeFeaturesContinuityClamp(t *testing.T) {
	vad := VADResult{PauseRatio: 1.4, PauseCount: 2, PauseTotalMS: 701}
	f := ComputeFeatures(nil, TargetSampleRate, 500, vad, nil)
	if f.SpeechContinuity != 0 {
		t.Errorf("continuity = %v", f.SpeechContinuity)
	}
	// 350.5 rounds half to even
	if f.AvgPauseDurationMS != 350 {
		t.Errorf("avg pause = %d", f.AvgPauseDurationMS)
	}
}
