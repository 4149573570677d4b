package speech

import (
	"math"
	"strings"

	"github.com/yoockh/yootherapy/internal/providers/stt"
	"github.com/yoockh/yootherapy/internal/utils"
)

// ComputeFeatures combines timing from VAD (reconciled with ASR segment
// timestamps when VAD heard nothing) with energy and zero-crossing stats.
func ComputeFeatures(samples []float64, sampleRate, durationMS int, vad VADResult, tr *stt.Transcript) Features {
	f := Features{
		DurationMS:   durationMS,
		SpeechTimeMS: vad.SpeechTimeMS,
		PauseCount:   vad.PauseCount,
		PauseTotalMS: vad.PauseTotalMS,
		PauseRatio:   vad.PauseRatio,
	}

	var segments []stt.Segment
	text := ""
	if tr != nil {
		segments = tr.Segments
		text = tr.Text
	}

	if f.SpeechTimeMS == 0 && len(segments) > 0 {
		var asrMS float64
		for _, s := range segments {
			asrMS += (s.End - s.Start) * 1000
		}
		if asrMS > 0 {
			f.SpeechTimeMS = int(asrMS)
			f.PauseRatio = 0
			if durationMS > 0 {
				f.PauseRatio = utils.Round(math.Max(0, (float64(durationMS)-asrMS)/float64(durationMS)), 4)
			}
			f.PauseTotalMS = max(0, durationMS-int(asrMS))
		}
	}

	if durationMS == 0 && len(segments) > 0 {
		var lastEnd float64
		for _, s := range segments {
			lastEnd = math.Max(lastEnd, s.End)
		}
		if lastEnd > 0 {
			durationMS = int(lastEnd * 1000)
			f.DurationMS = durationMS
		}
	}

	f.WordCount = len(strings.Fields(text))
	if f.SpeechTimeMS > 0 {
		f.SpeechRateWPM = utils.Round(float64(f.WordCount)/(float64(f.SpeechTimeMS)/60000), 1)
	}

	if len(samples) > 0 {
		var sum float64
		for _, s := range samples {
			sum += s * s
		}
		f.EnergyMean = utils.Round(sum/float64(len(samples)), 6)
		if len(samples) > 1 {
			var v float64
			for _, s := range samples {
				d := s*s - f.EnergyMean
				v += d * d
			}
			f.EnergyVar = utils.Round(v/float64(len(samples)), 8)
		}
		f.EnergyRMS = utils.Round(math.Sqrt(f.EnergyMean), 4)
	}

	if len(samples) > 1 {
		zcr := zeroCrossingRate(samples, sampleRate)
		f.PitchProxyZCR = utils.Round(zcr, 2)
		if zcr > 0 {
			f.PitchEstimateHz = utils.Round(zcr/2, 1)
		}
	}

	if len(vad.Segments) > 0 {
		f.ResponseLatencyMS = vad.Segments[0].StartMS
	} else {
		f.ResponseLatencyMS = durationMS
	}

	if f.PauseRatio <= 1 {
		f.SpeechContinuity = 1.0 - f.PauseRatio
	}
	if f.PauseCount > 0 {
		f.AvgPauseDurationMS = int(math.RoundToEven(float64(f.PauseTotalMS) / float64(f.PauseCount)))
	}
	return f
}

// zeroCrossingRate is sign changes per second.
func zeroCrossingRate(samples []float64, sampleRate int) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i] >= 0) != (samples[i-1] >= 0) {
			crossings++
		}
	}
	seconds := 1.0
	if sampleRate > 0 {
		seconds = float64(len(samples)) / float64(sampleRate)
	}
	if seconds <= 0 {
		return 0
	}
	return float64(crossings) / seconds
}
