package speech

import (
	"context"
	"math"

	"github.com/yoockh/yootherapy/internal/utils"
)

const (
	vadFrameMS      = 30
	leadingPauseMS  = 200
	minPauseGapMS   = 100
	energyVADModel  = "energy-based"
	minVADThreshold = 0.001
)

// VADBackend finds speech regions in mono samples.
type VADBackend interface {
	Detect(ctx context.Context, samples []float64, sampleRate, durationMS int) (VADResult, error)
	Name() string
}

// EnergyVAD marks 30 ms frames whose mean-square energy clears an adaptive
// threshold, bridging gaps shorter than ~100 ms.
type EnergyVAD struct{}

func (EnergyVAD) Name() string { return energyVADModel }

func (EnergyVAD) Detect(_ context.Context, samples []float64, sampleRate, durationMS int) (VADResult, error) {
	return energyVAD(samples, sampleRate, durationMS), nil
}

func energyVAD(samples []float64, sampleRate, durationMS int) VADResult {
	frameSize := sampleRate * vadFrameMS / 1000
	if frameSize <= 0 {
		frameSize = 1
	}

	var energies []float64
	for i := 0; i < len(samples); i += frameSize {
		frame := samples[i:min(i+frameSize, len(samples))]
		var sum float64
		for _, s := range frame {
			sum += s * s
		}
		energies = append(energies, sum/float64(len(frame)))
	}
	if len(energies) == 0 {
		return VADResult{
			Segments:     []VADSegment{},
			PauseTotalMS: durationMS,
			PauseRatio:   1.0,
			Model:        energyVADModel,
		}
	}

	var mean float64
	for _, e := range energies {
		mean += e
	}
	mean /= float64(len(energies))
	var variance float64
	for _, e := range energies {
		variance += (e - mean) * (e - mean)
	}
	variance /= float64(len(energies))
	threshold := max(mean*0.5+math.Sqrt(variance)*0.1, minVADThreshold)

	flags := make([]bool, len(energies))
	for i, e := range energies {
		flags[i] = e > threshold
	}

	// Fill in place, left to right: a filled frame counts as speech for the
	// frames after it.
	minGap := max(1, minPauseGapMS/vadFrameMS)
	for i := range flags {
		if flags[i] {
			continue
		}
		if anyTrue(flags[max(0, i-minGap):i]) && anyTrue(flags[i+1:min(len(flags), i+minGap+1)]) {
			flags[i] = true
		}
	}

	var segments []VADSegment
	inSpeech := false
	start := 0
	for i, speech := range flags {
		t := i * vadFrameMS
		switch {
		case speech && !inSpeech:
			inSpeech, start = true, t
		case !speech && inSpeech:
			inSpeech = false
			segments = append(segments, VADSegment{StartMS: start, EndMS: t, IsSpeech: true})
		}
	}
	if inSpeech {
		segments = append(segments, VADSegment{StartMS: start, EndMS: len(flags) * vadFrameMS, IsSpeech: true})
	}

	return VADFromSegments(segments, durationMS, energyVADModel)
}

func anyTrue(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// VADFromSegments derives speech time and pause metrics from speech
// segments ordered by start.
func VADFromSegments(segments []VADSegment, durationMS int, model string) VADResult {
	if segments == nil {
		segments = []VADSegment{}
	}
	res := VADResult{Segments: segments, Model: model}
	for _, s := range segments {
		res.SpeechTimeMS += s.EndMS - s.StartMS
	}

	if len(segments) == 0 {
		res.PauseTotalMS = durationMS
	} else {
		if first := segments[0].StartMS; first > leadingPauseMS {
			res.PauseCount++
			res.PauseTotalMS += first
		}
		for i := 1; i < len(segments); i++ {
			if gap := segments[i].StartMS - segments[i-1].EndMS; gap > minPauseGapMS {
				res.PauseCount++
				res.PauseTotalMS += gap
			}
		}
	}
	res.PauseRatio = utils.Round(float64(res.PauseTotalMS)/float64(max(durationMS, 1)), 4)
	return res
}
