package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const TargetSampleRate = 16000

// CommandRunner runs an external binary; tests swap it out.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, bytesTail(out, 256))
	}
	return nil
}

func bytesTail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

// Normalizer converts arbitrary audio to mono 16 kHz signed 16-bit WAV.
type Normalizer struct {
	FFmpeg string
	Run    CommandRunner
	TmpDir string
}

func NewNormalizer(ffmpeg string) *Normalizer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Normalizer{FFmpeg: ffmpeg, Run: execRunner}
}

// Normalize returns the path to analyse and a cleanup func for any temp file.
// On ffmpeg failure it keeps an already-conforming WAV, otherwise copies the
// input as-is; if even the copy fails the original path is returned. The
// error reports the ffmpeg failure for logging only.
func (n *Normalizer) Normalize(ctx context.Context, in string) (string, func(), error) {
	noop := func() {}

	out, err := os.CreateTemp(n.TmpDir, "speech-*.wav")
	if err != nil {
		return in, noop, err
	}
	outPath := out.Name()
	_ = out.Close()
	cleanup := func() { _ = os.Remove(outPath) }

	runErr := n.Run(ctx, n.FFmpeg,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ac", "1", "-ar", "16000", "-sample_fmt", "s16",
		outPath,
	)
	if runErr == nil {
		return outPath, cleanup, nil
	}

	if isCanonicalWAV(in) {
		cleanup()
		return in, noop, runErr
	}
	if err := copyFile(in, outPath); err != nil {
		cleanup()
		return in, noop, errors.Join(runErr, err)
	}
	return outPath, cleanup, runErr
}

func isCanonicalWAV(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return false
	}
	return d.NumChans == 1 && d.SampleRate == TargetSampleRate
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Decoded is mono audio as floats in [-1, 1].
type Decoded struct {
	Samples    []float64
	SampleRate int
	DurationMS int
}

// Decode reads a PCM WAV, averaging channels to mono. 8-bit data is
// unsigned and recentred before scaling.
func Decode(path string) (Decoded, error) {
	empty := Decoded{SampleRate: TargetSampleRate}

	f, err := os.Open(path)
	if err != nil {
		return empty, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return empty, errors.New("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return empty, err
	}

	channels := int(d.NumChans)
	bits := int(d.BitDepth)
	rate := int(d.SampleRate)
	if channels <= 0 || rate <= 0 {
		return empty, errors.New("wav header has no channels or sample rate")
	}
	switch bits {
	case 8, 16, 24, 32:
	default:
		return Decoded{SampleRate: rate}, fmt.Errorf("unsupported bit depth %d", bits)
	}

	scale := float64(int64(1) << (bits - 1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if bits == 8 {
				v -= 128
			}
			sum += float64(v)
		}
		samples[i] = sum / float64(channels) / scale
	}

	return Decoded{
		Samples:    samples,
		SampleRate: rate,
		DurationMS: int(float64(frames) / float64(rate) * 1000),
	}, nil
}

// EncodeWAV writes mono float samples as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
