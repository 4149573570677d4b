package speech

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// tone returns ms of a 200 Hz sine at amp, 16 kHz. 200 Hz divides a 30 ms
// frame evenly so each frame's mean energy is exactly amp²/2.
func tone(ms int, amp float64) []float64 {
	n := TargetSampleRate * ms / 1000
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*200*float64(i)/TargetSampleRate)
	}
	return out
}

func silence(ms int) []float64 {
	return make([]float64, TargetSampleRate*ms/1000)
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func writeWAV(t *testing.T, samples []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, samples, TargetSampleRate); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeRawWAV lays out a canonical 44-byte PCM header by hand.
func writeRawWAV(t *testing.T, channels, bits, rate int, data []byte) string {
	t.Helper()
	var b bytes.Buffer
	le := binary.LittleEndian
	blockAlign := channels * bits / 8

	b.WriteString("RIFF")
	_ = binary.Write(&b, le, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, le, uint32(16))
	_ = binary.Write(&b, le, uint16(1))
	_ = binary.Write(&b, le, uint16(channels))
	_ = binary.Write(&b, le, uint32(rate))
	_ = binary.Write(&b, le, uint32(rate*blockAlign))
	_ = binary.Write(&b, le, uint16(blockAlign))
	_ = binary.Write(&b, le, uint16(bits))
	b.WriteString("data")
	_ = binary.Write(&b, le, uint32(len(data)))
	b.Write(data)

	path := filepath.Join(t.TempDir(), "raw.wav")
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
