package dsp

import (
	"math"
	"testing"

	"github.com/cartomix/vinylmind/internal/types"
)

func TestNewProcessorRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewProcessor(1000); err == nil {
		t.Fatal("expected error for non power-of-two fft size")
	}
	if _, err := NewProcessor(2048); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func sineWave(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestMagnitudeSpectrumPeaksNearExpectedBin(t *testing.T) {
	const (
		sampleRate = 48000
		fftSize    = 2048
		freq       = 1000.0
	)
	proc, err := NewProcessor(fftSize)
	if err != nil {
		t.Fatal(err)
	}
	frame := sineWave(freq, sampleRate, fftSize)
	mag, err := proc.MagnitudeSpectrum(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(mag) != fftSize/2 {
		t.Fatalf("expected %d bins, got %d", fftSize/2, len(mag))
	}

	expectedBin := int(freq * fftSize / sampleRate)
	peakBin := 0
	for i, v := range mag {
		if v > mag[peakBin] {
			peakBin = i
		}
		_ = v
	}
	if diff := peakBin - expectedBin; diff < -1 || diff > 1 {
		t.Fatalf("peak bin %d far from expected %d", peakBin, expectedBin)
	}
}

func TestSTFTDeterministic(t *testing.T) {
	samples := sineWave(440, 48000, 48000*2)
	a, err := STFT(samples, 48000, 2048, 512)
	if err != nil {
		t.Fatal(err)
	}
	b, err := STFT(samples, 48000, 2048, 512)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Frames) != len(b.Frames) {
		t.Fatalf("frame count mismatch: %d vs %d", len(a.Frames), len(b.Frames))
	}
	for i := range a.Frames {
		for j := range a.Frames[i] {
			if a.Frames[i][j] != b.Frames[i][j] {
				t.Fatalf("frame %d bin %d not bitwise identical", i, j)
			}
		}
	}
}

func TestSTFTFrameCount(t *testing.T) {
	samples := make([]float32, 48000)
	spec, err := STFT(samples, 48000, 2048, 512)
	if err != nil {
		t.Fatal(err)
	}
	want := (len(samples)-2048)/512 + 1
	if len(spec.Frames) != want {
		t.Fatalf("want %d frames, got %d", want, len(spec.Frames))
	}
}

func TestSTFTTooShortYieldsEmpty(t *testing.T) {
	samples := make([]float32, 100)
	spec, err := STFT(samples, 48000, 2048, 512)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Frames) != 0 {
		t.Fatalf("expected no frames for too-short buffer, got %d", len(spec.Frames))
	}
}

func TestSpectralFluxFirstFrameZero(t *testing.T) {
	spec := types.Spectrogram{
		Frames: [][]float64{
			{-10, -10}, {0, 0}, {-10, -10},
		},
		FFTSize: 4, HopSize: 2, SampleRate: 48000,
	}
	flux := SpectralFlux(spec)
	if flux[0] != 0 {
		t.Fatalf("expected frame 0 flux 0, got %v", flux[0])
	}
	if flux[1] <= 0 {
		t.Fatalf("expected positive flux at frame 1, got %v", flux[1])
	}
	if flux[2] != 0 {
		t.Fatalf("expected zero flux on decrease-only frame, got %v", flux[2])
	}
}

func TestChromaFeaturesMaxNormalized(t *testing.T) {
	samples := sineWave(440, 48000, 48000)
	spec, err := STFT(samples, 48000, 2048, 512)
	if err != nil {
		t.Fatal(err)
	}
	chroma := ChromaFeatures(spec)
	for _, frame := range chroma {
		maxVal := 0.0
		for _, v := range frame {
			if v > maxVal {
				maxVal = v
			}
			if v < 0 {
				t.Fatalf("negative chroma value %v", v)
			}
		}
		if maxVal != 0 && maxVal != 1 {
			t.Fatalf("expected max-normalized frame, got max %v", maxVal)
		}
	}
	// 440Hz is A4, pitch class 9.
	mid := chroma[len(chroma)/2]
	if mid[9] != 1 {
		t.Fatalf("expected pitch class 9 (A) to dominate 440Hz frame, got %v", mid)
	}
}
