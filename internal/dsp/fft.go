// Package dsp is the shared spectral front-end (spec §4.1): windowed
// power spectra, spectral flux, and chroma projection, built on
// gonum's real FFT the way linuxmatters/jivefire's internal/audio
// package wraps gonum.org/v1/gonum/dsp/fourier for the same job.
package dsp

import (
	"math"

	"github.com/cartomix/vinylmind/internal/types"
	"gonum.org/v1/gonum/dsp/fourier"
)

// magnitudeFloor is the decibel-scale epsilon floor applied before
// 20*log10, avoiding -Inf on silent bins (spec §4.1).
const magnitudeFloor = 1e-10

// Processor computes windowed power spectra for a fixed FFT size. It
// holds a precomputed Hann window and gonum FFT plan; per spec §5
// ("per-thread" scratch), a Processor must not be shared across
// goroutines — construct one per analyzer/goroutine.
type Processor struct {
	fftSize int
	window  []float64
	fft     *fourier.FFT
	scratch []float64
}

// NewProcessor builds a Processor for the given power-of-two FFT size.
func NewProcessor(fftSize int) (*Processor, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, types.ErrInvalidParameter
	}
	return &Processor{
		fftSize: fftSize,
		window:  hannWindow(fftSize),
		fft:     fourier.NewFFT(fftSize),
		scratch: make([]float64, fftSize),
	}, nil
}

// FFTSize returns the processor's configured FFT size.
func (p *Processor) FFTSize() int { return p.fftSize }

// MagnitudeSpectrum computes the decibel-scale magnitude spectrum of a
// single frame. len(frame) must be >= FFTSize; trailing samples beyond
// FFTSize are ignored. The returned slice has length FFTSize/2.
func (p *Processor) MagnitudeSpectrum(frame []float32) ([]float64, error) {
	if len(frame) < p.fftSize {
		return nil, types.ErrInvalidParameter
	}
	for i := 0; i < p.fftSize; i++ {
		p.scratch[i] = float64(frame[i]) * p.window[i]
	}
	coeffs := p.fft.Coefficients(nil, p.scratch)

	half := p.fftSize / 2
	out := make([]float64, half)
	for i := 0; i < half; i++ {
		re, im := real(coeffs[i]), imag(coeffs[i])
		power := re*re + im*im
		mag := math.Sqrt(power)
		if mag < magnitudeFloor {
			mag = magnitudeFloor
		}
		out[i] = 20 * math.Log10(mag)
	}
	return out, nil
}

// STFT computes the full, eager short-time Fourier transform of a
// monaural sample buffer (spec §4.1). The number of frames is
// floor((N-fftSize)/hopSize + 1); a buffer too short for one full
// frame yields an empty spectrogram rather than an error.
func STFT(samples []float32, sampleRate, fftSize, hopSize int) (types.Spectrogram, error) {
	proc, err := NewProcessor(fftSize)
	if err != nil {
		return types.Spectrogram{}, err
	}
	if hopSize <= 0 {
		return types.Spectrogram{}, types.ErrInvalidParameter
	}

	n := len(samples)
	var frameCount int
	if n >= fftSize {
		frameCount = (n-fftSize)/hopSize + 1
	}

	frames := make([][]float64, frameCount)
	for i := 0; i < frameCount; i++ {
		start := i * hopSize
		mag, err := proc.MagnitudeSpectrum(samples[start:])
		if err != nil {
			return types.Spectrogram{}, err
		}
		frames[i] = mag
	}

	return types.Spectrogram{
		Frames:     frames,
		FFTSize:    fftSize,
		HopSize:    hopSize,
		SampleRate: sampleRate,
	}, nil
}

// LinearMagnitude converts a decibel-scale bin value back to linear
// magnitude (inverse of the 20*log10 used throughout this package).
func LinearMagnitude(db float64) float64 {
	return math.Pow(10, db/20)
}
