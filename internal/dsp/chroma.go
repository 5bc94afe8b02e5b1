package dsp

import (
	"math"

	"github.com/cartomix/vinylmind/internal/types"
)

const (
	chromaMinHz = 20.0
	chromaMaxHz = 5000.0
)

// ChromaFeatures projects each STFT frame onto a 12-bin pitch-class
// vector (spec §4.1). For every bin whose center frequency falls in
// [20Hz, 5000Hz], its linear magnitude is accumulated into pitch class
// round(12*log2(f/440)+69) mod 12. Each frame is then max-normalized.
func ChromaFeatures(spec types.Spectrogram) [][12]float64 {
	out := make([][12]float64, len(spec.Frames))
	if spec.SampleRate == 0 || spec.FFTSize == 0 {
		return out
	}
	binHz := float64(spec.SampleRate) / float64(spec.FFTSize)

	for fi, frame := range spec.Frames {
		var vec [12]float64
		for b, db := range frame {
			f := float64(b) * binHz
			if f < chromaMinHz || f > chromaMaxHz {
				continue
			}
			pc := pitchClass(f)
			vec[pc] += LinearMagnitude(db)
		}
		maxVal := 0.0
		for _, v := range vec {
			if v > maxVal {
				maxVal = v
			}
		}
		if maxVal > 0 {
			for i := range vec {
				vec[i] /= maxVal
			}
		}
		out[fi] = vec
	}
	return out
}

func pitchClass(freqHz float64) int {
	midi := math.Round(12*math.Log2(freqHz/440) + 69)
	pc := int(math.Mod(midi, 12))
	if pc < 0 {
		pc += 12
	}
	return pc
}
