// Package key estimates the musical key of a track by correlating its
// averaged chroma against the 24 rotations of the Krumhansl–Schmuckler
// major/minor pitch-class profiles (spec §4.3).
package key

import (
	"github.com/cartomix/vinylmind/internal/dsp"
	"github.com/cartomix/vinylmind/internal/types"
	"gonum.org/v1/gonum/stat"
)

// Canonical Krumhansl–Schmuckler profiles (spec §4.3, fixed constants).
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// Detect estimates the musical key of a monaural PCM buffer.
func Detect(samples []float32, sampleRate int, p types.Params) types.MusicalKey {
	spec, err := dsp.STFT(samples, sampleRate, p.FFTSizeKeySection, p.HopSizeKeySection)
	if err != nil || len(spec.Frames) == 0 {
		return types.MusicalKey{}
	}
	chroma := dsp.ChromaFeatures(spec)

	var avg [12]float64
	for _, frame := range chroma {
		for i, v := range frame {
			avg[i] += v / float64(len(chroma))
		}
	}
	maxNorm(&avg)

	avgSlice := avg[:]

	bestPC := 0
	bestMinor := false
	bestCorr := -2.0
	for pc := 0; pc < 12; pc++ {
		majorCandidate := rotate(majorProfile, pc)
		if r := stat.Correlation(avgSlice, majorCandidate, nil); r > bestCorr {
			bestCorr, bestPC, bestMinor = r, pc, false
		}
		minorCandidate := rotate(minorProfile, pc)
		if r := stat.Correlation(avgSlice, minorCandidate, nil); r > bestCorr {
			bestCorr, bestPC, bestMinor = r, pc, true
		}
	}

	return types.MusicalKey{
		PitchClass: bestPC,
		IsMinor:    bestMinor,
		Confidence: clip((bestCorr+1)/2, 0, 1),
	}
}

// rotate shifts a canonical profile so pitch class p is its root:
// rotated[i] = profile[(i-p) mod 12].
func rotate(profile [12]float64, p int) []float64 {
	out := make([]float64, 12)
	for i := 0; i < 12; i++ {
		out[i] = profile[(i-p+12)%12]
	}
	return out
}

func maxNorm(v *[12]float64) {
	maxVal := 0.0
	for _, x := range v {
		if x > maxVal {
			maxVal = x
		}
	}
	if maxVal <= 0 {
		return
	}
	for i := range v {
		v[i] /= maxVal
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
