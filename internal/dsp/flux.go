package dsp

import (
	"math"

	"github.com/cartomix/vinylmind/internal/types"
)

// SpectralFlux computes the per-frame L2 half-wave-rectified spectral
// flux (spec §4.1): for each frame after the first, sum the squares of
// the positive per-bin differences from the previous frame and take the
// square root. Frame 0 is always 0.
func SpectralFlux(spec types.Spectrogram) []float64 {
	out := make([]float64, len(spec.Frames))
	for i := 1; i < len(spec.Frames); i++ {
		prev, cur := spec.Frames[i-1], spec.Frames[i]
		var sum float64
		n := len(cur)
		if len(prev) < n {
			n = len(prev)
		}
		for b := 0; b < n; b++ {
			d := cur[b] - prev[b]
			if d > 0 {
				sum += d * d
			}
		}
		out[i] = math.Sqrt(sum)
	}
	return out
}
