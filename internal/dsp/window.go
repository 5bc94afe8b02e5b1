package dsp

import "math"

// hannWindow returns a normalized Hann window of length n: the raw
// 0.5*(1-cos(2*pi*i/(n-1))) bell, rescaled so its mean is 1 (spec
// §4.1: "Hann-windowed (normalized coefficients)"). Normalizing by the
// mean keeps the windowed signal's overall energy comparable across
// frames regardless of window shape.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	var sum float64
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		sum += w[i]
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return w
	}
	for i := range w {
		w[i] /= mean
	}
	return w
}
