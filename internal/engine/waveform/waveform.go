// Package waveform reduces a PCM buffer to a fixed-bin peak envelope
// for UI display (spec §4.9).
package waveform

import "math"

// Summarize partitions samples into bins equal partitions, each bin's
// value the max absolute sample within it. The final partial bin, if
// any, is absorbed into the last bin.
func Summarize(samples []float32, bins int) []float64 {
	if len(samples) == 0 || bins <= 0 {
		return nil
	}
	out := make([]float64, bins)
	binSize := len(samples) / bins
	if binSize == 0 {
		binSize = 1
	}
	for b := 0; b < bins; b++ {
		lo := b * binSize
		hi := lo + binSize
		if b == bins-1 || hi > len(samples) {
			hi = len(samples)
		}
		if lo >= len(samples) {
			out[b] = 0
			continue
		}
		maxAbs := 0.0
		for _, s := range samples[lo:hi] {
			if a := math.Abs(float64(s)); a > maxAbs {
				maxAbs = a
			}
		}
		out[b] = maxAbs
	}
	return out
}
