// Package beatgrid estimates tempo and beat times from onset evidence
// (spec §4.2): autocorrelation tempo estimation, adaptive peak picking,
// fixed-spacing grid alignment, and a deviation-based confidence score.
package beatgrid

import (
	"math"
	"sort"

	"github.com/cartomix/vinylmind/internal/dsp"
	"github.com/cartomix/vinylmind/internal/types"
)

const fallbackBPM = 120.0

// Detect runs the full beatgrid algorithm over a monaural PCM buffer.
// It never returns an error: degenerate input recovers into the
// documented fallback of §4.2/§7 (120 BPM, no beats, confidence 0).
func Detect(samples []float32, sampleRate int, p types.Params) types.Beatgrid {
	spec, err := dsp.STFT(samples, sampleRate, p.FFTSizeMain, p.HopSizeMain)
	if err != nil || len(spec.Frames) == 0 {
		return fallback()
	}
	onset := dsp.SpectralFlux(spec)
	frameRate := spec.FrameRate()

	minLag := int(60 * frameRate / p.TempoCeilBPM)
	maxLag := int(60 * frameRate / p.TempoFloorBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(onset) || maxLag < minLag {
		return fallback()
	}

	mean, std := meanStd(onset)
	if std <= 1e-12 {
		// No variation in onset strength: nothing to lock tempo to.
		return fallback()
	}

	bestLag := autocorrelationPeak(onset, minLag, maxLag)
	bpm := 60 * frameRate / float64(bestLag)
	bpm = clip(bpm, p.TempoFloorBPM, p.TempoCeilBPM)

	threshold := mean + 0.5*std
	halfWidth := bestLag / 4
	if halfWidth < 3 {
		halfWidth = 3
	}
	peaks := pickPeaks(onset, threshold, halfWidth)
	peaks = mergeClosePeaks(peaks, onset, bestLag/2)

	if len(peaks) == 0 {
		return types.Beatgrid{
			TempoMap:   []types.TempoNode{{BeatIndex: 0, BPM: bpm}},
			Confidence: 0,
		}
	}

	beats := buildGrid(peaks[0], bestLag, len(onset), spec.HopSize, sampleRate)
	confidence := gridConfidence(beats, 60/bpm)

	return types.Beatgrid{
		Beats:      beats,
		TempoMap:   []types.TempoNode{{BeatIndex: 0, BPM: bpm}},
		Confidence: confidence,
	}
}

func fallback() types.Beatgrid {
	return types.Beatgrid{
		TempoMap:   []types.TempoNode{{BeatIndex: 0, BPM: fallbackBPM}},
		Confidence: 0,
	}
}

func autocorrelationPeak(onset []float64, minLag, maxLag int) int {
	bestLag := minLag
	bestScore := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		n := len(onset) - lag
		if n <= 0 {
			continue
		}
		var sum float64
		for i := 0; i < n; i++ {
			sum += onset[i] * onset[i+lag]
		}
		score := sum / float64(n)
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	return bestLag
}

func pickPeaks(onset []float64, threshold float64, halfWidth int) []int {
	var peaks []int
	for i, v := range onset {
		if v < threshold {
			continue
		}
		isPeak := true
		lo := i - halfWidth
		if lo < 0 {
			lo = 0
		}
		hi := i + halfWidth
		if hi > len(onset)-1 {
			hi = len(onset) - 1
		}
		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			if onset[j] >= v {
				isPeak = false
				break
			}
		}
		if isPeak {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// mergeClosePeaks keeps the higher of any two peaks closer than minGap.
func mergeClosePeaks(peaks []int, onset []float64, minGap int) []int {
	if len(peaks) < 2 {
		return peaks
	}
	sort.Ints(peaks)
	merged := []int{peaks[0]}
	for _, p := range peaks[1:] {
		last := merged[len(merged)-1]
		if p-last < minGap {
			if onset[p] > onset[last] {
				merged[len(merged)-1] = p
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func buildGrid(startFrame, lag, frameCount, hopSize, sampleRate int) []types.BeatMarker {
	var beats []types.BeatMarker
	idx := 0
	for frame := startFrame; frame < frameCount; frame += lag {
		beats = append(beats, types.BeatMarker{
			Index:       idx,
			TimeSeconds: float64(frame*hopSize) / float64(sampleRate),
			IsDownbeat:  idx%4 == 0,
		})
		idx++
	}
	return beats
}

func gridConfidence(beats []types.BeatMarker, expectedInterval float64) float64 {
	if len(beats) < 3 {
		return 0
	}
	var sumDev float64
	n := 0
	for i := 1; i < len(beats); i++ {
		interval := beats[i].TimeSeconds - beats[i-1].TimeSeconds
		sumDev += math.Abs(interval - expectedInterval)
		n++
	}
	if n == 0 || expectedInterval <= 0 {
		return 0
	}
	meanDev := (sumDev / float64(n)) / expectedInterval
	return clip(1-2*meanDev, 0, 1)
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(xs)))
	return mean, std
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
