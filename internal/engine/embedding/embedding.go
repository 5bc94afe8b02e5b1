// Package embedding produces the deterministic feature vector and six
// scalar descriptors used as similarity auxiliaries (spec §4.6).
package embedding

import (
	"math"

	"github.com/cartomix/vinylmind/internal/dsp"
	"github.com/cartomix/vinylmind/internal/types"
	"gonum.org/v1/gonum/stat"
)

const rolloffThreshold = 0.85

// Generate computes the full AudioEmbedding for a monaural PCM buffer.
func Generate(samples []float32, sampleRate int, p types.Params) types.AudioEmbedding {
	spec, err := dsp.STFT(samples, sampleRate, p.FFTSizeMain, p.HopSizeEnergyEmbed)
	if err != nil || len(spec.Frames) == 0 {
		return types.AudioEmbedding{Vector: make([]float64, p.EmbeddingDim)}
	}

	flux := dsp.SpectralFlux(spec)

	return types.AudioEmbedding{
		Vector:             buildVector(spec, p.EmbeddingDim),
		SpectralCentroidHz: spectralCentroid(spec),
		SpectralRolloffHz:  spectralRolloff(spec, rolloffThreshold),
		ZeroCrossingRate:   zeroCrossingRate(samples),
		SpectralFlatness:   spectralFlatness(spec),
		TempoStability:     tempoStability(flux),
		HarmonicRatio:      harmonicRatio(spec),
	}
}

func spectralCentroid(spec types.Spectrogram) float64 {
	binHz := float64(spec.SampleRate) / float64(spec.FFTSize)
	var total float64
	for _, frame := range spec.Frames {
		var num, den float64
		for b, db := range frame {
			mag := dsp.LinearMagnitude(db)
			f := float64(b) * binHz
			num += f * mag
			den += mag
		}
		if den > 0 {
			total += num / den
		}
	}
	return total / float64(len(spec.Frames))
}

func spectralRolloff(spec types.Spectrogram, threshold float64) float64 {
	binHz := float64(spec.SampleRate) / float64(spec.FFTSize)
	var total float64
	for _, frame := range spec.Frames {
		totalEnergy := 0.0
		for _, db := range frame {
			totalEnergy += dsp.LinearMagnitude(db)
		}
		target := threshold * totalEnergy
		cum := 0.0
		bin := len(frame) - 1
		for b, db := range frame {
			cum += dsp.LinearMagnitude(db)
			if cum >= target {
				bin = b
				break
			}
		}
		total += float64(bin) * binHz
	}
	return total / float64(len(spec.Frames))
}

func zeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

func spectralFlatness(spec types.Spectrogram) float64 {
	var total float64
	for _, frame := range spec.Frames {
		var logSum, arithSum float64
		for _, db := range frame {
			mag := dsp.LinearMagnitude(db)
			if mag <= 0 {
				mag = 1e-10
			}
			logSum += math.Log(mag)
			arithSum += mag
		}
		geoMean := math.Exp(logSum / float64(len(frame)))
		arithMean := arithSum / float64(len(frame))
		if arithMean > 0 {
			total += geoMean / arithMean
		}
	}
	return total / float64(len(spec.Frames))
}

func tempoStability(flux []float64) float64 {
	if len(flux) == 0 {
		return 0
	}
	mean, std := meanStd(flux)
	if mean <= 0 {
		return 0
	}
	cv := std / mean
	return clip(1-cv, 0, 1)
}

func harmonicRatio(spec types.Spectrogram) float64 {
	var total float64
	for _, frame := range spec.Frames {
		var peakEnergy, totalEnergy float64
		for b, db := range frame {
			mag := dsp.LinearMagnitude(db)
			totalEnergy += mag
			if b == 0 || b == len(frame)-1 {
				continue
			}
			prev := dsp.LinearMagnitude(frame[b-1])
			next := dsp.LinearMagnitude(frame[b+1])
			if mag > prev && mag > next {
				peakEnergy += mag
			}
		}
		if totalEnergy > 0 {
			total += peakEnergy / totalEnergy
		}
	}
	return total / float64(len(spec.Frames))
}

// buildVector partitions the bin axis into dim/4 equal-width bands and
// computes mean, std, delta, and delta-delta per band (spec §4.6).
func buildVector(spec types.Spectrogram, dim int) []float64 {
	numBands := dim / 4
	if numBands < 1 {
		numBands = 1
	}
	numBins := len(spec.Frames[0])
	bandWidth := numBins / numBands
	if bandWidth < 1 {
		bandWidth = 1
	}

	bandSeries := make([][]float64, numBands)
	for band := 0; band < numBands; band++ {
		lo := band * bandWidth
		hi := lo + bandWidth
		if band == numBands-1 || hi > numBins {
			hi = numBins
		}
		series := make([]float64, len(spec.Frames))
		for fi, frame := range spec.Frames {
			var sum float64
			for b := lo; b < hi; b++ {
				sum += dsp.LinearMagnitude(frame[b])
			}
			series[fi] = sum / float64(hi-lo)
		}
		bandSeries[band] = series
	}

	means := make([]float64, numBands)
	stds := make([]float64, numBands)
	deltas := make([]float64, numBands)
	deltaDeltas := make([]float64, numBands)
	for band, series := range bandSeries {
		means[band], stds[band] = meanStd(series)
		deltas[band] = meanAbsDiff(series, 1)
		deltaDeltas[band] = meanAbsDiff(diffSeries(series, 2), 1)
	}

	maxNorm(means)
	maxNorm(stds)
	maxNorm(deltas)
	maxNorm(deltaDeltas)

	vec := make([]float64, 0, 4*numBands)
	vec = append(vec, means...)
	vec = append(vec, stds...)
	vec = append(vec, deltas...)
	vec = append(vec, deltaDeltas...)

	out := make([]float64, dim)
	n := len(vec)
	if n > dim {
		n = dim
	}
	copy(out, vec[:n])
	return out
}

func diffSeries(series []float64, lag int) []float64 {
	if len(series) <= lag {
		return nil
	}
	out := make([]float64, len(series)-lag)
	for i := range out {
		out[i] = series[i+lag] - series[i]
	}
	return out
}

func meanAbsDiff(series []float64, lag int) float64 {
	if len(series) <= lag {
		return 0
	}
	var sum float64
	n := 0
	for i := lag; i < len(series); i++ {
		sum += math.Abs(series[i] - series[i-lag])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func maxNorm(xs []float64) {
	maxVal := 0.0
	for _, x := range xs {
		if math.Abs(x) > maxVal {
			maxVal = math.Abs(x)
		}
	}
	if maxVal <= 0 {
		return
	}
	for i := range xs {
		xs[i] /= maxVal
	}
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(xs, nil)
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

// CosineSimilarity computes dot/(||a||*||b||), 0 if either is zero.
func CosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
