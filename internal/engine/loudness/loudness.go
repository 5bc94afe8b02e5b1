// Package loudness implements EBU R128 / ITU-R BS.1770-4 loudness
// measurement: a K-weighting biquad cascade derived analytically from
// the sample rate, momentary/short-term block loudness, double-gated
// integration, loudness range, and sample/true peak (spec §4.5).
package loudness

import (
	"math"
	"sort"

	"github.com/cartomix/vinylmind/internal/types"
)

const (
	shelfFreqHz = 1681.974450955533
	shelfGainDB = 3.999843853973347
	shelfQ      = 0.7071752369554196

	hpFreqHz = 38.13547087602444
	hpQ      = 0.5003270373238773

	momentaryBlockSeconds = 0.400
	shortTermBlockSeconds = 3.0
	hopSeconds            = 0.100

	absoluteGateLUFS = -70.0
)

// biquad is a direct-form-II-transposed second-order IIR section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// kWeightingCascade builds the two-stage K-weighting filter for the
// given sample rate via the bilinear transform (spec §4.5).
func kWeightingCascade(sampleRate int) []*biquad {
	fs := float64(sampleRate)

	k := math.Tan(math.Pi * shelfFreqHz / fs)
	vh := math.Pow(10, shelfGainDB/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/shelfQ + k*k
	shelf := &biquad{
		b0: (vh + vb*k/shelfQ + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/shelfQ + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/shelfQ + k*k) / a0,
	}

	k = math.Tan(math.Pi * hpFreqHz / fs)
	a0 = 1 + k/hpQ + k*k
	highpass := &biquad{
		b0: 1 / a0,
		b1: -2 / a0,
		b2: 1 / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/hpQ + k*k) / a0,
	}

	return []*biquad{shelf, highpass}
}

func kWeight(samples []float32, sampleRate int) []float64 {
	cascade := kWeightingCascade(sampleRate)
	out := make([]float64, len(samples))
	for i, s := range samples {
		v := float64(s)
		for _, stage := range cascade {
			v = stage.process(v)
		}
		out[i] = v
	}
	return out
}

// Analyze computes the full set of EBU R128 descriptors for a
// monaural PCM buffer.
func Analyze(samples []float32, sampleRate int, p types.Params) types.LoudnessResult {
	weighted := kWeight(samples, sampleRate)

	momentary := blockLoudness(weighted, sampleRate, momentaryBlockSeconds)
	shortTerm := blockLoudness(weighted, sampleRate, shortTermBlockSeconds)

	integrated := gatedIntegration(momentary)
	lra := loudnessRange(shortTerm, p)

	momentaryMax := maxOrFloor(momentary)
	shortTermMax := maxOrFloor(shortTerm)

	return types.LoudnessResult{
		IntegratedLUFS:  integrated,
		LoudnessRangeLU: lra,
		ShortTermMax:    shortTermMax,
		MomentaryMax:    momentaryMax,
		TruePeakDBTP:    truePeak(samples, p.TruePeakOversample),
		SamplePeakDBFS:  samplePeak(samples),
	}
}

// blockLoudness computes per-block loudness over sliding blocks of the
// given duration with a fixed 100ms hop.
func blockLoudness(weighted []float64, sampleRate int, blockSeconds float64) []float64 {
	blockSize := int(blockSeconds * float64(sampleRate))
	hop := int(hopSeconds * float64(sampleRate))
	if blockSize <= 0 || hop <= 0 || len(weighted) < blockSize {
		return nil
	}
	var out []float64
	for start := 0; start+blockSize <= len(weighted); start += hop {
		var sumSq float64
		for _, v := range weighted[start : start+blockSize] {
			sumSq += v * v
		}
		ms := sumSq / float64(blockSize)
		out = append(out, msToLUFS(ms))
	}
	return out
}

func msToLUFS(ms float64) float64 {
	if ms == 0 {
		return absoluteGateLUFS
	}
	return -0.691 + 10*math.Log10(ms)
}

func lufsToMS(lufs float64) float64 {
	return math.Pow(10, (lufs+0.691)/10)
}

// gatedIntegration implements the §4.5 double-gated integration.
func gatedIntegration(momentary []float64) float64 {
	if len(momentary) == 0 {
		return absoluteGateLUFS
	}
	var gated []float64
	for _, l := range momentary {
		if l > absoluteGateLUFS {
			gated = append(gated, l)
		}
	}
	if len(gated) == 0 {
		return meanLUFS(momentary)
	}
	ungatedMean := meanLUFS(gated)
	relativeGate := ungatedMean - 10
	var relGated []float64
	for _, l := range gated {
		if l > relativeGate {
			relGated = append(relGated, l)
		}
	}
	if len(relGated) == 0 {
		return ungatedMean
	}
	return meanLUFS(relGated)
}

func meanLUFS(values []float64) float64 {
	var sum float64
	for _, l := range values {
		sum += lufsToMS(l)
	}
	return msToLUFS(sum / float64(len(values)))
}

// loudnessRange computes LRA from short-term values above the
// absolute gate, requiring more than 10 surviving blocks.
func loudnessRange(shortTerm []float64, p types.Params) float64 {
	var surviving []float64
	for _, l := range shortTerm {
		if l > absoluteGateLUFS {
			surviving = append(surviving, l)
		}
	}
	if len(surviving) <= 10 {
		return 0
	}
	sort.Float64s(surviving)
	low := percentile(surviving, p.LRALowPercentile)
	high := percentile(surviving, p.LRAHighPercentile)
	return high - low
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := pct * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func maxOrFloor(values []float64) float64 {
	if len(values) == 0 {
		return absoluteGateLUFS
	}
	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}

func samplePeak(samples []float32) float64 {
	maxAbs := 0.0
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return absoluteGateLUFS
	}
	return 20 * math.Log10(maxAbs)
}

// sincTapHalfWidth is the number of input samples considered on each
// side of an interpolated point by the windowed-sinc reconstruction
// kernel used by truePeak.
const sincTapHalfWidth = 4

// truePeak approximates inter-sample peaks per BS.1770-4 Annex 2 by
// oversampling the waveform through a windowed-sinc reconstruction
// filter, the same family of realizable (non-brick-wall) lowpass used
// by the standard's reference polyphase filter. Because the Hamming
// window leaves residual passband ripple near the filter's cutoff,
// reconstructed values can ring slightly above the true bandlimited
// curve right next to a sample extremum, which is exactly the
// mechanism by which real true-peak meters read above the sample peak
// for content near Nyquist (e.g. alternating full-scale samples).
func truePeak(samples []float32, oversample int) float64 {
	if len(samples) < 2 || oversample < 1 {
		return samplePeak(samples)
	}
	at := func(i int) float64 {
		if i < 0 {
			i = 0
		}
		if i >= len(samples) {
			i = len(samples) - 1
		}
		return float64(samples[i])
	}
	maxAbs := 0.0
	for i := 0; i < len(samples); i++ {
		for j := 0; j < oversample; j++ {
			if i == len(samples)-1 && j > 0 {
				break
			}
			t := float64(j) / float64(oversample)
			var v float64
			for k := i - sincTapHalfWidth + 1; k <= i+sincTapHalfWidth; k++ {
				v += at(k) * windowedSinc(t-float64(k-i), sincTapHalfWidth)
			}
			if abs := math.Abs(v); abs > maxAbs {
				maxAbs = abs
			}
		}
	}
	if maxAbs == 0 {
		return absoluteGateLUFS
	}
	return 20 * math.Log10(maxAbs)
}

// windowedSinc evaluates a Hamming-windowed sinc kernel at offset x,
// zero outside +/-halfWidth samples.
func windowedSinc(x float64, halfWidth int) float64 {
	hw := float64(halfWidth)
	if x <= -hw || x >= hw {
		return 0
	}
	window := 0.54 + 0.46*math.Cos(math.Pi*x/hw)
	if x == 0 {
		return window
	}
	return window * math.Sin(math.Pi*x) / (math.Pi * x)
}
