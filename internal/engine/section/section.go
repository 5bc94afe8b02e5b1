// Package section partitions a track into labeled, beat-aligned
// sections from phrase-level energy comparisons (spec §4.7).
package section

import (
	"math"

	"github.com/cartomix/vinylmind/internal/dsp"
	"github.com/cartomix/vinylmind/internal/types"
)

// Detect runs boundary discovery, classification, transition window
// derivation, and confidence scoring over a beatgrid and its PCM.
func Detect(samples []float32, sampleRate int, beats []types.BeatMarker, p types.Params) ([]types.Section, []types.TransitionWindow, float64) {
	if len(beats) < p.MinSectionBeats {
		return nil, nil, 0
	}

	spec, err := dsp.STFT(samples, sampleRate, p.FFTSizeKeySection, p.HopSizeKeySection)
	if err != nil || len(spec.Frames) == 0 {
		return nil, nil, 0
	}
	frameEnergy := energyCurve(spec)
	beatEnergy := mapBeatsToEnergy(beats, frameEnergy, spec.HopSize, spec.SampleRate)

	boundaries := discoverBoundaries(beatEnergy, p)
	duration := 0.0
	if len(beats) > 0 {
		duration = beats[len(beats)-1].TimeSeconds
	}

	sections := make([]types.Section, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		start, end := boundaries[i], boundaries[i+1]
		segment := beatEnergy[start:end]
		mu, sigma2 := meanVar(segment)
		posFrac := float64(start) / float64(len(beatEnergy))
		isFirst := i == 0
		isLast := i == len(boundaries)-2

		sec := types.Section{
			StartBeat:   start,
			EndBeat:     end,
			StartTime:   beats[start].TimeSeconds,
			EndTime:     beats[minInt(end, len(beats)-1)].TimeSeconds,
			Confidence:  clip(0.7+0.3*sigma2, 0, 1),
			Type:        classify(mu, sigma2, posFrac, isFirst, isLast, p),
		}
		sections = append(sections, sec)
	}

	windows := transitionWindows(sections, duration)
	overall := overallConfidence(sections)
	return sections, windows, overall
}

func energyCurve(spec types.Spectrogram) []float64 {
	curve := make([]float64, len(spec.Frames))
	maxVal := 0.0
	for i, frame := range spec.Frames {
		var sum float64
		for _, db := range frame {
			sum += dsp.LinearMagnitude(db)
		}
		v := sum / float64(len(frame))
		curve[i] = v
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal > 0 {
		for i := range curve {
			curve[i] /= maxVal
		}
	}
	return curve
}

func mapBeatsToEnergy(beats []types.BeatMarker, frameEnergy []float64, hopSize, sampleRate int) []float64 {
	out := make([]float64, len(beats))
	if len(frameEnergy) == 0 {
		return out
	}
	for i, b := range beats {
		frame := int(b.TimeSeconds * float64(sampleRate) / float64(hopSize))
		if frame < 0 {
			frame = 0
		}
		if frame >= len(frameEnergy) {
			frame = len(frameEnergy) - 1
		}
		out[i] = frameEnergy[frame]
	}
	return out
}

// discoverBoundaries walks phrase boundaries comparing the mean energy
// of the prior 8 beats to the next 8 beats (spec §4.7 step 3).
func discoverBoundaries(beatEnergy []float64, p types.Params) []int {
	boundaries := []int{0}
	last := 0
	for i := p.PhraseBeats; i < len(beatEnergy); i += p.PhraseBeats {
		if i-last < p.MinSectionBeats {
			continue
		}
		priorLo, priorHi := maxInt(0, i-8), i
		nextLo, nextHi := i, minInt(len(beatEnergy), i+8)
		priorMean, _ := meanVar(beatEnergy[priorLo:priorHi])
		nextMean, _ := meanVar(beatEnergy[nextLo:nextHi])
		if math.Abs(nextMean-priorMean) > p.SectionChangeThreshold {
			boundaries = append(boundaries, i)
			last = i
		}
	}
	boundaries = append(boundaries, len(beatEnergy))
	return boundaries
}

func classify(mu, sigma2, posFrac float64, isFirst, isLast bool, p types.Params) types.SectionType {
	switch {
	case isFirst && posFrac < 0.10:
		return types.SectionIntro
	case isLast && posFrac > 0.85:
		return types.SectionOutro
	case mu > 0.75:
		return types.SectionDrop
	case mu < 0.35 && sigma2 < p.BreakdownVarianceThreshold:
		return types.SectionBreakdown
	case mu < 0.35:
		return types.SectionVerse
	case mu > 0.5 && sigma2 > 0.1:
		return types.SectionBuild
	default:
		return types.SectionVerse
	}
}

func transitionWindows(sections []types.Section, duration float64) []types.TransitionWindow {
	var windows []types.TransitionWindow
	for _, s := range sections {
		switch s.Type {
		case types.SectionIntro:
			span := math.Min(16, duration/2)
			windows = append(windows, types.TransitionWindow{StartTime: s.EndTime - span, EndTime: s.EndTime})
		case types.SectionOutro:
			span := math.Min(16, duration/2)
			windows = append(windows, types.TransitionWindow{StartTime: s.StartTime, EndTime: s.StartTime + span})
		case types.SectionBreakdown:
			windows = append(windows, types.TransitionWindow{StartTime: s.StartTime, EndTime: s.EndTime})
		}
	}
	return windows
}

func overallConfidence(sections []types.Section) float64 {
	if len(sections) == 0 {
		return 0
	}
	hasIntro, hasOutro, hasDrop := false, false, false
	var sumConf float64
	for _, s := range sections {
		switch s.Type {
		case types.SectionIntro:
			hasIntro = true
		case types.SectionOutro:
			hasOutro = true
		case types.SectionDrop:
			hasDrop = true
		}
		sumConf += s.Confidence
	}
	structureScore := 0.0
	if hasIntro {
		structureScore += 0.25
	}
	if hasOutro {
		structureScore += 0.25
	}
	if hasDrop {
		structureScore += 0.25
	}
	if len(sections) >= 3 {
		structureScore += 0.25
	}
	meanConf := sumConf / float64(len(sections))
	return 0.5*structureScore + 0.5*meanConf
}

func meanVar(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, variance
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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
