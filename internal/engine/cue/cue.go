// Package cue derives prioritized, beat-aligned cue points and safe
// play bounds from a track's sections and beatgrid (spec §4.8).
package cue

import (
	"sort"

	"github.com/cartomix/vinylmind/internal/types"
)

const downbeatQuantum = 4

// Generate produces at most p.MaxCues cue points plus safe-play bounds.
func Generate(beats []types.BeatMarker, sections []types.Section, p types.Params) ([]types.CuePoint, int, int) {
	if len(beats) == 0 {
		return nil, 0, 0
	}

	proximity := p.DownbeatSnapToleranceBeats

	var cues []types.CuePoint
	cues = append(cues, types.CuePoint{
		Type:        types.CueLoad,
		BeatIndex:   0,
		TimeSeconds: beats[0].TimeSeconds,
		Label:       types.CueLoad.String(),
		Color:       types.CueColor[types.CueLoad],
	})

	for _, s := range sections {
		startType, ok := startCueType(s.Type)
		if !ok {
			continue
		}
		emit(&cues, beats, snapDownbeat(s.StartBeat), startType, proximity)

		switch s.Type {
		case types.SectionIntro:
			emit(&cues, beats, snapDownbeat(s.EndBeat), types.CueIntroEnd, proximity)
		case types.SectionOutro:
			emit(&cues, beats, snapDownbeat(s.EndBeat), types.CueOutroEnd, proximity)
		}
	}

	sort.Slice(cues, func(i, j int) bool { return cues[i].BeatIndex < cues[j].BeatIndex })

	if len(cues) > p.MaxCues {
		sort.SliceStable(cues, func(i, j int) bool {
			return types.CuePriority[cues[i].Type] < types.CuePriority[cues[j].Type]
		})
		cues = cues[:p.MaxCues]
		sort.Slice(cues, func(i, j int) bool { return cues[i].BeatIndex < cues[j].BeatIndex })
	}

	safeStart, safeEnd := safeBounds(beats, sections)
	return cues, safeStart, safeEnd
}

func startCueType(t types.SectionType) (types.CueType, bool) {
	switch t {
	case types.SectionIntro:
		return types.CueIntroStart, true
	case types.SectionVerse:
		return types.CueMarker, true
	case types.SectionBuild:
		return types.CueBuild, true
	case types.SectionDrop:
		return types.CueDrop, true
	case types.SectionBreakdown:
		return types.CueBreakdown, true
	case types.SectionOutro:
		return types.CueOutroStart, true
	default:
		return 0, false
	}
}

// emit appends a cue at beatIndex (callers pass a beat already floored to
// a downbeat by snapDownbeat) and rejects it if within proximity beats of
// an already-emitted cue.
func emit(cues *[]types.CuePoint, beats []types.BeatMarker, beatIndex int, cueType types.CueType, proximity int) {
	if beatIndex < 0 || beatIndex >= len(beats) {
		return
	}
	for _, c := range *cues {
		if absInt(c.BeatIndex-beatIndex) < proximity {
			return
		}
	}
	*cues = append(*cues, types.CuePoint{
		Type:        cueType,
		BeatIndex:   beatIndex,
		TimeSeconds: beats[beatIndex].TimeSeconds,
		Label:       cueType.String(),
		Color:       types.CueColor[cueType],
	})
}

func snapDownbeat(beatIndex int) int {
	return (beatIndex / downbeatQuantum) * downbeatQuantum
}

func safeBounds(beats []types.BeatMarker, sections []types.Section) (int, int) {
	safeStart := 0
	for _, s := range sections {
		if s.Type == types.SectionIntro {
			safeStart = s.EndBeat
			break
		}
	}

	safeEnd := len(beats) - 1
	if safeEnd < 0 {
		safeEnd = 0
	}
	for _, s := range sections {
		if s.Type == types.SectionOutro {
			safeEnd = maxInt(0, s.StartBeat-32)
			break
		}
	}
	return safeStart, safeEnd
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
