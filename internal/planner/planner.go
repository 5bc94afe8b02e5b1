package planner

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cartomix/vinylmind/internal/engine/key"
	"github.com/cartomix/vinylmind/internal/types"
)

// SetMode biases track ordering toward a DJ-set shape.
type SetMode int

const (
	SetModeOpenFormat SetMode = iota
	SetModeWarmUp
	SetModePeakTime
)

// TrackID identifies a track within a plan.
type TrackID struct {
	ContentHash string
	Path        string
}

// EdgeExplanation documents why one track was chosen to follow another.
type EdgeExplanation struct {
	From          TrackID
	To            TrackID
	Score         float64
	TempoDelta    float64
	EnergyDelta   int
	KeyRelation   string
	WindowOverlap string
	Reason        string
}

// Options controls how set planning scores transitions.
type Options struct {
	Mode           SetMode
	AllowKeyJumps  bool
	MaxBpmStep     float64
	MustPlayHashes map[string]bool
	BanHashes      map[string]bool
}

// Plan produces an ordering of tracks with per-edge explanations.
func Plan(analyses []types.TrackAnalysis, opts Options) ([]TrackID, []EdgeExplanation, error) {
	if len(analyses) == 0 {
		return nil, nil, fmt.Errorf("no analyses provided")
	}

	filtered := make([]types.TrackAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if a.ContentHash == "" {
			continue
		}
		if opts.BanHashes != nil && opts.BanHashes[a.ContentHash] {
			continue
		}
		filtered = append(filtered, a)
	}

	if len(filtered) == 0 {
		return nil, nil, fmt.Errorf("all tracks were filtered out")
	}

	if len(opts.MustPlayHashes) > 0 {
		for hash := range opts.MustPlayHashes {
			found := false
			for _, a := range filtered {
				if a.ContentHash == hash {
					found = true
					break
				}
			}
			if !found {
				return nil, nil, fmt.Errorf("must-play track %s missing analysis", hash)
			}
		}
	}

	start := chooseStart(filtered, opts.Mode)
	order := []types.TrackAnalysis{start}
	remaining := map[string]types.TrackAnalysis{}
	for _, a := range filtered {
		if a.ContentHash == start.ContentHash {
			continue
		}
		remaining[a.ContentHash] = a
	}

	explanations := []EdgeExplanation{}
	current := start

	for len(remaining) > 0 {
		next, explanation, ok := bestNext(current, remaining, opts)
		if !ok {
			// fall back to arbitrary ordering to keep the plan complete
			for _, leftover := range remaining {
				order = append(order, leftover)
			}
			break
		}
		order = append(order, next)
		explanations = append(explanations, explanation)
		delete(remaining, next.ContentHash)
		current = next
	}

	ids := make([]TrackID, 0, len(order))
	for _, t := range order {
		ids = append(ids, TrackID{ContentHash: t.ContentHash, Path: t.Path})
	}

	return ids, explanations, nil
}

func chooseStart(analyses []types.TrackAnalysis, mode SetMode) types.TrackAnalysis {
	clone := make([]types.TrackAnalysis, len(analyses))
	copy(clone, analyses)

	switch mode {
	case SetModeWarmUp:
		sort.Slice(clone, func(i, j int) bool {
			return clone[i].Energy.Global < clone[j].Energy.Global
		})
	case SetModePeakTime:
		sort.Slice(clone, func(i, j int) bool {
			return clone[i].Energy.Global > clone[j].Energy.Global
		})
	default: // open format or unspecified
		sort.Slice(clone, func(i, j int) bool {
			return estimateBPM(clone[i]) < estimateBPM(clone[j])
		})
	}

	return clone[0]
}

func bestNext(current types.TrackAnalysis, remaining map[string]types.TrackAnalysis, opts Options) (types.TrackAnalysis, EdgeExplanation, bool) {
	var (
		bestTrack types.TrackAnalysis
		bestScore = math.Inf(-1)
		bestEdge  EdgeExplanation
		found     bool
	)

	for _, cand := range remaining {
		score, expl := scoreEdge(current, cand, opts)
		if score > bestScore {
			bestScore = score
			bestTrack = cand
			bestEdge = expl
			found = true
		}
	}

	return bestTrack, bestEdge, found
}

func scoreEdge(from, to types.TrackAnalysis, opts Options) (float64, EdgeExplanation) {
	fromBPM := estimateBPM(from)
	toBPM := estimateBPM(to)
	bpmDelta := toBPM - fromBPM

	tempoScore := 4.0 - math.Abs(bpmDelta)/2
	if opts.MaxBpmStep > 0 && math.Abs(bpmDelta) > opts.MaxBpmStep {
		tempoScore -= 4 // heavy penalty for exceeding allowed step
	}

	fromCamelot := key.CamelotOf(from.Key.PitchClass, from.Key.IsMinor)
	toCamelot := key.CamelotOf(to.Key.PitchClass, to.Key.IsMinor)
	keyScore, relation := keyCompatibility(fromCamelot, toCamelot, opts.AllowKeyJumps)

	energyDelta := to.Energy.Global - from.Energy.Global
	energyScore := 2.0 - math.Abs(float64(energyDelta))*0.5

	switch opts.Mode {
	case SetModeWarmUp:
		if energyDelta > 0 {
			energyScore += 1
		}
	case SetModePeakTime:
		if to.Energy.Global >= from.Energy.Global {
			energyScore += 1
		}
	}

	window := windowOverlap(from, to)
	windowScore := 0.0
	if window != "" {
		windowScore = 1.0
	}

	total := keyScore + tempoScore + energyScore + windowScore

	expl := EdgeExplanation{
		From:          TrackID{ContentHash: from.ContentHash, Path: from.Path},
		To:            TrackID{ContentHash: to.ContentHash, Path: to.Path},
		Score:         total,
		TempoDelta:    bpmDelta,
		EnergyDelta:   energyDelta,
		KeyRelation:   relation,
		WindowOverlap: window,
		Reason:        fmt.Sprintf("%s; Δ%.1f BPM; Δenergy %d", relation, bpmDelta, energyDelta),
	}

	return total, expl
}

func keyCompatibility(from, to string, allowJumps bool) (float64, string) {
	if from == "" || to == "" {
		return -1, "unknown key"
	}

	fromNum, fromMode, okFrom := parseCamelot(from)
	toNum, toMode, okTo := parseCamelot(to)

	if !okFrom || !okTo {
		if allowJumps {
			return 0, "unverified key jump"
		}
		return -3, "key mismatch"
	}

	if fromNum == toNum && fromMode == toMode {
		return 4, "same key"
	}

	if fromMode == toMode && int(math.Abs(float64(fromNum-toNum))) == 1 {
		dir := "+"
		if toNum < fromNum {
			dir = "-"
		}
		return 3, fmt.Sprintf("%s1 Camelot", dir)
	}

	if allowJumps {
		return 1, "permitted key jump"
	}

	return -2, "distant key"
}

func parseCamelot(value string) (int, string, bool) {
	value = strings.TrimSpace(strings.ToUpper(value))
	if value == "" {
		return 0, "", false
	}

	mode := value[len(value)-1:]
	numPart := value[:len(value)-1]
	num, err := strconv.Atoi(numPart)
	if err != nil || num < 1 || num > 12 {
		return 0, "", false
	}

	if mode != "A" && mode != "B" {
		return 0, "", false
	}

	return num, mode, true
}

func windowOverlap(from, to types.TrackAnalysis) string {
	if len(from.TransitionWindows) == 0 || len(to.TransitionWindows) == 0 {
		return ""
	}

	return fmt.Sprintf("%.1fs-%.1fs → %.1fs-%.1fs",
		from.TransitionWindows[0].StartTime, from.TransitionWindows[0].EndTime,
		to.TransitionWindows[0].StartTime, to.TransitionWindows[0].EndTime)
}

func estimateBPM(a types.TrackAnalysis) float64 {
	if len(a.Beatgrid.TempoMap) > 0 {
		return a.Beatgrid.TempoMap[0].BPM
	}
	beats := a.Beatgrid.Beats
	if len(beats) >= 2 {
		delta := beats[1].TimeSeconds - beats[0].TimeSeconds
		if delta > 0 {
			return 60 / delta
		}
	}
	return 0
}
