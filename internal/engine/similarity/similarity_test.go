package similarity

import (
	"math"
	"strings"
	"testing"

	"github.com/cartomix/vinylmind/internal/types"
)

func track(bpm float64, pitchClass int, isMinor bool, energy int, vec []float64) types.TrackAnalysis {
	return types.TrackAnalysis{
		Beatgrid: types.Beatgrid{TempoMap: []types.TempoNode{{BeatIndex: 0, BPM: bpm}}},
		Key:      types.MusicalKey{PitchClass: pitchClass, IsMinor: isMinor},
		Energy:   types.EnergyResult{Global: energy},
		Embedding: types.AudioEmbedding{Vector: vec},
	}
}

func TestCompareIdenticalTracksScoresOne(t *testing.T) {
	vec := []float64{1, 2, 3, 4}
	a := track(128, 0, false, 5, vec)
	b := track(128, 0, false, 5, vec)
	s := Compare(a, b)
	if math.Abs(s.Final-1) > 1e-9 {
		t.Fatalf("expected final score 1, got %v", s.Final)
	}
	if s.KeySim != 1.0 || s.TempoSim != 1.0 || s.EnergySim != 1.0 {
		t.Fatalf("expected all auxiliary sims to be 1, got %+v", s)
	}
}

func TestCompareHalfTempoStillSimilar(t *testing.T) {
	vec := []float64{1, 2, 3}
	a := track(128, 0, false, 5, vec)
	b := track(64, 0, false, 5, vec)
	s := Compare(a, b)
	if s.TempoSim < 0.9 {
		t.Fatalf("expected high tempo similarity for half-tempo match, got %v", s.TempoSim)
	}
}

func TestCompareRelativeKeyScores09(t *testing.T) {
	// C major (8B) and A minor (8A) are relative keys.
	a := track(128, 0, false, 5, []float64{1})
	b := track(128, 9, true, 5, []float64{1})
	s := Compare(a, b)
	if math.Abs(s.KeySim-0.9) > 1e-9 {
		t.Fatalf("expected relative key sim 0.9, got %v", s.KeySim)
	}
}

func TestCompareExplanationHasFourClauses(t *testing.T) {
	a := track(128, 0, false, 5, []float64{1, 0})
	b := track(130, 9, true, 7, []float64{0, 1})
	s := Compare(a, b)
	parts := strings.Split(s.Explanation, "; ")
	if len(parts) != 4 {
		t.Fatalf("expected 4 semicolon-joined clauses, got %d: %q", len(parts), s.Explanation)
	}
	if !strings.HasPrefix(parts[0], "similar vibe (") {
		t.Fatalf("expected vibe clause first, got %q", parts[0])
	}
}

func TestCompareExplanationTempoDeltaNotation(t *testing.T) {
	a := track(128, 0, false, 5, []float64{1})
	b := track(133, 0, false, 5, []float64{1})
	s := Compare(a, b)
	if !strings.Contains(s.Explanation, "Δ5 BPM") {
		t.Fatalf("expected Δ before the BPM delta, got %q", s.Explanation)
	}
}
