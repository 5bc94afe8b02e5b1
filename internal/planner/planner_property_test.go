package planner

import (
	"math"
	"testing"

	keyengine "github.com/cartomix/vinylmind/internal/engine/key"
	"github.com/cartomix/vinylmind/internal/types"
)

// TestPlanOutputContainsAllInputs verifies that the planner doesn't drop tracks.
func TestPlanOutputContainsAllInputs(t *testing.T) {
	testCases := []int{1, 2, 5, 10, 20}

	for _, n := range testCases {
		analyses := generateAnalyses(n)
		order, _, err := Plan(analyses, Options{Mode: SetModePeakTime})
		if err != nil {
			t.Errorf("Plan(%d tracks) failed: %v", n, err)
			continue
		}

		if len(order) != n {
			t.Errorf("Plan(%d tracks): expected %d in output, got %d", n, n, len(order))
		}

		// Verify no duplicates
		seen := make(map[string]bool)
		for _, id := range order {
			if seen[id.ContentHash] {
				t.Errorf("Plan(%d tracks): duplicate track %s in output", n, id.ContentHash)
			}
			seen[id.ContentHash] = true
		}
	}
}

// TestPlanDeterministic verifies that the same input produces the same output.
func TestPlanDeterministic(t *testing.T) {
	analyses := generateAnalyses(10)
	opts := Options{Mode: SetModeWarmUp}

	order1, _, err1 := Plan(analyses, opts)
	if err1 != nil {
		t.Fatalf("first Plan() failed: %v", err1)
	}

	order2, _, err2 := Plan(analyses, opts)
	if err2 != nil {
		t.Fatalf("second Plan() failed: %v", err2)
	}

	if len(order1) != len(order2) {
		t.Fatal("determinism failed: different lengths")
	}

	for i := range order1 {
		if order1[i].ContentHash != order2[i].ContentHash {
			t.Errorf("determinism failed at index %d: %s != %s",
				i, order1[i].ContentHash, order2[i].ContentHash)
		}
	}
}

// TestBanExcludesTracks verifies that banned tracks are excluded.
func TestBanExcludesTracks(t *testing.T) {
	analyses := generateAnalyses(5)
	bannedHash := analyses[2].ContentHash

	opts := Options{
		Mode:      SetModePeakTime,
		BanHashes: map[string]bool{bannedHash: true},
	}

	order, _, err := Plan(analyses, opts)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	if len(order) != 4 {
		t.Errorf("expected 4 tracks after ban, got %d", len(order))
	}

	for _, id := range order {
		if id.ContentHash == bannedHash {
			t.Error("banned track appeared in output")
		}
	}
}

// TestMustPlayIncluded verifies that must-play tracks are included.
func TestMustPlayIncluded(t *testing.T) {
	analyses := generateAnalyses(10)
	mustPlayHash := analyses[5].ContentHash

	opts := Options{
		Mode:           SetModeOpenFormat,
		MustPlayHashes: map[string]bool{mustPlayHash: true},
	}

	order, _, err := Plan(analyses, opts)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	found := false
	for _, id := range order {
		if id.ContentHash == mustPlayHash {
			found = true
			break
		}
	}

	if !found {
		t.Error("must-play track not found in output")
	}
}

// TestExplanationsMatchOrder verifies that explanations correspond to transitions.
func TestExplanationsMatchOrder(t *testing.T) {
	analyses := generateAnalyses(5)
	order, explanations, err := Plan(analyses, Options{Mode: SetModePeakTime})
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	if len(order) < 2 {
		t.Skip("not enough tracks for transition explanations")
	}

	// Explanations should be n-1 for n tracks
	expectedExpls := len(order) - 1
	if len(explanations) != expectedExpls {
		t.Errorf("expected %d explanations for %d tracks, got %d",
			expectedExpls, len(order), len(explanations))
	}

	// Each explanation should connect consecutive tracks
	for i, expl := range explanations {
		if i >= len(order)-1 {
			break
		}
		fromHash := order[i].ContentHash
		toHash := order[i+1].ContentHash

		if expl.From.ContentHash != fromHash {
			t.Errorf("explanation %d: from hash mismatch", i)
		}
		if expl.To.ContentHash != toHash {
			t.Errorf("explanation %d: to hash mismatch", i)
		}
	}
}

// TestKeyCompatibilityProperties verifies that key compatibility is symmetric.
func TestKeyCompatibilityProperties(t *testing.T) {
	testCases := []struct {
		key1, key2 string
	}{
		{"8A", "8A"},  // Same key
		{"8A", "9A"},  // Adjacent
		{"8A", "7A"},  // Adjacent
		{"8A", "8B"},  // Same wheel, different mode
		{"1A", "12A"}, // Wrap-around
	}

	for _, tc := range testCases {
		score1, _ := keyCompatibility(tc.key1, tc.key2, false)
		score2, _ := keyCompatibility(tc.key2, tc.key1, false)

		// Key compatibility should be symmetric
		if math.Abs(score1-score2) > 0.001 {
			t.Errorf("key compatibility not symmetric: (%s, %s) = %f, (%s, %s) = %f",
				tc.key1, tc.key2, score1, tc.key2, tc.key1, score2)
		}
	}
}

// TestScoreEdgeBounds verifies that edge scores are bounded.
func TestScoreEdgeBounds(t *testing.T) {
	analyses := generateAnalyses(20)
	opts := Options{Mode: SetModePeakTime}

	for i := 0; i < len(analyses)-1; i++ {
		score, expl := scoreEdge(analyses[i], analyses[i+1], opts)

		// Score should be finite
		if math.IsNaN(score) || math.IsInf(score, 0) {
			t.Errorf("invalid score for edge %d->%d: %f", i, i+1, score)
		}

		if math.Abs(expl.Score-score) > 0.001 {
			t.Errorf("score mismatch: func returned %f, explanation has %f", score, expl.Score)
		}
	}
}

// TestWarmUpModePreferencesLowEnergyStart verifies warm-up mode behavior.
func TestWarmUpModePreferencesLowEnergyStart(t *testing.T) {
	// Create tracks with varying energy
	analyses := []types.TrackAnalysis{
		makeAnalysis("high1", 128, "8A", 9),
		makeAnalysis("high2", 130, "8A", 8),
		makeAnalysis("low1", 120, "8A", 3),
		makeAnalysis("low2", 122, "8A", 4),
		makeAnalysis("mid", 125, "8A", 6),
	}

	order, _, err := Plan(analyses, Options{Mode: SetModeWarmUp})
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	// First track should be one of the low energy ones
	firstHash := order[0].ContentHash
	firstEnergy := findEnergy(analyses, firstHash)

	if firstEnergy > 5 {
		t.Errorf("warm-up mode started with high energy track (energy=%d)", firstEnergy)
	}
}

// TestPeakTimeModePreferencesHighEnergyStart verifies peak-time mode behavior.
func TestPeakTimeModePreferencesHighEnergyStart(t *testing.T) {
	// Create tracks with varying energy
	analyses := []types.TrackAnalysis{
		makeAnalysis("high1", 128, "8A", 9),
		makeAnalysis("high2", 130, "8A", 8),
		makeAnalysis("low1", 120, "8A", 3),
		makeAnalysis("low2", 122, "8A", 4),
		makeAnalysis("mid", 125, "8A", 6),
	}

	order, _, err := Plan(analyses, Options{Mode: SetModePeakTime})
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	// First track should be one of the high energy ones
	firstHash := order[0].ContentHash
	firstEnergy := findEnergy(analyses, firstHash)

	if firstEnergy < 7 {
		t.Errorf("peak-time mode started with low energy track (energy=%d)", firstEnergy)
	}
}

// Helper functions

func generateAnalyses(n int) []types.TrackAnalysis {
	analyses := make([]types.TrackAnalysis, n)
	keys := []string{"1A", "2A", "3A", "4A", "5A", "6A", "7A", "8A", "9A", "10A", "11A", "12A"}

	for i := 0; i < n; i++ {
		bpm := 120.0 + float64(i%20)*2.0 // 120-158 BPM
		camelot := keys[i%len(keys)]
		energy := (i % 10) + 1 // 1-10 energy

		analyses[i] = makeAnalysis(
			string(rune('a'+i)),
			bpm,
			camelot,
			energy,
		)
	}
	return analyses
}

func makeAnalysis(hash string, bpm float64, camelot string, energy int) types.TrackAnalysis {
	pitchClass, isMinor, err := keyengine.ParseCamelot(camelot)
	if err != nil {
		panic(err)
	}
	return types.TrackAnalysis{
		ContentHash: hash,
		Path:        "/test/" + hash + ".mp3",
		Key:         types.MusicalKey{PitchClass: pitchClass, IsMinor: isMinor, Confidence: 0.9},
		Beatgrid: types.Beatgrid{
			Beats: []types.BeatMarker{
				{Index: 0, TimeSeconds: 0, IsDownbeat: true},
				{Index: 100, TimeSeconds: 180, IsDownbeat: true},
			},
			TempoMap:   []types.TempoNode{{BeatIndex: 0, BPM: bpm}},
			Confidence: 0.85,
		},
		Energy: types.EnergyResult{Global: energy},
		TransitionWindows: []types.TransitionWindow{
			{StartTime: 0, EndTime: 8},
		},
	}
}

func findEnergy(analyses []types.TrackAnalysis, hash string) int {
	for _, a := range analyses {
		if a.ContentHash == hash {
			return a.Energy.Global
		}
	}
	return 0
}
