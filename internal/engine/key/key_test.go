package key

import (
	"testing"

	"github.com/cartomix/vinylmind/internal/fixtures"
	"github.com/cartomix/vinylmind/internal/types"
)

func TestDetectAMinorChord(t *testing.T) {
	// Camelot 8A is A minor: A(9), C(0), E(4).
	samples := fixtures.Chord(48000, "8A", 4)
	k := Detect(samples, 48000, types.DefaultParams())

	if k.PitchClass != 9 {
		t.Fatalf("expected pitch class 9 (A), got %d", k.PitchClass)
	}
	if !k.IsMinor {
		t.Fatalf("expected minor key")
	}
	if k.Confidence < 0.7 {
		t.Fatalf("expected confidence >= 0.7, got %v", k.Confidence)
	}
}

func TestDetectCMajorChord(t *testing.T) {
	// Camelot 8B is C major: C(0), E(4), G(7).
	samples := fixtures.Chord(48000, "8B", 4)
	k := Detect(samples, 48000, types.DefaultParams())

	if k.PitchClass != 0 {
		t.Fatalf("expected pitch class 0 (C), got %d", k.PitchClass)
	}
	if k.IsMinor {
		t.Fatalf("expected major key")
	}
}

func TestDetectSilenceYieldsZeroValue(t *testing.T) {
	samples := make([]float32, 48000*2)
	k := Detect(samples, 48000, types.DefaultParams())
	if k != (types.MusicalKey{}) {
		t.Fatalf("expected zero-value key for silence, got %+v", k)
	}
}
