package section

import (
	"math"
	"testing"

	"github.com/cartomix/vinylmind/internal/types"
)

func beatsAt(bpm float64, count int) []types.BeatMarker {
	interval := 60 / bpm
	beats := make([]types.BeatMarker, count)
	for i := range beats {
		beats[i] = types.BeatMarker{Index: i, TimeSeconds: float64(i) * interval, IsDownbeat: i%4 == 0}
	}
	return beats
}

// quietLoudQuiet builds a PCM buffer with a quiet intro, loud middle,
// and quiet outro, to exercise boundary discovery and classification.
func quietLoudQuiet(sampleRate, totalSeconds int) []float32 {
	n := sampleRate * totalSeconds
	out := make([]float32, n)
	third := n / 3
	for i := 0; i < n; i++ {
		amp := float32(0.05)
		if i >= third && i < 2*third {
			amp = 0.9
		}
		out[i] = amp * sine(440, sampleRate, i)
	}
	return out
}

func sine(freq float64, sampleRate, i int) float32 {
	return float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
}

func TestDetectTooFewBeatsYieldsEmpty(t *testing.T) {
	samples := quietLoudQuiet(48000, 30)
	beats := beatsAt(120, 5)
	sections, windows, conf := Detect(samples, 48000, beats, types.DefaultParams())
	if sections != nil || windows != nil || conf != 0 {
		t.Fatalf("expected empty result for too few beats")
	}
}

func TestDetectProducesBoundedSections(t *testing.T) {
	samples := quietLoudQuiet(48000, 60)
	beats := beatsAt(120, 120)
	sections, _, conf := Detect(samples, 48000, beats, types.DefaultParams())
	if len(sections) == 0 {
		t.Fatalf("expected at least one section")
	}
	if sections[0].StartBeat != 0 {
		t.Fatalf("expected first section to start at beat 0, got %d", sections[0].StartBeat)
	}
	if conf < 0 || conf > 1 {
		t.Fatalf("confidence out of range: %v", conf)
	}
	for _, s := range sections {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Fatalf("section confidence out of range: %v", s.Confidence)
		}
	}
}
