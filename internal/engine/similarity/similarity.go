// Package similarity scores two assembled track analyses against each
// other using their embeddings, tempo, key, and energy (spec §4.10).
package similarity

import (
	"fmt"
	"math"

	"github.com/cartomix/vinylmind/internal/engine/embedding"
	"github.com/cartomix/vinylmind/internal/engine/key"
	"github.com/cartomix/vinylmind/internal/types"
)

// Score is the weighted result of comparing two TrackAnalysis records.
type Score struct {
	Vibe        float64
	TempoSim    float64
	KeySim      float64
	EnergySim   float64
	Final       float64
	Explanation string
}

// Compare implements the spec §4.10 SimilarityScorer.
func Compare(a, b types.TrackAnalysis) Score {
	vibe := embedding.CosineSimilarity(a.Embedding.Vector, b.Embedding.Vector)
	tempoSim := tempoSimilarity(tempoOf(a), tempoOf(b))
	keySim := keySimilarity(a.Key, b.Key)
	energySim := math.Max(0, 1-math.Abs(float64(a.Energy.Global-b.Energy.Global))/5)

	final := 0.5*vibe + 0.2*tempoSim + 0.2*keySim + 0.1*energySim

	return Score{
		Vibe:        vibe,
		TempoSim:    tempoSim,
		KeySim:      keySim,
		EnergySim:   energySim,
		Final:       final,
		Explanation: explain(vibe, tempoOf(a), tempoOf(b), a.Key, b.Key, a.Energy.Global, b.Energy.Global),
	}
}

func tempoOf(t types.TrackAnalysis) float64 {
	if len(t.Beatgrid.TempoMap) == 0 {
		return 0
	}
	return t.Beatgrid.TempoMap[0].BPM
}

// tempoSimilarity checks the direct delta plus half- and double-tempo
// equivalences, taking the smallest absolute difference.
func tempoSimilarity(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	deltas := []float64{
		math.Abs(a - b),
		math.Abs(a - b/2),
		math.Abs(a - b*2),
	}
	minDelta := deltas[0]
	for _, d := range deltas[1:] {
		if d < minDelta {
			minDelta = d
		}
	}
	return math.Max(0, 1-minDelta/10)
}

func keySimilarity(a, b types.MusicalKey) float64 {
	camelotA := key.CamelotOf(a.PitchClass, a.IsMinor)
	camelotB := key.CamelotOf(b.PitchClass, b.IsMinor)
	if camelotA == camelotB {
		return 1.0
	}
	numA, letterA := camelotParts(camelotA)
	numB, letterB := camelotParts(camelotB)
	if numA == numB && letterA != letterB {
		return 0.9
	}
	dist := camelotDistance(numA, numB)
	switch {
	case dist == 1 && letterA == letterB:
		return 0.8
	case dist == 2 && letterA == letterB:
		return 0.6
	default:
		return 0.2
	}
}

func camelotParts(camelot string) (int, byte) {
	letter := camelot[len(camelot)-1]
	var n int
	fmt.Sscanf(camelot[:len(camelot)-1], "%d", &n)
	return n, letter
}

func camelotDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}

func explain(vibe, tempoA, tempoB float64, keyA, keyB types.MusicalKey, energyA, energyB int) string {
	vibePct := int(math.Round(vibe * 100))

	var tempoPart string
	deltaBPM := math.Abs(tempoA - tempoB)
	if deltaBPM < 0.5 {
		tempoPart = "tempo match"
	} else {
		tempoPart = fmt.Sprintf("Δ%.0f BPM", deltaBPM)
	}

	k1 := key.StandardName(keyA.PitchClass, keyA.IsMinor)
	k2 := key.StandardName(keyB.PitchClass, keyB.IsMinor)
	relation := keyRelation(keyA, keyB)
	keyPart := fmt.Sprintf("key: %s→%s (%s)", k1, k2, relation)

	var energyPart string
	deltaEnergy := energyA - energyB
	if deltaEnergy == 0 {
		energyPart = "same energy"
	} else if deltaEnergy > 0 {
		energyPart = fmt.Sprintf("energy +%d", deltaEnergy)
	} else {
		energyPart = fmt.Sprintf("energy %d", deltaEnergy)
	}

	return fmt.Sprintf("similar vibe (%d%%); %s; %s; %s", vibePct, tempoPart, keyPart, energyPart)
}

func keyRelation(a, b types.MusicalKey) string {
	camelotA := key.CamelotOf(a.PitchClass, a.IsMinor)
	camelotB := key.CamelotOf(b.PitchClass, b.IsMinor)
	if camelotA == camelotB {
		return "same"
	}
	numA, letterA := camelotParts(camelotA)
	numB, letterB := camelotParts(camelotB)
	if numA == numB && letterA != letterB {
		return "relative"
	}
	dist := camelotDistance(numA, numB)
	switch {
	case dist == 1 && letterA == letterB:
		return "adjacent"
	case dist == 2 && letterA == letterB:
		return "two steps"
	default:
		return "unrelated"
	}
}
