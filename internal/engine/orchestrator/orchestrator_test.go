package orchestrator

import (
	"context"
	"math"
	"testing"

	"github.com/cartomix/vinylmind/internal/types"
)

func clickTrack(sampleRate int, bpm float64, beats int) []float32 {
	secondsPerBeat := 60.0 / bpm
	samplesPerBeat := int(secondsPerBeat * float64(sampleRate))
	total := samplesPerBeat*beats + sampleRate
	out := make([]float32, total)
	clickLen := int(0.005 * float64(sampleRate))
	for b := 0; b < beats; b++ {
		start := b * samplesPerBeat
		for i := 0; i < clickLen && start+i < len(out); i++ {
			out[start+i] += float32(math.Exp(-8 * float64(i) / float64(clickLen)))
		}
	}
	return out
}

func TestAnalyzeRejectsTooFewSamples(t *testing.T) {
	o, err := New(types.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	pcm := types.PCMBuffer{Samples: make([]float32, 100), SampleRate: 48000, Channels: 1}
	_, err = o.Analyze(context.Background(), pcm, "tiny.wav", nil)
	if err != types.ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAnalyzeRejectsInvalidParams(t *testing.T) {
	bad := types.DefaultParams()
	bad.FFTSizeMain = 1000
	if _, err := New(bad, nil); err != types.ErrInvalidParameter {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestAnalyzeClickTrackEmitsStagesInOrder(t *testing.T) {
	o, err := New(types.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	samples := clickTrack(48000, 120, 58)
	pcm := types.PCMBuffer{Samples: samples, SampleRate: 48000, Channels: 1}

	var stages []types.Stage
	analysis, err := o.Analyze(context.Background(), pcm, "click.wav", func(p types.Progress) {
		stages = append(stages, p.Stage)
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []types.Stage{
		types.StageDecoding, types.StageBeatgrid, types.StageKey, types.StageEnergy,
		types.StageLoudness, types.StageSections, types.StageCues, types.StageWaveform,
		types.StageEmbedding, types.StageComplete,
	}
	if len(stages) != len(want) {
		t.Fatalf("expected %d stage events, got %d: %v", len(want), len(stages), stages)
	}
	for i, s := range want {
		if stages[i] != s {
			t.Fatalf("stage %d: expected %v, got %v", i, s, stages[i])
		}
	}

	if analysis.ContentHash == "" {
		t.Fatal("expected non-empty content hash")
	}
	if len(analysis.Waveform) != types.DefaultParams().WaveformBins {
		t.Fatalf("expected %d waveform bins, got %d", types.DefaultParams().WaveformBins, len(analysis.Waveform))
	}
	if len(analysis.Embedding.Vector) != types.DefaultParams().EmbeddingDim {
		t.Fatalf("expected embedding dim %d, got %d", types.DefaultParams().EmbeddingDim, len(analysis.Embedding.Vector))
	}
	if math.Abs(analysis.Beatgrid.TempoMap[0].BPM-120) > 1 {
		t.Fatalf("expected ~120 BPM, got %v", analysis.Beatgrid.TempoMap[0].BPM)
	}
}

func TestAnalyzeCancelledContextAborts(t *testing.T) {
	o, err := New(types.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	samples := clickTrack(48000, 120, 58)
	pcm := types.PCMBuffer{Samples: samples, SampleRate: 48000, Channels: 1}
	_, err = o.Analyze(ctx, pcm, "click.wav", nil)
	if err != types.ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestAnalyzeSameConfigIsDeterministic(t *testing.T) {
	o, err := New(types.DefaultParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	samples := clickTrack(48000, 120, 58)
	pcm := types.PCMBuffer{Samples: samples, SampleRate: 48000, Channels: 1}

	a, err := o.Analyze(context.Background(), pcm, "click.wav", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := o.Analyze(context.Background(), pcm, "click.wav", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash != b.ContentHash {
		t.Fatalf("expected stable content hash across runs")
	}
	if a.Beatgrid.TempoMap[0].BPM != b.Beatgrid.TempoMap[0].BPM {
		t.Fatalf("expected deterministic BPM across runs")
	}
}
