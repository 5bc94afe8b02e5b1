// Package orchestrator sequences the analyzers into one immutable
// TrackAnalysis, dispatching the independent stages to a data-parallel
// pool and checking for cancellation at each stage boundary (spec
// §4.11, §5).
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cartomix/vinylmind/internal/engine/beatgrid"
	"github.com/cartomix/vinylmind/internal/engine/cue"
	"github.com/cartomix/vinylmind/internal/engine/embedding"
	"github.com/cartomix/vinylmind/internal/engine/energy"
	"github.com/cartomix/vinylmind/internal/engine/key"
	"github.com/cartomix/vinylmind/internal/engine/loudness"
	"github.com/cartomix/vinylmind/internal/engine/section"
	"github.com/cartomix/vinylmind/internal/engine/waveform"
	"github.com/cartomix/vinylmind/internal/types"
)

// ProgressFunc receives stage-boundary events in strict stage order.
type ProgressFunc func(types.Progress)

// Orchestrator runs the full analysis pipeline over a PCMBuffer.
type Orchestrator struct {
	params types.Params
	logger *slog.Logger
}

// New constructs an Orchestrator. Params are validated eagerly.
func New(params types.Params, logger *slog.Logger) (*Orchestrator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{params: params, logger: logger}, nil
}

// Analyze assembles a TrackAnalysis for one PCM buffer. on is optional
// and may be nil.
func (o *Orchestrator) Analyze(ctx context.Context, pcm types.PCMBuffer, path string, on ProgressFunc) (types.TrackAnalysis, error) {
	if !pcm.Valid() {
		return types.TrackAnalysis{}, types.ErrInsufficientData
	}
	emit := func(stage types.Stage, fraction float64) {
		if on != nil {
			on(types.Progress{Stage: stage, Fraction: fraction})
		}
	}

	start := time.Now()
	o.logger.Debug("analysis starting", "path", path, "samples", pcm.FrameCount())

	samples := pcm.Mono()
	sampleRate := pcm.SampleRate

	emit(types.StageDecoding, 1)
	if err := checkCancel(ctx); err != nil {
		return types.TrackAnalysis{}, err
	}

	// Stages 2-6 (plus waveform) need only the immutable PCM buffer and
	// run concurrently; each owns its own output (spec §5).
	var (
		grid types.Beatgrid
		musicalKey types.MusicalKey
		energyResult types.EnergyResult
		loudnessResult types.LoudnessResult
		audioEmbedding types.AudioEmbedding
		waveformSummary []float64
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		grid = beatgrid.Detect(samples, sampleRate, o.params)
		return nil
	})
	g.Go(func() error {
		musicalKey = key.Detect(samples, sampleRate, o.params)
		return nil
	})
	g.Go(func() error {
		energyResult = energy.Analyze(samples, sampleRate, o.params)
		return nil
	})
	g.Go(func() error {
		loudnessResult = loudness.Analyze(samples, sampleRate, o.params)
		return nil
	})
	g.Go(func() error {
		audioEmbedding = embedding.Generate(samples, sampleRate, o.params)
		return nil
	})
	g.Go(func() error {
		waveformSummary = waveform.Summarize(samples, o.params.WaveformBins)
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.TrackAnalysis{}, err
	}

	emit(types.StageBeatgrid, 1)
	emit(types.StageKey, 1)
	emit(types.StageEnergy, 1)
	emit(types.StageLoudness, 1)
	if err := checkCancel(ctx); err != nil {
		return types.TrackAnalysis{}, err
	}

	sections, transitions, sectionConfidence := section.Detect(samples, sampleRate, grid.Beats, o.params)
	emit(types.StageSections, 1)
	if err := checkCancel(ctx); err != nil {
		return types.TrackAnalysis{}, err
	}

	cues, safeStart, safeEnd := cue.Generate(grid.Beats, sections, o.params)
	emit(types.StageCues, 1)
	if err := checkCancel(ctx); err != nil {
		return types.TrackAnalysis{}, err
	}

	emit(types.StageWaveform, 1)
	emit(types.StageEmbedding, 1)

	contentHash := hashSamples(samples)
	duration := 0.0
	if sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}

	analysis := types.TrackAnalysis{
		ContentHash:       contentHash,
		Path:              path,
		DurationSeconds:   duration,
		SampleRate:        sampleRate,
		Beatgrid:          grid,
		Key:               musicalKey,
		Energy:            energyResult,
		Loudness:          loudnessResult,
		Sections:          sections,
		TransitionWindows: transitions,
		Cues:              cues,
		SafeStartBeat:     safeStart,
		SafeEndBeat:       safeEnd,
		Embedding:         audioEmbedding,
		Waveform:          waveformSummary,
		SectionConfidence: sectionConfidence,
	}

	emit(types.StageComplete, 1)
	o.logger.Info("analysis complete",
		"path", path,
		"duration", time.Since(start),
		"bpm", tempoOf(grid),
		"sections", len(sections),
	)
	return analysis, nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return types.ErrAnalysisTimeout
		}
		return types.ErrCancelled
	default:
		return nil
	}
}

func tempoOf(g types.Beatgrid) float64 {
	if len(g.TempoMap) == 0 {
		return 0
	}
	return g.TempoMap[0].BPM
}

// hashSamples derives a stable content hash from the PCM buffer itself
// rather than file bytes, so identical audio hashes identically
// regardless of container format.
func hashSamples(samples []float32) string {
	h := sha256.New()
	for _, s := range samples {
		var b [4]byte
		bits := math.Float32bits(s)
		b[0] = byte(bits)
		b[1] = byte(bits >> 8)
		b[2] = byte(bits >> 16)
		b[3] = byte(bits >> 24)
		h.Write(b[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
