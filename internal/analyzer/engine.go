package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/cartomix/vinylmind/internal/engine/orchestrator"
	"github.com/cartomix/vinylmind/internal/types"
)

// Engine is the in-process analysis backend, backed directly by the
// orchestrator. It replaces the CPU-fallback placeholder now that the
// core performs real analysis rather than returning stubs.
type Engine struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// NewEngine constructs an Engine for the given configuration.
func NewEngine(params types.Params, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	orch, err := orchestrator.New(params, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{orch: orch, logger: logger}, nil
}

// AnalyzeTrack runs the full analysis pipeline over pcm.
func (e *Engine) AnalyzeTrack(ctx context.Context, pcm types.PCMBuffer, path string, on func(types.Progress)) (types.TrackAnalysis, error) {
	e.logger.Debug("analyzing track", "path", path)

	start := time.Now()
	analysis, err := e.orch.Analyze(ctx, pcm, path, on)
	if err != nil {
		e.logger.Error("analysis failed", "path", path, "error", err, "duration", time.Since(start))
		return types.TrackAnalysis{}, err
	}

	e.logger.Info("analysis complete",
		"path", path,
		"duration", time.Since(start),
		"bpm", tempoOf(analysis),
	)
	return analysis, nil
}

// Close is a no-op: the engine holds no external resources.
func (e *Engine) Close() error {
	return nil
}

func tempoOf(a types.TrackAnalysis) float64 {
	if len(a.Beatgrid.TempoMap) == 0 {
		return 0
	}
	return a.Beatgrid.TempoMap[0].BPM
}
