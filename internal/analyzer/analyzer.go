// Package analyzer adapts the analysis core's orchestrator to the
// rest of the service: given a PCM buffer it returns a fully-assembled
// TrackAnalysis.
package analyzer

import (
	"context"

	"github.com/cartomix/vinylmind/internal/types"
)

// Analyzer abstracts the analysis backend.
type Analyzer interface {
	AnalyzeTrack(ctx context.Context, pcm types.PCMBuffer, path string, on func(types.Progress)) (types.TrackAnalysis, error)
	Close() error
}
