package types

import "errors"

// Error taxonomy for the analysis core (spec §7). The orchestrator
// surfaces exactly one of these on a fatal path; analyzer-local
// degeneracies are recovered silently into documented defaults and
// never reach the caller as an error.
var (
	// ErrDecodingFailed is returned verbatim from the external decoder.
	ErrDecodingFailed = errors.New("decoding failed")

	// ErrInsufficientData means the PCM buffer holds fewer samples than
	// one second at its declared sample rate.
	ErrInsufficientData = errors.New("insufficient data: fewer than one second of audio")

	// ErrInvalidParameter is returned eagerly at construction time for
	// malformed configuration (non power-of-two FFT size, non-positive
	// hop, inverted tempo bounds).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAnalysisTimeout surfaces a soft-timeout abort during orchestration.
	ErrAnalysisTimeout = errors.New("analysis timeout")

	// ErrCancelled surfaces a cancellation observed at a stage boundary.
	ErrCancelled = errors.New("cancelled")
)

// DecodingFailed wraps ErrDecodingFailed with the decoder's message,
// matching spec §7's DecodingFailed(message) taxonomy entry.
func DecodingFailed(message string) error {
	if message == "" {
		return ErrDecodingFailed
	}
	return &wrappedError{msg: message, base: ErrDecodingFailed}
}

type wrappedError struct {
	msg  string
	base error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.base }
