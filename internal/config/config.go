package config

import (
	"flag"
	"os"

	"github.com/cartomix/vinylmind/internal/types"
)

// Config holds the service-level configuration plus the full analysis
// Params surface (spec §6), all overridable via flags.
type Config struct {
	// Server settings
	Port     int
	DataDir  string
	LogLevel string

	// Auth settings
	AuthEnabled bool

	Params types.Params
}

func Parse() *Config {
	cfg := &Config{Params: types.DefaultParams()}

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.StringVar(&cfg.DataDir, "data-dir", defaultDataDir(), "data directory for SQLite and blobs")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.AuthEnabled, "auth", false, "enable API authentication (default: open for local use)")

	flag.IntVar(&cfg.Params.SampleRateHz, "sample-rate-hz", cfg.Params.SampleRateHz, "target decode sample rate")
	flag.IntVar(&cfg.Params.FFTSizeMain, "fft-size-main", cfg.Params.FFTSizeMain, "FFT size for beatgrid/energy/embedding")
	flag.IntVar(&cfg.Params.FFTSizeKeySection, "fft-size-key-section", cfg.Params.FFTSizeKeySection, "FFT size for key/section detection")
	flag.IntVar(&cfg.Params.HopSizeMain, "hop-size-main", cfg.Params.HopSizeMain, "hop size for beatgrid")
	flag.IntVar(&cfg.Params.HopSizeEnergyEmbed, "hop-size-energy-embed", cfg.Params.HopSizeEnergyEmbed, "hop size for energy/embedding")
	flag.IntVar(&cfg.Params.HopSizeKeySection, "hop-size-key-section", cfg.Params.HopSizeKeySection, "hop size for key/section")
	flag.Float64Var(&cfg.Params.TempoFloorBPM, "tempo-floor-bpm", cfg.Params.TempoFloorBPM, "lowest tempo the beatgrid detector considers")
	flag.Float64Var(&cfg.Params.TempoCeilBPM, "tempo-ceil-bpm", cfg.Params.TempoCeilBPM, "highest tempo the beatgrid detector considers")
	flag.IntVar(&cfg.Params.MinSectionBeats, "min-section-beats", cfg.Params.MinSectionBeats, "minimum beats per section")
	flag.IntVar(&cfg.Params.PhraseBeats, "phrase-beats", cfg.Params.PhraseBeats, "beats per phrase boundary candidate")
	flag.Float64Var(&cfg.Params.SectionChangeThreshold, "section-change-threshold", cfg.Params.SectionChangeThreshold, "energy delta required to accept a section boundary")
	flag.Float64Var(&cfg.Params.BreakdownVarianceThreshold, "breakdown-variance-threshold", cfg.Params.BreakdownVarianceThreshold, "beat-energy variance ceiling for breakdown classification")
	flag.IntVar(&cfg.Params.MaxCues, "max-cues", cfg.Params.MaxCues, "maximum cue points per track")
	flag.IntVar(&cfg.Params.DownbeatSnapToleranceBeats, "downbeat-snap-tolerance-beats", cfg.Params.DownbeatSnapToleranceBeats, "cue proximity rejection window in beats")
	flag.IntVar(&cfg.Params.EmbeddingDim, "embedding-dim", cfg.Params.EmbeddingDim, "embedding vector length")
	flag.IntVar(&cfg.Params.WaveformBins, "waveform-bins", cfg.Params.WaveformBins, "waveform summary bin count")
	flag.Float64Var(&cfg.Params.LoudnessAbsoluteGateLUFS, "loudness-absolute-gate-lufs", cfg.Params.LoudnessAbsoluteGateLUFS, "EBU R128 absolute gate (not read by the loudness analyzer, which gates at a fixed -70 LUFS)")
	flag.Float64Var(&cfg.Params.LoudnessRelativeGateLU, "loudness-relative-gate-lu", cfg.Params.LoudnessRelativeGateLU, "EBU R128 relative gate (not read by the loudness analyzer, which gates at a fixed 10 LU below the ungated mean)")
	flag.IntVar(&cfg.Params.TruePeakOversample, "true-peak-oversample", cfg.Params.TruePeakOversample, "true-peak interpolation factor")
	flag.Float64Var(&cfg.Params.LRALowPercentile, "lra-low-percentile", cfg.Params.LRALowPercentile, "LRA low percentile")
	flag.Float64Var(&cfg.Params.LRAHighPercentile, "lra-high-percentile", cfg.Params.LRAHighPercentile, "LRA high percentile")

	flag.Parse()
	return cfg
}

func defaultDataDir() string {
	if dir := os.Getenv("VINYLMIND_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vinylmind"
	}
	return home + "/.vinylmind"
}
