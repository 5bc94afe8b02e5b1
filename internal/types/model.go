// Package types holds the immutable data model produced by the
// analysis core (spec §3). Every exported struct in model.go maps 1:1 to a
// stable schema with snake_case field names (see the `json` tags);
// serialization and persistence live in internal/storage, outside
// this package.
package types

import (
	"fmt"
	"strings"
)

// Spectrogram is an ordered sequence of magnitude frames produced by
// the STFT front-end (spec §4.1). Each frame has FFTSize/2 bins, in
// decibel scale.
type Spectrogram struct {
	Frames     [][]float64 `json:"frames"`
	FFTSize    int         `json:"fft_size"`
	HopSize    int         `json:"hop_size"`
	SampleRate int         `json:"sample_rate"`
}

// FrameRate is the STFT frame rate in Hz: sample_rate / hop_size.
func (s Spectrogram) FrameRate() float64 {
	if s.HopSize == 0 {
		return 0
	}
	return float64(s.SampleRate) / float64(s.HopSize)
}

// TimeOfFrame converts a frame index to seconds.
func (s Spectrogram) TimeOfFrame(i int) float64 {
	return float64(i*s.HopSize) / float64(s.SampleRate)
}

// BeatMarker is one pulse marker in the track's tempo grid.
type BeatMarker struct {
	Index       int     `json:"index"`
	TimeSeconds float64 `json:"time_seconds"`
	IsDownbeat  bool    `json:"is_downbeat"`
}

// TempoNode pins a BPM value at a given beat index. A static tempo is
// represented by a single node at index 0.
type TempoNode struct {
	BeatIndex int     `json:"beat_index"`
	BPM       float64 `json:"bpm"`
}

// Beatgrid is the combined output of the BeatgridDetector (spec §4.2).
type Beatgrid struct {
	Beats      []BeatMarker `json:"beats"`
	TempoMap   []TempoNode  `json:"tempo_map"`
	Confidence float64      `json:"confidence"`
}

// MusicalKey is the KeyDetector's estimate (spec §4.3).
type MusicalKey struct {
	PitchClass int     `json:"pitch_class"`
	IsMinor    bool     `json:"is_minor"`
	Confidence float64 `json:"confidence"`
}

// EnergyResult is the EnergyAnalyzer's output (spec §4.4).
type EnergyResult struct {
	Global          int       `json:"global"`
	Curve           []float64 `json:"curve"`
	RMS             float64   `json:"rms"`
	Peak            float64   `json:"peak"`
	DynamicRangeDB  float64   `json:"dynamic_range_db"`
	Low             float64   `json:"low"`
	Mid             float64   `json:"mid"`
	High            float64   `json:"high"`
}

// LoudnessResult is the LoudnessAnalyzer's EBU R128 output (spec §4.5).
type LoudnessResult struct {
	IntegratedLUFS   float64 `json:"integrated_lufs"`
	LoudnessRangeLU  float64 `json:"loudness_range_lu"`
	ShortTermMax     float64 `json:"short_term_max"`
	MomentaryMax     float64 `json:"momentary_max"`
	TruePeakDBTP     float64 `json:"true_peak_dbtp"`
	SamplePeakDBFS   float64 `json:"sample_peak_dbfs"`
}

// SectionType is a closed tagged sum of structural labels (spec design
// note §9: modeled as a closed set rather than a bare string so
// exhaustive matching stays compiler-checked).
type SectionType int

const (
	SectionIntro SectionType = iota
	SectionVerse
	SectionBuild
	SectionDrop
	SectionBreakdown
	SectionOutro
)

func (t SectionType) String() string {
	switch t {
	case SectionIntro:
		return "intro"
	case SectionVerse:
		return "verse"
	case SectionBuild:
		return "build"
	case SectionDrop:
		return "drop"
	case SectionBreakdown:
		return "breakdown"
	case SectionOutro:
		return "outro"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the section type as its spec-defined string.
func (t SectionType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses the spec-defined string form back into a SectionType.
func (t *SectionType) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "intro":
		*t = SectionIntro
	case "verse":
		*t = SectionVerse
	case "build":
		*t = SectionBuild
	case "drop":
		*t = SectionDrop
	case "breakdown":
		*t = SectionBreakdown
	case "outro":
		*t = SectionOutro
	default:
		return fmt.Errorf("unknown section type %q", s)
	}
	return nil
}

// Section is one labeled, beat-aligned span of the track (spec §3/§4.7).
type Section struct {
	Type       SectionType `json:"type"`
	StartTime  float64     `json:"start_time"`
	EndTime    float64     `json:"end_time"`
	StartBeat  int         `json:"start_beat"`
	EndBeat    int         `json:"end_beat"`
	Confidence float64     `json:"confidence"`
}

// TransitionWindow is a contiguous time range suitable for mixing into
// or out of the track (spec §3/§4.7 step 6).
type TransitionWindow struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// CueType is a closed tagged sum of cue point kinds with a centralized
// priority table (spec design note §9).
type CueType int

const (
	CueLoad CueType = iota
	CueIntroStart
	CueIntroEnd
	CueBuild
	CueDrop
	CueBreakdown
	CueOutroStart
	CueOutroEnd
	CueMarker
)

func (t CueType) String() string {
	switch t {
	case CueLoad:
		return "load"
	case CueIntroStart:
		return "intro_start"
	case CueIntroEnd:
		return "intro_end"
	case CueBuild:
		return "build"
	case CueDrop:
		return "drop"
	case CueBreakdown:
		return "breakdown"
	case CueOutroStart:
		return "outro_start"
	case CueOutroEnd:
		return "outro_end"
	case CueMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the cue type as its spec-defined string.
func (t CueType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses the spec-defined string form back into a CueType.
func (t *CueType) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "load":
		*t = CueLoad
	case "intro_start":
		*t = CueIntroStart
	case "intro_end":
		*t = CueIntroEnd
	case "build":
		*t = CueBuild
	case "drop":
		*t = CueDrop
	case "breakdown":
		*t = CueBreakdown
	case "outro_start":
		*t = CueOutroStart
	case "outro_end":
		*t = CueOutroEnd
	case "marker":
		*t = CueMarker
	default:
		return fmt.Errorf("unknown cue type %q", s)
	}
	return nil
}

// CuePriority is the centralized priority table used when limiting the
// cue set to MaxCues (spec §4.8 step 5). Lower values sort first.
var CuePriority = map[CueType]int{
	CueLoad:       0,
	CueDrop:       1,
	CueIntroStart: 2,
	CueOutroStart: 2,
	CueBuild:      3,
	CueBreakdown:  4,
	CueIntroEnd:   5,
	CueOutroEnd:   5,
	CueMarker:     6,
}

// CueColor is the fixed color palette mapped from cue type (spec §4.8).
var CueColor = map[CueType]string{
	CueLoad:       "green",
	CueIntroStart: "blue",
	CueIntroEnd:   "blue",
	CueBuild:      "yellow",
	CueDrop:       "red",
	CueBreakdown:  "purple",
	CueOutroStart: "orange",
	CueOutroEnd:   "orange",
	CueMarker:     "cyan",
}

// CuePoint is a single prioritized, beat-aligned cue (spec §3/§4.8).
type CuePoint struct {
	Type        CueType `json:"type"`
	BeatIndex   int     `json:"beat_index"`
	TimeSeconds float64 `json:"time_seconds"`
	Label       string  `json:"label"`
	Color       string  `json:"color"`
}

// AudioEmbedding is the EmbeddingGenerator's deterministic feature
// vector plus its scalar auxiliaries (spec §4.6).
type AudioEmbedding struct {
	Vector              []float64 `json:"vector"`
	SpectralCentroidHz  float64   `json:"spectral_centroid_hz"`
	SpectralRolloffHz   float64   `json:"spectral_rolloff_hz"`
	ZeroCrossingRate    float64   `json:"zero_crossing_rate"`
	SpectralFlatness    float64   `json:"spectral_flatness"`
	TempoStability      float64   `json:"tempo_stability"`
	HarmonicRatio       float64   `json:"harmonic_ratio"`
}

// TrackAnalysis is the single immutable artifact assembled by the
// orchestrator (spec §3). The assembler exclusively owns this value;
// analyzers own only their own intermediate buffers.
type TrackAnalysis struct {
	ContentHash string `json:"content_hash"`
	Path        string `json:"path"`

	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`

	Beatgrid         Beatgrid           `json:"beatgrid"`
	Key              MusicalKey         `json:"key"`
	Energy           EnergyResult       `json:"energy"`
	Loudness         LoudnessResult     `json:"loudness"`
	Sections         []Section          `json:"sections"`
	TransitionWindows []TransitionWindow `json:"transition_windows"`
	Cues             []CuePoint         `json:"cues"`
	SafeStartBeat    int                `json:"safe_start_beat"`
	SafeEndBeat      int                `json:"safe_end_beat"`
	Embedding        AudioEmbedding     `json:"embedding"`
	Waveform         []float64          `json:"waveform"`

	SectionConfidence float64 `json:"section_confidence"`

	// Extensibility slots (spec §9): the core never consumes these; it
	// only carries them so an external collaborator can populate or
	// read them. The core SimilarityScorer does not read
	// ExternalEmbedding512D either.
	ExternalEmbedding512D []float32      `json:"external_embedding_512d,omitempty"`
	SoundClassification   map[string]float64 `json:"sound_classification,omitempty"`
	CustomSectionLabels   []string       `json:"custom_section_labels,omitempty"`
}
