package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cartomix/vinylmind/internal/engine/key"
	"github.com/cartomix/vinylmind/internal/types"
)

// AnalysisStatus represents the lifecycle of an analysis row.
type AnalysisStatus string

const (
	AnalysisStatusPending  AnalysisStatus = "pending"
	AnalysisStatusRunning  AnalysisStatus = "analyzing"
	AnalysisStatusComplete AnalysisStatus = "complete"
	AnalysisStatusFailed   AnalysisStatus = "failed"
)

// AnalysisRecord mirrors the analyses table.
type AnalysisRecord struct {
	ID                    int64
	TrackID               int64
	Version               int32
	Status                AnalysisStatus
	Error                 string
	DurationSeconds       float64
	BPM                   float64
	BPMConfidence         float64
	KeyValue              string
	KeyFormat             string
	KeyConfidence         float64
	EnergyGlobal          int32
	IntegratedLufs        float64
	TruePeakDb            float64
	BeatgridJSON          string
	SectionsJSON          string
	CuePointsJSON         string
	TransitionWindowsJSON string
	TempoMapJSON          string
	Embedding             []byte
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AnalysisRecordFromTrackAnalysis builds a record ready for persistence.
func AnalysisRecordFromTrackAnalysis(trackID int64, version int32, analysis types.TrackAnalysis) (*AnalysisRecord, error) {
	beatgridJSON, err := marshalJSON(analysis.Beatgrid)
	if err != nil {
		return nil, fmt.Errorf("marshal beatgrid: %w", err)
	}
	sectionsJSON, err := marshalJSON(analysis.Sections)
	if err != nil {
		return nil, fmt.Errorf("marshal sections: %w", err)
	}
	cuesJSON, err := marshalJSON(analysis.Cues)
	if err != nil {
		return nil, fmt.Errorf("marshal cues: %w", err)
	}
	transitionJSON, err := marshalJSON(analysis.TransitionWindows)
	if err != nil {
		return nil, fmt.Errorf("marshal transition windows: %w", err)
	}
	tempoMapJSON, err := marshalJSON(analysis.Beatgrid.TempoMap)
	if err != nil {
		return nil, fmt.Errorf("marshal tempo map: %w", err)
	}
	embedding, err := json.Marshal(analysis.Embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}

	record := &AnalysisRecord{
		TrackID:               trackID,
		Version:               version,
		Status:                AnalysisStatusComplete,
		DurationSeconds:       analysis.DurationSeconds,
		BPM:                   inferBPM(analysis),
		BPMConfidence:         analysis.Beatgrid.Confidence,
		KeyValue:              keyLabel(analysis.Key),
		KeyFormat:             "camelot",
		KeyConfidence:         analysis.Key.Confidence,
		EnergyGlobal:          int32(analysis.Energy.Global),
		IntegratedLufs:        analysis.Loudness.IntegratedLUFS,
		TruePeakDb:            analysis.Loudness.TruePeakDBTP,
		BeatgridJSON:          beatgridJSON,
		SectionsJSON:          sectionsJSON,
		CuePointsJSON:         cuesJSON,
		TransitionWindowsJSON: transitionJSON,
		TempoMapJSON:          tempoMapJSON,
		Embedding:             embedding,
	}

	return record, nil
}

// UpsertAnalysis writes or updates an analysis row (identified by track_id + version).
func (d *DB) UpsertAnalysis(rec *AnalysisRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO analyses (
			track_id, version, status, error,
			duration_seconds, bpm, bpm_confidence,
			key_value, key_format, key_confidence,
			energy_global, integrated_lufs, true_peak_db,
			beatgrid_json, sections_json, cue_points_json, transition_windows_json, tempo_map_json,
			embedding, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(track_id, version) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			duration_seconds = excluded.duration_seconds,
			bpm = excluded.bpm,
			bpm_confidence = excluded.bpm_confidence,
			key_value = excluded.key_value,
			key_format = excluded.key_format,
			key_confidence = excluded.key_confidence,
			energy_global = excluded.energy_global,
			integrated_lufs = excluded.integrated_lufs,
			true_peak_db = excluded.true_peak_db,
			beatgrid_json = excluded.beatgrid_json,
			sections_json = excluded.sections_json,
			cue_points_json = excluded.cue_points_json,
			transition_windows_json = excluded.transition_windows_json,
			tempo_map_json = excluded.tempo_map_json,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`, rec.TrackID, rec.Version, rec.Status, rec.Error,
		rec.DurationSeconds, rec.BPM, rec.BPMConfidence,
		rec.KeyValue, rec.KeyFormat, rec.KeyConfidence,
		rec.EnergyGlobal, rec.IntegratedLufs, rec.TruePeakDb,
		rec.BeatgridJSON, rec.SectionsJSON, rec.CuePointsJSON, rec.TransitionWindowsJSON, rec.TempoMapJSON,
		rec.Embedding)

	return err
}

// MarkAnalysisFailure records a failed analysis attempt with the given version.
func (d *DB) MarkAnalysisFailure(trackID int64, version int32, errMsg string) error {
	_, err := d.db.Exec(`
		INSERT INTO analyses (track_id, version, status, error, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(track_id, version) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`, trackID, version, string(AnalysisStatusFailed), errMsg)
	return err
}

// LatestAnalysisRecord fetches the most recent analysis (any status) for a track.
func (d *DB) LatestAnalysisRecord(trackID int64) (*AnalysisRecord, error) {
	row := d.db.QueryRow(`
		SELECT id, track_id, version, status, error, duration_seconds, bpm, bpm_confidence,
		       key_value, key_format, key_confidence, energy_global, integrated_lufs, true_peak_db,
		       beatgrid_json, sections_json, cue_points_json, transition_windows_json, tempo_map_json,
		       embedding, created_at, updated_at
		FROM analyses
		WHERE track_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, trackID)

	return scanAnalysisRow(row)
}

// LatestCompleteAnalysis returns the latest completed analysis for a track.
func (d *DB) LatestCompleteAnalysis(trackID int64) (types.TrackAnalysis, error) {
	rec, err := d.latestByStatus(trackID, AnalysisStatusComplete)
	if err != nil {
		return types.TrackAnalysis{}, err
	}
	track, err := d.GetTrackByID(trackID)
	if err != nil {
		return types.TrackAnalysis{}, err
	}
	analysis, err := rec.ToTrackAnalysis(track)
	if err != nil {
		return types.TrackAnalysis{}, err
	}
	if waveform, err := d.GetWaveform(trackID); err == nil {
		analysis.Waveform = waveform
	}
	return analysis, nil
}

// ToTrackAnalysis reconstitutes a TrackAnalysis from its persisted form.
func (rec *AnalysisRecord) ToTrackAnalysis(track *Track) (types.TrackAnalysis, error) {
	if track == nil {
		return types.TrackAnalysis{}, errors.New("track is required for analysis reconstruction")
	}

	analysis := types.TrackAnalysis{
		ContentHash:     track.ContentHash,
		Path:            track.Path,
		DurationSeconds: rec.DurationSeconds,
		Energy:          types.EnergyResult{Global: int(rec.EnergyGlobal)},
		Loudness: types.LoudnessResult{
			IntegratedLUFS: rec.IntegratedLufs,
			TruePeakDBTP:   rec.TruePeakDb,
		},
		Key: types.MusicalKey{Confidence: rec.KeyConfidence},
	}

	if rec.KeyFormat == "camelot" && rec.KeyValue != "" {
		if pc, isMinor, err := key.ParseCamelot(rec.KeyValue); err == nil {
			analysis.Key.PitchClass = pc
			analysis.Key.IsMinor = isMinor
		}
	}

	if rec.BeatgridJSON != "" {
		if err := json.Unmarshal([]byte(rec.BeatgridJSON), &analysis.Beatgrid); err != nil {
			return types.TrackAnalysis{}, fmt.Errorf("unmarshal beatgrid: %w", err)
		}
	}
	if rec.SectionsJSON != "" {
		if err := json.Unmarshal([]byte(rec.SectionsJSON), &analysis.Sections); err != nil {
			return types.TrackAnalysis{}, fmt.Errorf("unmarshal sections: %w", err)
		}
	}
	if rec.CuePointsJSON != "" {
		if err := json.Unmarshal([]byte(rec.CuePointsJSON), &analysis.Cues); err != nil {
			return types.TrackAnalysis{}, fmt.Errorf("unmarshal cues: %w", err)
		}
	}
	if rec.TransitionWindowsJSON != "" {
		if err := json.Unmarshal([]byte(rec.TransitionWindowsJSON), &analysis.TransitionWindows); err != nil {
			return types.TrackAnalysis{}, fmt.Errorf("unmarshal transition windows: %w", err)
		}
	}
	if len(rec.Embedding) > 0 {
		if err := json.Unmarshal(rec.Embedding, &analysis.Embedding); err != nil {
			return types.TrackAnalysis{}, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}

	return analysis, nil
}

// TrackSummary is a library row joined with its latest analysis, shaped
// for list views.
type TrackSummary struct {
	ContentHash   string
	Path          string
	Title         string
	Artist        string
	BPM           float64
	KeyValue      string
	KeyFormat     string
	EnergyGlobal  int32
	CueCount      int32
	Status        string
	BPMConfidence float64
}

// TrackSummaries returns library summaries joined with the latest analysis.
func (d *DB) TrackSummaries(query string, needsGridReview bool, limit int) ([]TrackSummary, error) {
	conditions := []string{}
	args := []any{}

	if query != "" {
		conditions = append(conditions, "(t.title LIKE ? OR t.artist LIKE ? OR t.path LIKE ?)")
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if needsGridReview {
		conditions = append(conditions, "(a.bpm_confidence < 0.5)")
	}

	sqlStr := `
		SELECT t.content_hash, t.path, t.title, t.artist,
		       COALESCE(a.bpm, 0),
		       COALESCE(a.key_value, ''),
		       COALESCE(a.key_format, ''),
		       COALESCE(a.energy_global, 0),
		       COALESCE(a.cue_points_json, ''),
		       COALESCE(a.status, 'pending'),
		       COALESCE(a.bpm_confidence, 0)
		FROM tracks t
		LEFT JOIN analyses a ON a.id = (
			SELECT id FROM analyses a2 WHERE a2.track_id = t.id ORDER BY a2.version DESC LIMIT 1
		)
	`

	if len(conditions) > 0 {
		sqlStr += " WHERE " + joinAnd(conditions)
	}
	sqlStr += " ORDER BY COALESCE(a.updated_at, t.updated_at) DESC"

	if limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []TrackSummary
	for rows.Next() {
		var (
			contentHash, path, title, artist string
			bpm                              sql.NullFloat64
			keyValue, keyFormat              string
			energyGlobal                      int64
			cuesJSON, status                  string
			bpmConfidence                     sql.NullFloat64
		)

		if err := rows.Scan(&contentHash, &path, &title, &artist, &bpm, &keyValue, &keyFormat, &energyGlobal, &cuesJSON, &status, &bpmConfidence); err != nil {
			return nil, err
		}

		summary := TrackSummary{
			ContentHash:  contentHash,
			Path:         path,
			Title:        title,
			Artist:       artist,
			BPM:          bpm.Float64,
			KeyValue:     keyValue,
			KeyFormat:    keyFormat,
			EnergyGlobal: int32(energyGlobal),
			Status:       status,
		}

		if cuesJSON != "" {
			var raw []json.RawMessage
			if err := json.Unmarshal([]byte(cuesJSON), &raw); err == nil {
				summary.CueCount = int32(len(raw))
			}
		}

		if needsGridReview && (!bpmConfidence.Valid || bpmConfidence.Float64 >= 0.5) {
			continue
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// latestByStatus fetches the latest analysis matching the given status.
func (d *DB) latestByStatus(trackID int64, status AnalysisStatus) (*AnalysisRecord, error) {
	row := d.db.QueryRow(`
		SELECT id, track_id, version, status, error, duration_seconds, bpm, bpm_confidence,
		       key_value, key_format, key_confidence, energy_global, integrated_lufs, true_peak_db,
		       beatgrid_json, sections_json, cue_points_json, transition_windows_json, tempo_map_json,
		       embedding, created_at, updated_at
		FROM analyses
		WHERE track_id = ? AND status = ?
		ORDER BY version DESC
		LIMIT 1
	`, trackID, string(status))

	return scanAnalysisRow(row)
}

func scanAnalysisRow(row *sql.Row) (*AnalysisRecord, error) {
	rec := &AnalysisRecord{}
	var status string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.TrackID, &rec.Version, &status, &rec.Error, &rec.DurationSeconds, &rec.BPM, &rec.BPMConfidence,
		&rec.KeyValue, &rec.KeyFormat, &rec.KeyConfidence, &rec.EnergyGlobal, &rec.IntegratedLufs, &rec.TruePeakDb,
		&rec.BeatgridJSON, &rec.SectionsJSON, &rec.CuePointsJSON, &rec.TransitionWindowsJSON, &rec.TempoMapJSON,
		&rec.Embedding, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = AnalysisStatus(status)
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return rec, nil
}

func marshalJSON(v any) (string, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func inferBPM(analysis types.TrackAnalysis) float64 {
	if len(analysis.Beatgrid.TempoMap) > 0 {
		return analysis.Beatgrid.TempoMap[0].BPM
	}
	beats := analysis.Beatgrid.Beats
	if len(beats) >= 2 {
		if delta := beats[1].TimeSeconds - beats[0].TimeSeconds; delta > 0 {
			return 60.0 / delta
		}
	}
	return 0
}

func keyLabel(k types.MusicalKey) string {
	return key.CamelotOf(k.PitchClass, k.IsMinor)
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}
