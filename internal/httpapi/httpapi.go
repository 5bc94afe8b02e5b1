// Package httpapi exposes the analysis core over HTTP REST endpoints
// (spec §1: transport surfaces are external collaborators, not part
// of the core). It is a thin adapter: decoding, scanning, planning and
// exporting are delegated to internal/decode, internal/scanner,
// internal/planner and internal/exporter; analysis itself runs through
// internal/analyzer.Engine.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartomix/vinylmind/internal/analyzer"
	"github.com/cartomix/vinylmind/internal/config"
	"github.com/cartomix/vinylmind/internal/decode"
	"github.com/cartomix/vinylmind/internal/exporter"
	"github.com/cartomix/vinylmind/internal/planner"
	"github.com/cartomix/vinylmind/internal/scanner"
	"github.com/cartomix/vinylmind/internal/similarity"
	"github.com/cartomix/vinylmind/internal/storage"
	"github.com/cartomix/vinylmind/internal/types"
)

// Server provides HTTP REST endpoints over the analysis core.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *storage.DB
	analyzer analyzer.Analyzer
	scanner  *scanner.Scanner
	mux      *http.ServeMux
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, logger *slog.Logger, db *storage.DB, az analyzer.Analyzer) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		analyzer: az,
		scanner:  scanner.NewScanner(db, logger),
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/tracks", s.handleListTracks)
	s.mux.HandleFunc("GET /api/tracks/{id}", s.handleGetTrack)
	s.mux.HandleFunc("GET /api/tracks/{id}/similar", s.handleSimilarTracks)
	s.mux.HandleFunc("GET /api/tracks/{id}/waveform", s.handleGetWaveform)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/set/propose", s.handleProposeSet)
	s.mux.HandleFunc("POST /api/export", s.handleExport)
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings/{key}", s.handlePutSetting)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TrackSummaryResponse is the JSON response for track listings.
type TrackSummaryResponse struct {
	ContentHash string  `json:"content_hash"`
	Path        string  `json:"path"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	BPM         float64 `json:"bpm"`
	Key         string  `json:"key"`
	Energy      int     `json:"energy"`
	CueCount    int     `json:"cue_count"`
	Status      string  `json:"status"`
	NeedsReview bool    `json:"needs_review"`
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	needsReview := r.URL.Query().Get("needs_review") == "true"
	limit := 200
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	summaries, err := s.db.TrackSummaries(query, needsReview, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tracks: "+err.Error())
		return
	}

	response := make([]TrackSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		response = append(response, TrackSummaryResponse{
			ContentHash: sum.ContentHash,
			Path:        sum.Path,
			Title:       sum.Title,
			Artist:      sum.Artist,
			BPM:         sum.BPM,
			Key:         sum.KeyValue,
			Energy:      int(sum.EnergyGlobal),
			CueCount:    int(sum.CueCount),
			Status:      sum.Status,
			NeedsReview: sum.BPMConfidence > 0 && sum.BPMConfidence < 0.5,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	idParam := r.PathValue("id")
	if idParam == "" {
		writeError(w, http.StatusBadRequest, "track id is required")
		return
	}

	track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: idParam})
	if err != nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	analysis, err := s.db.LatestCompleteAnalysis(track.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ScanRequest is the JSON request for library scanning.
type ScanRequest struct {
	Roots       []string `json:"roots"`
	ForceRescan bool     `json:"force_rescan"`
}

// ScanResponse is the JSON response for library scanning.
type ScanResponse struct {
	ScanID    string   `json:"scan_id"`
	Processed int64    `json:"processed"`
	Total     int64    `json:"total"`
	NewTracks []string `json:"new_tracks"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Roots) == 0 {
		writeError(w, http.StatusBadRequest, "at least one root path is required")
		return
	}

	scanID := uuid.NewString()
	s.logger.Info("scan started", "scan_id", scanID, "roots", req.Roots)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	progress := make(chan scanner.ScanProgress)
	var scanErr error
	var newTrackIDs []int64
	var newPaths []string

	go func() {
		scanErr = s.scanner.Scan(ctx, req.Roots, req.ForceRescan, progress)
	}()

	var lastProcessed, lastTotal int64
	for p := range progress {
		if p.IsNew {
			newTrackIDs = append(newTrackIDs, p.TrackID)
			newPaths = append(newPaths, p.Path)
		}
		lastProcessed = p.Processed
		lastTotal = p.Total
	}

	if scanErr != nil && scanErr != context.Canceled {
		writeError(w, http.StatusInternalServerError, "scan failed: "+scanErr.Error())
		return
	}

	if len(newTrackIDs) > 0 {
		if err := s.scanner.EnqueueAnalysis(newTrackIDs, 0); err != nil {
			s.logger.Warn("failed to enqueue analysis jobs", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		ScanID:    scanID,
		Processed: lastProcessed,
		Total:     lastTotal,
		NewTracks: newPaths,
	})
}

// AnalyzeRequest is the JSON request for track analysis.
type AnalyzeRequest struct {
	Paths []string `json:"paths"`
	Force bool     `json:"force"`
}

// AnalyzeResponse is the JSON response for track analysis.
type AnalyzeResponse struct {
	Analyzed []string `json:"analyzed"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var analyzed, skipped, errs []string
	for _, path := range req.Paths {
		result, err := s.analyzeOne(ctx, path, req.Force)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
		case result == "skipped":
			skipped = append(skipped, path)
		default:
			analyzed = append(analyzed, path)
		}
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Analyzed: analyzed, Skipped: skipped, Errors: errs})
}

// analyzeOne decodes path to monaural PCM, runs the orchestrator, and
// persists the resulting TrackAnalysis. Decoding here is limited to
// WAV; non-WAV sources are the external decoder's responsibility.
func (s *Server) analyzeOne(ctx context.Context, path string, force bool) (string, error) {
	hash, err := scanner.ComputeHash(path)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: hash, Path: path})
	if err != nil {
		return "", fmt.Errorf("track not found: %w", err)
	}

	const version = int32(1)
	if !force {
		if rec, err := s.db.LatestAnalysisRecord(track.ID); err == nil && rec.Status == storage.AnalysisStatusComplete {
			return "skipped", nil
		}
	}

	pcm, err := decode.WAV(path)
	if err != nil {
		_ = s.db.MarkAnalysisFailure(track.ID, version, err.Error())
		return "", err
	}

	analysis, err := s.analyzer.AnalyzeTrack(ctx, pcm, path, nil)
	if err != nil {
		_ = s.db.MarkAnalysisFailure(track.ID, version, err.Error())
		return "", err
	}

	rec, err := storage.AnalysisRecordFromTrackAnalysis(track.ID, version, analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	if err := s.db.UpsertAnalysis(rec); err != nil {
		return "", fmt.Errorf("persist analysis: %w", err)
	}
	if err := s.db.PutWaveform(track.ID, analysis.Waveform); err != nil {
		s.logger.Warn("failed to store waveform tile", "track_id", track.ID, "error", err)
	}
	return "analyzed", nil
}

// ProposeSetRequest is the JSON request for set planning.
type ProposeSetRequest struct {
	TrackIDs      []string `json:"track_ids"`
	Mode          string   `json:"mode"`
	AllowKeyJumps bool     `json:"allow_key_jumps"`
	MaxBpmStep    float64  `json:"max_bpm_step"`
	MustPlay      []string `json:"must_play"`
	Ban           []string `json:"ban"`
}

func (s *Server) handleProposeSet(w http.ResponseWriter, r *http.Request) {
	var req ProposeSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.TrackIDs) == 0 {
		writeError(w, http.StatusBadRequest, "track_ids are required")
		return
	}

	var analyses []types.TrackAnalysis
	for _, id := range req.TrackIDs {
		track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: id})
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("track not found: %s", id))
			return
		}
		analysis, err := s.db.LatestCompleteAnalysis(track.ID)
		if err != nil {
			writeError(w, http.StatusPreconditionFailed, fmt.Sprintf("missing analysis for %s", track.Path))
			return
		}
		analyses = append(analyses, analysis)
	}

	mode := planner.SetModePeakTime
	switch strings.ToUpper(req.Mode) {
	case "WARM_UP":
		mode = planner.SetModeWarmUp
	case "OPEN_FORMAT":
		mode = planner.SetModeOpenFormat
	}

	opts := planner.Options{
		Mode:           mode,
		AllowKeyJumps:  req.AllowKeyJumps,
		MaxBpmStep:     req.MaxBpmStep,
		MustPlayHashes: toSet(req.MustPlay),
		BanHashes:      toSet(req.Ban),
	}

	order, explanations, err := planner.Plan(analyses, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "set planning failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order":        order,
		"explanations": explanations,
	})
}

// ExportRequest is the JSON request for exporting a set.
type ExportRequest struct {
	TrackIDs     []string `json:"track_ids"`
	PlaylistName string   `json:"playlist_name"`
	OutputDir    string   `json:"output_dir"`
	Formats      []string `json:"formats"`
}

// ExportResponse is the JSON response for exporting a set.
type ExportResponse struct {
	PlaylistPath  string   `json:"playlist_path"`
	AnalysisJSON  string   `json:"analysis_json"`
	CuesCSV       string   `json:"cues_csv"`
	BundlePath    string   `json:"bundle_path"`
	VendorExports []string `json:"vendor_exports"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.TrackIDs) == 0 {
		writeError(w, http.StatusBadRequest, "track_ids are required")
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(s.cfg.DataDir, "exports", time.Now().Format("20060102-150405"))
	}

	var tracks []exporter.TrackExport
	for _, id := range req.TrackIDs {
		track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: id})
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("track not found: %s", id))
			return
		}
		analysis, err := s.db.LatestCompleteAnalysis(track.ID)
		if err != nil {
			writeError(w, http.StatusPreconditionFailed, fmt.Sprintf("missing analysis for %s", track.Path))
			return
		}
		tracks = append(tracks, exporter.TrackExport{Path: track.Path, Analysis: analysis})
	}

	playlistName := req.PlaylistName
	if playlistName == "" {
		playlistName = "set"
	}

	result, err := exporter.WriteGeneric(outputDir, playlistName, tracks)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}

	var vendorExports []string
	for _, format := range req.Formats {
		var path string
		var verr error
		switch strings.ToLower(format) {
		case "rekordbox":
			path, verr = exporter.WriteRekordbox(outputDir, playlistName, tracks)
		case "serato":
			path, verr = exporter.WriteSerato(outputDir, playlistName, tracks)
		case "traktor":
			path, verr = exporter.WriteTraktor(outputDir, playlistName, tracks)
		default:
			continue
		}
		if verr != nil {
			s.logger.Warn("vendor export failed", "format", format, "error", verr)
			continue
		}
		vendorExports = append(vendorExports, path)
	}

	writeJSON(w, http.StatusOK, ExportResponse{
		PlaylistPath:  result.PlaylistPath,
		AnalysisJSON:  result.AnalysisJSONPath,
		CuesCSV:       result.CuesCSVPath,
		BundlePath:    result.BundlePath,
		VendorExports: vendorExports,
	})
}

// SimilarTracksResponse is the JSON response for similar tracks.
type SimilarTracksResponse struct {
	Query   TrackSummaryResponse          `json:"query"`
	Similar []similarity.SimilarityResult `json:"similar"`
}

func (s *Server) handleSimilarTracks(w http.ResponseWriter, r *http.Request) {
	idParam := r.PathValue("id")
	if idParam == "" {
		writeError(w, http.StatusBadRequest, "track id is required")
		return
	}

	limit := 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 50 {
		limit = l
	}

	track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: idParam})
	if err != nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	queryFeatures, err := s.db.GetTrackFeaturesForSimilarity(track.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "track analysis not found")
		return
	}
	if len(queryFeatures.OpenL3Embedding) == 0 {
		writeError(w, http.StatusPreconditionFailed, "track has no external embedding populated (spec §9 extensibility slot)")
		return
	}

	candidates, err := s.db.GetTrackFeaturesExcluding([]int64{track.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch candidates: "+err.Error())
		return
	}

	similar := similarity.FindSimilar(queryFeatures, candidates, limit)
	for _, sim := range similar {
		_ = s.db.CacheSimilarity(
			track.ID, sim.TrackID,
			sim.VibeMatch/100, sim.Score,
			sim.TempoMatch/100, sim.KeyMatch/100, sim.EnergyMatch/100,
			sim.Explanation,
		)
	}

	writeJSON(w, http.StatusOK, SimilarTracksResponse{
		Query: TrackSummaryResponse{
			ContentHash: track.ContentHash,
			Path:        track.Path,
			Title:       queryFeatures.Title,
			Artist:      queryFeatures.Artist,
			BPM:         queryFeatures.BPM,
			Key:         queryFeatures.KeyValue,
			Energy:      int(queryFeatures.Energy),
		},
		Similar: similar,
	})
}

// handleGetWaveform returns the stored peak-envelope waveform (spec §4.9)
// for a track, for UI display.
func (s *Server) handleGetWaveform(w http.ResponseWriter, r *http.Request) {
	idParam := r.PathValue("id")
	if idParam == "" {
		writeError(w, http.StatusBadRequest, "track id is required")
		return
	}
	track, err := s.db.ResolveTrack(storage.TrackID{ContentHash: idParam})
	if err != nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	bins, err := s.db.GetWaveform(track.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "waveform not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bins": bins})
}

// handleGetSettings returns the persisted similarity-weighting
// overrides (e.g. whether external-embedding similarity is enabled).
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.db.GetMLSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handlePutSetting persists a single similarity-weighting override.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.db.SetMLSetting(key, body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}

func toSet(hashes []string) map[string]bool {
	out := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		out[h] = true
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
