package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/cartomix/vinylmind/internal/types"
)

func TestWriteGenericCreatesArtifacts(t *testing.T) {
	dir := t.TempDir()

	tracks := []TrackExport{
		{
			Path: "/music/test.wav",
			Analysis: types.TrackAnalysis{
				ContentHash: "hash1",
				Path:        "/music/test.wav",
				Cues: []types.CuePoint{
					{BeatIndex: 0, TimeSeconds: 1, Type: types.CueLoad},
				},
			},
		},
	}

	res, err := WriteGeneric(dir, "demo", tracks)
	if err != nil {
		t.Fatalf("write generic failed: %v", err)
	}

	for _, path := range []string{res.PlaylistPath, res.AnalysisJSONPath, res.CuesCSVPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file %s: %v", path, err)
		}
	}

	playlistBytes, _ := os.ReadFile(res.PlaylistPath)
	if len(playlistBytes) == 0 {
		t.Fatalf("playlist should not be empty")
	}

	f, err := os.Open(res.CuesCSVPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("csv read: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("expected header + at least one cue row, got %d", len(rows))
	}

	if filepath.Ext(res.PlaylistPath) != ".m3u8" {
		t.Fatalf("expected m3u8 playlist, got %s", res.PlaylistPath)
	}
}
