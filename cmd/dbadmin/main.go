// Command dbadmin performs offline maintenance on a vinylmind data
// directory: backup/restore of the sqlite store, integrity checks,
// vacuuming, and exporting the analysis cache to portable JSON.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/cartomix/vinylmind/internal/storage"
)

func main() {
	dataDir := flag.String("data-dir", "", "vinylmind data directory (contains vinylmind.db)")
	backupDir := flag.String("backup-dir", "", "directory to write/read backup archives")
	restoreFrom := flag.String("restore", "", "path to a backup archive to restore into -data-dir")
	cacheOut := flag.String("export-cache", "", "path to write the analysis cache as JSON")
	doBackup := flag.Bool("backup", false, "create a backup archive in -backup-dir")
	doVacuum := flag.Bool("vacuum", false, "run VACUUM on the database")
	doCheck := flag.Bool("check", false, "run a database integrity check")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("-data-dir is required")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *restoreFrom != "" {
		meta, err := storage.RestoreBackup(*restoreFrom, *dataDir)
		if err != nil {
			log.Fatalf("restore failed: %v", err)
		}
		fmt.Printf("restored %d tracks, %d analyses from %s\n", meta.TrackCount, meta.AnalysisCount, *restoreFrom)
		return
	}

	db, err := storage.Open(*dataDir, logger)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if *doCheck {
		if err := db.IntegrityCheck(); err != nil {
			log.Fatalf("integrity check failed: %v", err)
		}
		fmt.Println("integrity check OK")
	}

	if *doBackup {
		if *backupDir == "" {
			log.Fatal("-backup-dir is required with -backup")
		}
		path, meta, err := db.CreateBackup(*backupDir)
		if err != nil {
			log.Fatalf("backup failed: %v", err)
		}
		fmt.Printf("wrote backup %s (%d tracks, %d analyses)\n", path, meta.TrackCount, meta.AnalysisCount)
	}

	if *cacheOut != "" {
		if err := db.ExportAnalysisCache(*cacheOut); err != nil {
			log.Fatalf("export cache failed: %v", err)
		}
		fmt.Printf("exported analysis cache to %s\n", *cacheOut)
	}

	if *doVacuum {
		if err := db.VacuumDatabase(); err != nil {
			log.Fatalf("vacuum failed: %v", err)
		}
		fmt.Println("vacuum complete")
	}
}
