// Command edgewarn runs the storm-cell detection and tracking cycle:
// it reads one or more gridded reflectivity snapshots, updates the
// persistent tracked-cell state, and optionally archives the results
// and serves them over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewsofficial/EdgeWARN/internal/api"
	"github.com/ewsofficial/EdgeWARN/internal/config"
	"github.com/ewsofficial/EdgeWARN/internal/storm"
	"github.com/ewsofficial/EdgeWARN/internal/store"
	"github.com/ewsofficial/EdgeWARN/internal/version"
)

var (
	statePath   = flag.String("state", "storm_cells.json", "Tracked-cell state file")
	configPath  = flag.String("config", "", "Tuning config JSON (defaults when empty)")
	archivePath = flag.String("db", "", "Optional sqlite archive")
	listen      = flag.String("listen", "", "Serve the tracked cells over HTTP after processing (e.g. :8080)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgewarn %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	grids := flag.Args()
	if len(grids) == 0 && *listen == "" {
		log.Fatal("usage: edgewarn [flags] grid.json [grid.json ...]")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid tuning config: %v", err)
	}

	state := store.NewStateFile(*statePath)
	tracked, err := state.Load()
	if err != nil {
		log.Fatalf("failed to load state: %v", err)
	}

	var archive *store.Archive
	if *archivePath != "" {
		archive, err = store.OpenArchive(*archivePath)
		if err != nil {
			log.Fatalf("failed to open archive: %v", err)
		}
		defer archive.Close()
	}

	pipeline := storm.NewPipeline(cfg)
	for _, path := range grids {
		grid, err := store.ReadGrid(path)
		if err != nil {
			log.Fatalf("failed to read grid: %v", err)
		}

		res, err := pipeline.RunScan(grid, tracked)
		if err != nil {
			log.Fatalf("scan %s failed: %v", grid.ScanTime, err)
		}
		log.Printf("scan %s: %d detected, %d merged, %d terminated, %d matches (%s), %d tracks",
			res.ScanTime, res.Detected, res.Merged, res.Terminated,
			len(res.Matching.Matches), res.Matching.Quality, res.Tracks)

		if err := state.Save(tracked); err != nil {
			log.Fatalf("failed to save state: %v", err)
		}
		if archive != nil {
			if err := archive.RecordScan(res, tracked); err != nil {
				log.Fatalf("failed to archive scan: %v", err)
			}
		}
	}

	if *listen == "" {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(tracked, cfg, archive).ServeMux()),
	}

	go func() {
		log.Printf("serving tracked cells on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
