// trajectory-report serves the HTTP API over stored camera
// calibrations, pixel-world mapping sessions and smoothing runs.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sidewalk-data/trajectory.report/internal/api"
	"github.com/sidewalk-data/trajectory.report/internal/config"
	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
	"github.com/sidewalk-data/trajectory.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "trajectory.db", "Path to the SQLite database file")
	configPath  = flag.String("config", "", "Path to a tuning config JSON file")
	jobDeadline = flag.Duration("job-deadline", 0, "Per-request smoothing deadline (overrides the config file)")
)

// loadTuning builds the server's base tuning from the config file and
// flag overrides. The result has been validated.
func loadTuning() (*config.TuningConfig, error) {
	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			return nil, err
		}
		tuning = loaded
	}
	if *jobDeadline > 0 {
		override := config.EmptyTuningConfig()
		d := jobDeadline.String()
		override.JobDeadline = &d
		tuning = tuning.Merged(override)
	}
	return tuning, tuning.Validate()
}

// Main
func main() {
	flag.Parse()

	// `trajectory-report migrate <action>` manages the schema and exits
	// without starting the server.
	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning, err := loadTuning()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	fsys, err := db.MigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}
	if outdated, err := database.CheckAndPromptMigrations(fsys); outdated {
		log.Fatalf("%v", err)
	} else if err != nil {
		log.Fatalf("Failed to check migration state: %v", err)
	}

	server := api.NewServer(
		sqlite.NewCalibrationStore(database.DB),
		sqlite.NewSessionStore(database.DB),
		sqlite.NewRunStore(database.DB),
		tuning,
	)

	// Create a wait group for the HTTP server routine
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(server.ServeMux()),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("trajectory-report %s serving on %s (db %s)", version.Version, *listen, *dbPath)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
