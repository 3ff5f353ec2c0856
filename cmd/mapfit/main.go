// mapfit fits the pixel-to-world homography from a surveyed
// correspondence CSV and writes the session blob the rest of the
// pipeline maps through.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"
	_ "modernc.org/sqlite"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/report"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
)

func main() {
	var pointsPath string
	var calPath string
	var name string
	var outPath string
	var pngPath string
	var dbPath string
	var threshold float64
	var iterations int
	var seed int64

	flag.StringVar(&pointsPath, "points", "", "correspondence CSV (name,world_x,world_y,pixel_x,pixel_y)")
	flag.StringVar(&calPath, "calibration", "", "calibration blob to undistort pixels through before fitting")
	flag.StringVar(&name, "name", "", "session name (defaults to the points file name)")
	flag.StringVar(&outPath, "out", "", "session blob output path (defaults to the points file with a .session extension)")
	flag.StringVar(&pngPath, "png", "", "write a reprojection scatter PNG to this file")
	flag.StringVar(&dbPath, "db", "", "insert the session into this sqlite database")
	flag.Float64Var(&threshold, "threshold", 0, "RANSAC inlier threshold in world units (0 uses the default)")
	flag.IntVar(&iterations, "iterations", 0, "RANSAC iteration ceiling (0 uses the default)")
	flag.Int64Var(&seed, "seed", 0, "RANSAC sampling seed, for reproducible fits")
	flag.Parse()

	if pointsPath == "" {
		log.Fatal("-points is required")
	}

	f, err := os.Open(pointsPath)
	if err != nil {
		log.Fatalf("open points file: %v", err)
	}
	corrs, err := mapper.ReadCorrespondences(f)
	f.Close()
	if err != nil {
		log.Fatalf("read correspondences: %v", err)
	}
	log.Printf("read %d correspondences from %s", len(corrs), pointsPath)

	var cal *camera.CalibrationResult
	if calPath != "" {
		blob, err := os.ReadFile(calPath)
		if err != nil {
			log.Fatalf("read calibration blob: %v", err)
		}
		cal, err = camera.UnmarshalCalibration(blob)
		if err != nil {
			log.Fatalf("decode calibration blob: %v", err)
		}
		log.Printf("undistorting through %s calibration (%dx%d)", cal.Model, cal.ImageWidth, cal.ImageHeight)
	}

	cfg := geom.FitConfig{
		InlierThreshold: threshold,
		MaxIterations:   iterations,
		Seed:            seed,
	}
	m, rep, err := mapper.Fit(cal, corrs, cfg)
	if err != nil {
		log.Fatalf("fit failed: %v", err)
	}

	report.WriteFitTable(os.Stdout, corrs, m, rep)

	if name == "" {
		name = strings.TrimSuffix(pointsPath, ".csv")
	}
	sess := &mapper.Session{
		Name:            name,
		CreatedAt:       time.Now(),
		Calibration:     cal,
		Homography:      m.Homography(),
		Report:          rep,
		Correspondences: corrs,
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(pointsPath, ".csv") + ".session"
	}
	blob, err := sess.Marshal()
	if err != nil {
		log.Fatalf("marshal session: %v", err)
	}
	if err := os.WriteFile(outPath, blob, 0644); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}
	log.Printf("wrote session blob %s (%d bytes)", outPath, len(blob))

	if pngPath != "" {
		p, err := report.ReprojectionPlot(corrs, m, rep)
		if err != nil {
			log.Fatalf("build reprojection plot: %v", err)
		}
		if err := p.Save(8*vg.Inch, 8*vg.Inch, pngPath); err != nil {
			log.Fatalf("save %s: %v", pngPath, err)
		}
		log.Printf("wrote reprojection plot %s", pngPath)
	}

	if dbPath != "" {
		stored := &mapper.StoredSession{Session: sess}
		if err := insertSession(dbPath, stored); err != nil {
			log.Fatalf("store session: %v", err)
		}
		fmt.Printf("stored session %s (%s)\n", stored.ID, name)
	}
}

func insertSession(dbPath string, sess *mapper.StoredSession) error {
	database, err := db.OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	fsys, err := db.MigrationsFS()
	if err != nil {
		return err
	}
	if outdated, err := database.CheckAndPromptMigrations(fsys); outdated || err != nil {
		return err
	}

	return sqlite.NewSessionStore(database.DB).InsertSession(sess)
}
