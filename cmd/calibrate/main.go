// calibrate solves camera intrinsics from checkerboard survey images
// and stores the result as a blob file, a database row, or both.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/sidewalk-data/trajectory.report/internal/camera"
	"github.com/sidewalk-data/trajectory.report/internal/camera/board"
	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/report"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
)

func main() {
	var modelStr string
	var pattern string
	var balance float64
	var name string
	var outPath string
	var dbPath string

	flag.StringVar(&modelStr, "model", "planar", "lens model: planar or fisheye")
	flag.StringVar(&pattern, "pattern", "9x6", "checkerboard inner-corner pattern, columns x rows")
	flag.Float64Var(&balance, "balance", 1.0, "fisheye balance: 0 crops to valid pixels, 1 keeps the full field")
	flag.StringVar(&name, "name", "", "calibration name (defaults to the first image's directory name)")
	flag.StringVar(&outPath, "out", "", "write the calibration blob to this file")
	flag.StringVar(&dbPath, "db", "", "insert the calibration into this sqlite database")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: calibrate [flags] <image files or globs>")
	}

	model, err := camera.ParseLensModel(modelStr)
	if err != nil {
		log.Fatalf("invalid -model: %v", err)
	}
	var cols, rows int
	if _, err := fmt.Sscanf(pattern, "%dx%d", &cols, &rows); err != nil || cols < 2 || rows < 2 {
		log.Fatalf("invalid -pattern %q, expected e.g. 9x6", pattern)
	}

	paths, err := expandArgs(flag.Args())
	if err != nil {
		log.Fatalf("bad image argument: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no images match %v", flag.Args())
	}
	log.Printf("calibrating %s model from %d images (pattern %dx%d)", model, len(paths), cols, rows)

	cfg := board.Config{
		PatternCols:    cols,
		PatternRows:    rows,
		Model:          model,
		FisheyeBalance: balance,
	}
	res, err := board.CalibrateIntrinsics(paths, cfg)
	if err != nil {
		log.Fatalf("calibration failed: %v", err)
	}

	report.WriteCalibrationTable(os.Stdout, res)

	if name == "" {
		name = filepath.Base(filepath.Dir(paths[0]))
	}

	if outPath != "" {
		blob, err := res.Marshal()
		if err != nil {
			log.Fatalf("marshal calibration: %v", err)
		}
		if err := os.WriteFile(outPath, blob, 0644); err != nil {
			log.Fatalf("write %s: %v", outPath, err)
		}
		log.Printf("wrote calibration blob %s (%d bytes)", outPath, len(blob))
	}

	if dbPath != "" {
		stored := &camera.StoredCalibration{Name: name, Result: res}
		if err := insertCalibration(dbPath, stored); err != nil {
			log.Fatalf("store calibration: %v", err)
		}
		fmt.Printf("stored calibration %s (%s)\n", stored.ID, name)
	}
}

// expandArgs globs each argument; an argument with no metacharacters
// that names an existing file passes through unchanged.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", arg, err)
		}
		if matches == nil {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

func insertCalibration(dbPath string, cal *camera.StoredCalibration) error {
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

	return sqlite.NewCalibrationStore(database.DB).InsertCalibration(cal)
}
