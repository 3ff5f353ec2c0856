// smooth runs the gap-aware forward filter and RTS smoother over a
// detector track CSV and writes the smoothed series, with optional
// pixel-to-world mapping, plots, JSON export and run persistence.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sidewalk-data/trajectory.report/internal/config"
	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/motion"
	"github.com/sidewalk-data/trajectory.report/internal/report"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

func main() {
	var inputPath string
	var outputPath string
	var configPath string
	var sessionPath string
	var workers int
	var dt float64
	var jsonPath string
	var plotDir string
	var dbPath string
	var source string
	var deadline time.Duration

	flag.StringVar(&inputPath, "input", "", "detector track CSV (track_id,frame,x,y)")
	flag.StringVar(&outputPath, "output", "", "smoothed CSV output path (defaults to the input with a -smoothed suffix)")
	flag.StringVar(&configPath, "config", "", "tuning config JSON file")
	flag.StringVar(&sessionPath, "session", "", "mapping session blob; input coordinates are treated as pixels and mapped to world space")
	flag.IntVar(&workers, "workers", 0, "concurrent tracks (0 uses the config value)")
	flag.Float64Var(&dt, "dt", 0, "frame interval in seconds (0 uses the config value)")
	flag.StringVar(&jsonPath, "json", "", "also write the smoothed tracks as gzip JSON to this file")
	flag.StringVar(&plotDir, "plot", "", "also write per-track PNG plots into this directory")
	flag.StringVar(&dbPath, "db", "", "also persist the run to this sqlite database")
	flag.StringVar(&source, "source", "", "run source label (defaults to the input file name)")
	flag.DurationVar(&deadline, "deadline", 0, "abort the batch after this long (0 runs to completion)")
	flag.Parse()

	if inputPath == "" {
		log.Fatal("-input is required")
	}

	f, err := os.Open(inputPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	tracks, err := track.ReadTracks(f)
	f.Close()
	if err != nil {
		log.Fatalf("read tracks: %v", err)
	}
	log.Printf("read %d tracks from %s", len(tracks), inputPath)

	tuning := config.EmptyTuningConfig()
	if configPath != "" {
		tuning, err = config.LoadTuningConfig(configPath)
		if err != nil {
			log.Fatalf("load tuning config: %v", err)
		}
	}
	override := config.EmptyTuningConfig()
	if dt > 0 {
		override.FrameInterval = &dt
	}
	if workers > 0 {
		override.Workers = &workers
	}
	tuning = tuning.Merged(override)

	var m *mapper.Mapper
	if sessionPath != "" {
		blob, err := os.ReadFile(sessionPath)
		if err != nil {
			log.Fatalf("read session blob: %v", err)
		}
		sess, err := mapper.UnmarshalSession(blob)
		if err != nil {
			log.Fatalf("decode session blob: %v", err)
		}
		m, err = sess.Mapper()
		if err != nil {
			log.Fatalf("rebuild mapper: %v", err)
		}
		log.Printf("mapping pixels through session %q", sess.Name)
	}

	model, err := motion.NewModel(tuning.MotionConfig())
	if err != nil {
		log.Fatalf("invalid motion config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	proc := &track.Processor{Model: model, Mapper: m, Workers: tuning.GetWorkers()}
	started := time.Now()
	res, err := proc.Run(ctx, tracks)
	if err != nil {
		log.Fatalf("batch aborted: %v", err)
	}

	for _, fail := range res.Failures {
		log.Printf("track %s failed: %v", fail.TrackID, fail.Err)
	}
	if len(res.Smoothed) == 0 {
		log.Fatalf("no tracks survived smoothing (%d failures)", len(res.Failures))
	}
	log.Printf("smoothed %d/%d tracks in %v", len(res.Smoothed), len(tracks), time.Since(started).Round(time.Millisecond))

	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, ".csv") + "-smoothed.csv"
	}
	out, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	if err := track.WriteSmoothed(out, res.Smoothed); err != nil {
		out.Close()
		log.Fatalf("write smoothed csv: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}
	log.Printf("wrote %s", outputPath)

	if jsonPath != "" {
		if err := writeJSONExport(jsonPath, res.Smoothed); err != nil {
			log.Fatalf("write json export: %v", err)
		}
		log.Printf("wrote %s", jsonPath)
	}

	if plotDir != "" {
		n, err := report.SaveTrackPlots(plotDir, res.Smoothed)
		if err != nil {
			log.Fatalf("write plots: %v", err)
		}
		log.Printf("wrote %d plots to %s", n, plotDir)
	}

	if dbPath != "" {
		if source == "" {
			source = inputPath
		}
		run := &track.Run{Source: source, Config: tuning.MotionConfig()}
		if err := insertRun(dbPath, run, res.Smoothed, res.Failures); err != nil {
			log.Fatalf("store run: %v", err)
		}
		fmt.Printf("stored run %s\n", run.ID)
	}
}

// jsonFrame is the export record for one frame. Raw coordinates are
// omitted on unobserved frames.
type jsonFrame struct {
	Frame    int      `json:"frame"`
	Observed bool     `json:"observed"`
	RawX     *float64 `json:"raw_x,omitempty"`
	RawY     *float64 `json:"raw_y,omitempty"`
	X        float64  `json:"x"`
	VX       float64  `json:"vx"`
	AX       float64  `json:"ax"`
	Y        float64  `json:"y"`
	VY       float64  `json:"vy"`
	AY       float64  `json:"ay"`
	Speed    float64  `json:"speed"`
}

type jsonTrack struct {
	ID     string      `json:"id"`
	Start  int         `json:"start"`
	End    int         `json:"end"`
	Frames []jsonFrame `json:"frames"`
}

func writeJSONExport(path string, tracks []track.SmoothedTrack) error {
	out := make([]jsonTrack, len(tracks))
	for i, tr := range tracks {
		jt := jsonTrack{ID: tr.ID, Start: tr.Start, End: tr.End(), Frames: make([]jsonFrame, len(tr.Frames))}
		for j, fr := range tr.Frames {
			jf := jsonFrame{
				Frame:    fr.Frame,
				Observed: fr.Observed,
				X:        fr.Smoothed.X,
				VX:       fr.Smoothed.VX,
				AX:       fr.Smoothed.AX,
				Y:        fr.Smoothed.Y,
				VY:       fr.Smoothed.VY,
				AY:       fr.Smoothed.AY,
				Speed:    fr.Speed,
			}
			if fr.Observed {
				x, y := fr.Measured.X, fr.Measured.Y
				jf.RawX, jf.RawY = &x, &y
			}
			jt.Frames[j] = jf
		}
		out[i] = jt
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(out); err != nil {
		gz.Close()
		f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func insertRun(dbPath string, run *track.Run, tracks []track.SmoothedTrack, failures []track.Failure) error {
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

	return sqlite.NewRunStore(database.DB).InsertRun(run, tracks, failures)
}
