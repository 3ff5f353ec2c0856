// viz-export post-processes smoothed tracks for the web visualiser.
// Frames adjacent to detection gaps are trimmed, near-stationary
// jitter is dropped, the removed frames are refilled by linear
// interpolation and the result is written as scaled integer records
// in gzip JSON.
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"

	"gonum.org/v1/gonum/interp"
	_ "modernc.org/sqlite"

	"github.com/sidewalk-data/trajectory.report/internal/db"
	"github.com/sidewalk-data/trajectory.report/internal/storage/sqlite"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

func main() {
	var inputPath string
	var dbPath string
	var runID string
	var outputPath string
	var gapMargin int
	var minStep float64
	var scale float64

	flag.StringVar(&inputPath, "input", "", "smoothed CSV produced by the smoother")
	flag.StringVar(&dbPath, "db", "", "read tracks from this sqlite database instead of a CSV")
	flag.StringVar(&runID, "run", "", "run id to export (requires -db)")
	flag.StringVar(&outputPath, "output", "viz-export.json.gz", "output file")
	flag.IntVar(&gapMargin, "gap-margin", 3, "drop this many frames either side of every detection gap")
	flag.Float64Var(&minStep, "min-step", 1.0, "drop samples that moved less than this from the previous kept sample, in scaled units")
	flag.Float64Var(&scale, "scale", 100, "multiply world coordinates by this before integer rounding")
	flag.Parse()

	var tracks []track.SmoothedTrack
	var err error
	switch {
	case inputPath != "" && dbPath != "":
		log.Fatal("-input and -db are mutually exclusive")
	case inputPath != "":
		tracks, err = readCSVTracks(inputPath)
	case dbPath != "":
		if runID == "" {
			log.Fatal("-run is required with -db")
		}
		tracks, err = readRunTracks(dbPath, runID)
	default:
		log.Fatal("one of -input or -db is required")
	}
	if err != nil {
		log.Fatalf("load tracks: %v", err)
	}
	log.Printf("loaded %d tracks", len(tracks))

	records := export(tracks, gapMargin, minStep, scale)
	if len(records) == 0 {
		log.Fatal("no samples survived filtering")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(records); err != nil {
		log.Fatalf("encode records: %v", err)
	}
	if err := gz.Close(); err != nil {
		log.Fatalf("close gzip stream: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}
	log.Printf("wrote %d records to %s", len(records), outputPath)
}

func readCSVTracks(path string) ([]track.SmoothedTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return track.ReadSmoothed(f)
}

func readRunTracks(dbPath, runID string) ([]track.SmoothedTrack, error) {
	database, err := db.OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return sqlite.NewRunStore(database.DB).GetRunTracks(runID)
}

// vizRecord is one visualiser sample. Coordinates are integers in
// scaled world units; frames are rebased so the batch starts at 0.
type vizRecord struct {
	TrackID string `json:"track_id"`
	Frame   int    `json:"frame"`
	X       int64  `json:"x"`
	Y       int64  `json:"y"`
}

// sample is one surviving frame in scaled coordinates.
type sample struct {
	frame int
	x, y  float64
}

// export runs the three-stage filter pipeline over every track and
// flattens the result into visualiser records.
func export(tracks []track.SmoothedTrack, gapMargin int, minStep, scale float64) []vizRecord {
	base := math.MaxInt
	for _, tr := range tracks {
		if tr.Start < base {
			base = tr.Start
		}
	}

	var records []vizRecord
	for _, tr := range tracks {
		kept := trimGapMargins(tr, gapMargin, scale)
		kept = dropSmallSteps(kept, minStep)
		if len(kept) == 0 {
			log.Printf("track %s: no samples survived filtering", tr.ID)
			continue
		}
		for _, s := range refill(kept) {
			records = append(records, vizRecord{
				TrackID: tr.ID,
				Frame:   s.frame - base,
				X:       int64(math.Round(s.x)),
				Y:       int64(math.Round(s.y)),
			})
		}
	}
	return records
}

// trimGapMargins keeps observed frames that are more than gapMargin
// frames away from every unobserved frame, returning them in scaled
// coordinates.
func trimGapMargins(tr track.SmoothedTrack, gapMargin int, scale float64) []sample {
	drop := make([]bool, len(tr.Frames))
	for i, f := range tr.Frames {
		if f.Observed {
			continue
		}
		lo := i - gapMargin
		if lo < 0 {
			lo = 0
		}
		hi := i + gapMargin
		if hi > len(tr.Frames)-1 {
			hi = len(tr.Frames) - 1
		}
		for j := lo; j <= hi; j++ {
			drop[j] = true
		}
	}

	var kept []sample
	for i, f := range tr.Frames {
		if drop[i] {
			continue
		}
		kept = append(kept, sample{frame: f.Frame, x: f.Smoothed.X * scale, y: f.Smoothed.Y * scale})
	}
	return kept
}

// dropSmallSteps removes samples that moved less than minStep from the
// previous kept sample, thinning out standing-still jitter. The first
// sample is always kept.
func dropSmallSteps(samples []sample, minStep float64) []sample {
	if minStep <= 0 || len(samples) == 0 {
		return samples
	}
	kept := []sample{samples[0]}
	prev := samples[0]
	for _, s := range samples[1:] {
		if math.Hypot(s.x-prev.x, s.y-prev.y) <= minStep {
			continue
		}
		kept = append(kept, s)
		prev = s
	}
	return kept
}

// refill linearly interpolates the kept samples back onto every frame
// between the first and last survivor, so the visualiser never has to
// handle holes.
func refill(kept []sample) []sample {
	if len(kept) < 2 {
		return kept
	}

	frames := make([]float64, len(kept))
	xs := make([]float64, len(kept))
	ys := make([]float64, len(kept))
	for i, s := range kept {
		frames[i] = float64(s.frame)
		xs[i] = s.x
		ys[i] = s.y
	}

	var px, py interp.PiecewiseLinear
	if err := px.Fit(frames, xs); err != nil {
		return kept
	}
	if err := py.Fit(frames, ys); err != nil {
		return kept
	}

	first, last := kept[0].frame, kept[len(kept)-1].frame
	filled := make([]sample, 0, last-first+1)
	for f := first; f <= last; f++ {
		filled = append(filled, sample{
			frame: f,
			x:     px.Predict(float64(f)),
			y:     py.Predict(float64(f)),
		})
	}
	return filled
}
