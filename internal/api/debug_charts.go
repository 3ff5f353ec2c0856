package api

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot/vg"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/mapper"
	"github.com/sidewalk-data/trajectory.report/internal/report"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

// debugReprojection renders a session's correspondences as a scatter
// chart: surveyed world points coloured by reprojection error, with
// the homography's own projections overlaid in grey.
func (s *Server) debugReprojection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	stored, err := s.sessions.GetSession(id)
	if err != nil {
		if errors.Is(err, mapper.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get session: %v", err))
		return
	}
	sess := stored.Session
	if len(sess.Correspondences) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "session has no correspondences")
		return
	}

	m, err := sess.Mapper()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to rebuild mapper: %v", err))
		return
	}

	rep := sess.Report
	inlierPts := make([]opts.ScatterData, 0, len(sess.Correspondences))
	outlierPts := make([]opts.ScatterData, 0, 4)
	mappedPts := make([]opts.ScatterData, 0, len(sess.Correspondences))
	maxAbs := 0.0
	for i, c := range sess.Correspondences {
		proj := m.Forward(c.Pixel)
		residual := math.Hypot(proj.X-c.World.X, proj.Y-c.World.Y)
		for _, p := range []geom.Point{c.World, proj} {
			if math.Abs(p.X) > maxAbs {
				maxAbs = math.Abs(p.X)
			}
			if math.Abs(p.Y) > maxAbs {
				maxAbs = math.Abs(p.Y)
			}
		}
		pt := opts.ScatterData{Value: []interface{}{c.World.X, c.World.Y, residual}, Name: c.Name}
		if rep != nil && i < len(rep.Inliers) && !rep.Inliers[i] {
			outlierPts = append(outlierPts, pt)
		} else {
			inlierPts = append(inlierPts, pt)
		}
		mappedPts = append(mappedPts, opts.ScatterData{Value: []interface{}{proj.X, proj.Y, residual}, Name: c.Name})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf("session=%s points=%d", sess.Name, len(sess.Correspondences))
	if rep != nil {
		subtitle = fmt.Sprintf("session=%s points=%d inliers=%d/%d mean=%.4g max=%.4g",
			sess.Name, len(sess.Correspondences), rep.InlierCount, len(sess.Correspondences), rep.MeanError, rep.MaxError)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reprojection Errors", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Reprojection Errors", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "World X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "World Y", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("surveyed", inlierPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2196f3"}))
	if len(outlierPts) > 0 {
		scatter.AddSeries("outliers", outlierPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	}
	scatter.AddSeries("mapped", mappedPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// loadRunTrack fetches one smoothed track of a stored run, writing the
// error response itself when the run or track cannot be served.
func (s *Server) loadRunTrack(w http.ResponseWriter, runID, trackID string) (track.SmoothedTrack, bool) {
	if runID == "" || trackID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run' or 'track' parameter")
		return track.SmoothedTrack{}, false
	}
	tracks, err := s.runs.GetRunTracks(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run tracks: %v", err))
		return track.SmoothedTrack{}, false
	}
	for _, st := range tracks {
		if st.ID == trackID {
			return st, true
		}
	}
	s.writeJSONError(w, http.StatusNotFound, "track not found in run")
	return track.SmoothedTrack{}, false
}

// debugTrackChart overlays a track's raw observations with its forward
// and smoothed trajectories.
func (s *Server) debugTrackChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run")
	trackID := r.URL.Query().Get("track")
	st, ok := s.loadRunTrack(w, runID, trackID)
	if !ok {
		return
	}

	rawPts := make([]opts.ScatterData, 0, len(st.Frames))
	fwdPts := make([]opts.ScatterData, 0, len(st.Frames))
	smoothPts := make([]opts.ScatterData, 0, len(st.Frames))
	maxAbs := 0.0
	observed := 0
	for _, f := range st.Frames {
		for _, p := range []geom.Point{{X: f.Smoothed.X, Y: f.Smoothed.Y}, {X: f.Forward.X, Y: f.Forward.Y}} {
			if math.Abs(p.X) > maxAbs {
				maxAbs = math.Abs(p.X)
			}
			if math.Abs(p.Y) > maxAbs {
				maxAbs = math.Abs(p.Y)
			}
		}
		if f.Observed {
			observed++
			if math.Abs(f.Measured.X) > maxAbs {
				maxAbs = math.Abs(f.Measured.X)
			}
			if math.Abs(f.Measured.Y) > maxAbs {
				maxAbs = math.Abs(f.Measured.Y)
			}
			rawPts = append(rawPts, opts.ScatterData{Value: []interface{}{f.Measured.X, f.Measured.Y, f.Frame}})
		}
		fwdPts = append(fwdPts, opts.ScatterData{Value: []interface{}{f.Forward.X, f.Forward.Y, f.Frame}})
		smoothPts = append(smoothPts, opts.ScatterData{Value: []interface{}{f.Smoothed.X, f.Smoothed.Y, f.Frame}})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf("run=%s track=%s frames=%d observed=%d", runID, st.ID, len(st.Frames), observed)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Smoothing", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Raw vs Forward vs Smoothed", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "World X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "World Y", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("raw", rawPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("forward", fwdPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	scatter.AddSeries("smoothed", smoothPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2196f3"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// debugTrackPNG serves the publication-quality overlay plot for one
// track of a stored run.
func (s *Server) debugTrackPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	st, ok := s.loadRunTrack(w, r.URL.Query().Get("run"), r.URL.Query().Get("track"))
	if !ok {
		return
	}

	p, err := report.TrackPlot(st)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build plot: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := report.WritePNG(&buf, p, 8*vg.Inch, 8*vg.Inch); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
