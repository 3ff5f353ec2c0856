package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
	"github.com/sidewalk-data/trajectory.report/internal/track"
)

// RunStore provides persistence for smoothing runs and their per-frame
// output.
type RunStore struct {
	db *sql.DB
}

var _ track.Store = (*RunStore)(nil)

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun persists a run together with its smoothed tracks and
// failures in one transaction. If run.ID is empty, a UUID is
// generated; TrackCount and FailureCount are set from the slices.
func (s *RunStore) InsertRun(run *track.Run, tracks []track.SmoothedTrack, failures []track.Failure) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.TrackCount = len(tracks)
	run.FailureCount = len(failures)

	var sessionID interface{}
	if run.SessionID != "" {
		sessionID = run.SessionID
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin insert run tx: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO smoothing_runs (
				id, created_at, session_id, source,
				frame_interval, sensors, measurement_std, process_std, initial_covariance,
				track_count, failure_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt.UnixNano(), sessionID, run.Source,
			run.Config.FrameInterval, run.Config.Sensors,
			run.Config.MeasurementStd, run.Config.ProcessStd, run.Config.InitialCovariance,
			run.TrackCount, run.FailureCount,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert run: %w", err)
		}

		for _, st := range tracks {
			for _, f := range st.Frames {
				var rawX, rawY interface{}
				if f.Observed {
					rawX, rawY = f.Measured.X, f.Measured.Y
				}
				_, err := tx.Exec(`
					INSERT INTO smoothed_frames (
						run_id, track_id, frame, observed, raw_x, raw_y,
						smoothed_x, smoothed_vx, smoothed_ax,
						smoothed_y, smoothed_vy, smoothed_ay,
						forward_x, forward_vx, forward_ax,
						forward_y, forward_vy, forward_ay,
						speed, pos_var_x, pos_var_y
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					run.ID, st.ID, f.Frame, f.Observed, rawX, rawY,
					f.Smoothed.X, f.Smoothed.VX, f.Smoothed.AX,
					f.Smoothed.Y, f.Smoothed.VY, f.Smoothed.AY,
					f.Forward.X, f.Forward.VX, f.Forward.AX,
					f.Forward.Y, f.Forward.VY, f.Forward.AY,
					f.Speed, f.PosVarX, f.PosVarY,
				)
				if err != nil {
					tx.Rollback()
					return fmt.Errorf("insert frame %d of track %s: %w", f.Frame, st.ID, err)
				}
			}
		}

		for _, fail := range failures {
			msg := ""
			if fail.Err != nil {
				msg = fail.Err.Error()
			}
			if _, err := tx.Exec(`
				INSERT INTO run_failures (run_id, track_id, error) VALUES (?, ?, ?)`,
				run.ID, fail.TrackID, msg,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert failure for track %s: %w", fail.TrackID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit insert run tx: %w", err)
		}
		return nil
	})
}

// GetRun returns a single run's metadata by ID.
func (s *RunStore) GetRun(runID string) (*track.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, session_id, source,
		       frame_interval, sensors, measurement_std, process_std, initial_covariance,
		       track_count, failure_count
		FROM smoothing_runs
		WHERE id = ?`, runID)

	run, err := scanRun(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s: %w", runID, track.ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by creation time descending. A
// non-positive limit falls back to 100.
func (s *RunStore) ListRuns(limit int) ([]*track.Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, created_at, session_id, source,
		       frame_interval, sensors, measurement_std, process_std, initial_covariance,
		       track_count, failure_count
		FROM smoothing_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*track.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunTracks rebuilds the smoothed tracks of a run. Frames are dense
// per track, so Start is the first stored frame and the rest follow
// contiguously in frame order.
func (s *RunStore) GetRunTracks(runID string) ([]track.SmoothedTrack, error) {
	rows, err := s.db.Query(`
		SELECT track_id, frame, observed, raw_x, raw_y,
		       smoothed_x, smoothed_vx, smoothed_ax,
		       smoothed_y, smoothed_vy, smoothed_ay,
		       forward_x, forward_vx, forward_ax,
		       forward_y, forward_vy, forward_ay,
		       speed, pos_var_x, pos_var_y
		FROM smoothed_frames
		WHERE run_id = ?
		ORDER BY track_id, frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run tracks: %w", err)
	}
	defer rows.Close()

	var tracks []track.SmoothedTrack
	var cur *track.SmoothedTrack
	for rows.Next() {
		var trackID string
		var f track.SmoothedFrame
		var rawX, rawY sql.NullFloat64
		err := rows.Scan(
			&trackID, &f.Frame, &f.Observed, &rawX, &rawY,
			&f.Smoothed.X, &f.Smoothed.VX, &f.Smoothed.AX,
			&f.Smoothed.Y, &f.Smoothed.VY, &f.Smoothed.AY,
			&f.Forward.X, &f.Forward.VX, &f.Forward.AX,
			&f.Forward.Y, &f.Forward.VY, &f.Forward.AY,
			&f.Speed, &f.PosVarX, &f.PosVarY,
		)
		if err != nil {
			return nil, fmt.Errorf("scan frame row: %w", err)
		}
		if rawX.Valid && rawY.Valid {
			f.Measured = geom.Point{X: rawX.Float64, Y: rawY.Float64}
		}

		if cur == nil || cur.ID != trackID {
			tracks = append(tracks, track.SmoothedTrack{ID: trackID, Start: f.Frame})
			cur = &tracks[len(tracks)-1]
		}
		cur.Frames = append(cur.Frames, f)
	}
	return tracks, rows.Err()
}

// GetRunFailures returns the per-track failures recorded for a run.
func (s *RunStore) GetRunFailures(runID string) ([]track.Failure, error) {
	rows, err := s.db.Query(`
		SELECT track_id, error
		FROM run_failures
		WHERE run_id = ?
		ORDER BY track_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run failures: %w", err)
	}
	defer rows.Close()

	var failures []track.Failure
	for rows.Next() {
		var trackID, msg string
		if err := rows.Scan(&trackID, &msg); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		failures = append(failures, track.Failure{TrackID: trackID, Err: errors.New(msg)})
	}
	return failures, rows.Err()
}

// DeleteRun removes a run and all its frames and failures.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin delete run tx: %w", err)
		}

		for _, query := range []string{
			`DELETE FROM smoothed_frames WHERE run_id = ?`,
			`DELETE FROM run_failures WHERE run_id = ?`,
		} {
			if _, err := tx.Exec(query, runID); err != nil {
				tx.Rollback()
				return fmt.Errorf("delete run data: %w", err)
			}
		}

		result, err := tx.Exec(`DELETE FROM smoothing_runs WHERE id = ?`, runID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			tx.Rollback()
			return fmt.Errorf("run %s: %w", runID, track.ErrNotFound)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit delete run tx: %w", err)
		}
		return nil
	})
}

// scanRun scans one run row using the given scan function, so the same
// column mapping serves both QueryRow and Rows cursors.
func scanRun(scan func(...interface{}) error) (*track.Run, error) {
	var run track.Run
	var createdAt int64
	var sessionID sql.NullString
	err := scan(
		&run.ID, &createdAt, &sessionID, &run.Source,
		&run.Config.FrameInterval, &run.Config.Sensors,
		&run.Config.MeasurementStd, &run.Config.ProcessStd, &run.Config.InitialCovariance,
		&run.TrackCount, &run.FailureCount,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdAt)
	if sessionID.Valid {
		run.SessionID = sessionID.String
	}
	return &run, nil
}
