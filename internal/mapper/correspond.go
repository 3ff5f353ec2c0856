package mapper

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sidewalk-data/trajectory.report/internal/geom"
)

// Correspondence is one surveyed control point: a named world position
// and the raw pixel where it appears in the camera frame.
type Correspondence struct {
	Name  string
	World geom.Point
	Pixel geom.Point
}

var correspondenceHeader = []string{"name", "world_x", "world_y", "pixel_x", "pixel_y"}

// ReadCorrespondences parses the survey CSV. The first record must be
// the header name,world_x,world_y,pixel_x,pixel_y; every following
// record is one control point. Errors name the offending line so a
// survey file can be fixed by hand.
func ReadCorrespondences(r io.Reader) ([]Correspondence, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("correspondence csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("correspondence csv: reading header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var corrs []Correspondence
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("correspondence csv line %d: %w", line, err)
		}

		c := Correspondence{Name: strings.TrimSpace(record[0])}
		if c.Name == "" {
			return nil, fmt.Errorf("correspondence csv line %d: empty point name", line)
		}
		fields := []struct {
			column string
			dst    *float64
		}{
			{"world_x", &c.World.X},
			{"world_y", &c.World.Y},
			{"pixel_x", &c.Pixel.X},
			{"pixel_y", &c.Pixel.Y},
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("correspondence csv line %d: bad %s %q", line, f.column, record[i+1])
			}
			*f.dst = v
		}
		corrs = append(corrs, c)
	}
	return corrs, nil
}

// WriteCorrespondences emits the survey CSV in the same format
// ReadCorrespondences accepts.
func WriteCorrespondences(w io.Writer, corrs []Correspondence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(correspondenceHeader); err != nil {
		return fmt.Errorf("correspondence csv: writing header: %w", err)
	}
	for _, c := range corrs {
		record := []string{
			c.Name,
			formatCoord(c.World.X),
			formatCoord(c.World.Y),
			formatCoord(c.Pixel.X),
			formatCoord(c.Pixel.Y),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("correspondence csv: writing point %s: %w", c.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func checkHeader(got []string) error {
	if len(got) != len(correspondenceHeader) {
		return fmt.Errorf("correspondence csv: expected header %s, got %d columns",
			strings.Join(correspondenceHeader, ","), len(got))
	}
	for i, want := range correspondenceHeader {
		if strings.TrimSpace(strings.ToLower(got[i])) != want {
			return fmt.Errorf("correspondence csv: expected header column %d to be %q, got %q", i+1, want, got[i])
		}
	}
	return nil
}
