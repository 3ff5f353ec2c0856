package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("IsValid(%q) = false for a listed unit", unit)
		}
	}
	for _, unit := range []string{"", "knots", "MPS", "m/s"} {
		if IsValid(unit) {
			t.Errorf("IsValid(%q) = true, want false", unit)
		}
	}
}

func TestGetValidUnitsString(t *testing.T) {
	want := "mps, mph, kmph, kph"
	if got := GetValidUnitsString(); got != want {
		t.Errorf("GetValidUnitsString() = %q, want %q", got, want)
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		unit     string
		want     float64
	}{
		{"mps passthrough", 5, MPS, 5},
		{"walking pace to mph", 1.4, MPH, 1.4 * 2.2369362920544},
		{"to kmph", 5, KMPH, 18},
		{"kph alias", 1, KPH, 3.6},
		{"zero stays zero", 0, MPH, 0},
		{"unknown unit passthrough", 2.5, "furlongs", 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertSpeed(tt.speedMPS, tt.unit); math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("ConvertSpeed(%v, %s) = %v, want %v", tt.speedMPS, tt.unit, got, tt.want)
			}
		})
	}
}

func TestConvertToMPS(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		unit  string
		want  float64
	}{
		{"mps passthrough", 5, MPS, 5},
		{"mph to mps", 2.2369362920544, MPH, 1},
		{"kmph to mps", 36, KMPH, 10},
		{"kph alias", 3.6, KPH, 1},
		{"unknown unit passthrough", 5, "furlongs", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertToMPS(tt.speed, tt.unit); math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("ConvertToMPS(%v, %s) = %v, want %v", tt.speed, tt.unit, got, tt.want)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	const speed = 15.5
	for _, unit := range ValidUnits {
		back := ConvertToMPS(ConvertSpeed(speed, unit), unit)
		if math.Abs(back-speed) > 1e-10 {
			t.Errorf("%s round trip: started %v m/s, got %v m/s", unit, speed, back)
		}
	}
}
