// Package units converts pipeline speeds for display. The smoother
// works in world units per second (metres per second when the survey
// is metric); API responses convert to the configured display unit.
package units

import "strings"

// Display unit names as they appear in tuning config and API responses.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits lists every accepted display unit.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// metres per second to miles per hour
const mphPerMPS = 2.2369362920544

// IsValid reports whether unit names an accepted display unit.
// Matching is case-sensitive; config values are lowercase.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// GetValidUnitsString renders the accepted units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a stored speed in m/s to the target display
// unit. Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mphPerMPS
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ConvertToMPS converts a display-unit speed back to m/s. Unknown
// units pass the value through unchanged.
func ConvertToMPS(speed float64, fromUnits string) float64 {
	switch fromUnits {
	case MPH:
		return speed / mphPerMPS
	case KMPH, KPH:
		return speed / 3.6
	default:
		return speed
	}
}
