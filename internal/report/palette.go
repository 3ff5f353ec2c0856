package report

import "image/color"

// Fixed series colours for the raw/forward/smoothed overlay. Raw
// measurements stay muted so the estimates read on top of them.
var (
	rawColor      = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	forwardColor  = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	smoothedColor = color.RGBA{R: 33, G: 150, B: 243, A: 255}
	outlierColor  = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	inlierColor   = color.RGBA{R: 33, G: 150, B: 243, A: 255}
)

// seriesColors creates a palette of distinct colours for per-track
// lines, spaced evenly around the hue wheel.
func seriesColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
