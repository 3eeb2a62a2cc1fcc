package compare

import "math"

// Band is the display severity of a z-score.
type Band string

// Band values, from least to most severe.
const (
	BandWithin     Band = "within"
	BandBorderline Band = "borderline"
	BandOutside    Band = "outside"
)

// BorderlineZ is the outer edge of the borderline band.
const BorderlineZ = 3.0

// BandOf maps z to its display band: |z| <= 2 within, |z| <= 3 borderline,
// anything further outside.
func BandOf(z float64) Band {
	a := math.Abs(z)
	switch {
	case a <= ThresholdZ:
		return BandWithin
	case a <= BorderlineZ:
		return BandBorderline
	default:
		return BandOutside
	}
}
