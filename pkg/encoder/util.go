package encoder

import "math"

// mod returns x modulo y in [0, y).
func mod(x, y int32) int32 {
	r := x % y
	if r < 0 {
		r += y
	}
	return r
}

// recenter maps d in [0, n) to (-n/2, n/2].
func recenter(d, n int32) int32 {
	if d > n/2 {
		d -= n
	}
	return d
}

// wrapPm wraps x into [-pmRange, pmRange].
func wrapPm(x, pmRange float64) float64 {
	return x - 2*pmRange*math.Round(x/(2*pmRange))
}

// wrapPmPi wraps x into (-pi, pi].
func wrapPmPi(x float64) float64 {
	return x - 2*math.Pi*math.Ceil((x-math.Pi)/(2*math.Pi))
}

// fmodPos returns x modulo y in [0, y).
func fmodPos(x, y float64) float64 {
	r := math.Mod(x, y)
	if r < 0 {
		r += y
	}
	if r >= y {
		r = 0
	}
	return r
}

// floorDiv divides rounding towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
