package encoder

import "math"

// UpdatePLLGains derives the PLL gains from the configured bandwidth.
// ErrorUnstableGain is set if the bandwidth is too high for the control rate.
func (e *Encoder) UpdatePLLGains() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updatePLLGains()
}

func (e *Encoder) updatePLLGains() {
	e.pllKp = 2 * e.config.Bandwidth
	// critically damped
	e.pllKi = 0.25 * e.pllKp * e.pllKp

	// the discrete time approximation breaks down above this
	if !(e.dt*e.pllKp < 1) {
		e.setError(ErrorUnstableGain)
	}
}

// runPLL predicts and corrects the position estimates and the velocity.
// It returns true if the velocity was snapped to zero.
func (e *Encoder) runPLL() bool {
	cpr := float64(e.config.CPR)

	// predict
	e.posEstimate += e.dt * e.velEstimate
	e.posCPR += e.dt * e.velEstimate

	// discrete phase detector
	deltaPos := float64(e.shadowCount - int32(math.Floor(e.posEstimate)))
	deltaPosCPR := float64(e.countInCPR - int32(math.Floor(e.posCPR)))
	deltaPosCPR = wrapPm(deltaPosCPR, 0.5*cpr)

	// correct
	e.posEstimate += e.dt * e.pllKp * deltaPos
	e.posCPR += e.dt * e.pllKp * deltaPosCPR
	e.posCPR = fmodPos(e.posCPR, cpr)
	e.velEstimate += e.dt * e.pllKi * deltaPosCPR

	if math.Abs(e.velEstimate) < 0.5*e.dt*e.pllKi {
		e.velEstimate = 0
		return true
	}
	return false
}

// interpolate places the position between two counts and derives the electrical phase.
func (e *Encoder) interpolate(delta int32, snapped bool) {
	switch {
	case snapped:
		e.interpolation = 0.5
	case delta > 0:
		e.interpolation = 0
	case delta < 0:
		e.interpolation = 1
	default:
		e.interpolation += e.dt * e.velEstimate
		e.interpolation = math.Min(math.Max(e.interpolation, 0), 1)
	}

	corrected := float64(e.countInCPR - e.config.Offset)
	e.phase = wrapPmPi(e.elecRadPerCount() * (corrected + e.interpolation - e.config.OffsetFloat))
}
