package encoder

// SetLinearCount overwrites the linear count, resets the linear estimate to it
// and writes the hardware counter.
func (e *Encoder) SetLinearCount(count int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLinearCount(count)
}

func (e *Encoder) setLinearCount(count int32) {
	e.shadowCount = count
	e.posEstimate = float64(count)

	// hardware last
	e.lastRaw = uint16(count)
	if e.hw.Counter != nil {
		e.hw.Counter.SetCount(e.lastRaw)
	}
}

// SetCircularCount sets the circular count to count modulo CPR.
// With updateOffset the offset moves along, so the electrical phase does not change.
func (e *Encoder) SetCircularCount(count int32, updateOffset bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setCircularCount(count, updateOffset)
}

func (e *Encoder) setCircularCount(count int32, updateOffset bool) {
	cpr := e.config.CPR
	if updateOffset {
		e.config.Offset = mod(e.config.Offset+count-e.countInCPR, cpr)
	}

	e.countInCPR = mod(count, cpr)
	e.posCPR = float64(e.countInCPR)
}

// applyDelta advances both counts by delta.
// In absolute mode the circular count is the last absolute sample.
func (e *Encoder) applyDelta(delta int32) {
	cpr := e.config.CPR
	e.shadowCount += delta
	e.countInCPR = mod(e.countInCPR+delta, cpr)

	if e.config.Mode.IsAbsolute() {
		e.countInCPR = mod(e.posAbs, cpr)
	}
}
