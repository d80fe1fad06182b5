package encoder

import "math/bits"

// hallCounts is the position of each hall code in the commutation sequence, -1 for illegal codes.
var hallCounts = [8]int32{
	0b000: -1,
	0b001: 0,
	0b011: 1,
	0b010: 2,
	0b110: 3,
	0b100: 4,
	0b101: 5,
	0b111: -1,
}

// decodeHall returns the commutation state of a hall code.
func decodeHall(code uint8) (int32, bool) {
	c := hallCounts[code&0x07]
	return c, c >= 0
}

// decodeAMS checks the even parity bit of an AMS reply and returns its 14 bit angle.
func decodeAMS(word uint16) (int32, bool) {
	parity := uint16(bits.OnesCount16(word&0x7FFF) & 1)
	if parity != word>>15 {
		return 0, false
	}
	return int32(word & 0x3FFF), true
}

// decode reads one raw sample and returns the count delta against the tracker.
// Must be called with mu held.
func (e *Encoder) decode() (int32, error) {
	switch e.config.Mode {
	case ModeIncremental:
		if e.hw.Counter == nil {
			return 0, ErrNoCounter
		}
		raw := e.hw.Counter.Count()
		delta := int32(int16(raw - e.lastRaw))
		e.lastRaw = raw
		return delta, nil

	case ModeHall:
		cnt, ok := decodeHall(uint8(e.hallState.Load()))
		if !ok {
			if e.config.IgnoreIllegalHallState {
				return 0, nil
			}
			e.setError(ErrorIllegalHallState)
			return 0, ErrorIllegalHallState
		}
		return recenter(mod(cnt-e.countInCPR, 6), 6), nil

	case ModeSPIAbsAMS, ModeSPIAbsCUI:
		if !e.absPosUpdated.Swap(false) {
			e.spiErrorRate += e.dt * (1 - e.spiErrorRate)
			if e.spiErrorRate > spiErrorRateThreshold {
				e.setError(ErrorAbsSPICommFail)
			}
			return 0, nil
		}
		e.spiErrorRate += e.dt * (0 - e.spiErrorRate)
		return recenter(mod(e.posAbs-e.countInCPR, e.config.CPR), e.config.CPR), nil
	}

	e.setError(ErrorUnsupportedEncoderMode)
	return 0, ErrorUnsupportedEncoderMode
}
