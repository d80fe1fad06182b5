package encoder

import (
	"fmt"
	"sync/atomic"

	"github.com/womat/debug"
)

const (
	// absTxPattern is clocked out to read the angle register of an AMS encoder.
	absTxPattern = 0xFFFF
	// spiErrorRateThreshold is the filtered rate of missing samples above which ErrorAbsSPICommFail is set.
	spiErrorRateThreshold = 0.005
)

// absExchange holds the buffers of the absolute encoder transaction.
type absExchange struct {
	tx [2]uint16
	rx [2]uint16
	// pending is set while a reply is outstanding.
	pending atomic.Bool
}

// AbsSPIInit (re)configures the transport for the absolute encoder.
func (e *Encoder) AbsSPIInit() error {
	mode := e.Mode()
	if !mode.IsAbsolute() {
		return ErrNotAbsolute
	}
	if e.hw.Transport == nil {
		return ErrNoTransport
	}

	if err := e.hw.Transport.Configure(); err != nil {
		return fmt.Errorf("configure abs spi transport: %w", err)
	}

	debug.InfoLog.Printf("abs spi initialized for %v encoder", mode)
	return nil
}

// AbsSPICSPinInit opens the configured chip select pin and drives it high.
func (e *Encoder) AbsSPICSPinInit() error {
	if e.hw.OpenPin == nil {
		return ErrNoChipSelect
	}

	e.mu.Lock()
	pinNumber := e.config.AbsSPICSGPIOPin
	e.mu.Unlock()

	pin, err := e.hw.OpenPin(pinNumber)
	if err != nil {
		return fmt.Errorf("open chip select pin %d: %w", pinNumber, err)
	}
	pin.High()

	e.mu.Lock()
	e.cs = pin
	e.mu.Unlock()

	debug.DebugLog.Printf("abs spi chip select on pin %d", pinNumber)
	return nil
}

// StartTransaction starts reading the next absolute sample if the mode is absolute.
// It returns immediately, the sample is published by AbsSPICallback.
func (e *Encoder) StartTransaction() error {
	e.mu.Lock()
	mode, cs := e.config.Mode, e.cs
	e.mu.Unlock()

	if !mode.IsAbsolute() {
		return nil
	}

	t := e.hw.Transport
	if t == nil || !t.Ready() {
		e.setError(ErrorAbsSPINotReady)
		return ErrorAbsSPINotReady
	}

	// the transport is idle but the last reply never arrived
	if e.abs.pending.Swap(false) {
		if cs != nil {
			cs.High()
		}
		e.setError(ErrorAbsSPITimeout)
		return ErrorAbsSPITimeout
	}

	if cs != nil {
		cs.Low()
	}
	e.abs.pending.Store(true)

	if err := t.StartExchange(e.abs.tx[:1], e.abs.rx[:1], e.AbsSPICallback); err != nil {
		e.abs.pending.Store(false)
		if cs != nil {
			cs.High()
		}
		e.setError(ErrorAbsSPINotReady)
		return fmt.Errorf("%w: %w", ErrorAbsSPINotReady, err)
	}
	return nil
}

// AbsSPICallback is called by the transport when the reply of StartTransaction is received.
func (e *Encoder) AbsSPICallback() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cs != nil {
		e.cs.High()
	}
	e.abs.pending.Store(false)

	switch e.config.Mode {
	case ModeSPIAbsAMS:
		pos, ok := decodeAMS(e.abs.rx[0])
		if !ok {
			// dropped, the missing sample shows up in the error rate
			return
		}
		e.posAbs = pos
		e.absPosUpdated.Store(true)
		e.isReady.Store(true)

	default:
		e.setError(ErrorUnsupportedEncoderMode)
	}
}

// IndexCallback is called on the index pulse edge.
// The first pulse after an index search zeroes the circular count and, if configured, the linear count.
func (e *Encoder) IndexCallback() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.config.UseIndex || e.indexFound.Load() {
		return
	}

	e.setCircularCount(0, false)
	if e.config.ZeroCountOnFindIdx {
		// avoid a position control transient after the search
		e.setLinearCount(0)
	}

	// an offset calibrated before the search is no longer valid
	e.isReady.Store(e.config.PreCalibrated)
	e.indexFound.Store(true)

	debug.InfoLog.Print("encoder index found")
}
