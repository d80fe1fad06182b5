package encoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidValue         = errors.New("invalid value")
	ErrUnknownProperty      = errors.New("unknown property")
	ErrReadOnly             = errors.New("property is read only")
	ErrNotAbsolute          = errors.New("encoder mode is not absolute")
	ErrNoTransport          = errors.New("no absolute spi transport attached")
	ErrNoCounter            = errors.New("no incremental counter attached")
	ErrNoChipSelect         = errors.New("no chip select pin attached")
	ErrUnsupportedMotorType = errors.New("unsupported motor type")
	ErrNoMotor              = errors.New("no motor attached")
)

// Error is the accumulated error state of an encoder.
// Bits are set by the estimator and the calibration procedures and are never cleared by the encoder itself.
type Error uint32

const (
	ErrorNone Error = 0

	// ErrorUnstableGain is advisory: the PLL bandwidth is too high for the control rate.
	ErrorUnstableGain Error = 1 << (iota - 1)
	ErrorCPROutOfRange
	ErrorNoResponse
	ErrorUnsupportedEncoderMode
	ErrorIllegalHallState
	ErrorIndexNotFoundYet
	ErrorAbsSPITimeout
	// ErrorAbsSPICommFail is advisory: the filtered rate of missing absolute samples is too high.
	ErrorAbsSPICommFail
	ErrorAbsSPINotReady
)

// advisoryErrors do not stop Update from producing an estimate.
const advisoryErrors = ErrorUnstableGain | ErrorAbsSPICommFail

var errorNames = []struct {
	flag Error
	name string
}{
	{ErrorUnstableGain, "unstable gain"},
	{ErrorCPROutOfRange, "cpr out of range"},
	{ErrorNoResponse, "no response"},
	{ErrorUnsupportedEncoderMode, "unsupported encoder mode"},
	{ErrorIllegalHallState, "illegal hall state"},
	{ErrorIndexNotFoundYet, "index not found yet"},
	{ErrorAbsSPITimeout, "abs spi timeout"},
	{ErrorAbsSPICommFail, "abs spi communication failure"},
	{ErrorAbsSPINotReady, "abs spi not ready"},
}

func (e Error) Error() string {
	if e == ErrorNone {
		return "no error"
	}

	var names []string
	rest := e
	for _, n := range errorNames {
		if e&n.flag != 0 {
			names = append(names, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return "encoder: " + strings.Join(names, ", ")
}

// Is reports whether all bits of target are set in e, so errors.Is matches single flags in a combined set.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok || t == ErrorNone {
		return false
	}
	return e&t == t
}

// Advisory reports whether e only contains errors that do not stop the estimator.
func (e Error) Advisory() bool {
	return e&^advisoryErrors == 0
}
