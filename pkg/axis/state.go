package axis

import (
	"fmt"
	"strconv"
	"strings"
)

// State is a step of the axis state machine.
type State int

const (
	// StateUndefined means no state is requested.
	StateUndefined State = 0
	// StateIdle keeps the estimators running without driving the motor.
	StateIdle State = 1
	// StateStartupSequence runs the encoder procedures enabled in the axis config.
	StateStartupSequence State = 2
	// StateFullCalibrationSequence runs all encoder procedures, then idles.
	StateFullCalibrationSequence State = 3
	// StateEncoderIndexSearch turns the motor until the index pulse is found.
	StateEncoderIndexSearch State = 6
	// StateEncoderOffsetCalibration measures the offset between encoder counts and electrical phase.
	StateEncoderOffsetCalibration State = 7
)

var stateNames = map[State]string{
	StateUndefined:                "undefined",
	StateIdle:                     "idle",
	StateStartupSequence:          "startup_sequence",
	StateFullCalibrationSequence:  "full_calibration_sequence",
	StateEncoderIndexSearch:       "encoder_index_search",
	StateEncoderOffsetCalibration: "encoder_offset_calibration",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState accepts a state name or its number.
func ParseState(v string) (State, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, n := range stateNames {
		if n == v {
			return s, nil
		}
	}

	i, err := strconv.Atoi(v)
	if err == nil {
		if _, ok := stateNames[State(i)]; ok {
			return State(i), nil
		}
	}
	return StateUndefined, fmt.Errorf("%w: %q", ErrInvalidState, v)
}
