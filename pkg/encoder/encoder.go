// Package encoder estimates rotor position, velocity and electrical phase from raw encoder samples
// and calibrates the mapping between encoder counts and motor electrical phase.
//
// Update is called once per control cycle. IndexCallback and AbsSPICallback may be called at any time
// from other goroutines, they share the tracker state with Update through a short critical section.
package encoder

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/womat/debug"
)

// Encoder is the handler of one encoder.
type Encoder struct {
	config *Config
	hw     Hardware
	motor  Motor

	// dt is the control period in seconds.
	dt float64

	// mu guards the tracker and estimator fields below and the writes to config.
	// Holders must never block.
	mu sync.Mutex

	shadowCount   int32
	countInCPR    int32
	lastRaw       uint16
	interpolation float64
	phase         float64
	posEstimate   float64
	posCPR        float64
	velEstimate   float64
	pllKp         float64
	pllKi         float64
	posAbs        int32
	spiErrorRate  float64
	cs            OutputPin

	errState      atomic.Uint32
	indexFound    atomic.Bool
	isReady       atomic.Bool
	hallState     atomic.Uint32
	absPosUpdated atomic.Bool

	abs absExchange
}

// New creates an encoder running at the given control period.
// The config is used by reference, calibration writes its results into it.
func New(config *Config, hw Hardware, motor Motor, period time.Duration) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if motor == nil {
		return nil, ErrNoMotor
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: control period %v", ErrInvalidValue, period)
	}

	e := &Encoder{
		config: config,
		hw:     hw,
		motor:  motor,
		dt:     period.Seconds(),
	}
	e.abs.tx = [2]uint16{absTxPattern, 0x0000}

	if hw.Counter != nil {
		e.lastRaw = hw.Counter.Count()
	}

	e.updatePLLGains()

	if config.PreCalibrated && config.Mode == ModeHall {
		e.isReady.Store(true)
	}
	return e, nil
}

// Setup attaches the absolute encoder chip select and transport if the mode is absolute.
func (e *Encoder) Setup() error {
	if !e.Mode().IsAbsolute() {
		return nil
	}
	if err := e.AbsSPICSPinInit(); err != nil {
		return err
	}
	return e.AbsSPIInit()
}

// Config returns the configuration the encoder is working on.
func (e *Encoder) Config() *Config {
	return e.config
}

// Mode returns the configured encoder mode.
func (e *Encoder) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Mode
}

// UseIndex reports whether the encoder needs an index pulse before it can be calibrated.
func (e *Encoder) UseIndex() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.UseIndex
}

// Period returns the control period.
func (e *Encoder) Period() time.Duration {
	return time.Duration(e.dt * float64(time.Second))
}

// setError accumulates err into the error state.
func (e *Encoder) setError(err Error) {
	old := Error(e.errState.Or(uint32(err)))
	if n := err &^ old; n != ErrorNone {
		debug.ErrorLog.Printf("%v", n)
	}
}

// Errors returns the accumulated error state.
func (e *Encoder) Errors() Error {
	return Error(e.errState.Load())
}

// ClearErrors resets the error state to err.
func (e *Encoder) ClearErrors(err Error) {
	e.errState.Store(uint32(err))
}

// DoChecks reports whether no error other than an advisory one is set.
func (e *Encoder) DoChecks() bool {
	return e.Errors().Advisory()
}

// IsReady reports whether the offset between counts and electrical phase is known.
func (e *Encoder) IsReady() bool {
	return e.isReady.Load()
}

// IndexFound reports whether an index pulse was seen since the last index search started.
func (e *Encoder) IndexFound() bool {
	return e.indexFound.Load()
}

// SetHallState publishes a new 3 bit hall code (bit0 = A, bit1 = B, bit2 = C).
func (e *Encoder) SetHallState(code uint8) {
	e.hallState.Store(uint32(code & 0x07))
}

// HallState returns the last published hall code.
func (e *Encoder) HallState() uint8 {
	return uint8(e.hallState.Load())
}

// ShadowCount returns the linear count.
func (e *Encoder) ShadowCount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadowCount
}

// CountInCPR returns the circular count.
func (e *Encoder) CountInCPR() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countInCPR
}

// Phase returns the electrical phase in (-pi, pi].
func (e *Encoder) Phase() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// VelEstimate returns the filtered velocity in counts/s.
func (e *Encoder) VelEstimate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.velEstimate
}

// PosEstimate returns the filtered linear position in counts.
func (e *Encoder) PosEstimate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.posEstimate
}

// Snapshot is a consistent copy of the estimator state.
type Snapshot struct {
	Error         Error   `json:"error"`
	IsReady       bool    `json:"is_ready"`
	IndexFound    bool    `json:"index_found"`
	ShadowCount   int32   `json:"shadow_count"`
	CountInCPR    int32   `json:"count_in_cpr"`
	Interpolation float64 `json:"interpolation"`
	Phase         float64 `json:"phase"`
	PosEstimate   float64 `json:"pos_estimate"`
	PosCPR        float64 `json:"pos_cpr"`
	VelEstimate   float64 `json:"vel_estimate"`
	HallState     uint8   `json:"hall_state"`
	PosAbs        int32   `json:"pos_abs"`
	SPIErrorRate  float64 `json:"spi_error_rate"`
}

// Snapshot returns the estimator state as seen between two updates.
func (e *Encoder) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Error:         e.Errors(),
		IsReady:       e.IsReady(),
		IndexFound:    e.IndexFound(),
		ShadowCount:   e.shadowCount,
		CountInCPR:    e.countInCPR,
		Interpolation: e.interpolation,
		Phase:         e.phase,
		PosEstimate:   e.posEstimate,
		PosCPR:        e.posCPR,
		VelEstimate:   e.velEstimate,
		HallState:     e.HallState(),
		PosAbs:        e.posAbs,
		SPIErrorRate:  e.spiErrorRate,
	}
}

// elecRadPerCount is the electrical angle of one count.
func (e *Encoder) elecRadPerCount() float64 {
	return float64(e.motor.PolePairs()) * 2 * math.Pi / float64(e.config.CPR)
}
