// Package axis runs the control loop of one motor axis and sequences the
// encoder procedures (index search, offset calibration) through a small state machine.
package axis

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/womat/debug"

	"rotorenc/pkg/encoder"
)

var (
	ErrAborted         = errors.New("control loop aborted by a state request")
	ErrStopped         = errors.New("axis stopped")
	ErrInvalidState    = errors.New("invalid axis state")
	ErrNoVoltageOutput = errors.New("no voltage output attached")
	ErrRunning         = errors.New("axis is already running")
)

// Error is the accumulated error state of the axis.
type Error uint32

const (
	ErrorNone          Error = 0
	ErrorInvalidState  Error = 0x01
	ErrorMotorFailed   Error = 0x40
	ErrorEncoderFailed Error = 0x100
)

func (e Error) Error() string {
	if e == ErrorNone {
		return "no error"
	}

	var names []string
	if e&ErrorInvalidState != 0 {
		names = append(names, "invalid state")
	}
	if e&ErrorMotorFailed != 0 {
		names = append(names, "motor failed")
	}
	if e&ErrorEncoderFailed != 0 {
		names = append(names, "encoder failed")
	}
	if rest := e &^ (ErrorInvalidState | ErrorMotorFailed | ErrorEncoderFailed); rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return "axis: " + strings.Join(names, ", ")
}

// Is reports whether all bits of target are set in e.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok || t == ErrorNone {
		return ok && t == e
	}
	return e&t == t
}

// Config selects the encoder procedures of the startup sequence.
type Config struct {
	StartupEncoderIndexSearch       bool `yaml:"startup_encoder_index_search"`
	StartupEncoderOffsetCalibration bool `yaml:"startup_encoder_offset_calibration"`
}

// Encoder is the part of the encoder the axis drives.
type Encoder interface {
	Update() error
	DoChecks() bool
	StartTransaction() error
	UseIndex() bool
	RunIndexSearch(loop encoder.ControlLoop) error
	RunOffsetCalibration(loop encoder.ControlLoop) error
}

// Axis owns the control loop of one motor and its encoder.
type Axis struct {
	config  *Config
	encoder Encoder
	// period is the control loop period, 0 runs the loop without waiting.
	period time.Duration

	requested   atomic.Int32
	current     atomic.Int32
	errState    atomic.Uint32
	loopCounter atomic.Uint64

	// mu guards running
	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// New creates an axis in the undefined state. Run starts the state machine.
func New(config *Config, enc Encoder, period time.Duration) *Axis {
	return &Axis{
		config:  config,
		encoder: enc,
		period:  period,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (a *Axis) Period() time.Duration {
	return a.period
}

func (a *Axis) CurrentState() State {
	return State(a.current.Load())
}

func (a *Axis) RequestedState() State {
	return State(a.requested.Load())
}

// RequestState asks the state machine to run s. A running control loop is aborted.
func (a *Axis) RequestState(s State) error {
	if _, ok := stateNames[s]; !ok {
		return fmt.Errorf("%w: %v", ErrInvalidState, s)
	}
	a.requested.Store(int32(s))
	return nil
}

func (a *Axis) Errors() Error {
	return Error(a.errState.Load())
}

func (a *Axis) ClearErrors() {
	a.errState.Store(uint32(ErrorNone))
}

func (a *Axis) setError(e Error) {
	a.errState.Or(uint32(e))
}

// LoopCounter returns the number of control cycles run since start.
func (a *Axis) LoopCounter() uint64 {
	return a.loopCounter.Load()
}

// Snapshot is the externally visible axis state.
type Snapshot struct {
	CurrentState   State  `json:"current_state"`
	RequestedState State  `json:"requested_state"`
	Error          uint32 `json:"error"`
	LoopCounter    uint64 `json:"loop_counter"`
}

func (a *Axis) Snapshot() Snapshot {
	return Snapshot{
		CurrentState:   a.CurrentState(),
		RequestedState: a.RequestedState(),
		Error:          uint32(a.Errors()),
		LoopCounter:    a.LoopCounter(),
	}
}

// RunControlLoop calls step once per control period after the encoder was checked and updated.
// It returns nil when step returns false, the step error, ErrAborted when a new state was requested
// and ErrStopped when the axis is closed. Outside the idle state a failing encoder ends the loop.
func (a *Axis) RunControlLoop(step func() (bool, error)) error {
	var tick <-chan time.Time
	if a.period > 0 {
		t := time.NewTicker(a.period)
		defer t.Stop()
		tick = t.C
	}

	for a.RequestedState() == StateUndefined {
		checksOK := a.doChecks()
		updateErr := a.doUpdates()
		if (!checksOK || updateErr != nil) && a.CurrentState() != StateIdle {
			if updateErr != nil {
				return updateErr
			}
			return a.Errors()
		}

		// a failed start is recorded in the encoder error state and caught by the next check
		_ = a.encoder.StartTransaction()

		cont, err := step()
		a.loopCounter.Add(1)
		if err != nil {
			a.setError(ErrorMotorFailed)
			return err
		}
		if !cont {
			return nil
		}

		if tick == nil {
			select {
			case <-a.quit:
				return ErrStopped
			default:
			}
			continue
		}
		select {
		case <-a.quit:
			return ErrStopped
		case <-tick:
		}
	}
	return ErrAborted
}

func (a *Axis) doChecks() bool {
	if !a.encoder.DoChecks() {
		a.setError(ErrorEncoderFailed)
	}
	return a.Errors() == ErrorNone
}

func (a *Axis) doUpdates() error {
	if err := a.encoder.Update(); err != nil {
		a.setError(ErrorEncoderFailed)
		return err
	}
	return nil
}

// taskChain returns the states that serve a request for s, ending with idle.
func (a *Axis) taskChain(s State) []State {
	var chain []State
	switch s {
	case StateStartupSequence:
		if a.config.StartupEncoderIndexSearch && a.encoder.UseIndex() {
			chain = append(chain, StateEncoderIndexSearch)
		}
		if a.config.StartupEncoderOffsetCalibration {
			chain = append(chain, StateEncoderOffsetCalibration)
		}
	case StateFullCalibrationSequence:
		if a.encoder.UseIndex() {
			chain = append(chain, StateEncoderIndexSearch)
		}
		chain = append(chain, StateEncoderOffsetCalibration)
	default:
		chain = append(chain, s)
	}
	return append(chain, StateIdle)
}

// runState runs a single state to its end.
func (a *Axis) runState(s State) error {
	switch s {
	case StateEncoderIndexSearch:
		return a.encoder.RunIndexSearch(a)
	case StateEncoderOffsetCalibration:
		return a.encoder.RunOffsetCalibration(a)
	case StateIdle:
		err := a.RunControlLoop(func() (bool, error) { return true, nil })
		if errors.Is(err, ErrAborted) {
			return nil
		}
		return err
	}

	a.setError(ErrorInvalidState)
	return fmt.Errorf("%w: %v", ErrInvalidState, s)
}

// Execute runs the states serving s in the calling goroutine and stops before idling.
// It must not be used while Run is active.
func (a *Axis) Execute(s State) error {
	a.errState.And(^uint32(ErrorInvalidState))
	defer a.current.Store(int32(StateIdle))

	for _, st := range a.taskChain(s) {
		if st == StateIdle {
			break
		}
		a.current.Store(int32(st))
		debug.DebugLog.Printf("axis state %v", st)
		if err := a.runState(st); err != nil {
			return fmt.Errorf("%v: %w", st, err)
		}
	}
	return nil
}

// Run starts the state machine in the background, beginning with the requested state or idle.
func (a *Axis) Run() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrRunning
	}
	a.running = true
	a.quit = make(chan struct{})
	a.done = make(chan struct{})

	go a.run()
	return nil
}

func (a *Axis) run() {
	defer close(a.done)

	chain := []State{StateIdle}
	for {
		if r := State(a.requested.Swap(int32(StateUndefined))); r != StateUndefined {
			chain = a.taskChain(r)
			a.errState.And(^uint32(ErrorInvalidState))
		}

		s := chain[0]
		a.current.Store(int32(s))
		debug.DebugLog.Printf("axis state %v", s)

		err := a.runState(s)
		if errors.Is(err, ErrStopped) {
			return
		}
		if errors.Is(err, ErrAborted) {
			debug.InfoLog.Printf("axis state %v aborted", s)
			chain = []State{StateIdle}
			continue
		}
		if err != nil {
			debug.ErrorLog.Printf("axis state %v failed: %v", s, err)
			chain = []State{StateIdle}
			continue
		}

		if chain = chain[1:]; len(chain) == 0 {
			chain = []State{StateIdle}
		}
	}
}

// Close stops a running state machine and waits for the control loop to return.
func (a *Axis) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}

	close(a.quit)
	<-a.done
	a.running = false
	a.quit = make(chan struct{})
	return nil
}
