package encoder

// Counter is the count register of a quadrature timer.
type Counter interface {
	Count() uint16
	SetCount(count uint16)
}

// Transport is a full-duplex word transport that completes asynchronously.
type Transport interface {
	// Configure (re)applies the transport settings the absolute encoder needs.
	Configure() error
	// Ready reports whether a new exchange can be started.
	Ready() bool
	// StartExchange clocks out tx while filling rx and returns immediately.
	// done is called once rx holds the reply; it must be called before Ready reports true again.
	StartExchange(tx, rx []uint16, done func()) error
}

// OutputPin is a digital output line such as a chip select.
type OutputPin interface {
	High()
	Low()
}

// Hardware bundles the collaborators an encoder reads raw samples from.
// Fields a mode does not need may be nil.
type Hardware struct {
	Counter   Counter
	Transport Transport
	// OpenPin returns the output line for the configured chip select pin.
	OpenPin func(pin uint16) (OutputPin, error)
}

// Motor is the part of the motor collaborator the encoder needs.
type Motor interface {
	PolePairs() int
	CalibrationCurrent() float64 // [A]
	PhaseResistance() float64    // [Ohm]
	Type() MotorType
	// Direction is +1 if motor and encoder count the same way, -1 otherwise.
	Direction() int
	SetDirection(dir int)
	// EnqueueVoltage queues an open-loop voltage vector in the stationary frame for the next cycle.
	EnqueueVoltage(alpha, beta float64) error
}

// ControlLoop runs step once per control cycle, after the estimators were updated,
// until step returns false or an error, or the loop is aborted.
type ControlLoop interface {
	RunControlLoop(step func() (bool, error)) error
}
