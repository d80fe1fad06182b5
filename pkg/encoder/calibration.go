package encoder

import (
	"fmt"
	"math"

	"github.com/womat/debug"
)

const (
	calibLockDuration = 1.0          // [s]
	calibScanOmega    = 4 * math.Pi  // [rad/s electrical]
	calibScanDistance = 16 * math.Pi // [rad electrical]

	// calibMinDelta is the count change a sweep must produce to tell the direction.
	calibMinDelta = 8
)

// voltageMagnitude is the open-loop voltage that drives the calibration current.
func voltageMagnitude(m Motor) (float64, error) {
	switch m.Type() {
	case MotorTypeHighCurrent:
		return m.CalibrationCurrent() * m.PhaseResistance(), nil
	case MotorTypeGimbal:
		return m.CalibrationCurrent(), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedMotorType, m.Type())
}

// controlHz is the control rate rounded to whole cycles.
func (e *Encoder) controlHz() float64 {
	return math.Round(1 / e.dt)
}

// indexSearch turns the voltage vector at a constant rate until the index is found.
type indexSearch struct {
	enc     *Encoder
	voltage float64
	omega   float64
	phase   float64
}

func (s *indexSearch) step() (bool, error) {
	s.phase = wrapPmPi(s.phase + s.omega*s.enc.dt)

	if err := s.enc.motor.EnqueueVoltage(s.voltage*math.Cos(s.phase), s.voltage*math.Sin(s.phase)); err != nil {
		return false, err
	}
	return !s.enc.indexFound.Load(), nil
}

// RunIndexSearch turns the motor slowly until the index pulse arrives.
// It blocks until the index is found or loop stops with an error. The search has no timeout.
func (e *Encoder) RunIndexSearch(loop ControlLoop) error {
	v, err := voltageMagnitude(e.motor)
	if err != nil {
		return err
	}

	e.mu.Lock()
	speed := e.config.IdxSearchSpeed
	e.mu.Unlock()

	s := &indexSearch{
		enc:     e,
		voltage: v,
		omega:   float64(e.motor.Direction()) * speed,
	}

	e.indexFound.Store(false)
	debug.InfoLog.Printf("encoder index search started (%.2f V, %.2f rad/s)", s.voltage, s.omega)

	if err := loop.RunControlLoop(s.step); err != nil {
		return fmt.Errorf("index search: %w", err)
	}
	return nil
}

// offsetCalibration is the state of one offset calibration run.
type offsetCalibration struct {
	enc       *Encoder
	voltage   float64
	lockSteps int
	numSteps  int

	i int
	// dir is +1 for the forward and -1 for the backward sweep.
	dir float64
	sum int64
}

// lock holds the voltage vector at phase zero.
func (c *offsetCalibration) lock() (bool, error) {
	if err := c.enc.motor.EnqueueVoltage(c.voltage, 0); err != nil {
		return false, err
	}
	c.i++
	return c.i < c.lockSteps, nil
}

// sweep ramps the phase over the scan distance and sums the linear count.
func (c *offsetCalibration) sweep() (bool, error) {
	ramp := calibScanDistance * float64(c.i) / float64(c.numSteps)
	phase := wrapPmPi(c.dir * (ramp - calibScanDistance/2))

	if err := c.enc.motor.EnqueueVoltage(c.voltage*math.Cos(phase), c.voltage*math.Sin(phase)); err != nil {
		return false, err
	}

	c.sum += int64(c.enc.ShadowCount())
	c.i++
	return c.i < c.numSteps, nil
}

func (c *offsetCalibration) run(loop ControlLoop, step func() (bool, error), dir float64) error {
	c.i = 0
	c.dir = dir
	return loop.RunControlLoop(step)
}

// RunOffsetCalibration turns the motor forward and backward to find the direction of the encoder
// and the count at electrical phase zero. It writes the motor direction and the offset.
// On failure the ready state is left untouched.
func (e *Encoder) RunOffsetCalibration(loop ControlLoop) error {
	if e.UseIndex() && !e.indexFound.Load() {
		e.setError(ErrorIndexNotFoundYet)
		return ErrorIndexNotFoundYet
	}

	v, err := voltageMagnitude(e.motor)
	if err != nil {
		return err
	}

	e.mu.Lock()
	// the calibration works on the circular frame
	e.shadowCount = e.countInCPR
	cpr := e.config.CPR
	calibRange := e.config.CalibRange
	e.mu.Unlock()

	hz := e.controlHz()
	c := &offsetCalibration{
		enc:       e,
		voltage:   v,
		lockSteps: int(calibLockDuration * hz),
		numSteps:  int(calibScanDistance / calibScanOmega * hz),
	}
	debug.InfoLog.Printf("encoder offset calibration started (%.2f V, %d steps)", c.voltage, c.numSteps)

	if err := c.run(loop, c.lock, 0); err != nil {
		return fmt.Errorf("offset calibration lock: %w", err)
	}

	start := e.ShadowCount()
	if err := c.run(loop, c.sweep, 1); err != nil {
		return fmt.Errorf("offset calibration forward sweep: %w", err)
	}
	end := e.ShadowCount()

	switch {
	case end > start+calibMinDelta:
		e.motor.SetDirection(1)
	case end < start-calibMinDelta:
		e.motor.SetDirection(-1)
	default:
		e.setError(ErrorNoResponse)
		return ErrorNoResponse
	}

	expected := calibScanDistance / (float64(e.motor.PolePairs()) * 2 * math.Pi / float64(cpr))
	actual := math.Abs(float64(end - start))
	if math.Abs(actual-expected)/expected > calibRange {
		debug.ErrorLog.Printf("encoder moved %v counts, expected %.0f", actual, expected)
		e.setError(ErrorCPROutOfRange)
		return ErrorCPROutOfRange
	}

	if err := c.run(loop, c.sweep, -1); err != nil {
		return fmt.Errorf("offset calibration backward sweep: %w", err)
	}

	total := int64(2 * c.numSteps)
	offset := floorDiv(c.sum, total)
	residual := c.sum - offset*total

	offsetCount := mod(int32(offset%int64(cpr)), cpr)
	// center-align the count to the phase
	offsetFloat := float64(residual)/float64(total) + 0.5

	e.mu.Lock()
	e.config.Offset = offsetCount
	e.config.OffsetFloat = offsetFloat
	e.mu.Unlock()

	e.isReady.Store(true)
	debug.InfoLog.Printf("encoder offset calibrated: offset %d, offset_float %.3f, direction %d",
		offsetCount, offsetFloat, e.motor.Direction())
	return nil
}
