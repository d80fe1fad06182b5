// Package motorsim simulates a motor with an attached encoder.
//
// The rotor snaps to the electrical angle of the applied voltage vector, so the encoder count follows
// the commanded phase. The simulated encoder provides a 16 bit quadrature counter, an index pulse,
// hall sensor codes and AMS style SPI replies.
package motorsim

import (
	"errors"
	"math"
	"math/bits"
	"sync"
)

// ErrStuck is returned by SetVoltage while the rotor is blocked and StuckFails is set.
var ErrStuck = errors.New("rotor is stuck")

// hallCodes is the hall code of each of the six electrical sectors.
var hallCodes = [6]uint8{0b001, 0b011, 0b010, 0b110, 0b100, 0b101}

// Config describes the simulated motor and encoder.
type Config struct {
	// CPR is the number of encoder counts per mechanical revolution.
	CPR       int32
	PolePairs int
	// Direction is +1 if the encoder counts up when the electrical phase increases, -1 otherwise.
	Direction int
	// Start is the encoder count at electrical phase zero.
	Start int32
}

// Rotor is the simulated motor.
type Rotor struct {
	config Config

	mu sync.Mutex
	// phase is the unwrapped electrical angle of the rotor relative to the start position.
	phase     float64
	lastAngle float64
	count     int32
	// counterBase maps the count onto the 16 bit hardware counter.
	counterBase uint16
	stuck       bool
	stuckFails  bool
	onIndex     func()
	hall        *hallLines
}

// New creates a rotor resting at electrical phase zero.
func New(c Config) *Rotor {
	if c.Direction == 0 {
		c.Direction = 1
	}
	if c.PolePairs <= 0 {
		c.PolePairs = 1
	}
	return &Rotor{config: c, count: c.Start}
}

// elecRadPerCount is the electrical angle of one count.
func (r *Rotor) elecRadPerCount() float64 {
	return float64(r.config.PolePairs) * 2 * math.Pi / float64(r.config.CPR)
}

// SetVoltage applies a voltage vector in the stationary frame.
// The rotor follows the angle of the vector along the shortest way.
func (r *Rotor) SetVoltage(alpha, beta float64) error {
	r.mu.Lock()
	if r.stuck {
		fail := r.stuckFails
		r.mu.Unlock()
		if fail {
			return ErrStuck
		}
		return nil
	}
	if alpha == 0 && beta == 0 {
		r.mu.Unlock()
		return nil
	}

	angle := math.Atan2(beta, alpha)
	step := angle - r.lastAngle
	step -= 2 * math.Pi * math.Round(step/(2*math.Pi))
	r.lastAngle = angle
	r.phase += step

	crossed := r.moveTo(r.config.Start + int32(r.config.Direction)*int32(math.Floor(r.phase/r.elecRadPerCount())))
	onIndex := r.onIndex
	r.mu.Unlock()

	// callbacks run without the lock, they may read the counter
	if crossed && onIndex != nil {
		onIndex()
	}
	r.emitHallEdges()
	return nil
}

// Move turns the rotor by delta counts without a voltage vector.
func (r *Rotor) Move(delta int32) {
	r.mu.Lock()
	crossed := r.moveTo(r.count + delta)
	onIndex := r.onIndex
	r.mu.Unlock()

	if crossed && onIndex != nil {
		onIndex()
	}
	r.emitHallEdges()
}

// moveTo sets the count and reports whether the index position was passed.
func (r *Rotor) moveTo(count int32) bool {
	cpr := r.config.CPR
	old := floorDiv(r.count, cpr)
	r.count = count
	return floorDiv(r.count, cpr) != old
}

// SetStuck blocks the rotor. With fail set, SetVoltage returns ErrStuck while the rotor is blocked.
func (r *Rotor) SetStuck(stuck, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stuck = stuck
	r.stuckFails = fail
}

// OnIndex registers the handler called when the rotor passes count zero modulo CPR.
func (r *Rotor) OnIndex(handler func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onIndex = handler
}

// Position returns the unbounded encoder count.
func (r *Rotor) Position() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Count returns the 16 bit quadrature counter.
func (r *Rotor) Count() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(r.count) + r.counterBase
}

// SetCount writes the 16 bit quadrature counter.
func (r *Rotor) SetCount(count uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterBase = count - uint16(r.count)
}

// HallCode returns the hall code of the current electrical sector (bit0 = A, bit1 = B, bit2 = C).
func (r *Rotor) HallCode() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hallCode()
}

func (r *Rotor) hallCode() uint8 {
	elec := math.Mod(float64(mod(r.count, r.config.CPR))*r.elecRadPerCount(), 2*math.Pi)
	sector := int(elec/(math.Pi/3)) % 6
	return hallCodes[sector]
}

// Angle returns the 14 bit absolute angle of the rotor.
func (r *Rotor) Angle() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint16(int64(mod(r.count, r.config.CPR)) * 0x4000 / int64(r.config.CPR))
}

// AMSFrame adds the even parity bit to a 14 bit angle.
func AMSFrame(angle uint16) uint16 {
	word := angle & 0x3FFF
	return word | uint16(bits.OnesCount16(word)&1)<<15
}

func mod(x, y int32) int32 {
	r := x % y
	if r < 0 {
		r += y
	}
	return r
}

func floorDiv(x, y int32) int32 {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}
