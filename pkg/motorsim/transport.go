package motorsim

import (
	"errors"
	"sync"
)

// ErrBusy is returned by StartExchange while an exchange is running.
var ErrBusy = errors.New("transport busy")

// Transport answers every exchange with the AMS frame of the rotor angle.
// Replies complete synchronously unless DropReplies is set.
type Transport struct {
	rotor *Rotor

	mu        sync.Mutex
	busy      bool
	drop      bool
	corrupt   bool
	exchanges int
}

// NewTransport creates a transport reading the angle of r.
func NewTransport(r *Rotor) *Transport {
	return &Transport{rotor: r}
}

// Configure implements the transport contract, the simulation needs no settings.
func (t *Transport) Configure() error {
	return nil
}

// Ready reports whether an exchange can be started.
func (t *Transport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.busy
}

// StartExchange fills rx with the current frame and calls done.
func (t *Transport) StartExchange(tx, rx []uint16, done func()) error {
	t.mu.Lock()
	if t.busy {
		t.mu.Unlock()
		return ErrBusy
	}
	t.exchanges++
	drop, corrupt := t.drop, t.corrupt
	t.mu.Unlock()

	frame := AMSFrame(t.rotor.Angle())
	if corrupt {
		frame ^= 0x8000
	}
	for i := range rx {
		rx[i] = frame
	}

	if drop {
		return nil
	}
	done()
	return nil
}

// SetBusy makes Ready report false.
func (t *Transport) SetBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = busy
}

// DropReplies suppresses the completion notification.
func (t *Transport) DropReplies(drop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop = drop
}

// Corrupt flips the parity bit of every reply.
func (t *Transport) Corrupt(corrupt bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.corrupt = corrupt
}

// Exchanges returns the number of started exchanges.
func (t *Transport) Exchanges() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exchanges
}

// Pin is a simulated output line.
type Pin struct {
	mu   sync.Mutex
	high bool
}

// High drives the line high.
func (p *Pin) High() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = true
}

// Low drives the line low.
func (p *Pin) Low() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = false
}

// IsHigh returns the line level.
func (p *Pin) IsHigh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}
