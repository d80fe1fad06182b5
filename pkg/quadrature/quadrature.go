// Package quadrature is a software counter for the A/B channels of an incremental encoder.
// https://en.wikipedia.org/wiki/Incremental_encoder#Quadrature_outputs
//
// The counter behaves like the count register of a timer in encoder mode: it counts all four
// edges of a cycle and wraps at 16 bits.
package quadrature

import (
	"sync/atomic"

	"github.com/womat/debug"

	"rotorenc/pkg/port"
)

// steps maps the transition prevState<<2|state to a count step, state is A<<1|B.
// A change of both lines at once does not count.
var steps = [16]int8{
	0, -1, +1, 0,
	+1, 0, 0, -1,
	-1, 0, 0, +1,
	0, +1, -1, 0,
}

// Decoder counts the edges received from the A and B lines.
type Decoder struct {
	count   atomic.Uint32
	illegal atomic.Uint64

	// state is the current level of A (bit 1) and B (bit 0).
	state uint8

	// rx receives the events of both lines in the order they occurred
	rx chan port.Event
	// lineA and lineB are the line offsets carried by the events
	lineA, lineB int

	// quit is the channel to stop the Decoder
	quit chan struct{}
	// done signals that run() is stopped
	done chan struct{}
}

// New starts counting the events of lines lineA and lineB received on rx.
// Both lines must share rx, two channels would lose the order of the edges.
// levelA and levelB are the levels of the lines before the first event.
func New(rx chan port.Event, lineA, lineB int, levelA, levelB port.StateType) *Decoder {
	d := Decoder{
		state: levelA.Bit()<<1 | levelB.Bit(),
		rx:    rx,
		lineA: lineA,
		lineB: lineB,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go d.run()
	return &d
}

// Close stops counting.
func (d *Decoder) Close() error {
	close(d.quit)

	// wait until run() is terminated
	<-d.done
	return nil
}

// Count returns the counter register.
func (d *Decoder) Count() uint16 {
	return uint16(d.count.Load())
}

// SetCount overwrites the counter register.
func (d *Decoder) SetCount(count uint16) {
	d.count.Store(uint32(count))
}

// Illegal returns the number of edges that did not change the line state, each is a missed event.
func (d *Decoder) Illegal() uint64 {
	return d.illegal.Load()
}

// run receives the line events until Close is called or rx is closed.
func (d *Decoder) run() {
	defer close(d.done)

	for {
		select {
		case <-d.quit:
			return
		case evt, open := <-d.rx:
			if !open {
				debug.InfoLog.Print("quadrature lines closed, counting stopped")
				<-d.quit
				return
			}

			switch evt.Line {
			case d.lineA:
				d.eventHandler(1, evt)
			case d.lineB:
				d.eventHandler(0, evt)
			default:
				debug.TraceLog.Printf("quadrature: event of foreign line %v", evt.Line)
			}
		}
	}
}

// eventHandler applies an edge of the line at bit position bit to the line state and counts the step.
func (d *Decoder) eventHandler(bit uint, evt port.Event) {
	next := d.state
	switch evt.Type {
	case port.RisingEdge:
		next |= 1 << bit
	case port.FallingEdge:
		next &^= 1 << bit
	default:
		return
	}

	// a missed edge shows up as an edge that does not change the state
	if next == d.state {
		d.illegal.Add(1)
		debug.TraceLog.Printf("quadrature: repeated edge on line %v at %v", bit, evt.Timestamp)
		return
	}

	step := steps[d.state<<2|next]
	d.state = next
	d.count.Add(uint32(int32(step)))
}
