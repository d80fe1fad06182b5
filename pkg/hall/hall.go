// Package hall samples the three hall sensor lines of a motor into a 3 bit state.
// Bit 0 is hall A, bit 1 hall B and bit 2 hall C.
package hall

import (
	"sync/atomic"

	"github.com/womat/debug"

	"rotorenc/pkg/port"
)

// LevelReader reads the current level of a line.
type LevelReader interface {
	Read() bool
}

// Handler publishes the hall state after every edge on one of the lines.
type Handler struct {
	// lines are read together after each edge.
	lines [3]LevelReader
	// rx are the edge channels of hall A, B and C.
	rx [3]chan port.Event
	// publish receives every changed state, e.g. the hall state setter of the encoder.
	publish func(state uint8)
	state   atomic.Uint32

	// quit stops the handler
	quit chan struct{}
	// done signals that run() is terminated
	done chan struct{}
}

// New reads and publishes the current state, then listens for edges.
func New(lines [3]LevelReader, events [3]chan port.Event, publish func(state uint8)) *Handler {
	h := Handler{
		lines:   lines,
		rx:      events,
		publish: publish,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	s := h.read()
	h.state.Store(uint32(s))
	h.publish(s)
	debug.InfoLog.Printf("hall state %03b", s)

	go h.run()
	return &h
}

// State returns the last published hall state.
func (h *Handler) State() uint8 {
	return uint8(h.state.Load())
}

// Close stops listening to the hall lines.
func (h *Handler) Close() error {
	close(h.quit)

	// wait until run() is terminated
	<-h.done
	return nil
}

func (h *Handler) read() uint8 {
	var s uint8
	for i, l := range h.lines {
		if l.Read() {
			s |= 1 << i
		}
	}
	return s
}

// run receives edges on all lines until Close is called.
func (h *Handler) run() {
	defer close(h.done)

	a, b, c := h.rx[0], h.rx[1], h.rx[2]
	for a != nil || b != nil || c != nil {
		var open bool
		select {
		case <-h.quit:
			return
		case _, open = <-a:
			if !open {
				a = nil
			}
		case _, open = <-b:
			if !open {
				b = nil
			}
		case _, open = <-c:
			if !open {
				c = nil
			}
		}
		if open {
			h.update()
		}
	}
	debug.InfoLog.Print("hall lines closed")

	<-h.quit
}

func (h *Handler) update() {
	s := h.read()
	if uint32(s) == h.state.Swap(uint32(s)) {
		return
	}

	debug.TraceLog.Printf("hall state %03b", s)
	h.publish(s)
}
