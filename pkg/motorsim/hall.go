package motorsim

import (
	"time"

	"rotorenc/pkg/port"
)

// hallBuffer is the number of edges a hall line holds until they are consumed.
const hallBuffer = 16

// HallLine is one simulated hall sensor output.
type HallLine struct {
	rotor *Rotor
	bit   uint
	// C receives the edges of the line. Edges are dropped while C is full.
	C chan port.Event
}

// Read returns the level of the line.
func (l *HallLine) Read() bool {
	return l.rotor.HallCode()&(1<<l.bit) != 0
}

type hallLines struct {
	lines [3]*HallLine
	last  uint8
	start time.Time
}

// HallLines returns the hall A, B and C outputs of the rotor.
func (r *Rotor) HallLines() [3]*HallLine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hall == nil {
		h := &hallLines{last: r.hallCode(), start: time.Now()}
		for i := range h.lines {
			h.lines[i] = &HallLine{rotor: r, bit: uint(i), C: make(chan port.Event, hallBuffer)}
		}
		r.hall = h
	}
	return r.hall.lines
}

// emitHallEdges sends an edge on every hall line that changed since the last call.
func (r *Rotor) emitHallEdges() {
	r.mu.Lock()
	h := r.hall
	if h == nil {
		r.mu.Unlock()
		return
	}
	code := r.hallCode()
	changed := code ^ h.last
	h.last = code
	r.mu.Unlock()

	ts := time.Since(h.start)
	for i, l := range h.lines {
		if changed&(1<<i) == 0 {
			continue
		}

		evt := port.Event{Type: port.Edge(code&(1<<i) != 0), Timestamp: ts, Line: i}
		select {
		case l.C <- evt:
		default:
		}
	}
}
