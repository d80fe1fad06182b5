// Package port holds the edge events and levels shared by the gpio lines,
// the quadrature counter and the hall sensor handler.
package port

import "time"

// EventType indicates the type of change to the line active state.
//
// Note that for active low lines a low line level results in a high active
// state.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates an inactive to active event (low to high).
	RisingEdge
	// FallingEdge indicates an active to inactive event (high to low).
	FallingEdge
)

// Edge returns the edge that leads to level high (rising) or low (falling).
func Edge(high bool) EventType {
	if high {
		return RisingEdge
	}
	return FallingEdge
}

func (t EventType) String() string {
	switch t {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	}
	return "none"
}

// Event is an edge of a line.
type Event struct {
	// Timestamp indicates the time the event was detected.
	// Only differences between timestamps of the same source are meaningful.
	Timestamp time.Duration
	// The type of state change event this structure represents.
	Type EventType
	// Line is the offset of the line on its chip, events of several lines may share one channel.
	Line int
}

type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
	// Invalid indicates an unknown or invalid state.
	Invalid StateType = -1
)

// Level converts a line value as read from the chip.
func Level(v int) StateType {
	switch v {
	case 0:
		return Low
	case 1:
		return High
	}
	return Invalid
}

// Bit returns 1 for High and 0 otherwise.
func (s StateType) Bit() uint8 {
	if s == High {
		return 1
	}
	return 0
}
