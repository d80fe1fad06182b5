//go:build linux

// Package raspberry is the watcher for gpio ports
package raspberry

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"

	"rotorenc/pkg/port"
)

var ErrInvalidParam = errors.New("invalid parameters")

// lineBuffer is the number of edge events a line holds until the consumer catches up.
const lineBuffer = 64

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
}

// Line represents a single requested line.
type Line struct {
	gpiodLine  *gpiod.Line
	lastValue  atomic.Int32
	debouncing atomic.Bool
	// send edge changes to channel
	C chan port.Event
}

// Open opens a GPIO character device, e.g. gpiochip0.
func Open(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", name, err)
	}
	return &Chip{gpiodChip: c}, nil
}

// NewLine requests control of a single line on a chip.
//   If granted, control is maintained until the Line is closed.
//   Watch the line for edge changes and send the changes to channel C.
//   With a debounce time > 0 an edge is only sent if the level is still changed after the bounce timeout.
//   There can only be one watcher on the pin at a time.
func (c *Chip) NewLine(gpio int, terminator string, debounce time.Duration) (*Line, error) {
	var err error

	line := &Line{
		C: make(chan port.Event, lineBuffer)}

	handler := func(evt gpiod.LineEvent) {
		switch evt.Type {
		case gpiod.LineEventRisingEdge:
			line.lastValue.Store(1)
			send(line.C, port.Event{Type: port.RisingEdge, Timestamp: evt.Timestamp, Line: gpio})
		case gpiod.LineEventFallingEdge:
			line.lastValue.Store(0)
			send(line.C, port.Event{Type: port.FallingEdge, Timestamp: evt.Timestamp, Line: gpio})
		}
	}

	if debounce > 0 {
		handler = func(evt gpiod.LineEvent) {
			if !line.debouncing.CompareAndSwap(false, true) {
				debug.TraceLog.Printf("gpio %v: bounce signal detected", gpio)
				return
			}

			go func(t time.Duration) {
				defer line.debouncing.Store(false)

				time.Sleep(debounce)

				v, e := line.gpiodLine.Value()
				if e != nil {
					debug.ErrorLog.Printf("gpio %v: %v", gpio, e)
					return
				}

				if int32(v) == line.lastValue.Load() {
					debug.TraceLog.Printf("gpio %v: no changed value after bounce delay", gpio)
					return
				}

				if v != 0 && v != 1 {
					debug.ErrorLog.Printf("gpio %v: invalid pin value: %v", gpio, v)
					return
				}

				line.lastValue.Store(int32(v))
				send(line.C, port.Event{Type: port.Edge(v == 1), Timestamp: t + debounce, Line: gpio})
			}(evt.Timestamp)
		}
	}

	switch terminator {
	case "pullup":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	case "pulldown":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullDown)
	case "none", "":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput)
	default:
		return nil, fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
	if err != nil {
		return nil, fmt.Errorf("request line %v: %w", gpio, err)
	}

	v, err := line.gpiodLine.Value()
	if err != nil {
		line.gpiodLine.Close()
		return nil, fmt.Errorf("read line %v: %w", gpio, err)
	}
	line.lastValue.Store(int32(v))
	return line, nil
}

// send drops evt if c is full, the event handler of the chip must not block.
func send(c chan port.Event, evt port.Event) {
	select {
	case c <- evt:
	default:
		debug.ErrorLog.Printf("gpio %v: event buffer full, %v edge dropped", evt.Line, evt.Type)
	}
}

// Level returns the level of the line seen with the last edge.
func (l *Line) Level() port.StateType {
	return port.Level(int(l.lastValue.Load()))
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be closed
// independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}

// Close releases all resources held by the requested line.
//
// Note that this includes waiting for any running event handler to return.
// As a consequence the Close must not be called from the context of the event
// handler - the Close should be called from a different goroutine.
func (l *Line) Close() error {
	if err := l.gpiodLine.Close(); err != nil {
		return err
	}
	close(l.C)
	return nil
}

// Lines are requested together, their edges share one channel in the order the kernel reported them.
type Lines struct {
	gpiodLines *gpiod.Lines
	offsets    []int
	levels     []int
	// send edge changes of all lines to channel
	C chan port.Event
}

// NewLines requests the lines gpios with one event handler, e.g. the A and B lines of a quadrature encoder.
// The events are not debounced.
func (c *Chip) NewLines(gpios []int, terminator string) (*Lines, error) {
	var err error

	lines := &Lines{
		offsets: gpios,
		levels:  make([]int, len(gpios)),
		C:       make(chan port.Event, lineBuffer*len(gpios)),
	}

	handler := func(evt gpiod.LineEvent) {
		switch evt.Type {
		case gpiod.LineEventRisingEdge:
			send(lines.C, port.Event{Type: port.RisingEdge, Timestamp: evt.Timestamp, Line: evt.Offset})
		case gpiod.LineEventFallingEdge:
			send(lines.C, port.Event{Type: port.FallingEdge, Timestamp: evt.Timestamp, Line: evt.Offset})
		}
	}

	switch terminator {
	case "pullup":
		lines.gpiodLines, err = c.gpiodChip.RequestLines(gpios, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	case "pulldown":
		lines.gpiodLines, err = c.gpiodChip.RequestLines(gpios, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullDown)
	case "none", "":
		lines.gpiodLines, err = c.gpiodChip.RequestLines(gpios, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput)
	default:
		return nil, fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
	if err != nil {
		return nil, fmt.Errorf("request lines %v: %w", gpios, err)
	}

	if err = lines.gpiodLines.Values(lines.levels); err != nil {
		lines.gpiodLines.Close()
		return nil, fmt.Errorf("read lines %v: %w", gpios, err)
	}
	return lines, nil
}

// Level returns the level of line gpio read when the lines were requested.
func (l *Lines) Level(gpio int) port.StateType {
	for i, o := range l.offsets {
		if o == gpio {
			return port.Level(l.levels[i])
		}
	}
	return port.Invalid
}

// Close releases the lines and closes C.
func (l *Lines) Close() error {
	if err := l.gpiodLines.Close(); err != nil {
		return err
	}
	close(l.C)
	return nil
}
