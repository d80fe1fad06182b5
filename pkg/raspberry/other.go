//go:build !linux

package raspberry

import (
	"errors"
	"time"

	"rotorenc/pkg/port"
)

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrNotSupported = errors.New("gpio is only supported on linux")
)

type Chip struct{}

type Line struct {
	C chan port.Event
}

func Open(name string) (*Chip, error) {
	return nil, ErrNotSupported
}

func (c *Chip) NewLine(gpio int, terminator string, debounce time.Duration) (*Line, error) {
	return nil, ErrNotSupported
}

func (c *Chip) Close() error {
	return nil
}

func (l *Line) Level() port.StateType {
	return port.Invalid
}

func (l *Line) Close() error {
	return nil
}

type Lines struct {
	C chan port.Event
}

func (c *Chip) NewLines(gpios []int, terminator string) (*Lines, error) {
	return nil, ErrNotSupported
}

func (l *Lines) Level(gpio int) port.StateType {
	return port.Invalid
}

func (l *Lines) Close() error {
	return nil
}

type Pins struct{}

func OpenPins() (*Pins, error) {
	return nil, ErrNotSupported
}

func (p *Pins) Close() error {
	return nil
}

type InputPin struct{}

func (p *Pins) Input(pin int, terminator string) (*InputPin, error) {
	return nil, ErrNotSupported
}

func (p *InputPin) Read() bool {
	return false
}

type OutputPin struct{}

func (p *Pins) Output(pin int) (*OutputPin, error) {
	return nil, ErrNotSupported
}

func (p *OutputPin) High() {}

func (p *OutputPin) Low() {}
