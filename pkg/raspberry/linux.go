//go:build linux

package raspberry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/gpio"
)

var ErrPinUsed = errors.New("pin already used in the other direction")

type direction int

const (
	input direction = iota + 1
	output
)

// Pins gives direct access to the GPIO registers mapped from /dev/gpiomem.
type Pins struct {
	mu   sync.Mutex
	used map[int]direction
}

// OpenPins maps the GPIO memory range from /dev/gpiomem.
func OpenPins() (*Pins, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	return &Pins{used: map[int]direction{}}, nil
}

// Close unmaps the GPIO memory.
func (p *Pins) Close() error {
	return gpio.Close()
}

// claim reserves pin for dir. A pin may be claimed again in the same direction,
// e.g. when the chip select pin is configured again.
func (p *Pins) claim(pin int, dir direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.used[pin]; ok && d != dir {
		return fmt.Errorf("%w: pin %v", ErrPinUsed, pin)
	}
	p.used[pin] = dir
	return nil
}

// InputPin is a GPIO pin read from memory.
type InputPin struct {
	pin *gpio.Pin
}

// Input sets the pin as input. The pin number is the BCM GPIO number.
// A pin with an edge watcher from a Chip line may be read this way too.
func (p *Pins) Input(pin int, terminator string) (*InputPin, error) {
	if err := p.claim(pin, input); err != nil {
		return nil, err
	}

	g := gpio.NewPin(pin)
	g.Input()
	switch terminator {
	case "pullup":
		g.PullUp()
	case "pulldown":
		g.PullDown()
	case "none", "":
	default:
		return nil, fmt.Errorf("%w: terminator %q", ErrInvalidParam, terminator)
	}
	return &InputPin{pin: g}, nil
}

// Read pin state (high/low)
func (p *InputPin) Read() bool {
	return bool(p.pin.Read())
}

// OutputPin is a GPIO pin driven from memory.
type OutputPin struct {
	pin *gpio.Pin
}

// Output sets the pin as output, driven high.
func (p *Pins) Output(pin int) (*OutputPin, error) {
	if err := p.claim(pin, output); err != nil {
		return nil, err
	}

	g := gpio.NewPin(pin)
	g.High()
	g.Output()
	return &OutputPin{pin: g}, nil
}

func (p *OutputPin) High() {
	p.pin.High()
}

func (p *OutputPin) Low() {
	p.pin.Low()
}
