package app

import (
	"fmt"

	"github.com/womat/debug"
	"periph.io/x/conn/v3/physic"

	"rotorenc/pkg/axis"
	"rotorenc/pkg/encoder"
	"rotorenc/pkg/hall"
	"rotorenc/pkg/motorsim"
	"rotorenc/pkg/port"
	"rotorenc/pkg/quadrature"
	"rotorenc/pkg/raspberry"
	"rotorenc/pkg/spidev"
)

// openSimulation creates a simulated motor which serves every encoder mode.
func (app *App) openSimulation() (encoder.Hardware, axis.VoltageOutput) {
	app.rotor = motorsim.New(motorsim.Config{
		CPR:       app.config.Encoder.CPR,
		PolePairs: app.config.Motor.PolePairs,
		Direction: 1,
	})
	debug.InfoLog.Print("simulating motor and encoder")

	return encoder.Hardware{
		Counter:   app.rotor,
		Transport: motorsim.NewTransport(app.rotor),
		OpenPin: func(pin uint16) (encoder.OutputPin, error) {
			return &motorsim.Pin{}, nil
		},
	}, app.rotor
}

// openHardware requests the configured gpio lines and the spi port.
// Lines with a negative number are not used.
func (app *App) openHardware() (encoder.Hardware, error) {
	var hw encoder.Hardware
	g := app.config.Gpio

	chip, err := raspberry.Open(g.Chip)
	if err != nil {
		return hw, err
	}
	app.chip = chip
	app.closers = append(app.closers, chip)

	if g.A >= 0 && g.B >= 0 {
		// one request keeps the edges of A and B in order
		l, err := chip.NewLines([]int{g.A, g.B}, g.Terminator)
		if err != nil {
			return hw, fmt.Errorf("gpio %v, %v: %w", g.A, g.B, err)
		}
		app.closers = append(app.closers, l)

		q := quadrature.New(l.C, g.A, g.B, l.Level(g.A), l.Level(g.B))
		app.closers = append(app.closers, q)
		hw.Counter = q
	}

	if len(g.Hall) == 3 || app.config.Encoder.Mode.IsAbsolute() {
		if app.pins, err = raspberry.OpenPins(); err != nil {
			return hw, err
		}
		app.closers = append(app.closers, app.pins)

		hw.OpenPin = func(pin uint16) (encoder.OutputPin, error) {
			p, err := app.pins.Output(int(pin))
			if err != nil {
				return nil, err
			}
			return p, nil
		}
	}

	if app.config.SPI.Device != "" {
		t := spidev.New(app.config.SPI.Device, physic.Frequency(app.config.SPI.Speed)*physic.KiloHertz)
		app.closers = append(app.closers, t)
		hw.Transport = t
	}

	return hw, nil
}

func (app *App) newLine(gpio int) (*raspberry.Line, error) {
	l, err := app.chip.NewLine(gpio, app.config.Gpio.Terminator, app.config.Gpio.BounceTime)
	if err != nil {
		return nil, fmt.Errorf("gpio %v: %w", gpio, err)
	}
	app.closers = append(app.closers, l)
	return l, nil
}

// attachSources connects index pulse and hall lines to the encoder.
func (app *App) attachSources() error {
	if app.rotor != nil {
		app.rotor.OnIndex(app.encoder.IndexCallback)

		lines := app.rotor.HallLines()
		h := hall.New([3]hall.LevelReader{lines[0], lines[1], lines[2]},
			[3]chan port.Event{lines[0].C, lines[1].C, lines[2].C}, app.encoder.SetHallState)
		app.closers = append(app.closers, h)
		return nil
	}

	g := app.config.Gpio
	if g.Index >= 0 {
		l, err := app.newLine(g.Index)
		if err != nil {
			return err
		}
		go app.watchIndex(l.C)
	}

	if len(g.Hall) == 3 {
		var readers [3]hall.LevelReader
		var events [3]chan port.Event
		for i, gpio := range g.Hall {
			l, err := app.newLine(gpio)
			if err != nil {
				return err
			}
			p, err := app.pins.Input(gpio, g.Terminator)
			if err != nil {
				return err
			}
			readers[i], events[i] = p, l.C
		}

		h := hall.New(readers, events, app.encoder.SetHallState)
		app.closers = append(app.closers, h)
	}
	return nil
}

// watchIndex passes rising edges of the index line to the encoder until the line is closed.
func (app *App) watchIndex(c chan port.Event) {
	for evt := range c {
		if evt.Type == port.RisingEdge {
			app.encoder.IndexCallback()
		}
	}
}
