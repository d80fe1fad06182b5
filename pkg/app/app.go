package app

import (
	"io"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"rotorenc/pkg/app/config"
	"rotorenc/pkg/axis"
	"rotorenc/pkg/encoder"
	"rotorenc/pkg/motorsim"
	"rotorenc/pkg/mqtt"
	"rotorenc/pkg/raspberry"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	encoder *encoder.Encoder
	motor   *axis.Motor
	axis    *axis.Axis
	// loopPeriod is the period of the axis control loop, 0 runs the loop as fast as possible.
	loopPeriod time.Duration

	// rotor is the simulated motor if Config.Simulate is set
	rotor *motorsim.Rotor
	// chip and pins are the gpio handlers of the real hardware
	chip *raspberry.Chip
	pins *raspberry.Pins
	// closers release the opened hardware in reverse order
	closers []io.Closer

	running bool
	// quit stops the telemetry loop
	quit chan struct{}
	// done signals that the telemetry loop is stopped
	done chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:     config,
		urlParsed:  u,
		web:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:       mqtt.New(),
		loopPeriod: config.Period,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Run starts the application: the axis runs the startup sequence and then idles.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.runTelemetry()
	app.running = true

	if err := app.axis.RequestState(axis.StateStartupSequence); err != nil {
		return err
	}
	return app.axis.Run()
}

// Calibrate runs the full calibration sequence without web server and mqtt client.
// The results are written to the encoder and motor sections of the configuration.
func (app *App) Calibrate() error {
	if err := app.initAxis(); err != nil {
		return err
	}
	return app.axis.Execute(axis.StateFullCalibrationSequence)
}

// Properties returns the current encoder properties.
func (app *App) Properties() (map[string]interface{}, error) {
	if err := app.initAxis(); err != nil {
		return nil, err
	}
	return app.encoder.Values(), nil
}

// init initializes the application.
func (app *App) init() error {
	if err := app.initAxis(); err != nil {
		return err
	}

	if err := app.mqtt.Connect(app.config.MQTT.Config); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it may access things like app.encoder
	// which must be initialized before
	app.initDefaultRoutes()
	return nil
}

// initAxis opens the hardware and creates encoder, motor and axis.
func (app *App) initAxis() (err error) {
	var hw encoder.Hardware
	var out axis.VoltageOutput

	if app.config.Simulate {
		hw, out = app.openSimulation()
	} else if hw, err = app.openHardware(); err != nil {
		debug.ErrorLog.Printf("can't open hardware: %v", err)
		return err
	}

	if out == nil {
		debug.InfoLog.Print("no voltage output attached, encoder calibration is not available")
	}
	app.motor = axis.NewMotor(&app.config.Motor, out)

	if app.encoder, err = encoder.New(&app.config.Encoder, hw, app.motor, app.config.Period); err != nil {
		debug.ErrorLog.Printf("can't create encoder: %v", err)
		return err
	}
	if err = app.encoder.Setup(); err != nil {
		debug.ErrorLog.Printf("can't setup encoder: %v", err)
		return err
	}

	if err = app.attachSources(); err != nil {
		return err
	}

	app.axis = axis.New(&app.config.Axis, app.encoder, app.loopPeriod)
	debug.InfoLog.Printf("encoder %v, %v cpr, control rate %v", app.config.Encoder.Mode, app.config.Encoder.CPR, app.config.Period)
	return nil
}

func (app *App) Close() error {
	if app.axis != nil {
		_ = app.axis.Close()
	}

	if app.running {
		close(app.quit)
		<-app.done
		_ = app.web.Shutdown()
		app.running = false
	}

	if app.mqtt != nil {
		_ = app.mqtt.Close()
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			debug.ErrorLog.Printf("closing hardware: %v", err)
		}
	}
	app.closers = nil
	return nil
}
