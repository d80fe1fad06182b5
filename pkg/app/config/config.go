package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"rotorenc/pkg/axis"
	"rotorenc/pkg/encoder"
	"rotorenc/pkg/mqtt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	// ControlRate is the frequency of the control loop in Hz.
	ControlRate int           `yaml:"controlrate"`
	Period      time.Duration `yaml:"-"`
	// Simulate replaces the hardware by a simulated motor and encoder.
	Simulate  bool             `yaml:"simulate"`
	Gpio      GpioConfig       `yaml:"gpio"`
	SPI       SPIConfig        `yaml:"spi"`
	Encoder   encoder.Config   `yaml:"encoder"`
	Motor     axis.MotorConfig `yaml:"motor"`
	Axis      axis.Config      `yaml:"axis"`
	Flag      FlagConfig       `yaml:"-"`
	Debug     DebugConfig      `yaml:"debug"`
	Webserver WebserverConfig  `yaml:"webserver"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// GpioConfig defines the gpio lines of the encoder. A negative line number disables the line.
type GpioConfig struct {
	Chip  string `yaml:"chip"`
	Index int    `yaml:"index"`
	A     int    `yaml:"a"`
	B     int    `yaml:"b"`
	// Hall are the lines of hall A, B and C, empty if no hall sensors are connected.
	Hall          []int         `yaml:"hall"`
	Terminator    string        `yaml:"terminator"`
	BounceTimeInt int           `yaml:"bouncetime"`
	BounceTime    time.Duration `yaml:"-"`
}

// SPIConfig defines the spi port of an absolute encoder.
type SPIConfig struct {
	Device string `yaml:"device"`
	// Speed is the clock in kHz.
	Speed int `yaml:"speed"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	mqtt.Config `yaml:",inline"`
	Interval    time.Duration `yaml:"-"`
	IntervalInt int           `yaml:"interval"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		ControlRate: 1000,
		Gpio: GpioConfig{
			Chip:       "gpiochip0",
			Index:      -1,
			A:          -1,
			B:          -1,
			Terminator: "none",
		},
		SPI: SPIConfig{
			Device: "/dev/spidev0.0",
			Speed:  1000,
		},
		Encoder: *encoder.NewConfig(),
		Motor:   *axis.NewMotorConfig(),
		Flag:    FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"encoder": true,
				"axis":    true,
			},
		},
		MQTT: MQTTConfig{
			Config: mqtt.Config{
				ClientID: "rotorenc",
				Topic:    "rotorenc",
			},
			IntervalInt: 1000,
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	return c.derive()
}

// derive checks the values read from the file and computes the derived fields.
func (c *Config) derive() error {
	if c.ControlRate <= 0 {
		return fmt.Errorf("%w: controlrate %v", ErrInvalidConfig, c.ControlRate)
	}
	if n := len(c.Gpio.Hall); n != 0 && n != 3 {
		return fmt.Errorf("%w: %v hall lines, want 3", ErrInvalidConfig, n)
	}
	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("%w: encoder: %w", ErrInvalidConfig, err)
	}

	c.Period = time.Second / time.Duration(c.ControlRate)
	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Millisecond
	c.Gpio.BounceTime = time.Duration(c.Gpio.BounceTimeInt) * time.Microsecond
	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("%w: debug flag %q", ErrInvalidConfig, c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
