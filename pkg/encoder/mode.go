package encoder

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how raw position samples are read and decoded.
type Mode int

const (
	// ModeIncremental reads a quadrature timer counter.
	ModeIncremental Mode = 0
	// ModeHall decodes three digital hall sensors.
	ModeHall Mode = 1
	// ModeSPIAbsCUI reads a CUI absolute encoder over SPI.
	ModeSPIAbsCUI Mode = 0x100
	// ModeSPIAbsAMS reads an AMS absolute encoder over SPI.
	ModeSPIAbsAMS Mode = 0x101
)

var modeNames = map[Mode]string{
	ModeIncremental: "incremental",
	ModeHall:        "hall",
	ModeSPIAbsCUI:   "spi_abs_cui",
	ModeSPIAbsAMS:   "spi_abs_ams",
}

// IsAbsolute reports whether the mode reads positions over the absolute SPI transport.
func (m Mode) IsAbsolute() bool {
	return m == ModeSPIAbsCUI || m == ModeSPIAbsAMS
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%#x)", int(m))
}

// ParseMode accepts a mode name or its numeric code.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}

	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown encoder mode %q", ErrInvalidValue, s)
	}
	if _, ok := modeNames[Mode(n)]; !ok {
		return 0, fmt.Errorf("%w: unknown encoder mode %#x", ErrInvalidValue, n)
	}
	return Mode(n), nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML writes the mode name.
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML accepts both the name and the numeric code of a mode.
func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(s))
}

// MotorType classifies how the calibration voltage is derived from the calibration current.
type MotorType int

const (
	// MotorTypeHighCurrent motors are driven with calibration current times phase resistance.
	MotorTypeHighCurrent MotorType = 0
	// MotorTypeGimbal motors take the calibration current directly as a voltage.
	MotorTypeGimbal MotorType = 2
)

func (t MotorType) String() string {
	switch t {
	case MotorTypeHighCurrent:
		return "high_current"
	case MotorTypeGimbal:
		return "gimbal"
	}
	return fmt.Sprintf("motor_type(%d)", int(t))
}

func (t MotorType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts "high_current" or "gimbal".
func (t *MotorType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high_current", "0":
		*t = MotorTypeHighCurrent
	case "gimbal", "2":
		*t = MotorTypeGimbal
	default:
		return fmt.Errorf("%w: unknown motor type %q", ErrInvalidValue, s)
	}
	return nil
}
