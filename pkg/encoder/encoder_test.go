package encoder

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v2"

	"rotorenc/pkg/motorsim"
)

const testPeriod = 125 * time.Microsecond // 8 kHz

var errTooManyCycles = errors.New("control loop did not finish")

// testMotor drives a simulated rotor.
type testMotor struct {
	rotor      *motorsim.Rotor
	polePairs  int
	current    float64
	resistance float64
	motorType  MotorType
	direction  int
	enqueued   int
}

func newTestMotor(r *motorsim.Rotor) *testMotor {
	return &testMotor{rotor: r, polePairs: 7, current: 10, resistance: 0.05, direction: 1}
}

func (m *testMotor) PolePairs() int              { return m.polePairs }
func (m *testMotor) CalibrationCurrent() float64 { return m.current }
func (m *testMotor) PhaseResistance() float64    { return m.resistance }
func (m *testMotor) Type() MotorType             { return m.motorType }
func (m *testMotor) Direction() int              { return m.direction }
func (m *testMotor) SetDirection(dir int)        { m.direction = dir }

func (m *testMotor) EnqueueVoltage(alpha, beta float64) error {
	m.enqueued++
	if m.rotor == nil {
		return nil
	}
	return m.rotor.SetVoltage(alpha, beta)
}

// testLoop runs the control cycle back to back.
type testLoop struct {
	enc       *Encoder
	maxCycles int
	cycles    int
}

func (l *testLoop) RunControlLoop(step func() (bool, error)) error {
	for i := 0; i < l.maxCycles; i++ {
		l.cycles++
		if !l.enc.DoChecks() {
			return l.enc.Errors()
		}
		if err := l.enc.Update(); err != nil {
			return err
		}
		cont, err := step()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return errTooManyCycles
}

// testCounter is a bare 16 bit counter.
type testCounter struct {
	count uint16
	sets  []uint16
}

func (c *testCounter) Count() uint16 { return c.count }

func (c *testCounter) SetCount(count uint16) {
	c.count = count
	c.sets = append(c.sets, count)
}

func newTestEncoder(t *testing.T, cfg *Config, hw Hardware, m Motor) *Encoder {
	t.Helper()

	e, err := New(cfg, hw, m, testPeriod)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew(t *testing.T) {
	m := newTestMotor(nil)

	if _, err := New(NewConfig(), Hardware{}, nil, testPeriod); !errors.Is(err, ErrNoMotor) {
		t.Errorf("New without motor: got %v, want %v", err, ErrNoMotor)
	}

	cfg := NewConfig()
	cfg.CPR = 0
	if _, err := New(cfg, Hardware{}, m, testPeriod); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("New with cpr 0: got %v, want %v", err, ErrInvalidValue)
	}

	if _, err := New(NewConfig(), Hardware{}, m, 0); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("New with period 0: got %v, want %v", err, ErrInvalidValue)
	}

	cfg = NewConfig()
	cfg.Mode = ModeHall
	cfg.CPR = 6
	cfg.PreCalibrated = true
	if e := newTestEncoder(t, cfg, Hardware{}, m); !e.IsReady() {
		t.Error("pre-calibrated hall encoder is not ready")
	}

	if e := newTestEncoder(t, NewConfig(), Hardware{}, m); e.IsReady() {
		t.Error("incremental encoder is ready before calibration")
	}
}

func TestErrorFlags(t *testing.T) {
	err := ErrorNoResponse | ErrorUnstableGain

	if !errors.Is(err, ErrorNoResponse) {
		t.Error("combined error does not match ErrorNoResponse")
	}
	if errors.Is(err, ErrorCPROutOfRange) {
		t.Error("combined error matches ErrorCPROutOfRange")
	}
	if errors.Is(err, ErrorNone) {
		t.Error("error matches ErrorNone")
	}
	if err.Advisory() {
		t.Error("ErrorNoResponse is reported as advisory")
	}
	if !(ErrorUnstableGain | ErrorAbsSPICommFail).Advisory() {
		t.Error("advisory errors are not reported as advisory")
	}
	if got, want := err.Error(), "encoder: unstable gain, no response"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorsAccumulate(t *testing.T) {
	e := newTestEncoder(t, NewConfig(), Hardware{Counter: &testCounter{}}, newTestMotor(nil))

	e.setError(ErrorNoResponse)
	e.setError(ErrorCPROutOfRange)
	if got, want := e.Errors(), ErrorNoResponse|ErrorCPROutOfRange; got != want {
		t.Errorf("Errors() = %v, want %v", got, want)
	}
	if e.DoChecks() {
		t.Error("DoChecks() = true with errors set")
	}

	// Update does not clear errors
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !errors.Is(e.Errors(), ErrorNoResponse) {
		t.Error("Update cleared the error state")
	}

	e.ClearErrors(ErrorNone)
	if !e.DoChecks() {
		t.Error("DoChecks() = false after clearing errors")
	}
}

func TestModeParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"incremental", ModeIncremental, false},
		{"HALL", ModeHall, false},
		{"spi_abs_ams", ModeSPIAbsAMS, false},
		{"0x100", ModeSPIAbsCUI, false},
		{"257", ModeSPIAbsAMS, false},
		{"2", 0, true},
		{"optical", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("ParseMode(%q): got error %v, want %v", tt.in, err, ErrInvalidValue)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}

	if !ModeSPIAbsCUI.IsAbsolute() || ModeHall.IsAbsolute() {
		t.Error("IsAbsolute does not match the absolute modes")
	}
}

func TestConfigYAML(t *testing.T) {
	c := NewConfig()
	c.Mode = ModeSPIAbsCUI

	b, err := yaml.Marshal(struct {
		Encoder *Config   `yaml:"encoder"`
		Motor   MotorType `yaml:"motor_type"`
	}{c, MotorTypeGimbal})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "mode: spi_abs_cui") || !strings.Contains(string(b), "motor_type: gimbal") {
		t.Errorf("yaml without mode names:\n%s", b)
	}

	var got struct {
		Encoder Config `yaml:"encoder"`
	}
	if err := yaml.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Encoder != *c {
		t.Errorf("got %+v, want %+v", got.Encoder, *c)
	}
}
