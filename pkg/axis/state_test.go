package axis

import (
	"errors"
	"testing"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{"idle", StateIdle, false},
		{" Full_Calibration_Sequence", StateFullCalibrationSequence, false},
		{"7", StateEncoderOffsetCalibration, false},
		{"5", StateUndefined, true},
		{"closed_loop_control", StateUndefined, true},
	}

	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseState(%q): error %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidState) {
			t.Errorf("ParseState(%q): got %v, want %v", tt.in, err, ErrInvalidState)
		}
		if got != tt.want {
			t.Errorf("ParseState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if s := State(42).String(); s != "state(42)" {
		t.Errorf("String() = %q", s)
	}
}

type recordingOutput struct {
	alpha, beta float64
	err         error
}

func (o *recordingOutput) SetVoltage(alpha, beta float64) error {
	o.alpha, o.beta = alpha, beta
	return o.err
}

func TestMotor(t *testing.T) {
	if err := NewMotor(NewMotorConfig(), nil).EnqueueVoltage(1, 0); !errors.Is(err, ErrNoVoltageOutput) {
		t.Errorf("nil output: got %v, want %v", err, ErrNoVoltageOutput)
	}

	out := &recordingOutput{}
	cfg := NewMotorConfig()
	m := NewMotor(cfg, out)
	if err := m.EnqueueVoltage(0.5, -0.25); err != nil {
		t.Fatal(err)
	}
	if out.alpha != 0.5 || out.beta != -0.25 {
		t.Errorf("output got %v, %v", out.alpha, out.beta)
	}

	out.err = errors.New("driver fault")
	if err := m.EnqueueVoltage(0, 0); !errors.Is(err, out.err) {
		t.Errorf("got %v, want %v", err, out.err)
	}

	m.SetDirection(-1)
	if cfg.Direction != -1 || m.Direction() != -1 {
		t.Errorf("direction not written to the config: %v", cfg.Direction)
	}
}
