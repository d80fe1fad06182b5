package encoder

import (
	"errors"
	"testing"

	"rotorenc/pkg/motorsim"
)

func TestDecodeHall(t *testing.T) {
	tests := []struct {
		code  uint8
		want  int32
		valid bool
	}{
		{0b000, 0, false},
		{0b001, 0, true},
		{0b011, 1, true},
		{0b010, 2, true},
		{0b110, 3, true},
		{0b100, 4, true},
		{0b101, 5, true},
		{0b111, 0, false},
	}

	seen := map[int32]bool{}
	for _, tt := range tests {
		got, ok := decodeHall(tt.code)
		if ok != tt.valid {
			t.Errorf("decodeHall(%03b) valid = %v, want %v", tt.code, ok, tt.valid)
			continue
		}
		if !ok {
			continue
		}
		if got != tt.want {
			t.Errorf("decodeHall(%03b) = %v, want %v", tt.code, got, tt.want)
		}
		if seen[got] {
			t.Errorf("decodeHall(%03b) = %v decoded twice", tt.code, got)
		}
		seen[got] = true
	}
}

func newHallEncoder(t *testing.T, ignoreIllegal bool) *Encoder {
	t.Helper()

	cfg := NewConfig()
	cfg.Mode = ModeHall
	cfg.CPR = 6
	cfg.IgnoreIllegalHallState = ignoreIllegal
	e := newTestEncoder(t, cfg, Hardware{}, newTestMotor(nil))

	e.SetHallState(0b001)
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return e
}

func TestHallUpdate(t *testing.T) {
	e := newHallEncoder(t, false)
	sequence := []uint8{0b001, 0b011, 0b010, 0b110, 0b100, 0b101}

	// two electrical turns forward
	for i := 1; i <= 12; i++ {
		e.SetHallState(sequence[i%6])
		if err := e.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got := e.ShadowCount(); got != int32(i) {
			t.Fatalf("step %d: shadow count = %v, want %v", i, got, i)
		}
		if got, want := e.CountInCPR(), int32(i%6); got != want {
			t.Fatalf("step %d: count in cpr = %v, want %v", i, got, want)
		}
	}

	// a jump of three states counts forward
	e.SetHallState(sequence[3])
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.ShadowCount(); got != 15 {
		t.Errorf("shadow count after +3 = %v, want 15", got)
	}

	// back by two
	e.SetHallState(sequence[1])
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.ShadowCount(); got != 13 {
		t.Errorf("shadow count after -2 = %v, want 13", got)
	}
}

func TestHallIllegalState(t *testing.T) {
	for _, code := range []uint8{0b000, 0b111} {
		e := newHallEncoder(t, false)
		e.SetHallState(code)
		if err := e.Update(); !errors.Is(err, ErrorIllegalHallState) {
			t.Errorf("Update with code %03b: got %v, want %v", code, err, ErrorIllegalHallState)
		}
		if !errors.Is(e.Errors(), ErrorIllegalHallState) {
			t.Errorf("code %03b: error state %v does not contain %v", code, e.Errors(), ErrorIllegalHallState)
		}

		e = newHallEncoder(t, true)
		e.SetHallState(code)
		if err := e.Update(); err != nil {
			t.Errorf("tolerated code %03b: Update: %v", code, err)
		}
		if got := e.ShadowCount(); got != 0 {
			t.Errorf("tolerated code %03b: shadow count = %v, want 0", code, got)
		}
		if e.Errors() != ErrorNone {
			t.Errorf("tolerated code %03b: error state %v", code, e.Errors())
		}
	}
}

func TestIncrementalWrap(t *testing.T) {
	c := &testCounter{count: 0xFFF0}
	e := newTestEncoder(t, NewConfig(), Hardware{Counter: c}, newTestMotor(nil))

	c.count = 0x0010
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.ShadowCount(); got != 32 {
		t.Errorf("shadow count after forward wrap = %v, want 32", got)
	}

	c.count = 0xFFF0
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.ShadowCount(); got != 0 {
		t.Errorf("shadow count after backward wrap = %v, want 0", got)
	}
	if got := e.CountInCPR(); got != 0 {
		t.Errorf("count in cpr = %v, want 0", got)
	}
}

func TestIncrementalWithoutCounter(t *testing.T) {
	e := newTestEncoder(t, NewConfig(), Hardware{}, newTestMotor(nil))

	if err := e.Update(); !errors.Is(err, ErrNoCounter) {
		t.Errorf("Update without counter: got %v, want %v", err, ErrNoCounter)
	}
	if errors.Is(e.Errors(), ErrorUnsupportedEncoderMode) {
		t.Errorf("incremental mode reported as unsupported: %v", e.Errors())
	}
}

func TestDecodeAMS(t *testing.T) {
	for _, angle := range []uint16{0, 1, 0x1234, 0x2AAA, 0x3FFF} {
		frame := motorsim.AMSFrame(angle)

		got, ok := decodeAMS(frame)
		if !ok || got != int32(angle) {
			t.Errorf("decodeAMS(%#04x) = %v, %v, want %v, true", frame, got, ok, angle)
		}

		if _, ok := decodeAMS(frame ^ 0x8000); ok {
			t.Errorf("decodeAMS(%#04x) accepted a wrong parity bit", frame^0x8000)
		}
		if _, ok := decodeAMS(frame ^ 0x0004); ok {
			t.Errorf("decodeAMS(%#04x) accepted a flipped data bit", frame^0x0004)
		}
	}
}

// newAbsEncoder returns an AMS encoder reading a rotor with a 14 bit resolution.
func newAbsEncoder(t *testing.T, mode Mode, start int32) (*Encoder, *motorsim.Rotor, *motorsim.Transport, *motorsim.Pin) {
	t.Helper()

	r := motorsim.New(motorsim.Config{CPR: 1 << 14, PolePairs: 7, Start: start})
	tr := motorsim.NewTransport(r)
	cs := &motorsim.Pin{}

	cfg := NewConfig()
	cfg.Mode = mode
	cfg.CPR = 1 << 14
	cfg.AbsSPICSGPIOPin = 8
	hw := Hardware{
		Transport: tr,
		OpenPin:   func(uint16) (OutputPin, error) { return cs, nil },
	}

	e := newTestEncoder(t, cfg, hw, newTestMotor(r))
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return e, r, tr, cs
}

func TestAbsUpdate(t *testing.T) {
	e, r, _, cs := newAbsEncoder(t, ModeSPIAbsAMS, 1000)

	if !cs.IsHigh() {
		t.Error("chip select is not high after setup")
	}
	if err := e.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if !cs.IsHigh() {
		t.Error("chip select is not released after the reply")
	}
	if !e.IsReady() {
		t.Error("encoder is not ready after a valid sample")
	}

	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.CountInCPR(); got != 1000 {
		t.Errorf("count in cpr = %v, want 1000", got)
	}
	if got := e.ShadowCount(); got != 1000 {
		t.Errorf("shadow count = %v, want 1000", got)
	}

	// across the zero position the shortest way
	r.Move(-1500)
	if err := e.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := e.ShadowCount(); got != -500 {
		t.Errorf("shadow count = %v, want -500", got)
	}
	if got, want := e.CountInCPR(), int32(1<<14-500); got != want {
		t.Errorf("count in cpr = %v, want %v", got, want)
	}
}

func TestAbsCommErrorRate(t *testing.T) {
	e, _, _, _ := newAbsEncoder(t, ModeSPIAbsAMS, 0)

	// each missing sample pushes the rate towards 1 by dt
	for i := 0; i < 40; i++ {
		if err := e.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if errors.Is(e.Errors(), ErrorAbsSPICommFail) {
		t.Fatalf("comm failure after 40 missing samples, rate %v", e.Snapshot().SPIErrorRate)
	}

	if err := e.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !errors.Is(e.Errors(), ErrorAbsSPICommFail) {
		t.Fatalf("no comm failure after 41 missing samples, rate %v", e.Snapshot().SPIErrorRate)
	}
	if !e.DoChecks() {
		t.Error("comm failure is not advisory")
	}

	before := e.Snapshot().SPIErrorRate
	for i := 0; i < 10; i++ {
		if err := e.StartTransaction(); err != nil {
			t.Fatalf("StartTransaction: %v", err)
		}
		if err := e.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if after := e.Snapshot().SPIErrorRate; after >= before {
		t.Errorf("error rate did not decay with valid samples: %v -> %v", before, after)
	}
}

func TestAbsParityReject(t *testing.T) {
	e, _, tr, _ := newAbsEncoder(t, ModeSPIAbsAMS, 1234)

	tr.Corrupt(true)
	if err := e.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if e.IsReady() {
		t.Error("encoder is ready after a corrupted sample")
	}
	if got := e.Snapshot().PosAbs; got != 0 {
		t.Errorf("pos_abs = %v after a corrupted sample, want 0", got)
	}
}

func TestAbsUnsupportedProtocol(t *testing.T) {
	e, _, _, _ := newAbsEncoder(t, ModeSPIAbsCUI, 100)

	if err := e.StartTransaction(); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if !errors.Is(e.Errors(), ErrorUnsupportedEncoderMode) {
		t.Errorf("error state %v does not contain %v", e.Errors(), ErrorUnsupportedEncoderMode)
	}
}

func TestStartTransaction(t *testing.T) {
	t.Run("busy", func(t *testing.T) {
		e, _, tr, _ := newAbsEncoder(t, ModeSPIAbsAMS, 0)
		tr.SetBusy(true)

		if err := e.StartTransaction(); !errors.Is(err, ErrorAbsSPINotReady) {
			t.Errorf("got %v, want %v", err, ErrorAbsSPINotReady)
		}
		if tr.Exchanges() != 0 {
			t.Error("exchange started on a busy transport")
		}
	})

	t.Run("lost reply", func(t *testing.T) {
		e, _, tr, cs := newAbsEncoder(t, ModeSPIAbsAMS, 0)
		tr.DropReplies(true)

		if err := e.StartTransaction(); err != nil {
			t.Fatalf("StartTransaction: %v", err)
		}
		if cs.IsHigh() {
			t.Error("chip select released while the reply is pending")
		}
		if err := e.StartTransaction(); !errors.Is(err, ErrorAbsSPITimeout) {
			t.Errorf("got %v, want %v", err, ErrorAbsSPITimeout)
		}
		if !cs.IsHigh() {
			t.Error("chip select not released after the timeout")
		}
	})

	t.Run("not absolute", func(t *testing.T) {
		tr := motorsim.NewTransport(motorsim.New(motorsim.Config{CPR: 8192}))
		e := newTestEncoder(t, NewConfig(), Hardware{Counter: &testCounter{}, Transport: tr}, newTestMotor(nil))

		if err := e.StartTransaction(); err != nil {
			t.Errorf("StartTransaction: %v", err)
		}
		if tr.Exchanges() != 0 {
			t.Error("exchange started in incremental mode")
		}
		if err := e.AbsSPIInit(); !errors.Is(err, ErrNotAbsolute) {
			t.Errorf("AbsSPIInit: got %v, want %v", err, ErrNotAbsolute)
		}
	})
}
