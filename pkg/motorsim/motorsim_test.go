package motorsim

import (
	"errors"
	"math/bits"
	"testing"

	"rotorenc/pkg/port"
)

func TestSetVoltage(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7, Start: 100})

	tests := []struct {
		alpha, beta float64
		want        int32
	}{
		{0, 1, 392},  // +pi/2
		{-1, 0, 685}, // +pi
		{0, 0, 685},  // no vector, no move
		{0, -1, 977}, // +3pi/2, the short way
		{1, 0, 1270}, // +2pi
		{0, -1, 977}, // back by pi/2
	}

	for _, tt := range tests {
		if err := r.SetVoltage(tt.alpha, tt.beta); err != nil {
			t.Fatalf("SetVoltage(%v, %v): %v", tt.alpha, tt.beta, err)
		}
		if got := r.Position(); got != tt.want {
			t.Errorf("SetVoltage(%v, %v): position %v, want %v", tt.alpha, tt.beta, got, tt.want)
		}
	}
}

func TestDirection(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7, Direction: -1})
	if err := r.SetVoltage(0, 1); err != nil {
		t.Fatal(err)
	}
	if got := r.Position(); got != -292 {
		t.Errorf("position %v, want -292", got)
	}
}

func TestIndex(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7, Start: -1})
	var pulses int
	r.OnIndex(func() {
		// the handler may read the counter without a deadlock
		_ = r.Count()
		pulses++
	})

	if err := r.SetVoltage(0, 1); err != nil {
		t.Fatal(err)
	}
	if pulses != 1 {
		t.Errorf("%d index pulses, want 1", pulses)
	}

	r.Move(100)
	r.Move(-500)
	if pulses != 2 {
		t.Errorf("%d index pulses, want 2", pulses)
	}
}

func TestCounter(t *testing.T) {
	r := New(Config{CPR: 8192, Start: 100})
	if r.Count() != 100 {
		t.Errorf("count %v, want 100", r.Count())
	}

	r.SetCount(0xFFF0)
	if r.Count() != 0xFFF0 {
		t.Errorf("count %#x, want 0xfff0", r.Count())
	}
	r.Move(32)
	if r.Count() != 0x10 {
		t.Errorf("count %#x after wrap, want 0x10", r.Count())
	}
	if r.Position() != 132 {
		t.Errorf("position %v, want 132", r.Position())
	}
}

func TestHallCode(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7})

	// a sector is 8192/42 counts
	var got []uint8
	for i := 0; i < 7; i++ {
		got = append(got, r.HallCode())
		r.Move(196)
	}

	want := []uint8{0b001, 0b011, 0b010, 0b110, 0b100, 0b101, 0b001}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hall codes %03b, want %03b", got, want)
		}
	}
}

func TestHallLines(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7})
	lines := r.HallLines()

	r.Move(196)
	select {
	case evt := <-lines[1].C:
		if evt.Type != port.RisingEdge {
			t.Errorf("hall B edge %v, want rising", evt.Type)
		}
	default:
		t.Fatal("no edge on hall B")
	}
	for _, i := range []int{0, 2} {
		if len(lines[i].C) != 0 {
			t.Errorf("edge on hall line %d", i)
		}
	}
	if !lines[0].Read() || !lines[1].Read() || lines[2].Read() {
		t.Errorf("levels %v %v %v, want 011", lines[2].Read(), lines[1].Read(), lines[0].Read())
	}

	r.Move(196)
	if evt := <-lines[0].C; evt.Type != port.FallingEdge {
		t.Errorf("hall A edge %v, want falling", evt.Type)
	}
}

func TestAngle(t *testing.T) {
	r := New(Config{CPR: 1 << 14, Start: -2})
	if got := r.Angle(); got != 0x3FFE {
		t.Errorf("angle %#x, want 0x3ffe", got)
	}

	r = New(Config{CPR: 4096, Start: 1024})
	if got := r.Angle(); got != 0x1000 {
		t.Errorf("angle %#x, want 0x1000", got)
	}
}

func TestAMSFrame(t *testing.T) {
	for _, angle := range []uint16{0, 1, 1234, 0x3FFF, 0xFFFF} {
		f := AMSFrame(angle)
		if bits.OnesCount16(f)&1 != 0 {
			t.Errorf("AMSFrame(%#x) = %#x has odd parity", angle, f)
		}
		if f&0x3FFF != angle&0x3FFF {
			t.Errorf("AMSFrame(%#x) = %#x lost the angle", angle, f)
		}
	}
}

func TestStuck(t *testing.T) {
	r := New(Config{CPR: 8192, PolePairs: 7})

	r.SetStuck(true, false)
	if err := r.SetVoltage(0, 1); err != nil {
		t.Errorf("stuck without failure: %v", err)
	}
	r.SetStuck(true, true)
	if err := r.SetVoltage(0, 1); !errors.Is(err, ErrStuck) {
		t.Errorf("got %v, want %v", err, ErrStuck)
	}
	if r.Position() != 0 {
		t.Errorf("stuck rotor moved to %v", r.Position())
	}
}

func TestTransport(t *testing.T) {
	r := New(Config{CPR: 1 << 14, Start: 1234})
	tr := NewTransport(r)

	rx := make([]uint16, 1)
	called := 0
	if err := tr.StartExchange([]uint16{0xFFFF}, rx, func() { called++ }); err != nil {
		t.Fatal(err)
	}
	if called != 1 || rx[0] != AMSFrame(1234) {
		t.Errorf("called %d, rx %#x, want %#x", called, rx[0], AMSFrame(1234))
	}

	tr.Corrupt(true)
	if err := tr.StartExchange([]uint16{0xFFFF}, rx, func() { called++ }); err != nil {
		t.Fatal(err)
	}
	if bits.OnesCount16(rx[0])&1 == 0 {
		t.Errorf("corrupted frame %#x has even parity", rx[0])
	}

	tr.DropReplies(true)
	if err := tr.StartExchange([]uint16{0xFFFF}, rx, func() { called++ }); err != nil {
		t.Fatal(err)
	}
	if called != 2 {
		t.Errorf("done called %d times, want 2", called)
	}

	tr.SetBusy(true)
	if tr.Ready() {
		t.Error("busy transport is ready")
	}
	if err := tr.StartExchange([]uint16{0xFFFF}, rx, func() {}); !errors.Is(err, ErrBusy) {
		t.Errorf("got %v, want %v", err, ErrBusy)
	}
	if tr.Exchanges() != 3 {
		t.Errorf("%d exchanges, want 3", tr.Exchanges())
	}
}
