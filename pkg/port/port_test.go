package port

import "testing"

func TestLevel(t *testing.T) {
	tests := []struct {
		v    int
		want StateType
		bit  uint8
	}{
		{0, Low, 0},
		{1, High, 1},
		{2, Invalid, 0},
		{-1, Invalid, 0},
	}

	for _, tt := range tests {
		got := Level(tt.v)
		if got != tt.want || got.Bit() != tt.bit {
			t.Errorf("Level(%v) = %v (bit %v), want %v (bit %v)", tt.v, got, got.Bit(), tt.want, tt.bit)
		}
	}
}

func TestEdge(t *testing.T) {
	if Edge(true) != RisingEdge || Edge(false) != FallingEdge {
		t.Errorf("Edge(true) = %v, Edge(false) = %v", Edge(true), Edge(false))
	}
	if EventType(0).String() != "none" {
		t.Errorf("zero event type %q", EventType(0))
	}
}
