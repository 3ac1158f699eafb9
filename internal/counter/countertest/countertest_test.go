package countertest_test

import (
	"testing"
	"time"

	"github.com/randomizedcoder/tscclock/internal/counter/countertest"
)

func TestManualClock(t *testing.T) {
	c := countertest.NewManualClock(100, time.Microsecond)
	if got := c.Nanotime(); got != 1100 {
		t.Errorf("Nanotime() = %d, want 1100", got)
	}
	if got := c.Peek(); got != 1100 {
		t.Errorf("Peek() = %d, want 1100", got)
	}
	c.Advance(time.Millisecond)
	if got := c.Peek(); got != 1_001_100 {
		t.Errorf("Peek() after Advance = %d, want 1001100", got)
	}
}

func TestSynthetic_Rate(t *testing.T) {
	clk := countertest.NewManualClock(0, 0)
	s := &countertest.Synthetic{Clock: clk, RateHz: 3_000_000_000, Base: 42}

	start := s.Read()
	clk.Advance(10 * time.Millisecond)
	end := s.Read()

	if end-start != 30_000_000 {
		t.Errorf("delta over 10ms = %d, want 30000000", end-start)
	}
	if start != 42 {
		t.Errorf("Read() at zero = %d, want Base 42", start)
	}
}

func TestSynthetic_Mismatch(t *testing.T) {
	clk := countertest.NewManualClock(0, 0)
	s := &countertest.Synthetic{Clock: clk, RateHz: 1, Core: 3, MismatchAfter: 2, WrongCore: 5}

	for i := 0; i < 2; i++ {
		if _, core := s.ReadWithCore(); core != 3 {
			t.Fatalf("read %d: core = %d, want 3", i, core)
		}
	}
	if _, core := s.ReadWithCore(); core != 5 {
		t.Errorf("core after MismatchAfter = %d, want 5", core)
	}
}
