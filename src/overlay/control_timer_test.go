package overlay

import (
	"testing"
	"time"
)

func TestRandomControlTimer(t *testing.T) {
	const period = 20 * time.Millisecond

	timer := NewRandomControlTimer()
	start := time.Now()
	go timer.Run(period)
	defer timer.Shutdown()

	for i := 0; i < 3; i++ {
		select {
		case <-timer.Ticks():
		case <-time.After(time.Second):
			t.Fatalf("tick %d never came", i)
		}

		if elapsed := time.Since(start); elapsed < period {
			t.Fatalf("tick %d came after %s, before the %s period", i, elapsed, period)
		}

		start = time.Now()
		timer.Reset(period)
	}
}

func TestControlTimerZeroPeriod(t *testing.T) {
	timer := NewRandomControlTimer()
	go timer.Run(0)
	defer timer.Shutdown()

	select {
	case <-timer.Ticks():
		t.Fatalf("a zero period should never tick")
	case <-time.After(50 * time.Millisecond):
	}
}
