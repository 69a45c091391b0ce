package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(500 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestUnixMilli(t *testing.T) {
	clock := NewMockClockMillis(1_700_000_000_123)
	if got := UnixMilli(clock); got != 1_700_000_000_123 {
		t.Errorf("UnixMilli = %d, want 1700000000123", got)
	}

	clock.SetMillis(1000)
	if got := UnixMilli(clock); got != 1000 {
		t.Errorf("UnixMilli after SetMillis = %d, want 1000", got)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)

	if !clock.Now().Equal(start.Add(time.Hour)) {
		t.Errorf("got %v, want %v", clock.Now(), start.Add(time.Hour))
	}
}

func TestMockClock_SetBackwards(t *testing.T) {
	clock := NewMockClockMillis(5000)
	clock.SetMillis(1300)
	if got := clock.Now().UnixMilli(); got != 1300 {
		t.Errorf("got %d, want 1300", got)
	}
}

func TestMockClock_Timer(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	timer := clock.NewTimer(5 * time.Minute)

	select {
	case <-timer.C():
		t.Error("timer fired too early")
	default:
	}

	clock.Advance(6 * time.Minute)

	select {
	case <-timer.C():
	default:
		t.Error("timer did not fire after advance")
	}
}

func TestMockClock_Timer_Stop(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := clock.NewTimer(time.Minute)

	if !timer.Stop() {
		t.Error("Stop should return true for active timer")
	}

	clock.Advance(2 * time.Minute)

	select {
	case <-timer.C():
		t.Error("stopped timer should not fire")
	default:
	}
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(100 * time.Millisecond)

	select {
	case <-ticker.C():
		t.Error("ticker fired too early")
	default:
	}

	clock.Advance(100 * time.Millisecond)

	select {
	case <-ticker.C():
	default:
		t.Error("ticker did not fire after first interval")
	}

	if got := len(clock.Tickers()); got != 1 {
		t.Errorf("Tickers() len = %d, want 1", got)
	}
}

func TestMockClock_Ticker_Stop(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker should not tick")
	default:
	}
	if !ticker.(*MockTicker).Stopped() {
		t.Error("Stopped() = false after Stop")
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	now := clock.Now()
	ticker.Trigger(now)

	select {
	case received := <-ticker.C():
		if !received.Equal(now) {
			t.Errorf("got %v, want %v", received, now)
		}
	default:
		t.Error("Trigger did not send tick")
	}
}
