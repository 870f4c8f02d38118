package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockSetAndAdvancePast(t *testing.T) {
	start := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	clock := NewClock(time.Time{})
	nowFn := clock.NowFunc()

	clock.Set(start)
	if got := nowFn(); !got.Equal(start) {
		t.Fatalf("NowFunc did not observe set: %v", got)
	}

	end := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	if got := clock.AdvancePast(end); !got.After(end) {
		t.Fatalf("expected clock past %v, got %v", end, got)
	}
	if got := clock.AdvancePast(start); got.Before(end) {
		t.Fatalf("clock moved backwards to %v", got)
	}
}
