package schedule

import (
	"testing"
	"time"
)

func TestArrivalTimeStaggersByUnitNumber(t *testing.T) {
	t.Parallel()
	timing := Timing{UnitServiceDuration: 30 * time.Minute, TaskWindowPadding: 15 * time.Minute}
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	if got := timing.ArrivalTime(base, 1); !got.Equal(base) {
		t.Fatalf("unit 1 should start at the appointment time, got %v", got)
	}
	if got := timing.ArrivalTime(base, 3); !got.Equal(base.Add(time.Hour)) {
		t.Fatalf("unit 3 should start two slots later, got %v", got)
	}
	if got := timing.ArrivalTime(base, 0); !got.Equal(base) {
		t.Fatalf("invalid unit numbers clamp to unit 1, got %v", got)
	}
}

func TestWindowPadsBothSides(t *testing.T) {
	t.Parallel()
	timing := Timing{UnitServiceDuration: 30 * time.Minute, TaskWindowPadding: 15 * time.Minute}
	arrival := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	start, end := timing.Window(arrival)
	if !start.Equal(arrival.Add(-15 * time.Minute)) {
		t.Fatalf("unexpected window start %v", start)
	}
	if !end.Equal(arrival.Add(45 * time.Minute)) {
		t.Fatalf("unexpected window end %v", end)
	}
}
