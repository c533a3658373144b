package schedule

import "time"

// Timing holds the per-unit service durations used to derive task times
// from an appointment's scheduled time.
type Timing struct {
	UnitServiceDuration time.Duration
	TaskWindowPadding   time.Duration
}

// ArrivalTime computes when work on the given unit starts. Units are served
// in unit-number order, one service slot each, so unit 1 starts at the
// appointment time and unit N starts (N-1) slots later.
func (t Timing) ArrivalTime(scheduledAt time.Time, unitNumber int) time.Time {
	if unitNumber < 1 {
		unitNumber = 1
	}
	return scheduledAt.Add(time.Duration(unitNumber-1) * t.UnitServiceDuration)
}

// Window returns the padded completion window around a unit's service slot.
func (t Timing) Window(arrival time.Time) (time.Time, time.Time) {
	start := arrival.Add(-t.TaskWindowPadding)
	end := arrival.Add(t.UnitServiceDuration).Add(t.TaskWindowPadding)
	return start, end
}
