package timeutils

import (
	"fmt"
	"time"
)

// FloorToGrid returns t rounded down to the most recent boundary of the given
// gridMinutes (e.g. 5 for the real-time substep grid, 15 for the day-ahead
// block grid), and OnGrid reports whether t already lies exactly on such a
// boundary.
func FloorToGrid(t time.Time, gridMinutes int) time.Time {
	minutesSinceMidnight := t.Hour()*60 + t.Minute()
	flooredMinutes := (minutesSinceMidnight / gridMinutes) * gridMinutes
	year, month, day := t.Date()
	return time.Date(year, month, day, flooredMinutes/60, flooredMinutes%60, 0, 0, t.Location())
}

// OnGrid reports whether t falls exactly on a gridMinutes boundary, with zero
// seconds and nanoseconds.
func OnGrid(t time.Time, gridMinutes int) bool {
	return t.Second() == 0 && t.Nanosecond() == 0 && t.Minute()%gridMinutes == 0
}

// SubstepIndex returns the index (0, 1, 2, ...) of t within its enclosing
// blockMinutes-long block, given the real-time step size stepMinutes. It
// returns an error if t does not lie on the stepMinutes grid.
func SubstepIndex(t time.Time, blockMinutes, stepMinutes int) (int, error) {
	if !OnGrid(t, stepMinutes) {
		return 0, fmt.Errorf("time %s is not aligned to the %d-minute grid", t, stepMinutes)
	}
	blockStart := FloorToGrid(t, blockMinutes)
	return int(t.Sub(blockStart).Minutes()) / stepMinutes, nil
}
