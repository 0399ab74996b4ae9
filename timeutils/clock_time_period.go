package timeutils

import "time"

// ClockTimePeriod is a period of the day bounded by two ClockTimes. ContainsHalfOpen
// treats the period as closed on the left and open on the right, matching the
// tariff window classification convention in §6.
type ClockTimePeriod struct {
	Start ClockTime
	End   ClockTime
}

// ContainsHalfOpen returns true if t's time-of-day falls in [Start, End).
func (p ClockTimePeriod) ContainsHalfOpen(t time.Time) bool {
	year, month, day := t.Date()

	start := p.Start.OnDate(year, month, day)
	end := p.End.OnDate(year, month, day)

	if end.Before(start) {
		// period wraps past midnight, e.g. "18:00 to 06:00"
		return !t.Before(start) || t.Before(end)
	}

	return !t.Before(start) && t.Before(end)
}
