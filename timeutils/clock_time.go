// Package timeutils provides small time-of-day and time-grid helpers shared
// by the tariff window classifier and the control loop's block/substep
// alignment.
package timeutils

import "time"

// ClockTime represents a time of day in a given locale, without a date.
type ClockTime struct {
	Hour     int
	Minute   int
	Second   int
	Location *time.Location
}

// OnDate returns a time with this clock time on the given date.
func (c ClockTime) OnDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, c.Second, 0, c.Location)
}
