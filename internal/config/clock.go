package config

import (
	"fmt"
	"time"
)

// Clock is a time of day with minute precision, stored as minutes since midnight
type Clock int

// MinutesPerDay bounds valid Clock values
const MinutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (24-hour)
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustParseClock is ParseClock for constants and tests
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in t's location
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
