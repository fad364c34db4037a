package schedule

import (
	"fmt"
	"time"
)

// DayClass is the calendar grouping a service window or timetable applies to.
type DayClass string

const (
	Weekday DayClass = "weekday"
	Weekend DayClass = "weekend"
	Daily   DayClass = "daily"
	FriSat  DayClass = "fri-sat"
)

func ParseDayClass(s string) (DayClass, error) {
	switch d := DayClass(s); d {
	case Weekday, Weekend, Daily, FriSat:
		return d, nil
	}
	return "", fmt.Errorf("unknown day class %q", s)
}

// ClassifyDay returns the primary class of a calendar day (weekday or weekend).
func ClassifyDay(d time.Weekday) DayClass {
	if d == time.Saturday || d == time.Sunday {
		return Weekend
	}
	return Weekday
}

// Matches reports whether the class covers the given day. Unknown classes never match.
func (c DayClass) Matches(d time.Weekday) bool {
	switch c {
	case Daily:
		return true
	case Weekday:
		return ClassifyDay(d) == Weekday
	case Weekend:
		return ClassifyDay(d) == Weekend
	case FriSat:
		return d == time.Friday || d == time.Saturday
	}
	return false
}

// Window is one service-window rule. End < Start wraps past midnight.
type Window struct {
	Days  DayClass `json:"days"`
	Start int      `json:"start"`
	End   int      `json:"end"`
}

func (w Window) String() string {
	return fmt.Sprintf("%s %02d-%02d", w.Days, w.Start, w.End)
}

// InRange evaluates an hour against [start, end), wrapping when end < start.
func InRange(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// Status is the engine's operating status for a route.
type Status string

const (
	Running    Status = "running"
	NotRunning Status = "not-running"
)

// IsRunning resolves a route's window rules against a wall-clock moment. Rules
// for other day classes are ignored; no matching rule means NotRunning.
func IsRunning(windows []Window, now time.Time) Status {
	day, hour := now.Weekday(), now.Hour()
	for _, w := range windows {
		if !w.Days.Matches(day) {
			continue
		}
		if InRange(hour, w.Start, w.End) {
			return Running
		}
	}
	return NotRunning
}
