package meeting

import (
	"fmt"
	"strings"
	"time"
)

// Anchor is a time of day in the schedule's location.
type Anchor struct {
	Hour   int
	Minute int
}

func ParseAnchor(s string) (Anchor, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Anchor{}, fmt.Errorf("error parsing time of day %q: %w", s, err)
	}
	return Anchor{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (a Anchor) String() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// on returns the anchor on the calendar day of t.
func (a Anchor) on(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, a.Hour, a.Minute, 0, 0, t.Location())
}

// Next returns the first occurrence of the anchor at or after now. It is
// computed from the calendar, so repeated calls never accumulate drift.
func (a Anchor) Next(now time.Time) time.Time {
	t := a.on(now)
	if t.Before(now) {
		t = a.on(now.AddDate(0, 0, 1))
	}
	return t
}

// Until is the delay from now to the next occurrence of the anchor.
func (a Anchor) Until(now time.Time) time.Duration {
	return a.Next(now).Sub(now)
}

// Schedule holds the three daily anchors of a meeting cycle. Days limits
// which weekdays a meeting opens on; empty means every day.
type Schedule struct {
	Open     Anchor
	Remind   Anchor
	Close    Anchor
	Days     []time.Weekday
	Location *time.Location
}

func (s Schedule) in(t time.Time) time.Time {
	if s.Location == nil {
		return t
	}
	return t.In(s.Location)
}

func (s Schedule) meetsOn(day time.Weekday) bool {
	if len(s.Days) == 0 {
		return true
	}
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// NextOpen returns the next opening at or after now on a meeting day.
func (s Schedule) NextOpen(now time.Time) time.Time {
	t := s.Open.Next(s.in(now))
	for i := 0; i < 7 && !s.meetsOn(t.Weekday()); i++ {
		t = s.Open.on(t.AddDate(0, 0, 1))
	}
	return t
}

// PrevOpen returns the most recent opening at or before now on a meeting day.
func (s Schedule) PrevOpen(now time.Time) time.Time {
	now = s.in(now)
	t := s.Open.on(now)
	if t.After(now) {
		t = s.Open.on(now.AddDate(0, 0, -1))
	}
	for i := 0; i < 7 && !s.meetsOn(t.Weekday()); i++ {
		t = s.Open.on(t.AddDate(0, 0, -1))
	}
	return t
}

// CloseAfter returns the first close strictly after the given opening.
func (s Schedule) CloseAfter(open time.Time) time.Time {
	return s.Close.Next(open.Add(time.Second))
}

// Window reports the most recent open/close window and whether now lies
// inside it.
func (s Schedule) Window(now time.Time) (open, close time.Time, inside bool) {
	open = s.PrevOpen(now)
	close = s.CloseAfter(open)
	return open, close, now.Before(close)
}

// CycleStart returns the close that began the cycle now belongs to.
func (s Schedule) CycleStart(now time.Time) time.Time {
	open, close, inside := s.Window(now)
	if !inside {
		return close
	}
	prev := s.PrevOpen(open.Add(-time.Second))
	return s.CloseAfter(prev)
}

func ParseWeekdays(s string) ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
		"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
		"sat": time.Saturday,
	}

	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		day, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// Upcoming returns the times of the meeting in progress, or of the next one
// when none is open. remind is zero when it would not fire before close.
func (s Schedule) Upcoming(now time.Time) (open, remind, close time.Time) {
	open, close, inside := s.Window(now)
	if !inside {
		open = s.NextOpen(now)
		close = s.CloseAfter(open)
	}
	remind = s.Remind.Next(open)
	if !remind.Before(close) {
		remind = time.Time{}
	}
	return open, remind, close
}
