package prayer

import (
	"fmt"
	"time"
)

// Status describes what the countdown can show
type Status int

const (
	// StatusPlaceholder means no schedule is available
	StatusPlaceholder Status = iota
	// StatusNotApplicable means the schedule is for a date other than today
	StatusNotApplicable
	// StatusActive means a next time-point has been selected
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusNotApplicable:
		return "not_applicable"
	default:
		return "placeholder"
	}
}

// PlaceholderRemaining is shown when no countdown is available
const PlaceholderRemaining = "--:--:--"

// Input is everything Evaluate needs for one tick
type Input struct {
	Today    *DailySchedule
	Tomorrow *DailySchedule
	Offsets  Offsets
	Now      time.Time
}

// State is the countdown derived for a single instant. It is never persisted.
type State struct {
	Status    Status
	Name      TimePoint
	Time      Clock
	Target    time.Time
	Remaining time.Duration
	NextDay   bool
}

// RemainingString formats the remaining duration as HH:MM:SS
func (s State) RemainingString() string {
	if s.Status != StatusActive {
		return PlaceholderRemaining
	}
	return FormatRemaining(s.Remaining)
}

// Key identifies the selected target by name and date
func (s State) Key() string {
	if s.Status != StatusActive {
		return ""
	}
	return targetKey(s.Name, s.Target)
}

// Evaluate selects the next obligatory time-point strictly after Now and the
// remaining duration to it. It is pure: the same input yields the same state.
func Evaluate(in Input) State {
	today := in.Today
	if today == nil {
		return State{Status: StatusPlaceholder}
	}

	now := in.Now.In(today.Location())
	if !today.IsDate(now) {
		return State{Status: StatusNotApplicable}
	}

	for _, p := range Obligatory {
		offset := in.Offsets.Of(p)
		instant, ok := today.Instant(p, offset)
		if !ok {
			continue
		}
		if instant.After(now) {
			c, _ := today.Time(p)
			return active(p, c.Add(offset), instant, now, false)
		}
	}

	return wrapToFajr(in, now)
}

func wrapToFajr(in Input, now time.Time) State {
	offset := in.Offsets.Of(Fajr)
	next := in.Today.Date().AddDate(0, 0, 1)

	if tomorrow := in.Tomorrow; tomorrow != nil && sameDate(tomorrow.Date().In(in.Today.Location()), next) {
		if instant, ok := tomorrow.Instant(Fajr, offset); ok {
			c, _ := tomorrow.Time(Fajr)
			return active(Fajr, c.Add(offset), instant, now, true)
		}
	}

	c, ok := in.Today.Time(Fajr)
	if !ok {
		return State{Status: StatusPlaceholder}
	}
	y, m, d := next.Date()
	instant := time.Date(y, m, d, c.Hour, c.Minute+offset, 0, 0, in.Today.Location())
	return active(Fajr, c.Add(offset), instant, now, true)
}

func active(p TimePoint, adjusted Clock, target, now time.Time, nextDay bool) State {
	return State{
		Status:    StatusActive,
		Name:      p,
		Time:      adjusted,
		Target:    target,
		Remaining: target.Sub(now).Truncate(time.Second),
		NextDay:   nextDay,
	}
}

// FormatRemaining renders a duration as zero-padded HH:MM:SS, floored to the second
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// Entry is one row of a day's timeline
type Entry struct {
	Name     TimePoint
	Raw      Clock
	Adjusted Clock
	Offset   int
	Next     bool
}

// Timeline lists every time-point of the schedule with its offset applied,
// marking the one the state selected.
func Timeline(s *DailySchedule, offsets Offsets, state State) []Entry {
	if s == nil {
		return nil
	}

	entries := make([]Entry, 0, len(All))
	for _, p := range All {
		c, ok := s.Time(p)
		if !ok {
			continue
		}
		off := offsets.Of(p)
		entries = append(entries, Entry{
			Name:     p,
			Raw:      c,
			Adjusted: c.Add(off),
			Offset:   off,
			Next:     state.Status == StatusActive && !state.NextDay && state.Name == p,
		})
	}
	return entries
}

func targetKey(p TimePoint, at time.Time) string {
	return string(p) + "@" + at.Format("2006-01-02")
}
