package prayer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimePoint names one of the six daily time-points
type TimePoint string

const (
	Fajr    TimePoint = "Fajr"
	Sunrise TimePoint = "Sunrise"
	Dhuhr   TimePoint = "Dhuhr"
	Asr     TimePoint = "Asr"
	Maghrib TimePoint = "Maghrib"
	Isha    TimePoint = "Isha"
)

// Obligatory lists the time-points considered by the countdown, in evaluation order.
// Sunrise is displayed but never counted down to.
var Obligatory = []TimePoint{Fajr, Dhuhr, Asr, Maghrib, Isha}

// IsObligatory reports whether p is one of the five prayers. Sunrise is not.
func (p TimePoint) IsObligatory() bool {
	for _, o := range Obligatory {
		if p == o {
			return true
		}
	}
	return false
}

// All lists every time-point of a day in chronological order
var All = []TimePoint{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// ParseTimePoint resolves a time-point name case-insensitively
func ParseTimePoint(s string) (TimePoint, error) {
	for _, p := range All {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown time-point: %q", s)
}

// Clock is a time of day with minute resolution
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM", ignoring trailing metadata such as "05:12 (EET)"
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		raw = raw[:i]
	}

	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid clock %q", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("clock out of range: %q", s)
	}

	return Clock{Hour: h, Minute: m}, nil
}

// Add shifts the clock by a signed number of minutes, wrapping around midnight
func (c Clock) Add(minutes int) Clock {
	total := ((c.Hour*60+c.Minute+minutes)%(24*60) + 24*60) % (24 * 60)
	return Clock{Hour: total / 60, Minute: total % 60}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HijriDate is the lunar calendar label attached to a schedule
type HijriDate struct {
	Day         int    `json:"day"`
	Month       int    `json:"month"`
	MonthEn     string `json:"month_en"`
	MonthAr     string `json:"month_ar"`
	Year        int    `json:"year"`
	WeekdayEn   string `json:"weekday_en"`
	WeekdayAr   string `json:"weekday_ar"`
	Designation string `json:"designation"`
}

func (h HijriDate) String() string {
	if h.Year == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s %d %s", h.Day, h.MonthEn, h.Year, h.Designation)
}

// DailySchedule holds the clock times of one calendar date at one location.
// It is immutable once built; a new schedule replaces it on date or location change.
type DailySchedule struct {
	date  time.Time
	loc   *time.Location
	times map[TimePoint]Clock
	hijri HijriDate
	place string
}

// NewDailySchedule builds a schedule for the calendar date of date, interpreted in loc.
// The times map is copied.
func NewDailySchedule(date time.Time, loc *time.Location, times map[TimePoint]Clock, hijri HijriDate, place string) *DailySchedule {
	if loc == nil {
		loc = time.Local
	}

	y, m, d := date.Date()
	copied := make(map[TimePoint]Clock, len(times))
	for p, c := range times {
		copied[p] = c
	}

	return &DailySchedule{
		date:  time.Date(y, m, d, 0, 0, 0, 0, loc),
		loc:   loc,
		times: copied,
		hijri: hijri,
		place: place,
	}
}

// Date returns midnight of the schedule's calendar date in its location
func (s *DailySchedule) Date() time.Time { return s.date }

// Location returns the time zone the clock times are expressed in
func (s *DailySchedule) Location() *time.Location { return s.loc }

// Hijri returns the Hijri label of the schedule's date
func (s *DailySchedule) Hijri() HijriDate { return s.hijri }

// Place returns the display name of the location the schedule was fetched for
func (s *DailySchedule) Place() string { return s.place }

// Time returns the raw clock time of a time-point
func (s *DailySchedule) Time(p TimePoint) (Clock, bool) {
	c, ok := s.times[p]
	return c, ok
}

// Times returns a copy of all clock times
func (s *DailySchedule) Times() map[TimePoint]Clock {
	out := make(map[TimePoint]Clock, len(s.times))
	for p, c := range s.times {
		out[p] = c
	}
	return out
}

// Instant anchors a time-point on the schedule's date with an offset in minutes.
// Offsets that cross midnight roll into the adjacent day.
func (s *DailySchedule) Instant(p TimePoint, offsetMinutes int) (time.Time, bool) {
	c, ok := s.times[p]
	if !ok {
		return time.Time{}, false
	}
	y, m, d := s.date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute+offsetMinutes, 0, 0, s.loc), true
}

// IsDate reports whether t falls on the schedule's calendar date in its location
func (s *DailySchedule) IsDate(t time.Time) bool {
	return sameDate(t.In(s.loc), s.date)
}

// DateKey returns the schedule's date as YYYY-MM-DD
func (s *DailySchedule) DateKey() string {
	return s.date.Format("2006-01-02")
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
