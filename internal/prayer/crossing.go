package prayer

import "time"

// DefaultGrace bounds how late a skipped zero-crossing may still be reported
const DefaultGrace = 5 * time.Second

// Target is a time-point instant whose countdown reached zero
type Target struct {
	Name TimePoint
	Time Clock
	At   time.Time
}

// Key identifies the target by name and date
func (t Target) Key() string {
	return targetKey(t.Name, t.At)
}

// Detector turns consecutive states into one-shot crossing events.
// It is not safe for concurrent use; the ticker goroutine owns it.
type Detector struct {
	grace time.Duration
	last  State
	fired map[string]struct{}
}

const maxFiredKeys = 32

// NewDetector creates a detector with the given grace window
func NewDetector(grace time.Duration) *Detector {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Detector{grace: grace, fired: make(map[string]struct{})}
}

// Observe records the state evaluated at now and reports a target whose
// countdown crossed zero since the previous observation. Each (name, date)
// is reported at most once.
func (d *Detector) Observe(s State, now time.Time) (Target, bool) {
	prev := d.last
	d.last = s

	var candidate *Target
	switch {
	case s.Status == StatusActive && s.Remaining < time.Second:
		candidate = &Target{Name: s.Name, Time: s.Time, At: s.Target}

	case prev.Status == StatusActive && prev.Key() != s.Key() &&
		!prev.Target.After(now) && now.Sub(prev.Target) <= d.grace:
		// The tick that would have shown 00:00:00 was skipped.
		candidate = &Target{Name: prev.Name, Time: prev.Time, At: prev.Target}
	}

	if candidate == nil {
		return Target{}, false
	}

	key := candidate.Key()
	if _, done := d.fired[key]; done {
		return Target{}, false
	}
	if len(d.fired) >= maxFiredKeys {
		d.fired = make(map[string]struct{})
	}
	d.fired[key] = struct{}{}
	return *candidate, true
}

// Reset forgets the previous observation, keeping the fired keys
func (d *Detector) Reset() {
	d.last = State{}
}
