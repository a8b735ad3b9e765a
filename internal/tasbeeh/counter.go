// Package tasbeeh implements the remembrance tally counter, the adkar
// checklist progress and the recording of daily counts.
package tasbeeh

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CustomID identifies the user-defined dhikr
const CustomID = 5

// DefaultCustomTarget is the target of a custom dhikr when none is given
const DefaultCustomTarget = 33

// Dhikr is a phrase with the number of repetitions that completes a session
type Dhikr struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Target int    `json:"target"`
	Reward string `json:"reward"`
}

// Catalog lists the built-in phrases
var Catalog = []Dhikr{
	{ID: 1, Text: "سُبْحَانَ اللَّهِ", Target: 33},
	{ID: 2, Text: "الْحَمْدُ لِلَّهِ", Target: 33},
	{ID: 3, Text: "اللَّهُ أَكْبَرُ", Target: 34},
	{ID: 4, Text: "لَا إِلَٰهَ إِلَّا اللَّهُ", Target: 100},
}

// Lookup finds a built-in phrase by id
func Lookup(id int) (Dhikr, bool) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Dhikr{}, false
}

// Custom builds the user-defined phrase
func Custom(text string, target int) Dhikr {
	if target <= 0 {
		target = DefaultCustomTarget
	}
	return Dhikr{ID: CustomID, Text: strings.TrimSpace(text), Target: target}
}

// Resolve returns the phrase for id, building a custom one for CustomID
func Resolve(id int, customText string, customTarget int) (Dhikr, error) {
	if id == CustomID {
		return Custom(customText, customTarget), nil
	}
	d, ok := Lookup(id)
	if !ok {
		return Dhikr{}, fmt.Errorf("unknown dhikr id %d", id)
	}
	return d, nil
}

// Counter is the tally of the current session
type Counter struct {
	Dhikr Dhikr `json:"dhikr"`
	Count int   `json:"count"`
}

// TapResult is the counter state after a tap
type TapResult struct {
	Count     int   `json:"count"`
	Target    int   `json:"target"`
	Completed bool  `json:"completed"`
	Dhikr     Dhikr `json:"dhikr"`
}

// Tap increments the counter. Reaching the target completes the session and
// resets the count to zero.
func (c *Counter) Tap() TapResult {
	next := c.Count + 1
	if next >= c.Dhikr.Target {
		c.Count = 0
		return TapResult{Count: 0, Target: c.Dhikr.Target, Completed: true, Dhikr: c.Dhikr}
	}
	c.Count = next
	return TapResult{Count: next, Target: c.Dhikr.Target, Dhikr: c.Dhikr}
}

// Recorder persists counts toward a user's daily total
type Recorder interface {
	RecordCount(ctx context.Context, username string, day time.Time, n int) error
}

// Service keeps one counter per user and records every tap
type Service struct {
	mu       sync.Mutex
	counters map[string]*Counter
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a tasbeeh service
func NewService(recorder Recorder, logger zerolog.Logger) *Service {
	return &Service{
		counters: make(map[string]*Counter),
		recorder: recorder,
		now:      time.Now,
		logger:   logger.With().Str("component", "tasbeeh").Logger(),
	}
}

func (s *Service) counter(username string) *Counter {
	c, ok := s.counters[username]
	if !ok {
		c = &Counter{Dhikr: Catalog[0]}
		s.counters[username] = c
	}
	return c
}

// Current returns the user's counter state
func (s *Service) Current(username string) Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.counter(username)
}

// Select switches the user's phrase and starts a new session
func (s *Service) Select(username string, d Dhikr) Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counter(username)
	c.Dhikr = d
	c.Count = 0
	return *c
}

// Reset zeroes the user's session
func (s *Service) Reset(username string) Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counter(username)
	c.Count = 0
	return *c
}

// Tap counts one repetition for the user
func (s *Service) Tap(ctx context.Context, username string) TapResult {
	s.mu.Lock()
	result := s.counter(username).Tap()
	s.mu.Unlock()

	s.Record(ctx, username, 1)
	return result
}

// Record adds n repetitions to the user's daily total. Failures are logged.
func (s *Service) Record(ctx context.Context, username string, n int) {
	if s.recorder == nil || username == "" || n <= 0 {
		return
	}
	if err := s.recorder.RecordCount(ctx, username, s.now(), n); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to record count")
	}
}
