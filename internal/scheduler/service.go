// Package scheduler keeps the resident prayer schedule fresh, evaluates the
// countdown every tick and hands crossings to the alert dispatcher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smukkama/prayer-server/internal/alerting"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/telemetry"
	"github.com/smukkama/prayer-server/internal/timer"
)

// ErrNoSchedule is returned when no schedule could be obtained
var ErrNoSchedule = errors.New("no prayer schedule available")

// Source fetches the schedule of one date for a place
type Source interface {
	Fetch(ctx context.Context, place prayer.Place, date time.Time) (*prayer.DailySchedule, error)
}

// Settings persists the user preferences the scheduler depends on
type Settings interface {
	DefaultSound() string
	AlertSettings(ctx context.Context) prayer.AlertSettings
	SetAlert(ctx context.Context, p prayer.TimePoint, cfg prayer.AlertConfig) (prayer.AlertSettings, error)
	SoundEnabled(ctx context.Context) bool
	SetSoundEnabled(ctx context.Context, enabled bool) error
	LastPlace(ctx context.Context) prayer.Place
	SetPlace(ctx context.Context, place prayer.Place) error
}

// Dispatcher accepts fired alerts without blocking
type Dispatcher interface {
	Dispatch(f alerting.Fire) bool
}

// Options tunes the runtime
type Options struct {
	TickInterval     time.Duration
	FetchTimeout     time.Duration
	FireGrace        time.Duration
	SubscriberBuffer int

	// Now replaces the wall clock when set
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.FireGrace <= 0 {
		o.FireGrace = prayer.DefaultGrace
	}
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Snapshot is the resident schedule pair. It is replaced whole, never mutated.
type Snapshot struct {
	Today     *prayer.DailySchedule
	Tomorrow  *prayer.DailySchedule
	Place     prayer.Place
	FetchedAt time.Time
	Stale     bool
}

// Service is the countdown runtime
type Service struct {
	source     Source
	settings   Settings
	dispatcher Dispatcher
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time

	snap   atomic.Pointer[Snapshot]
	alerts atomic.Pointer[prayer.AlertSettings]
	place  atomic.Pointer[prayer.Place]
	state  atomic.Pointer[prayer.State]
	sound  atomic.Bool

	seq       atomic.Uint64
	refreshMu sync.Mutex

	// owned by the ticking goroutine
	detector       *prayer.Detector
	lastRolloverAt string
	lastPlace      prayer.Place

	baseCtx   context.Context
	refreshWg sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[int]chan prayer.State
	nextSub int
	closed  bool
}

// New creates the runtime. Call Load or Run before reading state.
func New(source Source, settings Settings, dispatcher Dispatcher, opts Options, logger zerolog.Logger) *Service {
	opts.defaults()
	s := &Service{
		source:     source,
		settings:   settings,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        opts.Now,
		detector:   prayer.NewDetector(opts.FireGrace),
		baseCtx:    context.Background(),
		subs:       make(map[int]chan prayer.State),
	}
	alerts := prayer.DefaultAlertSettings(settings.DefaultSound())
	s.alerts.Store(&alerts)
	s.place.Store(&prayer.Place{})
	return s
}

// Load reads persisted preferences into memory
func (s *Service) Load(ctx context.Context) {
	alerts := s.settings.AlertSettings(ctx)
	s.alerts.Store(&alerts)
	s.sound.Store(s.settings.SoundEnabled(ctx))
	place := s.settings.LastPlace(ctx)
	s.place.Store(&place)

	s.logger.Info().
		Str("place", place.Name).
		Bool("sound", s.sound.Load()).
		Msg("settings loaded")
}

// Run loads settings, starts a refresh and ticks until ctx is cancelled
func (s *Service) Run(ctx context.Context) error {
	s.baseCtx = ctx
	s.Load(ctx)
	s.RefreshAsync()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.tick(s.now())
	for {
		select {
		case <-ctx.Done():
			s.refreshWg.Wait()
			s.closeSubscribers()
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(s.now())
		}
	}
}

// ScheduleDailyRefresh registers a daily refresh at timeOfDay past local midnight
func (s *Service) ScheduleDailyRefresh(tm *timer.Manager, timeOfDay time.Duration) error {
	loc := time.Local
	if snap := s.snap.Load(); snap != nil && snap.Today != nil {
		loc = snap.Today.Location()
	}
	return tm.ScheduleDaily("schedule-refresh", timeOfDay, loc, s.RefreshAsync)
}

// tick evaluates one instant. It performs no I/O.
func (s *Service) tick(now time.Time) prayer.State {
	s.rollover(now)

	snap := s.snap.Load()
	in := prayer.Input{Now: now, Offsets: s.alerts.Load().Offsets()}
	if snap != nil {
		in.Today = snap.Today
		in.Tomorrow = snap.Tomorrow
		if snap.Place != s.lastPlace {
			// The previous observation belongs to another place's schedule
			s.lastPlace = snap.Place
			s.detector.Reset()
		}
	}

	state := prayer.Evaluate(in)
	s.state.Store(&state)

	if state.Status == prayer.StatusActive {
		telemetry.CountdownSeconds.Set(state.Remaining.Seconds())
	} else {
		telemetry.CountdownSeconds.Set(-1)
	}

	s.publish(state)

	if target, crossed := s.detector.Observe(state, now); crossed {
		s.fire(target, snap, now)
	}
	return state
}

// rollover promotes tomorrow's schedule at midnight and starts one refresh
// per new date
func (s *Service) rollover(now time.Time) {
	snap := s.snap.Load()
	if snap == nil || snap.Today == nil || snap.Today.IsDate(now) {
		return
	}

	if snap.Tomorrow != nil && snap.Tomorrow.IsDate(now) {
		promoted := &Snapshot{
			Today:     snap.Tomorrow,
			Place:     snap.Place,
			FetchedAt: snap.FetchedAt,
			Stale:     snap.Stale,
		}
		if s.snap.CompareAndSwap(snap, promoted) {
			s.logger.Info().Str("date", promoted.Today.DateKey()).Msg("promoted tomorrow's schedule")
		}
	}

	key := now.In(snap.Today.Location()).Format("2006-01-02")
	if s.lastRolloverAt != key {
		s.lastRolloverAt = key
		s.RefreshAsync()
	}
}

func (s *Service) fire(target prayer.Target, snap *Snapshot, now time.Time) {
	cfg := s.alerts.Load().Config(target.Name, s.settings.DefaultSound())
	log := s.logger.With().Str("prayer", string(target.Name)).Str("time", target.Time.String()).Logger()

	if !cfg.Enabled || !s.sound.Load() {
		log.Debug().Bool("enabled", cfg.Enabled).Bool("sound", s.sound.Load()).Msg("crossing without alert")
		return
	}
	if s.dispatcher == nil {
		return
	}

	var place, hijri string
	if snap != nil && snap.Today != nil {
		place = snap.Today.Place()
		hijri = snap.Today.Hijri().String()
	}

	if s.dispatcher.Dispatch(alerting.NewFire(target, cfg, place, hijri, now)) {
		log.Info().Msg("prayer alert fired")
	}
}

// Refresh fetches today's and tomorrow's schedules concurrently. The newest
// refresh wins; a failed refresh keeps the resident snapshot marked stale.
func (s *Service) Refresh(ctx context.Context) error {
	seq := s.seq.Add(1)
	place := *s.place.Load()

	loc := time.Local
	if snap := s.snap.Load(); snap != nil && snap.Today != nil {
		loc = snap.Today.Location()
	}
	today := s.now().In(loc)
	tomorrow := today.AddDate(0, 0, 1)

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	var todaySched, tomorrowSched *prayer.DailySchedule
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched, err := s.source.Fetch(gctx, place, today)
		if err != nil {
			return fmt.Errorf("failed to fetch today's schedule: %w", err)
		}
		todaySched = sched
		return nil
	})
	g.Go(func() error {
		sched, err := s.source.Fetch(gctx, place, tomorrow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("tomorrow's schedule unavailable")
			return nil
		}
		tomorrowSched = sched
		return nil
	})

	err := g.Wait()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if seq != s.seq.Load() {
		s.logger.Debug().Uint64("seq", seq).Msg("discarding superseded refresh")
		return nil
	}

	if err != nil || todaySched == nil {
		telemetry.ScheduleFetches.WithLabelValues("error").Inc()
		if snap := s.snap.Load(); snap != nil && !snap.Stale {
			stale := *snap
			stale.Stale = true
			s.snap.Store(&stale)
		}
		if err == nil {
			err = ErrNoSchedule
		}
		s.logger.Error().Err(err).Str("place", place.Name).Msg("schedule refresh failed")
		return err
	}

	telemetry.ScheduleFetches.WithLabelValues("ok").Inc()
	s.snap.Store(&Snapshot{
		Today:     todaySched,
		Tomorrow:  tomorrowSched,
		Place:     place,
		FetchedAt: s.now(),
	})
	s.logger.Info().
		Str("place", place.Name).
		Str("date", todaySched.DateKey()).
		Bool("tomorrow", tomorrowSched != nil).
		Msg("schedule refreshed")
	return nil
}

// RefreshAsync starts a refresh in the background
func (s *Service) RefreshAsync() {
	s.refreshWg.Add(1)
	go func() {
		defer s.refreshWg.Done()
		_ = s.Refresh(s.baseCtx)
	}()
}

// SetLocation persists the place and refreshes the schedule for it
func (s *Service) SetLocation(ctx context.Context, place prayer.Place) error {
	if err := s.settings.SetPlace(ctx, place); err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	s.place.Store(&place)
	return s.Refresh(ctx)
}

// UpdateAlert persists one prayer's alert configuration
func (s *Service) UpdateAlert(ctx context.Context, p prayer.TimePoint, cfg prayer.AlertConfig) (prayer.AlertSettings, error) {
	updated, err := s.settings.SetAlert(ctx, p, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to save alert settings: %w", err)
	}
	snapshot := updated.Clone()
	s.alerts.Store(&snapshot)
	return updated.Clone(), nil
}

// SetSoundEnabled persists the global sound toggle
func (s *Service) SetSoundEnabled(ctx context.Context, enabled bool) error {
	if err := s.settings.SetSoundEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to save sound setting: %w", err)
	}
	s.sound.Store(enabled)
	return nil
}

// SoundEnabled reports the global sound toggle
func (s *Service) SoundEnabled() bool {
	return s.sound.Load()
}

// Alerts returns a copy of the alert settings in effect
func (s *Service) Alerts() prayer.AlertSettings {
	return s.alerts.Load().Clone()
}

// Place returns the place schedules are fetched for
func (s *Service) Place() prayer.Place {
	return *s.place.Load()
}

// Snapshot returns the resident schedule pair, or nil before the first refresh
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// State returns the most recent countdown, evaluating now if no tick ran yet
func (s *Service) State() prayer.State {
	if st := s.state.Load(); st != nil {
		return *st
	}
	return s.Evaluate(nil, s.now())
}

// Evaluate computes the countdown for a schedule at now. A nil schedule
// evaluates the resident pair.
func (s *Service) Evaluate(sched *prayer.DailySchedule, now time.Time) prayer.State {
	in := prayer.Input{Today: sched, Now: now, Offsets: s.alerts.Load().Offsets()}
	snap := s.snap.Load()
	if snap == nil {
		return prayer.Evaluate(in)
	}

	switch {
	case sched == nil:
		in.Today = snap.Today
		in.Tomorrow = snap.Tomorrow
	case snap.Today != nil && snap.Today.IsDate(sched.Date()):
		// The resident pair carries the real next-day Fajr
		in.Tomorrow = snap.Tomorrow
	}
	return prayer.Evaluate(in)
}

// Today returns the resident schedule with its adjusted timeline
func (s *Service) Today() (*prayer.DailySchedule, []prayer.Entry, prayer.State) {
	state := s.State()
	snap := s.snap.Load()
	if snap == nil || snap.Today == nil {
		return nil, nil, state
	}
	return snap.Today, prayer.Timeline(snap.Today, s.alerts.Load().Offsets(), state), state
}

// ScheduleFor returns the schedule of any date, from memory when resident
func (s *Service) ScheduleFor(ctx context.Context, date time.Time) (*prayer.DailySchedule, error) {
	if snap := s.snap.Load(); snap != nil {
		for _, sched := range []*prayer.DailySchedule{snap.Today, snap.Tomorrow} {
			if sched != nil && sched.IsDate(date) {
				return sched, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	sched, err := s.source.Fetch(ctx, *s.place.Load(), date)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, ErrNoSchedule
	}
	return sched, nil
}

// Subscribe returns a channel receiving every evaluated state. Slow
// subscribers miss ticks. The returned func unsubscribes.
func (s *Service) Subscribe() (<-chan prayer.State, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan prayer.State, s.opts.SubscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Service) publish(state prayer.State) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

func (s *Service) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
