package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/alerting"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/settings"
)

var ast = time.FixedZone("AST", 3*3600)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeSource) Fetch(ctx context.Context, place prayer.Place, date time.Time) (*prayer.DailySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("upstream unavailable")
	}
	return makeSchedule(date.In(ast)), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDispatcher struct {
	mu    sync.Mutex
	fires []alerting.Fire
}

func (d *fakeDispatcher) Dispatch(f alerting.Fire) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fires = append(d.fires, f)
	return true
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fires)
}

func makeSchedule(date time.Time) *prayer.DailySchedule {
	return prayer.NewDailySchedule(date, ast, map[prayer.TimePoint]prayer.Clock{
		prayer.Fajr:    {Hour: 5, Minute: 0},
		prayer.Sunrise: {Hour: 6, Minute: 20},
		prayer.Dhuhr:   {Hour: 12, Minute: 10},
		prayer.Asr:     {Hour: 15, Minute: 30},
		prayer.Maghrib: {Hour: 18, Minute: 5},
		prayer.Isha:    {Hour: 19, Minute: 35},
	}, prayer.HijriDate{Day: 21, Month: 9, MonthEn: "Ramadan", Year: 1447, Designation: "AH"}, "Makkah")
}

func at(day, hour, min, sec, nsec int) time.Time {
	return time.Date(2026, time.March, day, hour, min, sec, nsec, ast)
}

func newTestService(src *fakeSource, disp *fakeDispatcher, now time.Time) (*Service, *settings.Repository) {
	repo := settings.NewRepository(settings.NewMemoryStore(), "adhan.mp3", "Makkah", zerolog.Nop())
	s := New(src, repo, disp, Options{}, zerolog.Nop())
	s.now = func() time.Time { return now }
	s.Load(context.Background())
	return s, repo
}

func TestService_RefreshThenTick(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestService(src, &fakeDispatcher{}, at(10, 14, 0, 0, 0))

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("Expected today and tomorrow fetched, got %d calls", src.callCount())
	}

	state := s.tick(at(10, 14, 0, 0, 0))
	if state.Status != prayer.StatusActive || state.Name != prayer.Asr {
		t.Fatalf("Expected Asr active, got %+v", state)
	}
	if state.RemainingString() != "01:30:00" {
		t.Errorf("Expected 01:30:00, got %s", state.RemainingString())
	}
	if s.State().Name != prayer.Asr {
		t.Error("Expected State to return the last tick")
	}
}

func TestService_PlaceholderWithoutSchedule(t *testing.T) {
	src := &fakeSource{fail: true}
	s, _ := newTestService(src, &fakeDispatcher{}, at(10, 14, 0, 0, 0))

	if err := s.Refresh(context.Background()); err == nil {
		t.Error("Expected refresh error")
	}

	state := s.tick(at(10, 14, 0, 0, 0))
	if state.Status != prayer.StatusPlaceholder || state.RemainingString() != prayer.PlaceholderRemaining {
		t.Errorf("Expected placeholder, got %+v", state)
	}
}

func TestService_FailedRefreshKeepsStaleSnapshot(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestService(src, &fakeDispatcher{}, at(10, 14, 0, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	src.fail = true
	if err := s.Refresh(ctx); err == nil {
		t.Error("Expected refresh error")
	}

	snap := s.Snapshot()
	if snap == nil || snap.Today == nil || !snap.Stale {
		t.Fatalf("Expected resident stale snapshot, got %+v", snap)
	}
	if state := s.tick(at(10, 14, 0, 0, 0)); state.Name != prayer.Asr {
		t.Errorf("Expected countdown from stale schedule, got %+v", state)
	}
}

func TestService_FiresOnceWhenEnabled(t *testing.T) {
	src := &fakeSource{}
	disp := &fakeDispatcher{}
	s, _ := newTestService(src, disp, at(10, 15, 29, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if err := s.SetSoundEnabled(ctx, true); err != nil {
		t.Fatalf("SetSoundEnabled failed: %v", err)
	}

	s.tick(at(10, 15, 29, 58, 500_000_000))
	s.tick(at(10, 15, 29, 59, 500_000_000))
	s.tick(at(10, 15, 30, 0, 500_000_000))
	s.tick(at(10, 15, 30, 1, 500_000_000))

	if disp.count() != 1 {
		t.Fatalf("Expected exactly one fire, got %d", disp.count())
	}

	f := disp.fires[0]
	if f.Name != prayer.Asr || f.Time.String() != "15:30" || f.Sound != "adhan.mp3" || f.Place != "Makkah" {
		t.Errorf("Unexpected fire %+v", f)
	}
}

func TestService_NoFireWhenSoundOffOrDisabled(t *testing.T) {
	src := &fakeSource{}
	disp := &fakeDispatcher{}
	s, _ := newTestService(src, disp, at(10, 12, 0, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// global toggle off by default
	s.tick(at(10, 12, 9, 59, 500_000_000))
	if disp.count() != 0 {
		t.Errorf("Expected no fire with sound off, got %d", disp.count())
	}

	s.SetSoundEnabled(ctx, true)
	if _, err := s.UpdateAlert(ctx, prayer.Asr, prayer.AlertConfig{Enabled: false}); err != nil {
		t.Fatalf("UpdateAlert failed: %v", err)
	}
	s.tick(at(10, 15, 29, 59, 500_000_000))
	if disp.count() != 0 {
		t.Errorf("Expected no fire for disabled Asr, got %d", disp.count())
	}
}

func TestService_UpdateAlertAppliesOffsetOnNextTick(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestService(src, &fakeDispatcher{}, at(10, 12, 0, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := s.UpdateAlert(ctx, prayer.Dhuhr, prayer.AlertConfig{Offset: 10, Enabled: true}); err != nil {
		t.Fatalf("UpdateAlert failed: %v", err)
	}

	state := s.tick(at(10, 12, 15, 0, 0))
	if state.Name != prayer.Dhuhr || state.Time.String() != "12:20" {
		t.Errorf("Expected Dhuhr at 12:20, got %s %s", state.Name, state.Time)
	}
	if got := s.Alerts()[prayer.Dhuhr].Sound; got != "adhan.mp3" {
		t.Errorf("Expected default sound filled in, got %q", got)
	}
}

func TestService_MidnightPromotesTomorrow(t *testing.T) {
	src := &fakeSource{}
	now := at(11, 0, 30, 0, 0)
	s, _ := newTestService(src, &fakeDispatcher{}, now)

	s.snap.Store(&Snapshot{
		Today:    makeSchedule(at(10, 0, 0, 0, 0)),
		Tomorrow: makeSchedule(at(11, 0, 0, 0, 0)),
	})

	state := s.tick(now)
	if state.Status != prayer.StatusActive || state.Name != prayer.Fajr || state.NextDay {
		t.Errorf("Expected same-day Fajr after promotion, got %+v", state)
	}
	if got := s.Snapshot().Today.DateKey(); got != "2026-03-11" {
		t.Errorf("Expected promoted date 2026-03-11, got %s", got)
	}

	s.refreshWg.Wait()
	if src.callCount() != 2 {
		t.Errorf("Expected a background refresh after midnight, got %d fetches", src.callCount())
	}

	s.tick(now.Add(time.Second))
	s.refreshWg.Wait()
	if src.callCount() != 2 {
		t.Errorf("Expected one refresh per date, got %d fetches", src.callCount())
	}
}

func TestService_ScheduleForUsesResident(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestService(src, &fakeDispatcher{}, at(10, 9, 0, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	calls := src.callCount()

	if _, err := s.ScheduleFor(ctx, at(11, 12, 0, 0, 0)); err != nil {
		t.Fatalf("ScheduleFor failed: %v", err)
	}
	if src.callCount() != calls {
		t.Error("Expected resident tomorrow without fetching")
	}

	other, err := s.ScheduleFor(ctx, at(20, 12, 0, 0, 0))
	if err != nil {
		t.Fatalf("ScheduleFor failed: %v", err)
	}
	if src.callCount() != calls+1 {
		t.Error("Expected a fetch for a non-resident date")
	}
	if st := s.Evaluate(other, at(10, 9, 0, 0, 0)); st.Status != prayer.StatusNotApplicable {
		t.Errorf("Expected not applicable for another date, got %s", st.Status)
	}
}

func TestService_SetLocationPersistsAndRefreshes(t *testing.T) {
	src := &fakeSource{}
	s, repo := newTestService(src, &fakeDispatcher{}, at(10, 9, 0, 0, 0))
	ctx := context.Background()

	place := prayer.CoordsPlace("Cairo", 30.04, 31.24)
	if err := s.SetLocation(ctx, place); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}

	if got := repo.LastPlace(ctx); got.Name != "Cairo" || !got.HasCoords {
		t.Errorf("Expected persisted place, got %+v", got)
	}
	if s.Snapshot() == nil || s.Snapshot().Place.Name != "Cairo" {
		t.Error("Expected snapshot fetched for the new place")
	}
}

func TestService_LocationChangeDoesNotFireOldCountdown(t *testing.T) {
	src := &fakeSource{}
	disp := &fakeDispatcher{}
	s, _ := newTestService(src, disp, at(10, 15, 29, 0, 0))
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	s.SetSoundEnabled(ctx, true)

	// Asr two seconds away, then the place changes before the zero tick
	s.tick(at(10, 15, 29, 58, 0))
	if err := s.SetLocation(ctx, prayer.CityPlace("Cairo")); err != nil {
		t.Fatalf("SetLocation failed: %v", err)
	}
	s.tick(at(10, 15, 30, 2, 0))

	if disp.count() != 0 {
		t.Errorf("Expected no fire carried over from the previous place, got %d", disp.count())
	}

	// Same place, skipped zero tick within grace still fires
	s.tick(at(10, 18, 4, 58, 0))
	s.tick(at(10, 18, 5, 2, 0))
	if disp.count() != 1 {
		t.Errorf("Expected Maghrib to fire once, got %d", disp.count())
	}
}

func TestService_SubscribeReceivesTicks(t *testing.T) {
	s, _ := newTestService(&fakeSource{}, &fakeDispatcher{}, at(10, 9, 0, 0, 0))

	ch, unsubscribe := s.Subscribe()
	s.tick(at(10, 9, 0, 0, 0))

	select {
	case st := <-ch:
		if st.Status != prayer.StatusPlaceholder {
			t.Errorf("Expected placeholder before refresh, got %s", st.Status)
		}
	default:
		t.Fatal("Expected a published state")
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after unsubscribe")
	}
	unsubscribe()
}

func TestService_RunStopsOnCancel(t *testing.T) {
	s, _ := newTestService(&fakeSource{}, &fakeDispatcher{}, at(10, 9, 0, 0, 0))
	s.opts.TickInterval = 10 * time.Millisecond

	ch, _ := s.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	for range ch {
	}
}
