package timer

import (
	"sync"
	"testing"
	"time"
)

func TestManager_Schedule(t *testing.T) {
	m := NewManager()
	m.Start()
	defer m.Stop()

	done := make(chan struct{})
	err := m.Schedule("test1", time.Now().Add(50*time.Millisecond), func() {
		close(done)
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Task was not executed")
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	m.Start()
	defer m.Stop()

	executed := false
	var mu sync.Mutex

	m.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if !m.Cancel("test1") {
		t.Error("Cancel returned false")
	}
	if m.Cancel("test1") {
		t.Error("Expected second cancel to return false")
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if executed {
		t.Error("Task was executed despite being cancelled")
	}
	mu.Unlock()
}

func TestManager_Ordering(t *testing.T) {
	m := NewManager()
	m.Start()
	defer m.Stop()

	var results []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(3)

	add := func(n int) func() {
		return func() {
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
			wg.Done()
		}
	}

	now := time.Now()
	m.Schedule("task3", now.Add(150*time.Millisecond), add(3))
	m.Schedule("task1", now.Add(30*time.Millisecond), add(1))
	m.Schedule("task2", now.Add(90*time.Millisecond), add(2))

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if results[0] != 1 || results[1] != 2 || results[2] != 3 {
		t.Errorf("Tasks executed in wrong order: %v", results)
	}
}

func TestManager_RescheduleReplaces(t *testing.T) {
	m := NewManager()
	m.Start()
	defer m.Stop()

	count := 0
	var mu sync.Mutex

	m.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	m.Schedule("test1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if count != 10 {
		t.Errorf("Expected count=10 (only second task), got %d", count)
	}
	mu.Unlock()
}

func TestManager_StatsAndStop(t *testing.T) {
	m := NewManager()
	m.Start()

	m.Schedule("a", time.Now().Add(time.Hour), func() {})
	m.Schedule("b", time.Now().Add(2*time.Hour), func() {})
	if err := m.ScheduleDaily("refresh", 5*time.Minute, time.UTC, func() {}); err != nil {
		t.Fatalf("ScheduleDaily failed: %v", err)
	}

	if got := m.Stats().Scheduled; got != 3 {
		t.Errorf("Expected 3 scheduled tasks, got %d", got)
	}

	due, ok := m.Next("refresh")
	if !ok || due.UTC().Hour() != 0 || due.UTC().Minute() != 5 {
		t.Errorf("Expected daily task at 00:05, got %v", due)
	}

	m.Stop()
	if err := m.Schedule("c", time.Now(), func() {}); err != ErrManagerStopped {
		t.Errorf("Expected ErrManagerStopped, got %v", err)
	}
}

func TestScheduleDaily_RejectsOutOfRange(t *testing.T) {
	m := NewManager()
	if err := m.ScheduleDaily("x", 25*time.Hour, time.UTC, func() {}); err == nil {
		t.Error("Expected error for time of day beyond 24h")
	}
}

func TestNextDaily(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	at := 5 * time.Minute

	before := time.Date(2026, time.March, 10, 0, 1, 0, 0, loc)
	if got := NextDaily(before, at, loc); !got.Equal(time.Date(2026, time.March, 10, 0, 5, 0, 0, loc)) {
		t.Errorf("Expected same day run, got %v", got)
	}

	after := time.Date(2026, time.March, 10, 9, 0, 0, 0, loc)
	if got := NextDaily(after, at, loc); !got.Equal(time.Date(2026, time.March, 11, 0, 5, 0, 0, loc)) {
		t.Errorf("Expected next day run, got %v", got)
	}

	exact := time.Date(2026, time.March, 10, 0, 5, 0, 0, loc)
	if got := NextDaily(exact, at, loc); !got.After(exact) {
		t.Errorf("Expected run strictly after now, got %v", got)
	}
}
