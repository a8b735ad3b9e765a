// Package timer runs one-shot and daily callbacks from a single min-heap loop.
package timer

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrManagerStopped is returned when scheduling on a stopped manager
var ErrManagerStopped = errors.New("timer manager is stopped")

type task struct {
	id     string
	due    time.Time
	run    func()
	index  int
	daily  bool
	offset time.Duration
	loc    *time.Location
}

// taskHeap orders tasks by due time
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Manager fires scheduled callbacks on their own goroutines
type Manager struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*task
	wakeup  chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
	fired   uint64
	now     func() time.Time
}

// NewManager creates a stopped-until-Start manager
func NewManager() *Manager {
	return &Manager{
		tasks:  make(map[string]*task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Start launches the scheduling loop
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.run()
}

// Stop ends the loop. Pending tasks are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	close(m.stopCh)
	m.mu.Unlock()

	if started {
		<-m.done
	}
}

// Schedule runs fn once at due, replacing any task with the same id
func (m *Manager) Schedule(id string, due time.Time, fn func()) error {
	return m.push(&task{id: id, due: due, run: fn})
}

// ScheduleDaily runs fn every day at timeOfDay past midnight in loc,
// replacing any task with the same id
func (m *Manager) ScheduleDaily(id string, timeOfDay time.Duration, loc *time.Location, fn func()) error {
	if timeOfDay < 0 || timeOfDay >= 24*time.Hour {
		return fmt.Errorf("time of day %s out of range", timeOfDay)
	}
	if loc == nil {
		loc = time.Local
	}
	return m.push(&task{
		id:     id,
		due:    NextDaily(m.now(), timeOfDay, loc),
		run:    fn,
		daily:  true,
		offset: timeOfDay,
		loc:    loc,
	})
}

func (m *Manager) push(t *task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}

	if existing, ok := m.tasks[t.id]; ok {
		heap.Remove(&m.heap, existing.index)
	}
	heap.Push(&m.heap, t)
	m.tasks[t.id] = t

	if m.heap[0] == t {
		select {
		case m.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a scheduled task
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return false
	}
	heap.Remove(&m.heap, t.index)
	delete(m.tasks, id)
	return true
}

// Next returns when the task with id is due
func (m *Manager) Next(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return t.due, true
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}

		wait := 24 * time.Hour
		if m.heap.Len() > 0 {
			next := m.heap[0]
			wait = next.due.Sub(m.now())
			if wait <= 0 {
				heap.Pop(&m.heap)
				if next.daily {
					next.due = NextDaily(next.due.Add(time.Second), next.offset, next.loc)
					heap.Push(&m.heap, next)
				} else {
					delete(m.tasks, next.id)
				}
				m.fired++
				go next.run()
				m.mu.Unlock()
				continue
			}
		}
		m.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-m.wakeup:
			timer.Stop()
		case <-m.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stats is a point-in-time view of the manager
type Stats struct {
	Scheduled int
	Fired     uint64
}

// Stats returns counts of pending and fired tasks
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{Scheduled: len(m.tasks), Fired: m.fired}
}

// NextDaily returns the first instant strictly after now that falls
// timeOfDay past midnight in loc
func NextDaily(now time.Time, timeOfDay time.Duration, loc *time.Location) time.Time {
	local := now.In(loc)
	y, mo, d := local.Date()
	h := int(timeOfDay / time.Hour)
	mi := int(timeOfDay % time.Hour / time.Minute)
	s := int(timeOfDay % time.Minute / time.Second)

	run := time.Date(y, mo, d, h, mi, s, 0, loc)
	if !run.After(now) {
		run = time.Date(y, mo, d+1, h, mi, s, 0, loc)
	}
	return run
}
