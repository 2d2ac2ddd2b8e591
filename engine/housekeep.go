package engine

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/coreweb/engine/internal/xlog"
)

// HousekeepFunc runs one cycle of periodic cleanup and returns the delay
// before it should run again (adapted from the teacher's cluster.lcHK
// memory-pressure-aware rescheduling: a shorter delay under pressure, a
// longer one when idle).
type HousekeepFunc func() time.Duration

type housekeepTask struct {
	name    string
	fn      HousekeepFunc
	initial time.Duration
	running atomic.Bool
	stop    chan struct{}
}

// Housekeeper is a shared registry of periodic background tasks — the
// cache's eviction sweep (httpcache §4.7.3) and the DNS prefetcher's scan
// cycle (dnscache §4.4) both register here instead of each owning an ad hoc
// timer, grounded on the teacher's cluster/lom_cache_hk.go single-registry
// pattern (there: "lom-cache.gc" registered with hk.Reg).
type Housekeeper struct {
	mu    sync.Mutex
	tasks map[string]*housekeepTask
	log   interface {
		Infow(string, ...interface{})
	}
}

// NewHousekeeper constructs an empty registry.
func NewHousekeeper() *Housekeeper {
	return &Housekeeper{
		tasks: make(map[string]*housekeepTask),
		log:   xlog.For("engine.housekeep"),
	}
}

// Register adds a named periodic task, first run after initial, rescheduled
// thereafter using fn's own returned delay. Registering the same name twice
// stops and replaces the prior task.
func (h *Housekeeper) Register(name string, fn HousekeepFunc, initial time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.tasks[name]; ok {
		close(old.stop)
	}
	t := &housekeepTask{name: name, fn: fn, initial: initial, stop: make(chan struct{})}
	h.tasks[name] = t
	h.log.Infow("housekeep task registered", "name", name, "initial", initial)
	go h.run(t)
}

func (h *Housekeeper) run(t *housekeepTask) {
	timer := time.NewTimer(t.initial)
	defer timer.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
			if !t.running.CAS(false, true) {
				timer.Reset(t.initial)
				continue
			}
			next := t.fn()
			t.running.Store(false)
			if next <= 0 {
				next = t.initial
			}
			timer.Reset(next)
		}
	}
}

// Unregister stops a named task, if present.
func (h *Housekeeper) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tasks[name]; ok {
		close(t.stop)
		delete(h.tasks, name)
	}
}

// Stop halts every registered task.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, t := range h.tasks {
		close(t.stop)
		delete(h.tasks, name)
	}
}
