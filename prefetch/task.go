package prefetch

import "time"

// Purpose tags a cache lookup as prefetch-originated so the pool can
// treat it as low-priority but reusable (spec.md §4.6 "Contract with
// cache/pool").
type Purpose string

const PurposePrefetch Purpose = "prefetch"

// PrefetchTask is one scheduled prefetch, re-entering the pipeline
// through the cache as a fresh lookup carrying Purpose: prefetch
// (spec.md §3 "Prefetch task").
type PrefetchTask struct {
	URL           string
	Type          ResourceType
	Priority      PriorityBand
	Purpose       Purpose
	ScheduledTime time.Time
	TTLExpiration time.Time
	Attempts      int
	LastAttempt   time.Time
}

// Due reports whether the task is ready to run: its scheduled time has
// passed and it has not expired.
func (t *PrefetchTask) Due(now time.Time) bool {
	if now.Before(t.ScheduledTime) {
		return false
	}
	if !t.TTLExpiration.IsZero() && now.After(t.TTLExpiration) {
		return false
	}
	return true
}

// RecordAttempt marks one fetch attempt at now.
func (t *PrefetchTask) RecordAttempt(now time.Time) {
	t.Attempts++
	t.LastAttempt = now
}
