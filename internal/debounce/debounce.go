// Package debounce schedules keyed, cancellable delayed calls. Scheduling a key
// that already has a pending call replaces it, so only the last call made
// within the delay window runs.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the debounce window used for inline edits.
const DefaultDelay = 500 * time.Millisecond

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler runs at most one pending call per key.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*pending
	gen     uint64
	wg      sync.WaitGroup
	stopped bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{pending: make(map[string]*pending)}
}

// Schedule runs fn after delay unless another Schedule or Cancel for the same
// key happens first. It reports false once the scheduler is stopped.
func (s *Scheduler) Schedule(key string, fn func(), delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	s.cancelLocked(key)
	s.gen++
	gen := s.gen
	p := &pending{gen: gen}
	s.wg.Add(1)
	p.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if !s.claim(key, gen) {
			return
		}
		fn()
	})
	s.pending[key] = p
	return true
}

// claim removes key's pending entry if it still belongs to gen. A timer that
// fired just as it was replaced loses here.
func (s *Scheduler) claim(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok || p.gen != gen {
		return false
	}
	delete(s.pending, key)
	return true
}

// Cancel drops the pending call for key and reports whether there was one.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) bool {
	p, ok := s.pending[key]
	if !ok {
		return false
	}
	delete(s.pending, key)
	if p.timer.Stop() {
		s.wg.Done()
	}
	return true
}

// Pending reports whether key has a call waiting to run.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Flush runs the pending call for key immediately, if any.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok || !p.timer.Stop() {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	// Reset to zero so the timer's own func runs and does the bookkeeping.
	p.timer.Reset(0)
	return true
}

// Stop cancels every pending call and waits for calls already running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key := range s.pending {
		s.cancelLocked(key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
