package extension

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/taverna/pkg/log"
)

// Tracker records which extensions have finished loading.
//
// A flag goes true at most once. AllReady is trivially true when no ids
// are registered.
type Tracker struct {
	mu     sync.RWMutex
	ready  map[string]bool
	logger log.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Tracker{
		ready:  make(map[string]bool),
		logger: logger,
	}
}

// Register adds ids as not ready. Registering nothing is allowed but
// logged, since readiness is then trivially satisfied.
func (t *Tracker) Register(ids ...string) {
	if len(ids) == 0 {
		t.logger.Warn("no extensions registered for readiness tracking")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.ready[id]; !ok {
			t.ready[id] = false
		}
	}
}

// MarkReady flags id as ready.
func (t *Tracker) MarkReady(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ready, ok := t.ready[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExtension, id)
	}
	if ready {
		return nil
	}
	t.ready[id] = true
	t.logger.Debug("extension ready", log.String("extension", id))
	return nil
}

// AllReady reports whether every registered id is ready.
func (t *Tracker) AllReady() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ready := range t.ready {
		if !ready {
			return false
		}
	}
	return true
}

// Pending returns the ids not yet ready, sorted.
func (t *Tracker) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for id, ready := range t.ready {
		if !ready {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the readiness map.
func (t *Tracker) Snapshot() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]bool, len(t.ready))
	for id, ready := range t.ready {
		out[id] = ready
	}
	return out
}
