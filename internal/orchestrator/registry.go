package orchestrator

import (
	"sync"

	"timelens/internal/domain"
)

// Registry tracks the observable result of every run this process has
// dispatched. Updates obey the forward-only lifecycle; an attempt to move a
// terminal result is ignored.
type Registry struct {
	mu      sync.RWMutex
	results map[string]domain.GenerationResult
	owners  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		results: map[string]domain.GenerationResult{},
		owners:  map[string]string{},
	}
}

// Put records or advances the result for its run. The first write for a run
// always lands; later writes land only if the state transition is legal.
func (r *Registry) Put(userID string, result domain.GenerationResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.results[result.RunID]
	if ok && current.State != result.State && !current.State.CanTransition(result.State) {
		return false
	}
	r.results[result.RunID] = result
	r.owners[result.RunID] = userID
	return true
}

// Get returns the current result for a run.
func (r *Registry) Get(runID string) (domain.GenerationResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[runID]
	return result, ok
}

// Owner returns the user a run belongs to.
func (r *Registry) Owner(runID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[runID]
	return owner, ok
}
