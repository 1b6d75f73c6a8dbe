package memory

import (
	"sync"

	"training-progress-service/internal/app"
)

type registryEntry struct {
	learner *app.Learner
	holders int
}

// LearnerRegistry is an in-memory implementation of app.LearnerRegistry.
type LearnerRegistry struct {
	mu       sync.RWMutex
	learners map[string]*registryEntry
}

func NewLearnerRegistry() *LearnerRegistry {
	return &LearnerRegistry{
		learners: make(map[string]*registryEntry),
	}
}

// Acquire builds the learner outside the lock; when two callers race, the
// first one stored wins and the other build is discarded.
func (r *LearnerRegistry) Acquire(learnerID string, create func() (*app.Learner, error)) (*app.Learner, error) {
	if l, ok := r.hold(learnerID); ok {
		return l, nil
	}
	l, err := create()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.learners[learnerID]; ok {
		e.holders++
		return e.learner, nil
	}
	r.learners[learnerID] = &registryEntry{learner: l, holders: 1}
	return l, nil
}

func (r *LearnerRegistry) hold(learnerID string) (*app.Learner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.learners[learnerID]
	if !ok {
		return nil, false
	}
	e.holders++
	return e.learner, true
}

func (r *LearnerRegistry) Get(learnerID string) (*app.Learner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.learners[learnerID]
	if !ok {
		return nil, false
	}
	return e.learner, true
}

func (r *LearnerRegistry) Release(learnerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.learners[learnerID]
	if !ok {
		return
	}
	if e.holders > 0 {
		e.holders--
	}
	if e.holders == 0 && e.learner.IsIdle() {
		delete(r.learners, learnerID)
	}
}

// Len reports how many learners are held.
func (r *LearnerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.learners)
}
