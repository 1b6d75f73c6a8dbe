package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"training-progress-service/internal/app"
)

// LearnerRegistry is a Redis-aware implementation of app.LearnerRegistry.
// Notes:
//   - It keeps a local in-memory map of learners so subscribers and timers
//     stay in-process.
//   - Redis marks learner liveness so other instances (and operators) can see
//     who is active; the marker expires after ttl.
//   - Progress itself is shared through the ProgressStore, and Refresh picks
//     up writes made by other instances.
type LearnerRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	learners map[string]*registryEntry
}

type registryEntry struct {
	learner *app.Learner
	holders int
}

func NewLearnerRegistry(client *redis.Client, ttl time.Duration) *LearnerRegistry {
	return &LearnerRegistry{
		client:   client,
		ttl:      ttl,
		learners: make(map[string]*registryEntry),
	}
}

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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(learnerID), "1", r.ttl).Err()
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
		_ = r.client.Del(context.Background(), r.key(learnerID)).Err()
	}
}

func (r *LearnerRegistry) key(learnerID string) string {
	return "learner:active:" + learnerID
}
