package memory

import (
	"context"
	"sync"

	"training-progress-service/internal/domain"
)

// ProgressStore keeps learner progress in process memory. Progress is lost
// on restart; use it for tests and demos.
type ProgressStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{values: make(map[string]map[string][]byte)}
}

func (s *ProgressStore) Load(_ context.Context, learnerID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[learnerID][key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *ProgressStore) Save(_ context.Context, learnerID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.values[learnerID]
	if !ok {
		byKey = make(map[string][]byte)
		s.values[learnerID] = byKey
	}
	byKey[key] = append([]byte(nil), value...)
	return nil
}
