package app

import (
	"context"

	"training-progress-service/internal/domain"
)

// ProgressService contains the progression use cases for one catalog.
type ProgressService struct {
	learners  LearnerRegistry
	catalogs  CatalogRepository
	store     ProgressStore
	catalogID string
	opts      LearnerOptions
}

func NewProgressService(learners LearnerRegistry, catalogs CatalogRepository, store ProgressStore, catalogID string, opts LearnerOptions) *ProgressService {
	return &ProgressService{
		learners:  learners,
		catalogs:  catalogs,
		store:     store,
		catalogID: catalogID,
		opts:      opts,
	}
}

// CatalogID names the catalog learners progress through.
func (s *ProgressService) CatalogID() string {
	return s.catalogID
}

// Join returns the active learner, loading it from the store on first use.
// Every successful Join must be paired with a Leave.
func (s *ProgressService) Join(ctx context.Context, learnerID string) (*Learner, error) {
	return s.learners.Acquire(learnerID, func() (*Learner, error) {
		// Learners cannot join an unknown catalog.
		catalog, err := s.catalogs.GetCatalog(ctx, s.catalogID)
		if err != nil {
			return nil, err
		}
		l := NewLearner(learnerID, catalog, s.store, s.opts)
		l.Load(ctx)
		return l, nil
	})
}

// Learner returns an already joined learner.
func (s *ProgressService) Learner(learnerID string) (*Learner, error) {
	l, ok := s.learners.Get(learnerID)
	if !ok {
		return nil, domain.ErrLearnerNotFound
	}
	return l, nil
}

// Subscribe returns a channel that receives progression events for a learner.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ProgressService) Subscribe(_ context.Context, learnerID string) (<-chan domain.Event, func(), error) {
	l, err := s.Learner(learnerID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := l.Subscribe()
	return ch, cancel, nil
}

// Leave ends one Join. The learner is dropped from memory once no caller
// holds it and nothing watches it.
func (s *ProgressService) Leave(_ context.Context, learnerID string) {
	s.learners.Release(learnerID)
}

// Overview returns every derived status, holding the learner for the call.
func (s *ProgressService) Overview(ctx context.Context, learnerID string) (domain.Overview, error) {
	l, err := s.Join(ctx, learnerID)
	if err != nil {
		return domain.Overview{}, err
	}
	defer s.Leave(ctx, learnerID)
	return l.Overview(), nil
}

// Ledger returns the point balance, holding the learner for the call.
func (s *ProgressService) Ledger(ctx context.Context, learnerID string) (domain.Ledger, error) {
	l, err := s.Join(ctx, learnerID)
	if err != nil {
		return domain.Ledger{}, err
	}
	defer s.Leave(ctx, learnerID)
	return l.Ledger(), nil
}

// ClaimReward claims a reward, holding the learner for the call.
func (s *ProgressService) ClaimReward(ctx context.Context, learnerID, rewardID string) (domain.RewardStatus, error) {
	l, err := s.Join(ctx, learnerID)
	if err != nil {
		return domain.RewardStatus{}, err
	}
	defer s.Leave(ctx, learnerID)
	return l.ClaimReward(ctx, rewardID)
}
