package app

import (
	"context"

	"training-progress-service/internal/domain"
)

// Persisted progress keys, one value per learner and key.
const (
	KeyCompletedTasks     = "completedTasks"
	KeyEarnedBadges       = "earnedBadges"
	KeyEarnedCertificates = "earnedCertificates"
	KeyClaimedRewards     = "claimedRewards"
	KeySpentPoints        = "spentPoints"
	KeyQuizAnswers        = "quizAnswers"
)

var persistedKeys = []string{
	KeyCompletedTasks,
	KeyEarnedBadges,
	KeyEarnedCertificates,
	KeyClaimedRewards,
	KeySpentPoints,
	KeyQuizAnswers,
}

// ProgressStore abstracts where learner progress is kept (in-memory, Redis,
// Postgres, SQLite). Load returns domain.ErrKeyNotFound for absent keys.
type ProgressStore interface {
	Load(ctx context.Context, learnerID, key string) ([]byte, error)
	Save(ctx context.Context, learnerID, key string, value []byte) error
}

// CatalogRepository loads authored content (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) (*domain.Catalog, error)
}

// LearnerRegistry keeps the learners that are currently active in this
// process. There is at most one *Learner per id while anyone holds it.
type LearnerRegistry interface {
	// Acquire returns the registered learner, building it with create on
	// first use, and counts one more holder.
	Acquire(learnerID string, create func() (*Learner, error)) (*Learner, error)
	Get(learnerID string) (*Learner, bool)
	// Release drops one holder. The learner is evicted once nobody holds it
	// and it has no subscribers or open activation.
	Release(learnerID string)
}
