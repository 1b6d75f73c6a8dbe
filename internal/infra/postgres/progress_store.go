package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"training-progress-service/internal/domain"
)

// ProgressEntry is one persisted progress key of a learner.
type ProgressEntry struct {
	bun.BaseModel `bun:"table:progress_entries,alias:pe"`

	LearnerID string    `bun:"learner_id,pk"`
	Key       string    `bun:"progress_key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// ProgressStore keeps learner progress in Postgres through bun.
type ProgressStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db, now: time.Now}
}

func (s *ProgressStore) Load(ctx context.Context, learnerID, key string) ([]byte, error) {
	var entry ProgressEntry
	err := s.db.NewSelect().
		Model(&entry).
		Where("pe.learner_id = ?", learnerID).
		Where("pe.progress_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select progress %s: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (s *ProgressStore) Save(ctx context.Context, learnerID, key string, value []byte) error {
	entry := &ProgressEntry{
		LearnerID: learnerID,
		Key:       key,
		Value:     string(value),
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (learner_id, progress_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert progress %s: %w", key, err)
	}
	return nil
}
