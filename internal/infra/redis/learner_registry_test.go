package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
)

func TestLearnerRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	registry := NewLearnerRegistry(newClient(mr), time.Minute)
	create := func() (*app.Learner, error) {
		return app.NewLearner("u1", sampleCatalog().Index(), nil, app.LearnerOptions{}), nil
	}
	for i := 0; i < 2; i++ {
		if _, err := registry.Acquire("u1", create); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}
	if !mr.Exists("learner:active:u1") {
		t.Fatalf("expected redis key to be set")
	}

	registry.Release("u1")
	if !mr.Exists("learner:active:u1") {
		t.Fatalf("expected redis key kept while a holder remains")
	}
	registry.Release("u1")
	if mr.Exists("learner:active:u1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func sampleCatalog() *domain.Catalog {
	return &domain.Catalog{
		ID:      "onboarding",
		Tasks:   []domain.Task{{ID: "t1", ModuleID: "m1", Type: domain.TaskRegular}},
		Modules: []domain.Module{{ID: "m1", BadgeID: "b1", TaskIDs: []string{"t1"}}},
		Badges:  []domain.Badge{{ID: "b1", Points: 100}},
	}
}
