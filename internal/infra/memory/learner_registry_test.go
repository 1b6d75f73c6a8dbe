package memory

import (
	"errors"
	"sync"
	"testing"

	"training-progress-service/internal/app"
)

func TestLearnerRegistryLifecycle(t *testing.T) {
	registry := NewLearnerRegistry()
	builds := 0
	create := func() (*app.Learner, error) {
		builds++
		return app.NewLearner("u1", sampleCatalog().Index(), nil, app.LearnerOptions{}), nil
	}

	l, err := registry.Acquire("u1", create)
	if err != nil || l == nil {
		t.Fatalf("expected learner, got %v", err)
	}
	again, err := registry.Acquire("u1", create)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if again != l || builds != 1 {
		t.Fatalf("expected cached learner, builds=%d", builds)
	}

	registry.Release("u1")
	if _, ok := registry.Get("u1"); !ok {
		t.Fatalf("expected learner kept while another holder remains")
	}

	_, cancel := l.Subscribe()
	registry.Release("u1")
	if _, ok := registry.Get("u1"); !ok {
		t.Fatalf("expected learner kept while subscribed")
	}

	cancel()
	registry.Release("u1")
	if _, ok := registry.Get("u1"); ok {
		t.Fatalf("expected learner removed when idle")
	}
}

func TestLearnerRegistryConcurrentAcquireSharesInstance(t *testing.T) {
	registry := NewLearnerRegistry()
	create := func() (*app.Learner, error) {
		return app.NewLearner("u1", sampleCatalog().Index(), nil, app.LearnerOptions{}), nil
	}

	got := make([]*app.Learner, 8)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = registry.Acquire("u1", create)
		}(i)
	}
	wg.Wait()
	for i := range got {
		if got[i] != got[0] {
			t.Fatalf("expected one shared learner, got distinct instances")
		}
	}

	for i := 0; i < len(got)-1; i++ {
		registry.Release("u1")
	}
	if _, ok := registry.Get("u1"); !ok {
		t.Fatalf("expected learner kept until the last holder releases")
	}
	registry.Release("u1")
	if registry.Len() != 0 {
		t.Fatalf("expected learner evicted after last release")
	}
}

func TestLearnerRegistryCreateError(t *testing.T) {
	registry := NewLearnerRegistry()
	boom := errors.New("boom")
	if _, err := registry.Acquire("u1", func() (*app.Learner, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected create error, got %v", err)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected nothing stored")
	}
}
