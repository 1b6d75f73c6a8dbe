package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if !at.After(c.now) {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: at, ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}

func testCatalog() *domain.Catalog {
	return (&domain.Catalog{
		ID: "onboarding",
		Tasks: []domain.Task{
			{ID: "t-read", ModuleID: "m1", Type: domain.TaskReading, Reading: &domain.ReadingConfig{Seconds: 5}},
			{ID: "t-quiz", ModuleID: "m1", Type: domain.TaskQuiz, Quiz: &domain.QuizConfig{Questions: []domain.Question{
				{Prompt: "What is 2 + 2?", Options: []domain.Option{{Text: "3"}, {Text: "4", Correct: true}}},
				{Prompt: "Capital of France?", Options: []domain.Option{{Text: "Paris", Correct: true}, {Text: "Rome"}}},
			}}},
			{ID: "t-intro", ModuleID: "m2", Type: domain.TaskRegular},
			{ID: "t-app", ModuleID: "m2", Type: domain.TaskApplication, Application: &domain.ApplicationConfig{URL: "https://example.com/apply"}},
			{ID: "t-video", ModuleID: "m3", Type: domain.TaskVideo, Video: &domain.VideoConfig{URL: "https://example.com/intro.mp4"}},
			{ID: "t-ref", ModuleID: "m3", Type: domain.TaskReferral, Referral: &domain.ReferralConfig{Fields: []domain.FormField{
				{Name: "name", Rules: "required"},
				{Name: "email", Rules: "required,email"},
			}}},
		},
		Modules: []domain.Module{
			{ID: "m1", BadgeID: "b1", TaskIDs: []string{"t-read", "t-quiz"}},
			{ID: "m2", BadgeID: "b1", TaskIDs: []string{"t-intro", "t-app"}},
			{ID: "m3", BadgeID: "b2", TaskIDs: []string{"t-video", "t-ref"}},
		},
		Badges: []domain.Badge{
			{ID: "b1", Points: 500},
			{ID: "b2", Points: 200},
		},
		Certificates: []domain.Certificate{
			{ID: "c1", RequiredBadgeIDs: []string{"b1", "b2"}},
		},
		Rewards: []domain.Reward{
			{ID: "r-swag", Kind: domain.RewardBadge, RequiredBadgeID: "b1"},
			{ID: "r-300a", Kind: domain.RewardPoint, PointCost: 300},
			{ID: "r-300b", Kind: domain.RewardPoint, PointCost: 300},
			{ID: "r-big", Kind: domain.RewardPoint, PointCost: 1000},
		},
	}).Index()
}

// badgeOneTasks completes m1 and m2, which earns b1 (500 points).
var badgeOneTasks = []string{"t-read", "t-quiz", "t-intro", "t-app"}

func newTestLearner(t *testing.T, store app.ProgressStore, clock app.Clock) *app.Learner {
	t.Helper()
	l := app.NewLearner("u1", testCatalog(), store, app.LearnerOptions{Clock: clock})
	l.Load(context.Background())
	return l
}

func seed(t *testing.T, store app.ProgressStore, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := store.Save(context.Background(), "u1", key, raw); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func waitEvent(t *testing.T, ch <-chan domain.Event, typ domain.EventType, subject string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed waiting for %s %s", typ, subject)
			}
			if ev.Type == typ && ev.SubjectID == subject {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s %s", typ, subject)
		}
	}
}

// drain returns the events already published without blocking.
func drain(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventKeys(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, string(ev.Type)+":"+ev.SubjectID)
	}
	return out
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Load(context.Context, string, string) ([]byte, error) {
	return nil, errStoreDown
}

func (failingStore) Save(context.Context, string, string, []byte) error {
	return errStoreDown
}

func newTestService(clock app.Clock) (*app.ProgressService, *memory.ProgressStore) {
	store := memory.NewProgressStore()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCatalog()), 5*time.Minute)
	return app.NewProgressService(memory.NewLearnerRegistry(), catalogs, store, "onboarding", app.LearnerOptions{Clock: clock}), store
}

// twoTaskCatalog has one module of two regular tasks that earns a 300 point
// badge, and two rewards costing the whole balance.
func twoTaskCatalog() *domain.Catalog {
	return (&domain.Catalog{
		ID: "short",
		Tasks: []domain.Task{
			{ID: "t1", ModuleID: "m", Type: domain.TaskRegular},
			{ID: "t2", ModuleID: "m", Type: domain.TaskRegular},
		},
		Modules: []domain.Module{
			{ID: "m", BadgeID: "b", TaskIDs: []string{"t1", "t2"}},
		},
		Badges: []domain.Badge{
			{ID: "b", Points: 300},
		},
		Rewards: []domain.Reward{
			{ID: "r-a", Kind: domain.RewardPoint, PointCost: 300},
			{ID: "r-b", Kind: domain.RewardPoint, PointCost: 300},
		},
	}).Index()
}
