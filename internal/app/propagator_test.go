package app_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
)

func TestBadgeAndCertificateCascade(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLearner(t, nil, clock)
	events, cancel := l.Subscribe()
	defer cancel()

	if _, err := l.Activate("t-read"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	clock.Advance(5 * time.Second)
	waitEvent(t, events, domain.EventTaskCompleted, "t-read")

	for q := 0; q < 2; q++ {
		if _, err := l.RecordQuizAnswer(ctx, "t-quiz", q, 0); err != nil {
			t.Fatalf("answer %d: %v", q, err)
		}
	}
	if _, err := l.RequestComplete(ctx, "t-quiz"); err != nil {
		t.Fatalf("complete quiz: %v", err)
	}
	assertEvents(t, drain(events), "task_completed:t-quiz", "module_completed:m1")

	badge, _ := l.GetBadgeStatus("b1")
	if badge.Earned || badge.CompletedModules != 1 || badge.TotalModules != 2 {
		t.Fatalf("expected b1 half done, got %+v", badge)
	}
	if l.GetAvailablePoints() != 0 {
		t.Fatalf("expected no points before badge")
	}

	if _, err := l.RequestComplete(ctx, "t-intro"); err != nil {
		t.Fatalf("complete intro: %v", err)
	}
	a, err := l.Activate("t-app")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := a.Signal(ctx, domain.Signal{Type: domain.SignalLinkOpened}); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if _, err := l.RequestComplete(ctx, "t-app"); err != nil {
		t.Fatalf("complete app: %v", err)
	}
	assertEvents(t, drain(events), "task_completed:t-intro", "task_completed:t-app", "module_completed:m2", "badge_earned:b1")

	if badge, _ = l.GetBadgeStatus("b1"); !badge.Earned {
		t.Fatalf("expected b1 earned")
	}
	if l.GetAvailablePoints() != 500 {
		t.Fatalf("expected 500 points, got %d", l.GetAvailablePoints())
	}
	if cert, _ := l.GetCertificateStatus("c1"); cert.Earned || cert.EarnedBadges != 1 {
		t.Fatalf("expected certificate pending, got %+v", cert)
	}

	a, _ = l.Activate("t-video")
	if _, err := a.Signal(ctx, domain.Signal{Type: domain.SignalVideoEnded}); err != nil {
		t.Fatalf("signal video: %v", err)
	}
	a, _ = l.Activate("t-ref")
	if _, err := a.Signal(ctx, domain.Signal{Type: domain.SignalFormSubmitted, Form: map[string]string{
		"name": "Ada", "email": "ada@example.com",
	}}); err != nil {
		t.Fatalf("signal form: %v", err)
	}
	assertEvents(t, drain(events),
		"task_completed:t-video",
		"task_completed:t-ref", "module_completed:m3", "badge_earned:b2", "certificate_earned:c1")

	ov := l.Overview()
	if ov.Ledger.TotalEarned != 700 || ov.Ledger.Available != 700 {
		t.Fatalf("unexpected ledger %+v", ov.Ledger)
	}
	for _, m := range ov.Modules {
		if !m.Completed || m.CompletedTasks != m.TotalTasks {
			t.Fatalf("expected module complete, got %+v", m)
		}
	}
	if len(ov.Certificates) != 1 || !ov.Certificates[0].Earned {
		t.Fatalf("expected certificate earned, got %+v", ov.Certificates)
	}
}

func TestModuleProgressCountsTasks(t *testing.T) {
	ctx := context.Background()
	l := newTestLearner(t, nil, newFakeClock())

	if _, err := l.RequestComplete(ctx, "t-intro"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	mp, err := l.GetModuleProgress("m2")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if mp.Completed || mp.CompletedTasks != 1 || mp.TotalTasks != 2 || mp.BadgeID != "b1" {
		t.Fatalf("unexpected progress %+v", mp)
	}
	if _, err := l.GetModuleProgress("nope"); err == nil {
		t.Fatalf("expected unknown module error")
	}
}

func assertEvents(t *testing.T, events []domain.Event, want ...string) {
	t.Helper()
	if got := eventKeys(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("events mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestCascadeIsIndependentOfCompletionOrder(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{name: "first then second", order: []string{"t1", "t2"}},
		{name: "second then first", order: []string{"t2", "t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := app.NewLearner("u1", twoTaskCatalog(), nil, app.LearnerOptions{Clock: newFakeClock()})
			events, cancel := l.Subscribe()
			defer cancel()

			for _, id := range tt.order {
				if _, err := l.RequestComplete(ctx, id); err != nil {
					t.Fatalf("complete %s: %v", id, err)
				}
			}
			assertEvents(t, drain(events),
				"task_completed:"+tt.order[0], "task_completed:"+tt.order[1],
				"module_completed:m", "badge_earned:b")

			mp, _ := l.GetModuleProgress("m")
			if !mp.Completed || mp.CompletedTasks != 2 {
				t.Fatalf("expected module complete, got %+v", mp)
			}
			if badge, _ := l.GetBadgeStatus("b"); !badge.Earned {
				t.Fatalf("expected badge earned, got %+v", badge)
			}
			if l.GetAvailablePoints() != 300 {
				t.Fatalf("expected 300 points, got %d", l.GetAvailablePoints())
			}

			last := tt.order[len(tt.order)-1]
			if _, err := l.RequestComplete(ctx, last); err != nil {
				t.Fatalf("repeat complete: %v", err)
			}
			if got := drain(events); len(got) != 0 {
				t.Fatalf("expected no events on repeated completion, got %v", eventKeys(got))
			}
			if l.GetAvailablePoints() != 300 {
				t.Fatalf("expected points unchanged, got %d", l.GetAvailablePoints())
			}
		})
	}
}
