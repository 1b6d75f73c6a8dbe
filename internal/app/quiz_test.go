package app_test

import (
	"context"
	"errors"
	"testing"

	"training-progress-service/internal/domain"
)

func TestQuizGatesOnAnswersNotCorrectness(t *testing.T) {
	ctx := context.Background()
	l := newTestLearner(t, nil, newFakeClock())

	if _, err := l.RequestComplete(ctx, "t-quiz"); !errors.Is(err, domain.ErrGateNotSatisfied) {
		t.Fatalf("expected gate error with no answers, got %v", err)
	}

	res, err := l.RecordQuizAnswer(ctx, "t-quiz", 0, 0)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Correct || res.FullyAnswered || res.Answered != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := l.RequestComplete(ctx, "t-quiz"); !errors.Is(err, domain.ErrGateNotSatisfied) {
		t.Fatalf("expected gate error with one answer, got %v", err)
	}

	// Both answers wrong: the quiz still completes.
	res, err = l.RecordQuizAnswer(ctx, "t-quiz", 1, 1)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Correct || !res.FullyAnswered {
		t.Fatalf("unexpected result %+v", res)
	}
	full, err := l.IsFullyAnswered("t-quiz")
	if err != nil || !full {
		t.Fatalf("expected fully answered, got %v %v", full, err)
	}
	state, err := l.RequestComplete(ctx, "t-quiz")
	if err != nil || !state.Completed {
		t.Fatalf("expected completion, got %+v %v", state, err)
	}
}

func TestQuizAnswerIsRecordedOnce(t *testing.T) {
	ctx := context.Background()
	l := newTestLearner(t, nil, newFakeClock())

	if _, err := l.RecordQuizAnswer(ctx, "t-quiz", 0, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	res, err := l.RecordQuizAnswer(ctx, "t-quiz", 0, 0)
	if !errors.Is(err, domain.ErrAnswerAlreadyRecorded) {
		t.Fatalf("expected already recorded, got %v", err)
	}
	if res.Choice != 1 || !res.Correct {
		t.Fatalf("expected first answer kept, got %+v", res)
	}
	state, _ := l.GetTaskState("t-quiz")
	if state.Phase != domain.PhaseAnswering || state.Answered != 1 || state.QuestionCount != 2 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestQuizAnswerValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLearner(t, nil, newFakeClock())

	if _, err := l.RecordQuizAnswer(ctx, "t-quiz", 5, 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := l.RecordQuizAnswer(ctx, "t-quiz", 0, 7); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	if _, err := l.RecordQuizAnswer(ctx, "t-intro", 0, 0); !errors.Is(err, domain.ErrWrongTaskType) {
		t.Fatalf("expected wrong task type, got %v", err)
	}
}
