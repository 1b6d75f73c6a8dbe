package app

import (
	"context"
	"fmt"
	"time"

	"training-progress-service/internal/domain"
)

// taskState is the per-learner gate state of one task.
type taskState struct {
	startedAt     time.Time
	timerDone     bool
	answers       map[int]int
	linkOpened    bool
	videoEnded    bool
	formSubmitted bool
}

// GetTaskState returns the learner-facing view of a task.
func (l *Learner) GetTaskState(taskID string) (domain.TaskState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.catalog.Task(taskID)
	if !ok {
		return domain.TaskState{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	return l.taskStateLocked(task), nil
}

// RequestComplete marks a task complete when its gate allows it. Completing
// an already completed task is a no-op.
func (l *Learner) RequestComplete(ctx context.Context, taskID string) (domain.TaskState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.catalog.Task(taskID)
	if !ok {
		return domain.TaskState{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if err := l.requestCompleteLocked(task, false); err != nil {
		l.logger.Debug("completion rejected", "task", taskID, "err", err)
		return l.taskStateLocked(task), err
	}
	l.commitLocked(ctx)
	return l.taskStateLocked(task), nil
}

// RequestIncomplete always fails for completed tasks: completion is never
// revoked. For open tasks it is a no-op.
func (l *Learner) RequestIncomplete(_ context.Context, taskID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.catalog.Task(taskID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if l.tasks.Has(taskID) {
		l.logger.Info("ignored attempt to revoke completion", "task", taskID)
		return fmt.Errorf("task %s: %w", taskID, domain.ErrImmutableOnceComplete)
	}
	return nil
}

// requestCompleteLocked is the single entry into the completed set.
// fromPrecondition marks calls made by the gate itself (timer fired, video
// ended, form accepted) whose precondition is already established.
func (l *Learner) requestCompleteLocked(task domain.Task, fromPrecondition bool) error {
	if l.tasks.Has(task.ID) {
		return nil
	}
	if !fromPrecondition {
		if ok, hint := l.gateLocked(task, l.state(task.ID)); !ok {
			return &domain.GateError{TaskID: task.ID, Type: task.Type, Hint: hint}
		}
	}
	l.tasks.Upsert(task.ID)
	l.emitLocked(domain.EventTaskCompleted, task.ID)
	l.propagateLocked(task.ModuleID)
	return nil
}

// gateLocked evaluates the per-type completion precondition.
func (l *Learner) gateLocked(task domain.Task, st *taskState) (bool, string) {
	switch task.Type {
	case domain.TaskReading:
		if st.timerDone {
			return true, ""
		}
		if st.startedAt.IsZero() {
			return false, "open the reading to start its timer"
		}
		remaining := l.remainingLocked(task, st)
		if remaining <= 0 {
			return true, ""
		}
		return false, fmt.Sprintf("keep reading for another %s", remaining.Round(100*time.Millisecond))
	case domain.TaskVideo:
		if st.videoEnded || st.timerDone {
			return true, ""
		}
		if !st.startedAt.IsZero() && l.remainingLocked(task, st) <= 0 {
			return true, ""
		}
		return false, "watch the video to the end"
	case domain.TaskQuiz:
		if task.Quiz == nil {
			return false, "quiz has no questions"
		}
		if !fullyAnswered(task, st) {
			return false, fmt.Sprintf("answer all %d questions (%d answered)", len(task.Quiz.Questions), len(st.answers))
		}
		return true, ""
	case domain.TaskApplication:
		if !st.linkOpened {
			return false, "open the application link first"
		}
		return true, ""
	case domain.TaskReferral:
		if !st.formSubmitted {
			return false, "submit the referral form"
		}
		return true, ""
	default:
		return true, ""
	}
}

// remainingLocked is the time left on a reading or video timer.
func (l *Learner) remainingLocked(task domain.Task, st *taskState) time.Duration {
	var total time.Duration
	switch {
	case task.Type == domain.TaskReading && task.Reading != nil:
		total = task.Reading.Duration()
	case task.Type == domain.TaskVideo && task.Video != nil:
		total = task.Video.Fallback(l.videoFallback)
	default:
		return 0
	}
	if st.timerDone {
		return 0
	}
	if st.startedAt.IsZero() {
		return total
	}
	remaining := total - l.clock.Now().Sub(st.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *Learner) phaseLocked(task domain.Task, st *taskState) domain.TaskPhase {
	if l.tasks.Has(task.ID) {
		return domain.PhaseCompleted
	}
	switch task.Type {
	case domain.TaskReading:
		if !st.startedAt.IsZero() || st.timerDone {
			return domain.PhaseTiming
		}
	case domain.TaskQuiz:
		if len(st.answers) > 0 {
			return domain.PhaseAnswering
		}
	case domain.TaskApplication:
		if st.linkOpened {
			return domain.PhaseLinkOpened
		}
	case domain.TaskVideo:
		if !st.startedAt.IsZero() || st.videoEnded {
			return domain.PhaseWatching
		}
	case domain.TaskReferral:
		if st.formSubmitted {
			return domain.PhaseFormSubmitted
		}
	}
	return domain.PhasePending
}

func (l *Learner) taskStateLocked(task domain.Task) domain.TaskState {
	st := l.state(task.ID)
	view := domain.TaskState{
		TaskID:        task.ID,
		ModuleID:      task.ModuleID,
		Type:          task.Type,
		Phase:         l.phaseLocked(task, st),
		Completed:     l.tasks.Has(task.ID),
		Active:        l.active != nil && l.active.taskID == task.ID,
		Answered:      len(st.answers),
		LinkOpened:    st.linkOpened,
		VideoEnded:    st.videoEnded,
		FormSubmitted: st.formSubmitted,
	}
	if task.Quiz != nil {
		view.QuestionCount = len(task.Quiz.Questions)
	}
	if !view.Completed {
		view.RemainingMs = l.remainingLocked(task, st).Milliseconds()
	}
	return view
}
