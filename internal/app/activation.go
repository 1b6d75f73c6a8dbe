package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"training-progress-service/internal/domain"
)

// Activation is an open task view. Timers and signals for the task only
// count while it is open; one task per learner is open at a time.
type Activation struct {
	learner *Learner
	taskID  string
	done    chan struct{}
	once    sync.Once
}

func (a *Activation) TaskID() string { return a.taskID }

// Done is closed when the view is closed or replaced by another activation.
func (a *Activation) Done() <-chan struct{} { return a.done }

// Close navigates away. A timer that already ran out is credited; an
// unfinished one is discarded and restarts from zero on the next activation.
func (a *Activation) Close() {
	a.learner.mu.Lock()
	defer a.learner.mu.Unlock()
	a.learner.deactivateLocked(a)
}

// Signal delivers an external event (video ended, link opened, form
// submitted) to the open task.
func (a *Activation) Signal(ctx context.Context, sig domain.Signal) (domain.TaskState, error) {
	return a.learner.signal(ctx, a, sig)
}

func (a *Activation) closed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Activate opens a task view and starts its timer when the task type has one.
// Any previously open view is closed first.
func (l *Learner) Activate(taskID string) (*Activation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.catalog.Task(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if l.active != nil {
		l.deactivateLocked(l.active)
	}
	a := &Activation{learner: l, taskID: taskID, done: make(chan struct{})}
	l.active = a
	if l.tasks.Has(taskID) {
		return a, nil
	}

	var wait time.Duration
	switch {
	case task.Type == domain.TaskReading && task.Reading != nil:
		wait = task.Reading.Duration()
	case task.Type == domain.TaskVideo && task.Video != nil:
		wait = task.Video.Fallback(l.videoFallback)
	default:
		return a, nil
	}
	st := l.state(taskID)
	st.startedAt = l.clock.Now()
	go l.watch(a, l.clock.After(wait))
	l.logger.Debug("timer started", "task", taskID, "wait", wait)
	return a, nil
}

func (l *Learner) watch(a *Activation, fired <-chan time.Time) {
	select {
	case <-a.done:
	case <-fired:
		l.timerFired(a)
	}
}

func (l *Learner) timerFired(a *Activation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Stale timer from a view that was closed or replaced.
	if l.active != a || a.closed() {
		return
	}
	l.creditTimerLocked(a.taskID)
}

// creditTimerLocked marks the timer of taskID as elapsed and completes the
// task when its gate allows it.
func (l *Learner) creditTimerLocked(taskID string) {
	task, ok := l.catalog.Task(taskID)
	if !ok {
		return
	}
	l.state(taskID).timerDone = true
	if err := l.requestCompleteLocked(task, true); err != nil {
		l.warnLocked(err)
	}
	l.commitLocked(context.Background())
}

func (l *Learner) deactivateLocked(a *Activation) {
	if l.active == a {
		if st, ok := l.states[a.taskID]; ok && !l.tasks.Has(a.taskID) && !st.timerDone && !st.startedAt.IsZero() {
			// The watcher may not have run yet for a timer that already ran out.
			if task, ok := l.catalog.Task(a.taskID); ok && l.remainingLocked(task, st) <= 0 {
				l.creditTimerLocked(a.taskID)
			} else {
				st.startedAt = time.Time{}
			}
		}
		l.active = nil
	}
	a.once.Do(func() { close(a.done) })
}

func (l *Learner) signal(ctx context.Context, a *Activation, sig domain.Signal) (domain.TaskState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.catalog.Task(a.taskID)
	if !ok {
		return domain.TaskState{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, a.taskID)
	}
	if l.active != a || a.closed() {
		return l.taskStateLocked(task), domain.ErrActivationClosed
	}
	st := l.state(task.ID)

	var want domain.TaskType
	switch sig.Type {
	case domain.SignalVideoEnded:
		want = domain.TaskVideo
	case domain.SignalLinkOpened:
		want = domain.TaskApplication
	case domain.SignalFormSubmitted:
		want = domain.TaskReferral
	default:
		return l.taskStateLocked(task), fmt.Errorf("unknown signal %q", sig.Type)
	}
	if task.Type != want {
		return l.taskStateLocked(task), fmt.Errorf("signal %s on %s task %s: %w", sig.Type, task.Type, task.ID, domain.ErrWrongTaskType)
	}
	if l.tasks.Has(task.ID) {
		return l.taskStateLocked(task), nil
	}

	var err error
	switch sig.Type {
	case domain.SignalVideoEnded:
		st.videoEnded = true
		err = l.requestCompleteLocked(task, true)
	case domain.SignalLinkOpened:
		st.linkOpened = true
	case domain.SignalFormSubmitted:
		if err := validateForm(task.Referral, sig.Form); err != nil {
			return l.taskStateLocked(task), err
		}
		st.formSubmitted = true
		err = l.requestCompleteLocked(task, true)
	}
	if err != nil {
		return l.taskStateLocked(task), err
	}
	l.commitLocked(ctx)
	return l.taskStateLocked(task), nil
}
