package app

import (
	"context"
	"fmt"

	"training-progress-service/internal/domain"
)

// RecordQuizAnswer stores the learner's choice for one question. The first
// answer per question sticks; correctness is feedback and never gates
// completion.
func (l *Learner) RecordQuizAnswer(ctx context.Context, taskID string, question, choice int) (domain.AnswerResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.catalog.Task(taskID)
	if !ok {
		return domain.AnswerResult{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if task.Type != domain.TaskQuiz || task.Quiz == nil {
		return domain.AnswerResult{}, fmt.Errorf("task %s is %s: %w", taskID, task.Type, domain.ErrWrongTaskType)
	}
	st := l.state(taskID)
	if question < 0 || question >= len(task.Quiz.Questions) {
		return domain.AnswerResult{}, fmt.Errorf("task %s question %d: %w", taskID, question, domain.ErrQuestionNotFound)
	}
	if prev, done := st.answers[question]; done {
		return answerResult(task, st, question, prev), domain.ErrAnswerAlreadyRecorded
	}
	if l.tasks.Has(taskID) {
		return domain.AnswerResult{}, fmt.Errorf("task %s: %w", taskID, domain.ErrImmutableOnceComplete)
	}
	if choice < 0 || choice >= len(task.Quiz.Questions[question].Options) {
		return domain.AnswerResult{}, fmt.Errorf("task %s question %d choice %d: %w", taskID, question, choice, domain.ErrOptionNotFound)
	}

	if st.answers == nil {
		st.answers = make(map[int]int)
	}
	st.answers[question] = choice
	l.commitLocked(ctx)
	return answerResult(task, st, question, choice), nil
}

// IsFullyAnswered reports whether every question of a quiz has an answer.
func (l *Learner) IsFullyAnswered(taskID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.catalog.Task(taskID)
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if task.Type != domain.TaskQuiz || task.Quiz == nil {
		return false, fmt.Errorf("task %s is %s: %w", taskID, task.Type, domain.ErrWrongTaskType)
	}
	return fullyAnswered(task, l.state(taskID)), nil
}

func fullyAnswered(task domain.Task, st *taskState) bool {
	if task.Quiz == nil {
		return false
	}
	for i := range task.Quiz.Questions {
		if _, ok := st.answers[i]; !ok {
			return false
		}
	}
	return true
}

func answerResult(task domain.Task, st *taskState, question, choice int) domain.AnswerResult {
	return domain.AnswerResult{
		TaskID:        task.ID,
		QuestionIndex: question,
		Choice:        choice,
		Correct:       task.Quiz.Questions[question].CorrectIndex() == choice,
		Answered:      len(st.answers),
		QuestionCount: len(task.Quiz.Questions),
		FullyAnswered: fullyAnswered(task, st),
	}
}
