package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrGateNotSatisfied is returned when a task's completion precondition does not hold yet.
	ErrGateNotSatisfied = errors.New("task completion precondition not satisfied")
	// ErrImmutableOnceComplete is returned when an operation would undo a completed task.
	ErrImmutableOnceComplete = errors.New("task is already completed")
	// ErrBadgeNotEarned is returned when claiming a badge reward before the badge is earned.
	ErrBadgeNotEarned = errors.New("required badge not earned")
	// ErrInsufficientPoints is returned when a point reward costs more than the available points.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrStorageUnavailable marks a progress store that could not be read or written.
	ErrStorageUnavailable = errors.New("progress storage unavailable")
	// ErrMalformedPersistedState marks persisted progress that could not be decoded.
	ErrMalformedPersistedState = errors.New("malformed persisted progress")
	// ErrKeyNotFound is returned by progress stores when a key has never been saved.
	ErrKeyNotFound = errors.New("progress key not found")

	// ErrCatalogNotFound indicates the catalog content could not be loaded.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrTaskNotFound indicates an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrModuleNotFound indicates an unknown module id.
	ErrModuleNotFound = errors.New("module not found")
	// ErrBadgeNotFound indicates an unknown badge id.
	ErrBadgeNotFound = errors.New("badge not found")
	// ErrCertificateNotFound indicates an unknown certificate id.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrRewardNotFound indicates an unknown reward id.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrQuestionNotFound indicates a submitted question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted choice index is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAnswerAlreadyRecorded is returned when a quiz question is answered twice.
	ErrAnswerAlreadyRecorded = errors.New("answer already recorded")
	// ErrWrongTaskType is returned when an operation does not apply to the task's type.
	ErrWrongTaskType = errors.New("operation not supported for task type")
	// ErrActivationClosed is returned when signalling a task view that was navigated away from.
	ErrActivationClosed = errors.New("task activation closed")
	// ErrLearnerNotFound indicates no active learner with that id.
	ErrLearnerNotFound = errors.New("learner not found")
	// ErrInvalidForm is wrapped by FormError.
	ErrInvalidForm = errors.New("invalid form submission")
)

// GateError carries the user-facing hint for a rejected completion request.
type GateError struct {
	TaskID string
	Type   TaskType
	Hint   string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Hint)
}

func (e *GateError) Unwrap() error {
	return ErrGateNotSatisfied
}

// FormError lists per-field problems of a rejected referral form.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func (e *FormError) Unwrap() error {
	return ErrInvalidForm
}
