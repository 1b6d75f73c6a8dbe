package http

import (
	"errors"
	"net/http"

	"training-progress-service/internal/domain"
)

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Hint    string            `json:"hint,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrGateNotSatisfied, "gate_not_satisfied", http.StatusConflict},
	{domain.ErrImmutableOnceComplete, "immutable_once_complete", http.StatusConflict},
	{domain.ErrBadgeNotEarned, "badge_not_earned", http.StatusConflict},
	{domain.ErrInsufficientPoints, "insufficient_points", http.StatusConflict},
	{domain.ErrAnswerAlreadyRecorded, "answer_already_recorded", http.StatusConflict},
	{domain.ErrActivationClosed, "activation_closed", http.StatusConflict},
	{domain.ErrWrongTaskType, "wrong_task_type", http.StatusBadRequest},
	{domain.ErrInvalidForm, "invalid_form", http.StatusUnprocessableEntity},
	{domain.ErrQuestionNotFound, "question_not_found", http.StatusBadRequest},
	{domain.ErrOptionNotFound, "option_not_found", http.StatusBadRequest},
	{domain.ErrTaskNotFound, "task_not_found", http.StatusNotFound},
	{domain.ErrModuleNotFound, "module_not_found", http.StatusNotFound},
	{domain.ErrBadgeNotFound, "badge_not_found", http.StatusNotFound},
	{domain.ErrCertificateNotFound, "certificate_not_found", http.StatusNotFound},
	{domain.ErrRewardNotFound, "reward_not_found", http.StatusNotFound},
	{domain.ErrCatalogNotFound, "catalog_not_found", http.StatusNotFound},
	{domain.ErrLearnerNotFound, "learner_not_found", http.StatusNotFound},
	{domain.ErrStorageUnavailable, "storage_unavailable", http.StatusServiceUnavailable},
}

// toErrorPayload maps engine errors to a stable code plus user-facing details.
func toErrorPayload(err error) (errorPayload, int) {
	p := errorPayload{Code: "internal", Message: err.Error()}
	status := http.StatusInternalServerError
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			p.Code, status = c.code, c.status
			break
		}
	}
	var gate *domain.GateError
	if errors.As(err, &gate) {
		p.Hint = gate.Hint
	}
	var form *domain.FormError
	if errors.As(err, &form) {
		p.Fields = form.Fields
	}
	return p, status
}
