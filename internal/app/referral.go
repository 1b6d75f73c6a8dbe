package app

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"training-progress-service/internal/domain"
)

var formValidate = validator.New()

// validateForm checks submitted values against each field's validator rules.
// Fields without rules accept anything; unknown submitted fields are ignored.
func validateForm(cfg *domain.ReferralConfig, values map[string]string) error {
	if cfg == nil {
		return nil
	}
	problems := make(map[string]string)
	for _, f := range cfg.Fields {
		if f.Rules == "" {
			continue
		}
		if msg := checkField(values[f.Name], f.Rules); msg != "" {
			problems[f.Name] = msg
		}
	}
	if len(problems) > 0 {
		return &domain.FormError{Fields: problems}
	}
	return nil
}

func checkField(value, rules string) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("invalid rule %q", rules)
		}
	}()
	err := formValidate.Var(value, rules)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("failed %q", verrs[0].Tag())
	}
	return err.Error()
}
