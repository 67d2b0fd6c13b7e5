package utils

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance shares gin's "binding" tags so requests are checked the
// same way whether they arrive over HTTP or from an internal caller.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.SetTagName("binding")
	})
	return validate
}

// ValidateStruct checks v against its binding tags and reports the first
// failing field as an apperrors.ValidationError.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(fe.Field(), "failed on the '%s' rule", fe.Tag())
	}
	return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
}
