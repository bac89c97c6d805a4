package engine

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	apperrors "github.com/Proton-105/tapcoin-engine/internal/errors"
)

// Identity is the authenticated caller as supplied by the identity provider.
type Identity struct {
	ID        int64  `validate:"required,gt=0"`
	Username  string `validate:"max=64"`
	FirstName string `validate:"max=128"`
	LastName  string `validate:"max=128"`
}

// TapRequest is a batch of manual taps.
type TapRequest struct {
	AccountID int64 `validate:"required,gt=0"`
	Taps      int   `validate:"min=1,max=100"`
	// IntervalMS is the observed gap since the previous tap, if the client measured it.
	IntervalMS *int64 `validate:"omitempty,gte=0"`
}

// ActivateRequest starts or extends a booster window.
type ActivateRequest struct {
	AccountID int64         `validate:"required,gt=0"`
	Kind      string        `validate:"required,oneof=double_tap capacity autoclicker"`
	Duration  time.Duration `validate:"gt=0"`
}

func (e *Engine) check(req any) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error())
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.NewValidationError(strings.Join(parts, "; "))
}

func checkID(id int64) error {
	if id <= 0 {
		return apperrors.NewValidationError("account id must be positive")
	}
	return nil
}
