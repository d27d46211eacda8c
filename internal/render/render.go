package render

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

var validate = validator.New()

// Validate checks struct tags on a decoded request body and converts
// violations into a 400 with an actionable message.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fiber.NewError(http.StatusBadRequest, "invalid field "+f.Field())
		}
		return fiber.NewError(http.StatusBadRequest, "invalid request")
	}
	return nil
}

// Error maps application errors onto HTTP responses. Validation failures
// carry actionable messages; store failures stay generic so internals do not
// leak.
func Error(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, apperrors.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be greater than zero")
	case errors.Is(err, apperrors.ErrModeNotAllowed):
		return fiber.NewError(http.StatusForbidden, "action not allowed in current mode")
	case errors.Is(err, apperrors.ErrAccountExists):
		return fiber.NewError(http.StatusConflict, "account already exists")
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return fiber.NewError(http.StatusConflict, "operation conflicted, please retry")
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "temporarily unavailable, try again")
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
