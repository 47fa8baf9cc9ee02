package api

import (
	"errors"
	"log/slog"

	"helprag/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error returned by a handler as JSON. Error kinds
// from the types package decide the status code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	apiErr = NewError(statusFor(err), err.Error())
	level := slog.LevelWarn
	if apiErr.Code >= fiber.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(c.UserContext(), level, "request failed",
		"method", c.Method(),
		"path", c.Path(),
		"code", apiErr.Code,
		"error", apiErr.Message,
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	return c.Status(apiErr.Code).JSON(apiErr)
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, types.ErrNoMatches):
		return fiber.StatusNotFound
	case errors.Is(err, types.ErrInvalidTopK):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}
