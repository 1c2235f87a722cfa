package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/status"
	"github.com/iliyamo/stall-dashboard/internal/utils"
)

// Response is the body of every dashboard response.  Code is the stable
// status registry code; clients match on it rather than on Message.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// inputError is a request problem detected by the handler itself.
type inputError struct {
	outcome status.Outcome
	msg     string
}

func (e *inputError) Error() string { return e.msg }

func missingField(msg string) error { return &inputError{outcome: status.MissingRequiredField, msg: msg} }
func invalidInput(msg string) error { return &inputError{outcome: status.InputValidationFailed, msg: msg} }

// httpStatusFor picks the transport status that accompanies an outcome.
func httpStatusFor(o status.Outcome) int {
	switch o {
	case status.Success:
		return http.StatusOK
	case status.MissingRequiredField, status.InputValidationFailed:
		return http.StatusBadRequest
	case status.NotFound:
		return http.StatusNotFound
	case status.AlreadyExists:
		return http.StatusConflict
	case status.OperationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor classifies err.  The message is safe to show to clients.
func outcomeFor(err error) (status.Outcome, string) {
	var (
		ie *inputError
		ve validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ie):
		return ie.outcome, ie.msg
	case errors.As(err, &ve):
		return validationOutcome(ve)
	case errors.Is(err, repository.ErrStallNotFound):
		return status.NotFound, "stall not found"
	case errors.Is(err, repository.ErrRentalNotFound):
		return status.NotFound, "rental not found"
	case errors.Is(err, repository.ErrPaymentNotFound):
		return status.NotFound, "payment not found"
	case errors.Is(err, repository.ErrExpenseNotFound):
		return status.NotFound, "expense not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return status.NotFound, "user not found"
	case errors.Is(err, repository.ErrEmailExists):
		return status.AlreadyExists, "email already exists"
	case errors.Is(err, repository.ErrDuplicate):
		return status.AlreadyExists, "already exists"
	case errors.Is(err, repository.ErrConflict):
		return status.OperationFailed, "operation not allowed in the current state"
	case errors.Is(err, utils.ErrPasswordTooLong):
		return status.InputValidationFailed, "password is too long"
	}
	return status.InternalServerError, "internal server error"
}

// respond writes the envelope for o and records o for the request logger
// and metrics.
func respond(c echo.Context, httpStatus int, o status.Outcome, msg string, data any) error {
	code, err := o.Code()
	if err != nil {
		return err
	}
	c.Set(middleware.KeyOutcome, o)
	return c.JSON(httpStatus, Response{Code: code, Message: msg, Data: data})
}

func ok(c echo.Context, data any) error {
	return respond(c, http.StatusOK, status.Success, "ok", data)
}

func created(c echo.Context, data any) error {
	return respond(c, http.StatusCreated, status.Success, "created", data)
}

// fail writes the envelope for err.  Internal errors are logged with the
// request id; their details never reach the client.
func fail(c echo.Context, logger *slog.Logger, err error) error {
	o, msg := outcomeFor(err)
	if o == status.InternalServerError && logger != nil {
		rid, _ := c.Get(middleware.KeyRequestID).(string)
		logger.Error("request failed",
			slog.String("route", c.Path()),
			slog.String("request_id", rid),
			slog.Any("error", err))
	}
	return respond(c, httpStatusFor(o), o, msg, nil)
}
