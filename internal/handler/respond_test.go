package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/status"
	"github.com/iliyamo/stall-dashboard/internal/utils"
)

func TestOutcomeFor(t *testing.T) {
	cases := []struct {
		err  error
		want status.Outcome
	}{
		{missingField("x"), status.MissingRequiredField},
		{invalidInput("x"), status.InputValidationFailed},
		{repository.ErrStallNotFound, status.NotFound},
		{fmt.Errorf("load: %w", repository.ErrRentalNotFound), status.NotFound},
		{repository.ErrPaymentNotFound, status.NotFound},
		{repository.ErrExpenseNotFound, status.NotFound},
		{repository.ErrUserNotFound, status.NotFound},
		{repository.ErrEmailExists, status.AlreadyExists},
		{fmt.Errorf("insert: %w", repository.ErrDuplicate), status.AlreadyExists},
		{repository.ErrConflict, status.OperationFailed},
		{fmt.Errorf("hash: %w", utils.ErrPasswordTooLong), status.InputValidationFailed},
		{errors.New("driver: bad connection"), status.InternalServerError},
	}
	for _, tc := range cases {
		got, msg := outcomeFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestHTTPStatusFor(t *testing.T) {
	want := map[status.Outcome]int{
		status.Success:               http.StatusOK,
		status.MissingRequiredField:  http.StatusBadRequest,
		status.InputValidationFailed: http.StatusBadRequest,
		status.NotFound:              http.StatusNotFound,
		status.AlreadyExists:         http.StatusConflict,
		status.OperationFailed:       http.StatusUnprocessableEntity,
		status.InternalServerError:   http.StatusInternalServerError,
	}
	for _, o := range status.Outcomes() {
		assert.Equal(t, want[o], httpStatusFor(o), o.String())
	}
}

func TestValidatorUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&createPaymentReq{RentalID: 1, AmountCents: 5, Method: "GOLD"})
	o, msg := outcomeFor(err)
	assert.Equal(t, status.InputValidationFailed, o)
	assert.Contains(t, msg, "method (oneof)")

	err = v.Validate(&createPaymentReq{Method: "CASH"})
	o, msg = outcomeFor(err)
	assert.Equal(t, status.MissingRequiredField, o)
	assert.Contains(t, msg, "rental_id")
	assert.Contains(t, msg, "amount_cents")
}
