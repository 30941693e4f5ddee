package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/npezzotti/go-forum/internal/types"
)

const msgAuthRequired = "Authentication required"

// ApiError is the failure body of every API response.
type ApiError struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func newApiError(code int, msg string, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    msg,
		Err:        err,
	}
}

func NewBadRequestError(msg string) *ApiError {
	if msg == "" {
		msg = "Invalid request."
	}
	return newApiError(http.StatusBadRequest, msg, nil)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, "Not found.", nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, "Internal server error.", err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, msgAuthRequired, nil)
}

func NewConflictError(msg string) *ApiError {
	return newApiError(http.StatusConflict, msg, nil)
}

// errorFromDomain maps a service error onto its HTTP form. Store failures
// keep the cause for logging but only expose fallback to the client.
func errorFromDomain(err error, fallback string) *ApiError {
	var (
		apiErr     *ApiError
		validation *types.ValidationError
		conflict   *types.ConflictError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		return NewBadRequestError(validation.Message)
	case errors.As(err, &conflict):
		return NewConflictError(conflict.Error())
	case errors.Is(err, types.ErrInvalidCredentials):
		return newApiError(http.StatusUnauthorized, "Invalid username or password.", err)
	case errors.Is(err, types.ErrUnauthenticated):
		return NewUnauthorizedError()
	case errors.Is(err, types.ErrNotFound):
		return NewNotFoundError()
	default:
		return newApiError(http.StatusInternalServerError, fallback, err)
	}
}
