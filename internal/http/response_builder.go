package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"saldi/internal/core"
	"saldi/internal/dashboard"
	"saldi/internal/ledger"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

type errorBody struct {
	Error string `json:"error"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes only
// the status.
func (b *ResponseBuilder) Body(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowedMethods, message string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, message).
		Header("Allow", allowedMethods)
}

// TooManyRequestsError asks the client to retry after retryAfter seconds.
func TooManyRequestsError(retryAfter int) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").
		Header("Retry-After", strconv.Itoa(retryAfter))
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrMissingAmount,
	core.ErrMissingDate,
	core.ErrInvalidType,
	core.ErrMissingFrom,
	core.ErrMissingTo,
	core.ErrSelfTransfer,
}

// errorResponseFor maps service errors to status codes. Unknown errors are
// reported as 500 without their text.
func errorResponseFor(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, errInvalidParam):
		return BadRequestError(err.Error())
	case errors.Is(err, dashboard.ErrUnknownEntity), errors.Is(err, ledger.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, dashboard.ErrStale):
		return ConflictError("superseded by a newer request")
	case errors.Is(err, ledger.ErrDuplicate):
		return ConflictError(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, "request canceled")
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError("internal error")
}
