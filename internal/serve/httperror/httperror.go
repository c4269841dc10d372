package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"
)

// HTTPError is the JSON error body of every endpoint.
type HTTPError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error"`
	Extras     map[string]any `json:"extras,omitempty"`
	// ErrorCode is stable across message rewordings, clients match on it.
	ErrorCode string `json:"error_code,omitempty"`
	Err       error  `json:"-"`
}

// ReportErrorFunc reports errors that reach the client as a 500.
type ReportErrorFunc func(ctx context.Context, err error, msg string)

func logError(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).WithStack(err).Errorf("%+v", err)
}

// reportError logs until SetDefaultReportErrorFunc wires the crash tracker.
var reportError ReportErrorFunc = logError

func SetDefaultReportErrorFunc(fn ReportErrorFunc) {
	if fn == nil {
		fn = logError
	}
	reportError = fn
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) WithErrorCode(code string) *HTTPError {
	e.ErrorCode = code
	return e
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.StatusCode, e, httpjson.JSON)
}

// NewHTTPError builds an error response. When nothing is added to an originalErr that already is an HTTPError with
// the same status, originalErr is returned as is.
func NewHTTPError(statusCode int, msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" && len(extras) == 0 {
		var hErr *HTTPError
		if errors.As(originalErr, &hErr) && hErr.StatusCode == statusCode {
			return hErr
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Extras:     extras,
		Err:        originalErr,
	}
}

func withDefault(msg, defaultMsg string) string {
	if msg == "" {
		return defaultMsg
	}
	return msg
}

func BadRequest(msg string, originalErr error, extras map[string]any) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, withDefault(msg, "The request was invalid in some way."), originalErr, extras)
}

func Unauthorized(msg string, originalErr error, extras map[string]any) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, withDefault(msg, "Not authorized."), originalErr, extras)
}

func NotFound(msg string, originalErr error, extras map[string]any) *HTTPError {
	return NewHTTPError(http.StatusNotFound, withDefault(msg, "Resource not found."), originalErr, extras)
}

func Conflict(msg string, originalErr error, extras map[string]any) *HTTPError {
	return NewHTTPError(http.StatusConflict, withDefault(msg, "The resource already exists."), originalErr, extras)
}

// InternalError reports originalErr before building the response.
func InternalError(ctx context.Context, msg string, originalErr error, extras map[string]any) *HTTPError {
	msg = withDefault(msg, "An internal error occurred while processing this request.")
	reportError(ctx, originalErr, msg)
	return NewHTTPError(http.StatusInternalServerError, msg, originalErr, extras)
}

func ServiceUnavailable(msg string, originalErr error, extras map[string]any) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, withDefault(msg, "The service is temporarily unavailable."), originalErr, extras)
}
