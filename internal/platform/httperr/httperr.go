// Package httperr carries an HTTP status alongside an error and renders every
// error returned by a handler as the {success:false, message} envelope.
package httperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// FieldError is a single failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error is an error with the status and client-facing message it maps to.
// Message is either a string code ("APPOINTMENT_NOT_FOUND") or a list of
// field errors.
type Error struct {
	Status  int
	Message interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%v", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message interface{}) *Error {
	return &Error{Status: status, Message: message}
}

func NotFound(code string) *Error {
	return New(http.StatusNotFound, code)
}

func Validation(fields []FieldError) *Error {
	return New(http.StatusUnprocessableEntity, fields)
}

// Internal reports err to the client verbatim with a 500.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// StatusOf returns the status an error will be rendered with.
func StatusOf(err error) int {
	var he *Error
	if errors.As(err, &he) {
		return he.Status
	}
	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return http.StatusInternalServerError
}

type envelope struct {
	Success bool        `json:"success"`
	Message interface{} `json:"message"`
}

func resolve(err error) (int, interface{}) {
	var he *Error
	if errors.As(err, &he) {
		return he.Status, he.Message
	}
	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		if msg, ok := ee.Message.(string); ok {
			return ee.Code, msg
		}
		return ee.Code, http.StatusText(ee.Code)
	}
	return http.StatusInternalServerError, err.Error()
}

// Handler is installed as echo's HTTPErrorHandler.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := resolve(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, envelope{Success: false, Message: message})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
