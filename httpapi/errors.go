package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/internal/logging"
	"github.com/MrEthical07/boardauth/viewcount"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeHTTP       = "HTTP_ERROR"
	codeInternal   = "INTERNAL_SERVER_ERROR"
)

var statusByCode = map[string]int{
	boardauth.CodeInvalidCredentials:   http.StatusUnauthorized,
	boardauth.CodeInvalidToken:         http.StatusUnauthorized,
	boardauth.CodeTokenPayloadInvalid:  http.StatusUnauthorized,
	boardauth.CodeRefreshTokenNotFound: http.StatusUnauthorized,
	boardauth.CodeRefreshTokenExpired:  http.StatusUnauthorized,
	boardauth.CodeUserNotFound:         http.StatusNotFound,
	boardauth.CodeEmailExists:          http.StatusConflict,
	boardauth.CodeNicknameExists:       http.StatusConflict,
	boardauth.CodePasswordPolicy:       http.StatusBadRequest,
	boardauth.CodeRuleViolation:        http.StatusForbidden,
	boardauth.CodeLoginRateLimited:     http.StatusTooManyRequests,
	boardauth.CodeEngineNotReady:       http.StatusServiceUnavailable,
	viewcount.ErrPostNotFound.Code:     http.StatusNotFound,
	codeValidation:                     http.StatusUnprocessableEntity,
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
	TraceID string `json:"trace_id"`
}

// fieldError is one entry of a VALIDATION_ERROR details list.
type fieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func validationError(fields ...fieldError) *boardauth.Error {
	return &boardauth.Error{
		Code:    codeValidation,
		Message: "Input validation failed.",
		Details: map[string]any{"fields": fields},
	}
}

func errorHandler(base *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		body.TraceID = traceID(c)

		if status >= http.StatusInternalServerError {
			l := logging.FromContext(c.Request().Context())
			if l == slog.Default() {
				l = base
			}
			l.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}
		if body.Code == boardauth.CodeInvalidToken {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func renderError(err error) (int, ErrorBody) {
	var domainErr *boardauth.Error
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		body := ErrorBody{Code: domainErr.Code, Message: domainErr.Message}
		if len(domainErr.Details) > 0 {
			body.Details = domainErr.Details
		}
		return status, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorBody{Code: codeHTTP, Message: msg}
	}

	return http.StatusInternalServerError, ErrorBody{
		Code:    codeInternal,
		Message: "An unexpected error occurred. Please try again later.",
	}
}
