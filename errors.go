package boardauth

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by Engine operations. Code is stable
// and machine-readable; Message is safe to show to clients. errors.Is
// matches two *Error values by Code, so a copy carrying Details still
// matches its sentinel.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

// WithMessage returns a copy of e with a different client message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

const (
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenPayloadInvalid  = "TOKEN_PAYLOAD_INVALID"
	CodeRefreshTokenNotFound = "REFRESH_TOKEN_NOT_FOUND"
	CodeRefreshTokenExpired  = "REFRESH_TOKEN_EXPIRED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeEmailExists          = "EMAIL_EXISTS"
	CodeNicknameExists       = "NICKNAME_EXISTS"
	CodePasswordPolicy       = "PASSWORD_VALIDATION_FAILED"
	CodeRuleViolation        = "RULE_VIOLATION"
	CodeLoginRateLimited     = "LOGIN_RATE_LIMITED"
	CodeEngineNotReady       = "ENGINE_NOT_READY"
)

var (
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "Invalid email or password."}
	// ErrInvalidToken covers bad signatures, expiry, wrong token type, a
	// missing subject and a refresh token with no matching stored row.
	ErrInvalidToken         = &Error{Code: CodeInvalidToken, Message: "Invalid authentication token."}
	ErrTokenPayloadInvalid  = &Error{Code: CodeTokenPayloadInvalid, Message: "Invalid token payload."}
	ErrRefreshTokenNotFound = &Error{Code: CodeRefreshTokenNotFound, Message: "Refresh token not found."}
	ErrRefreshTokenExpired  = &Error{Code: CodeRefreshTokenExpired, Message: "Refresh token has expired."}
	ErrUserNotFound         = &Error{Code: CodeUserNotFound, Message: "User not found."}
	ErrEmailExists          = &Error{Code: CodeEmailExists, Message: "Email is already taken."}
	ErrNicknameExists       = &Error{Code: CodeNicknameExists, Message: "Nickname is already taken."}
	// ErrPasswordPolicy carries the violated rule as its Message.
	ErrPasswordPolicy   = &Error{Code: CodePasswordPolicy, Message: "Password does not meet the policy."}
	ErrRuleViolation    = &Error{Code: CodeRuleViolation, Message: "Admin privileges required."}
	ErrLoginRateLimited = &Error{Code: CodeLoginRateLimited, Message: "Too many login attempts."}
	ErrEngineNotReady   = &Error{Code: CodeEngineNotReady, Message: "Authentication engine is not initialized."}
)

func userNotFound(userID string) *Error {
	return ErrUserNotFound.WithDetails(map[string]any{"user_id": userID})
}

func emailExists(email string) *Error {
	return ErrEmailExists.WithMessage("Email '%s' is already taken.", email)
}

func nicknameExists(nickname string) *Error {
	return ErrNicknameExists.WithMessage("Nickname '%s' is already taken.", nickname)
}
