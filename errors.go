package accounts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

const errorDomain = "accounts"

// Error codes attached to the errors returned by this package.
const (
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeTooManyLoginAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	CodeUserInactive         = "USER_INACTIVE"
	CodeEmailTaken           = "EMAIL_TAKEN"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenMalformed       = "TOKEN_MALFORMED"
	CodeResendThrottled      = "RESEND_THROTTLED"
	CodeNotFound             = "NOT_FOUND"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL"
	CodeOperationCancelled   = "OPERATION_CANCELLED"
	CodeInvalidPassword      = "INVALID_PASSWORD"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrMismatchedHashAndPassword is returned when credentials do not match.
var ErrMismatchedHashAndPassword = errors.New("invalid email or password")

// ErrTooManyLoginAttempts is returned while an account cools down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts")

// ErrUserInactive is returned when a deactivated user tries to log in.
var ErrUserInactive = errors.New("user account is inactive")

// ErrEmailTaken is returned when signing up with a registered email.
var ErrEmailTaken = errors.New("a user with that email already exists")

// ErrInvalidToken is returned for link tokens that do not check.
var ErrInvalidToken = errors.New("invalid or expired link")

// ErrTokenExpired is returned for expired session tokens.
var ErrTokenExpired = errors.New("token is expired")

// ErrTokenMalformed is returned for session tokens that can not be parsed.
var ErrTokenMalformed = errors.New("token is malformed")

// ErrResendThrottled is returned when a verification email was sent too recently.
var ErrResendThrottled = errors.New("verification email sent recently")

// ErrNoEmptyString is returned when a required value is blank.
var ErrNoEmptyString = errors.New("value must not be empty")

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

func accountsError(code string) oops.OopsErrorBuilder {
	return oops.In(errorDomain).Code(code)
}

func internalError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if _, ok := oops.AsOops(err); ok {
		return oops.In(errorDomain).Wrapf(err, "%s", msg)
	}

	return accountsError(CodeInternal).Wrapf(err, "%s", msg)
}

func cancelledError(err error, operation string) error {
	return accountsError(CodeOperationCancelled).
		With("operation", operation).
		Wrapf(err, "context cancelled during %s", operation)
}

// ErrorCode returns the most specific code attached to err, or an empty
// string for errors without one.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := any(oopsErr.Code()).(string); ok {
		return code
	}

	return ""
}

// HTTPStatus maps an error to the status code the HTTP layer should use.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch ErrorCode(err) {
	case CodeInvalidCredentials, CodeUnauthenticated, CodeTokenExpired, CodeTokenMalformed:
		return http.StatusUnauthorized
	case CodeUserInactive, CodeForbidden:
		return http.StatusForbidden
	case CodeTooManyLoginAttempts, CodeResendThrottled:
		return http.StatusTooManyRequests
	case CodeEmailTaken:
		return http.StatusConflict
	case CodeInvalidToken, CodeNotFound:
		return http.StatusNotFound
	case CodeValidationFailed, CodeInvalidPassword:
		return http.StatusBadRequest
	case CodeOperationCancelled:
		return http.StatusRequestTimeout
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMismatchedHashAndPassword):
		return http.StatusUnauthorized
	}

	return http.StatusInternalServerError
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || ErrorCode(err) == CodeNotFound
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) ||
		ErrorCode(err) == CodeTokenExpired ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}
