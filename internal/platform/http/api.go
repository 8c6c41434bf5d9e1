package http

import (
	"fmt"
	"net/http"

	"github.com/farmaline-dev/farmaline/pkg/httpx"
)

// Error codes returned in API error bodies.
const (
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeInvalidCreds     = "invalid_credentials"
	ErrorCodeAccountLocked    = "account_locked"
	ErrorCodeTwoFactorNeeded  = "two_factor_required"
	ErrorCodeTwoFactorInvalid = "two_factor_invalid"
	ErrorCodeInvalidToken     = "invalid_token"
	ErrorCodeServerError      = "server_error"
)

// APIError is the error envelope every handler returns. It implements the
// error interface so services can bubble one up unchanged.
type APIError struct {
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest covers malformed bodies and bad parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials deliberately reads the same for an unknown
	// identifier and a wrong password.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCreds,
		Description: "incorrect identifier or password",
	}

	// ErrAccountLocked is returned while the lockout window is in force or
	// the identity carries an operator lock.
	ErrAccountLocked = &APIError{
		StatusCode:  http.StatusLocked,
		Code:        ErrorCodeAccountLocked,
		Description: "account temporarily locked after repeated failures",
	}

	// ErrTwoFactorRequired tells the client to retry the login with a code.
	ErrTwoFactorRequired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTwoFactorNeeded,
		Description: "a two-factor code is required to complete this login",
	}

	// ErrTwoFactorInvalid is returned for a wrong or already-spent code.
	ErrTwoFactorInvalid = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTwoFactorInvalid,
		Description: "the provided two-factor code is not valid",
	}

	// ErrInvalidToken is returned when the bearer token is missing or bad.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, or expired",
	}

	// ErrServerError is the catch-all for unexpected failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an internal error occurred",
	}
)
