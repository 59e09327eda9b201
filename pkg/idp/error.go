package idp

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeAccessDenied        ErrorCode = "access_denied"
	ErrorCodeInvalidClient       ErrorCode = "invalid_client"
	ErrorCodeInvalidGrant        ErrorCode = "invalid_grant"
	ErrorCodeInvalidRequest      ErrorCode = "invalid_request"
	ErrorCodeInvalidRequestURI   ErrorCode = "invalid_request_uri"
	ErrorCodeInvalidScope        ErrorCode = "invalid_scope"
	ErrorCodeUnauthorizedClient  ErrorCode = "unauthorized_client"
	ErrorCodeInvalidAuthDetails  ErrorCode = "invalid_authorization_details"
	ErrorCodeUnsupportedGrant    ErrorCode = "unsupported_grant_type"
	ErrorCodeInvalidRequestObj   ErrorCode = "invalid_request_object"
	ErrorCodeUnsupportedResponse ErrorCode = "unsupported_response_type"
	ErrorCodeAuthPending         ErrorCode = "authorization_pending"
	ErrorCodeSlowDown            ErrorCode = "slow_down"
	ErrorCodeExpiredToken        ErrorCode = "expired_token"
	ErrorCodeMissingUserCode     ErrorCode = "missing_user_code"
	ErrorCodeInvalidUserCode     ErrorCode = "invalid_user_code"
	ErrorCodeInvalidBindingMsg   ErrorCode = "invalid_binding_message"
	ErrorCodeUnknownUserID       ErrorCode = "unknown_user_id"
	ErrorCodeIssuancePending     ErrorCode = "issuance_pending"
	ErrorCodeInternalError       ErrorCode = "server_error"
)

func (c ErrorCode) StatusCode() int {
	switch c {
	case ErrorCodeAccessDenied:
		return http.StatusForbidden
	case ErrorCodeInvalidClient, ErrorCodeUnauthorizedClient:
		return http.StatusUnauthorized
	case ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is the OAuth error sent back to clients. The wrapped error is only
// ever logged, it never reaches a response body.
type Error struct {
	Code        ErrorCode `json:"error,omitempty"`
	Description string    `json:"error_description,omitempty"`
	wrapped     error
}

func NewError(code ErrorCode, desc string) Error {
	return Error{
		Code:        code,
		Description: desc,
	}
}

func Errorf(code ErrorCode, desc string, err error) Error {
	return Error{
		Code:        code,
		Description: desc,
		wrapped:     err,
	}
}

func (err Error) Error() string {
	if err.wrapped == nil {
		return fmt.Sprintf("%s %s", err.Code, err.Description)
	}

	return fmt.Sprintf("%s %s: %v", err.Code, err.Description, err.wrapped)
}

func (err Error) StatusCode() int {
	return err.Code.StatusCode()
}

func (err Error) Unwrap() error {
	return err.wrapped
}
