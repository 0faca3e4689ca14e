package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidArgument marks a missing or malformed identifier caught before any remote call.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	// ErrInvalidTokenResponse means the OAuth provider answered 2xx without access_token or companyId.
	ErrInvalidTokenResponse  = errors.New("invalid token response")
	ErrCompanyTokenNotFound  = errors.New("company token not found")
	ErrInvalidInstallRequest = errors.New("invalid install request")
	ErrInvalidPayload        = errors.New("invalid payload")
	// ErrUpstream is wrapped by every remote API failure.
	ErrUpstream = errors.New("upstream request failed")
)

// HTTPStatus maps an error chain onto the status code the route layer returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidInstallRequest),
		errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCompanyTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTokenResponse), errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
