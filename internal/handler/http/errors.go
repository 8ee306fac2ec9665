package http

import "errors"

var (
	// ErrEmptyAuthorizationHeader is returned when the "Authorization" header
	// is absent from the request.
	ErrEmptyAuthorizationHeader = errors.New("empty authorization header")
	// ErrInvalidAuthorizationHeader is returned when the header cannot be
	// split into a scheme and a token.
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")
	// ErrEmptyToken is returned when the bearer token part is an empty string.
	ErrEmptyToken = errors.New("empty token")
)
