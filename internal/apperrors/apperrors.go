// Package apperrors holds the error kinds the resolution pipeline can
// surface, and their mapping onto HTTP status codes.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCoordinate rejects negative or non-numeric query coordinates.
	// It is raised before any I/O happens.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidTimeFormat rejects hour strings that are not HH:MM:SS.
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrUpstreamUnavailable covers an unreachable live location feed as well
	// as a malformed payload from it.
	ErrUpstreamUnavailable = errors.New("location feed unavailable")
)

// HTTPStatus maps an error to the status code the API should answer with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCoordinate), errors.Is(err, ErrInvalidTimeFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
