package traits

import (
	"errors"
	"net/http"
)

// Domain errors for trait model operations.
var (
	ErrNotFound     = errors.New("trait model not found")
	ErrDuplicate    = errors.New("trait model already exists")
	ErrInvalidModel = errors.New("invalid trait model")
)

// MapHTTPStatus maps trait domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidModel) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
