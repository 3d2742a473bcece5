package items

import (
	"errors"
	"net/http"
)

// Domain errors for item operations.
var (
	ErrNotFound       = errors.New("item not found")
	ErrDuplicate      = errors.New("item already exists")
	ErrConflict       = errors.New("concurrent item update conflict")
	ErrInvalidItem    = errors.New("invalid item")
	ErrReviewNotFound = errors.New("no review pending for trait")
	ErrInvalidScore   = errors.New("score must be 0 or 1")
)

// MapHTTPStatus maps item domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrReviewNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidItem) || errors.Is(err, ErrInvalidScore) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
