package validations

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidDispatch  = errors.New("invalid dispatch")
	ErrUnknownBatchType = errors.New("unknown batch type")
	ErrModelNotFound    = errors.New("trait model not found")
	ErrModelDisabled    = errors.New("trait model disabled")
	ErrNoItems          = errors.New("dispatch contains no items")
	ErrNoModels         = errors.New("no enabled trait models")
)

// MapHTTPStatus translates validation dispatch errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidDispatch),
		errors.Is(err, ErrUnknownBatchType),
		errors.Is(err, ErrModelDisabled),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrNoModels):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
