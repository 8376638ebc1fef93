package services

import "errors"

var (
	// ErrInvalidInput wraps request validation failures. The wrapped chain
	// carries validator.ValidationErrors when field rules failed.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrUnknownRoute indicates a quote referenced an airport that is not in the catalogue.
	ErrUnknownRoute = errors.New("services: unknown route")
)
