package grammar

import (
	"errors"
	"fmt"
)

// Sentinel errors for grammar decoding.
var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidShape  = errors.New("invalid shape")
	ErrInvalidRegex  = errors.New("invalid regex")
	ErrUnknownFormat = errors.New("unknown grammar format")
)

// FieldError names the field of a grammar definition that failed to decode.
// Path is dotted/indexed, e.g. "repository.strings.patterns[1].begin".
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(path string, err error) error {
	return &FieldError{Path: path, Err: err}
}
