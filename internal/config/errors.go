package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks bad, missing or contradictory configuration input.
	ErrInvalid = errors.New("invalid configuration")

	// ErrParse indicates a job description that is not well-formed YAML.
	ErrParse = errors.New("malformed job description")
)

// Error is a configuration error tied to the offending key.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Invalidf builds a configuration error for field.
func Invalidf(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}
