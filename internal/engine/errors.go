package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedModel indicates a model object outside the supported
	// capability sets. It signals caller misuse, not bad input data.
	ErrUnsupportedModel = errors.New("engine: unsupported model type")

	// ErrPlatformUnavailable indicates a compute platform that cannot be
	// instantiated on this host.
	ErrPlatformUnavailable = errors.New("engine: platform unavailable")

	// ErrUnsupportedFormat indicates a file format the engine cannot read.
	ErrUnsupportedFormat = errors.New("engine: unsupported file format")
)

// UnusedArgumentError reports a construction argument the model accepted
// but never consumed.
type UnusedArgumentError struct {
	Arg string
}

func (e *UnusedArgumentError) Error() string {
	return fmt.Sprintf("The argument '%s' was specified to createSystem() but was never used.", e.Arg)
}
