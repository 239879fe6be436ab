package inference

import (
	"errors"
)

// Components that can fail a forecast run.
const (
	ComponentSimulator = "simulator"
	ComponentFit       = "fit"
)

// ErrInvalidConfig is returned, before any sampling, for requests that do not
// describe a valid fit.
var ErrInvalidConfig = errors.New("invalid configuration")

// Error records which component failed a run.
type Error struct {
	Component string
	Err       error
}

func (e *Error) Error() string {
	return e.Component + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func fail(component string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Component: component, Err: err}
}
