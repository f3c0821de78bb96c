package brain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput rejects a cycle request before any stage runs.
var ErrInvalidInput = errors.New("invalid input")

// Guard runs fn and converts a panic into an error so one detector or
// generator cannot take down its siblings.
func Guard(component string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", component, r)
		}
	}()
	return fn()
}

// Failure converts an isolated component error into a recorded failure.
func Failure(component string, err error) ComponentFailure {
	return ComponentFailure{Component: component, Message: err.Error()}
}
