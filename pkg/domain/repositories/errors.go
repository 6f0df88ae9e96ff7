package repositories

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// GenericPersistenceMessage is shown when the backend gave no usable message
const GenericPersistenceMessage = "the change could not be saved, please try again"

// PersistenceError is a failure reported by the system of record.
// Message is the backend's human-readable explanation, if it gave one.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

// NewPersistenceError wraps err for the named operation
func NewPersistenceError(op, message string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Message: message, Err: err}
}

func (e *PersistenceError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": persistence failure"
	}
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UserMessage is the text to show the operator
func (e *PersistenceError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return GenericPersistenceMessage
}
