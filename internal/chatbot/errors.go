package chatbot

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ConfigurationError   ErrorKind = "configuration_error"
	ModelUnavailable     ErrorKind = "model_unavailable"
	MalformedModelOutput ErrorKind = "malformed_model_output"
	ExecutionError       ErrorKind = "execution_error"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("chatbot: %s (%s)", e.Kind, e.Message)
	}
	return fmt.Sprintf("chatbot: %s (%s): %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Kind, true
	}
	return "", false
}
