package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("article not found")
	ErrForbidden     = errors.New("permission denied")
	ErrLogin         = errors.New("login required")
	ErrAlreadyAgreed = errors.New("article already agreed from this address")
	ErrNotAgreed     = errors.New("article not agreed from this address")
)

// BadRequestError is a validation failure whose message is safe to show to the caller.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string {
	return e.Msg
}

func badRequest(format string, args ...any) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}
