package evaluation

import (
	"errors"
	"fmt"
)

// StatusHint tells a transport layer how to surface a failed evaluation.
type StatusHint string

const (
	HintNotFound    StatusHint = "not_found"
	HintBadRequest  StatusHint = "bad_request"
	HintServerError StatusHint = "server_error"
)

var (
	ErrSolicitudNotFound = errors.New("solicitud not found")
	ErrClientNotFound    = errors.New("client not found for solicitud")
	ErrNoBureauReports   = errors.New("no bureau reports for client")
)

// Error is a failed evaluation. No partial result accompanies it.
type Error struct {
	Hint StatusHint
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Hint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(err error) error   { return &Error{Hint: HintNotFound, Err: err} }
func badRequest(err error) error { return &Error{Hint: HintBadRequest, Err: err} }
func serverError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Hint: HintServerError, Err: err}
}

// StatusHintOf returns the hint carried by err, server_error for anything else.
func StatusHintOf(err error) StatusHint {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return HintServerError
}
