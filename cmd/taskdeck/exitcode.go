package main

import (
	"errors"
	"net/http"

	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/state"
)

// Exit codes.
const (
	exitSuccess = 0

	// exitUserError covers bad arguments, invalid input and rejected requests.
	exitUserError = 1

	// exitAuthError covers missing sessions and rejected credentials.
	exitAuthError = 2

	// exitBackendError covers server failures and unreachable servers.
	exitBackendError = 3
)

// usageError marks failures caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	var (
		precondition *state.PreconditionError
		validation   *client.ValidationError
		transport    *client.TransportError
		apiErr       *client.APIError
		usage        usageError
	)
	switch {
	case errors.As(err, &usage), errors.As(err, &validation):
		return exitUserError
	case errors.As(err, &precondition):
		return exitAuthError
	case errors.As(err, &transport):
		return exitBackendError
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return exitAuthError
		case apiErr.Status >= 500:
			return exitBackendError
		default:
			return exitUserError
		}
	}
	// Flag parsing and argument count errors from cobra end up here.
	return exitUserError
}
