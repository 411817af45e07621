package state

// PreconditionError is raised locally, before any network call is made.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// ErrorCode implements the code lookup used by async.Normalize.
func (e *PreconditionError) ErrorCode() string { return e.Code }

var (
	// ErrAccessTokenNotFound means no access token is persisted.
	ErrAccessTokenNotFound = &PreconditionError{
		Code:    "ERR_ACCESS_TOKEN_NOT_FOUND",
		Message: "Access token not found",
	}

	// ErrAccountIDUnavailable means the account has not been loaded yet.
	ErrAccountIDUnavailable = &PreconditionError{
		Code:    "ERR_ACCOUNT_ID_UNAVAILABLE",
		Message: "Account ID not available",
	}
)
