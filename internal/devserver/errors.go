package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned in response bodies.
const (
	CodeAccountUsernameExists = "ACCOUNT_ERR_01"
	CodeAccountNotFound       = "ACCOUNT_ERR_02"
	CodeInvalidCredentials    = "ACCOUNT_ERR_03"
	CodeAccountBadRequest     = "ACCOUNT_ERR_04"

	CodeUnauthorizedAccess = "ACCESS_TOKEN_ERR_01"
	CodeAccessTokenExpired = "ACCESS_TOKEN_ERR_02"
	CodeAuthHeaderNotFound = "ACCESS_TOKEN_ERR_03"
	CodeInvalidAuthHeader  = "ACCESS_TOKEN_ERR_04"
	CodeAccessTokenInvalid = "ACCESS_TOKEN_ERR_05"
	CodeResetTokenNotFound = "PASSWORD_RESET_TOKEN_ERR_01"
	CodeIncorrectOTP       = "OTP_ERR_01"
	CodeTaskNotFound       = "TASK_ERR_01"
	CodeTaskBadRequest     = "TASK_ERR_02"
	codeInternal           = "SERVER_ERR_01"
)

// apiError is a failure rendered as {"code", "message"} with an HTTP status.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func newAPIError(status int, code, format string, args ...any) *apiError {
	return &apiError{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

func taskNotFound(id string) *apiError {
	return newAPIError(http.StatusNotFound, CodeTaskNotFound, "Task with id %s not found.", id)
}

func taskBadRequest(msg string) *apiError {
	return newAPIError(http.StatusBadRequest, CodeTaskBadRequest, "%s", msg)
}

func accountBadRequest(msg string) *apiError {
	return newAPIError(http.StatusBadRequest, CodeAccountBadRequest, "%s", msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError renders err. Anything that is not an apiError is logged and
// reported as a 500 without leaking its text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := err.(*apiError)
	if !ok {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		apiErr = newAPIError(http.StatusInternalServerError, codeInternal, "Something went wrong. Please try again later.")
	}
	writeJSON(w, apiErr.Status, apiErr)
}
