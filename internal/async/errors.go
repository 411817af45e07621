package async

import "errors"

// ErrorInfo is the normalised shape of every failure an Operation records.
type ErrorInfo struct {
	Code    string
	Message string
}

// Error is returned by Invoke when the wrapped call fails. Its message is the
// normalised message; the structured form lives in Info and in the
// operation's State.
type Error struct {
	Info  ErrorInfo
	cause error
}

func (e *Error) Error() string { return e.Info.Message }

// Unwrap returns the original failure.
func (e *Error) Unwrap() error { return e.cause }

// coder is implemented by failures that carry a machine-readable code of their
// own, such as transport errors or local precondition errors.
type coder interface {
	ErrorCode() string
}

// serverError is implemented by failures whose body was a server-supplied
// {code, message} pair. Those fields win over everything else.
type serverError interface {
	ServerCode() string
	ServerMessage() string
}

// Normalize flattens any error into an ErrorInfo. Server-supplied code and
// message take precedence; each falls back independently to the error's own
// code and text.
func Normalize(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	info := ErrorInfo{Message: err.Error()}

	var c coder
	if errors.As(err, &c) {
		info.Code = c.ErrorCode()
	}

	var s serverError
	if errors.As(err, &s) {
		if code := s.ServerCode(); code != "" {
			info.Code = code
		}
		if msg := s.ServerMessage(); msg != "" {
			info.Message = msg
		}
	}
	return info
}
