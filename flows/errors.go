package flows

import "fmt"

// Error codes surfaced through Code() for handler summary logging.
const (
	CodeValidation       = "VALIDATION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeInsufficientPool = "INSUFFICIENT_POOL"
	CodeRepository       = "REPOSITORY"
	CodeStaleSession     = "STALE_SESSION"
)

// Error is a flow-level failure with a stable machine-readable code.
type Error struct {
	code string
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Code returns the stable error code.
func (e *Error) Code() string { return e.code }

func (e *Error) Unwrap() error { return e.err }

// ErrUnauthorized marks actions from roles lacking permission. Handlers drop
// the input silently so the flow's existence is not leaked.
var ErrUnauthorized = &Error{code: CodeUnauthorized, msg: "flow not permitted for role"}

// ErrStaleSession marks actions arriving after the session was cleared or
// superseded. Handlers answer with a neutral notice.
var ErrStaleSession = &Error{code: CodeStaleSession, msg: "no active session for action"}

func validationErr(msg string) *Error {
	return &Error{code: CodeValidation, msg: msg}
}

func notFoundErr(msg string, err error) *Error {
	return &Error{code: CodeNotFound, msg: msg, err: err}
}

func poolErr(err error) *Error {
	return &Error{code: CodeInsufficientPool, msg: "exercise pool exhausted", err: err}
}

func repoErr(msg string, err error) *Error {
	return &Error{code: CodeRepository, msg: msg, err: err}
}
