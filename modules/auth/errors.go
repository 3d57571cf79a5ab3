package auth

import "fmt"

// CodeRefreshFailed is surfaced when a refresh cannot produce a usable token.
const CodeRefreshFailed = "REFRESH_FAILED"

// Error is a domain error identified by a literal code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrRefreshFailed)
// holds for wrapped variants too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrRefreshFailed fails the original call when the refresh endpoint answered
// without an access token.
var ErrRefreshFailed = &Error{Code: CodeRefreshFailed}
