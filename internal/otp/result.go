package otp

import "errors"

// Result is what every ledger command returns. Failures are values, not Go
// errors: Err holds one of the package sentinels (possibly wrapped) so callers
// can branch with errors.Is while still showing Message verbatim.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Code is only populated when the ledger is built with WithExposeCode.
	Code string `json:"code,omitempty"`
	Err  error  `json:"-"`
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}

func failure(err error, message string) Result {
	return Result{Message: message, Err: err}
}

// Is reports whether the result failed because of target.
func (r Result) Is(target error) bool {
	return r.Err != nil && errors.Is(r.Err, target)
}
