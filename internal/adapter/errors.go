package adapter

import (
	"errors"
	"fmt"
)

// ErrSwitchTimeout means the switch did not answer within the call deadline.
var ErrSwitchTimeout = errors.New("switch timeout")

// TransientError marks a failure worth retrying: the switch was unavailable
// or refused the connection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is an explicit rejection or an unusable answer. It is never
// retried.
type PermanentError struct {
	StatusCode int // 0 when the failure was not an HTTP status
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent: http %d: %v", e.StatusCode, e.Err)
	}
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
