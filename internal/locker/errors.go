package locker

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("locker: not authenticated")
	ErrDeviceLimit      = errors.New("locker: uploader device limit reached")
)

// CallFailure reports a transport-level failure of one logical call.
// Status is the HTTP status when the server answered, 0 otherwise.
type CallFailure struct {
	Call    string
	Message string
	Status  int
	Err     error
}

func (e *CallFailure) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("locker %s: %s: %v", e.Call, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("locker %s: %v", e.Call, e.Err)
	default:
		return fmt.Sprintf("locker %s: %s", e.Call, e.Message)
	}
}

func (e *CallFailure) Unwrap() error { return e.Err }

// SessionError is a session refusal carrying the server's numeric code.
type SessionError struct {
	Code   int
	Reason string
}

func (e *SessionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("upload session refused: code %d", e.Code)
	}
	return fmt.Sprintf("upload session refused: code %d: %s", e.Code, e.Reason)
}
