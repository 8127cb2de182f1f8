package storage

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when an entry references an unregistered user.
var ErrUserNotFound = errors.New("user not found")

// Error is a failed database call: connection loss, constraint violation or timeout.
type Error struct {
	Op     string
	UserID int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s (user %d): %v", e.Op, e.UserID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, userID int64, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, UserID: userID, Err: err}
}
