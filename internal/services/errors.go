package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidOrExpiredCode covers unknown, consumed and expired passcodes alike.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrUnauthorized covers missing, malformed, unknown and expired session tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned when a user id resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a whitelisted phone or Telegram id is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrLessonNotFound is returned when a lesson id resolves to nothing.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrStorage marks any fault reported by the backing database.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a database fault with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the driver error to errors.Is/As.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Clock returns the current instant. Services default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
