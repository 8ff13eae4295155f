// Package services holds the business rules of the journal: registration,
// login, password changes and note ownership.
package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrDuplicateEmail = errors.New("user already exists")
	ErrAuthFailure    = errors.New("invalid credentials")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrPersistence    = errors.New("persistence failure")
)

func validationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// RejectedError is a password change refused for a reason the user can act on
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

const (
	ReasonUserNotFound     = "user not found"
	ReasonWrongOldPassword = "wrong old password"
	ReasonSamePassword     = "same password"
	ReasonNewPasswordEmpty = "new password required"
)
