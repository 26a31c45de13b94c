package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials collapses unknown email and wrong password into one answer.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account was deactivated by an administrator.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrUnauthorized indicates a presented token is unusable.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller's role lacks the required rights.
	ErrForbidden = errors.New("forbidden")
	// ErrDBConflict indicates a uniqueness constraint rejected the write.
	ErrDBConflict = errors.New("conflicting record")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")

	ErrUserNotFound  = errors.New("user not found")
	ErrRoleNotFound  = errors.New("role not found")
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
