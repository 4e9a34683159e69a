package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the business-rule failures callers branch on.
var (
	// ErrBlocked is returned when a block in either direction forbids the action.
	ErrBlocked = errors.New("users are blocked")

	// ErrInactiveUser is returned when either party's account is not active.
	ErrInactiveUser = errors.New("user account is inactive")

	// ErrSelfTarget is returned when a user targets themself (swipe, message).
	ErrSelfTarget = errors.New("cannot target yourself")

	// ErrUserNotFound is returned when a caller-supplied user id has no row.
	ErrUserNotFound = errors.New("user not found")

	// ErrConversationNotFound is returned for a caller-supplied conversation
	// that does not exist or does not involve the caller.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ValidationError reports malformed caller input. Always recoverable by the
// caller correcting the input; no state was mutated.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation wraps a message as a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError is raised by wallet debits that would overdraw.
// It carries the amounts so callers can render a useful message. The failed
// debit never leaves partial state behind.
type InsufficientBalanceError struct {
	Required int
	Balance  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient coin balance: need %d, have %d", e.Required, e.Balance)
}

// IsValidation reports whether err is caller-input shaped.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPermission reports whether err is a permission/business-rule denial.
func IsPermission(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrInactiveUser) || errors.Is(err, ErrSelfTarget)
}

// IsInsufficientBalance reports whether err is a wallet overdraw refusal.
func IsInsufficientBalance(err error) bool {
	var i *InsufficientBalanceError
	return errors.As(err, &i)
}
