package domain

import (
	"errors"
	"fmt"
)

// Expected user-facing outcomes. They cross the core boundary verbatim.
var (
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("document not found")
	ErrExpired         = errors.New("code expired")
	ErrInvalidCode     = errors.New("invalid code")
	ErrAlreadyConsumed = errors.New("document already printed")
)

// Internal signals. ErrConflict is the ledger's stale-state race marker and
// is translated to ErrAlreadyConsumed before leaving the core. ErrIntegrity
// means the stored ciphertext failed authentication and must alert, never
// be retried.
var (
	ErrConflict  = errors.New("stale document state")
	ErrIntegrity = errors.New("ciphertext integrity check failed")
)

// External collaborator failures.
var (
	ErrStorage   = errors.New("blob storage failure")
	ErrDelivery  = errors.New("notification delivery failure")
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
