package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPartyNotFound      = errors.New("party not found")
	ErrAlreadySigned      = errors.New("party already signed")
	ErrTokenExpired       = errors.New("signature token expired")
	ErrTokenInvalid       = errors.New("signature token invalid")
	ErrContractMismatch   = errors.New("token does not match contract")
	ErrCompletedImmutable = errors.New("completed contract cannot be deleted")
	ErrSignatureForged    = errors.New("signature verification hash mismatch")
	ErrConflict           = errors.New("contract version conflict")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrPartiesLocked      = errors.New("party set is fixed once signing begins")
	ErrSigningClosed      = errors.New("contract is not open for signing")
	ErrPolicyDenied       = errors.New("policy denied")
	ErrNotCompleted       = errors.New("contract is not completed")
)

// ValidationError identifies the offending field so callers can surface a
// precise message. It is raised before any repository write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError is a state error, distinct from validation: the
// input was well-formed but the current status forbids the move.
type InvalidTransitionError struct {
	From ContractStatus
	To   ContractStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func IsInvalidTransition(err error) bool {
	var terr *InvalidTransitionError
	return errors.As(err, &terr)
}
