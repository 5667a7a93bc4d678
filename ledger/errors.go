/*
errors.go - Centralized error taxonomy for the ledger and rule engines

PURPOSE:
  All expected failure modes in one place. Rule engine packages reuse these
  sentinels so callers can classify any error from the system with a single
  set of helpers.

ERROR CATEGORIES:
  1. Validation errors  - malformed or out-of-range input
  2. Not-found errors   - debtor/transaction/rule/contract id doesn't exist
  3. State conflicts    - operation invalid for the current state
  4. Storage corruption - persisted blob failed to parse (recovered, logged)

USAGE:
  Engines wrap sentinels with structured detail:

    if errors.Is(err, ledger.ErrDebtorLocked) {
        // render "debtor is locked" to the caller
    }

SEE ALSO:
  - service.go: Returns these from ledger mutations
  - api/handlers.go: Maps categories to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDebtorNotFound is returned when a referenced debtor doesn't exist.
	ErrDebtorNotFound = errors.New("debtor not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrDebtorLocked is returned when a mutation targets a locked debtor and
	// is not the qualifying unlock payment.
	ErrDebtorLocked = errors.New("debtor is locked")

	// ErrTransactionLocked is returned when editing or deleting a locked transaction.
	ErrTransactionLocked = errors.New("transaction is locked")

	// ErrAlreadyBound is returned when binding an interest rule to a debtor
	// that already has an active binding.
	ErrAlreadyBound = errors.New("debtor already has an active interest binding")

	// ErrRuleInactive is returned when binding against a disabled rule.
	ErrRuleInactive = errors.New("rule is not active")

	// ErrAlreadyPaid is returned when marking an incentive paid twice.
	ErrAlreadyPaid = errors.New("incentive already paid")

	// ErrAlreadySettled is returned when settling a multi-party debt twice.
	ErrAlreadySettled = errors.New("split already settled")

	// ErrContractComplete is returned when executing a payment on a contract
	// that has reached its total payment count.
	ErrContractComplete = errors.New("contract is complete")

	// ErrContractPaused is returned when executing a payment on a paused contract.
	ErrContractPaused = errors.New("contract is paused")

	// ErrStorageCorruption marks a persisted blob that failed to parse.
	// It is recovered at the storage boundary (reset + log), never returned
	// from the operations in this package.
	ErrStorageCorruption = errors.New("stored state is corrupted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError identifies which precondition a rejected input failed,
// so the caller can render an actionable message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError wraps a not-found sentinel with the offending id.
type NotFoundError struct {
	Kind string // "debtor", "transaction", "rule", "contract", "incentive", "split"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	switch e.Kind {
	case "debtor":
		return ErrDebtorNotFound
	case "transaction":
		return ErrTransactionNotFound
	case "contract":
		return ErrContractNotFound
	default:
		return ErrRuleNotFound
	}
}

// LockedError carries the lock context of a rejected mutation.
type LockedError struct {
	DebtorID DebtorID
	Reason   string
}

func (e *LockedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("debtor %s is locked", e.DebtorID)
	}
	return fmt.Sprintf("debtor %s is locked: %s", e.DebtorID, e.Reason)
}

func (e *LockedError) Unwrap() error { return ErrDebtorLocked }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid caller input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDebtorNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrContractNotFound)
}

// IsConflict returns true if the operation was invalid for the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDebtorLocked) ||
		errors.Is(err, ErrTransactionLocked) ||
		errors.Is(err, ErrAlreadyBound) ||
		errors.Is(err, ErrRuleInactive) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrContractComplete) ||
		errors.Is(err, ErrContractPaused)
}
