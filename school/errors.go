/*
errors.go - Centralized error types for the enrollment engine

PURPOSE:
  All domain error kinds in one place. Callers at the boundary match with
  errors.Is/errors.As and map each kind 1:1 to a transport response; none of
  these should ever surface as an unexpected failure.

ERROR CATEGORIES:
  1. Not-found errors  - referenced entity absent
  2. Rule violations   - capacity, availability, overpayment, duplicates
  3. Store errors      - infrastructure failures (the only fatal kind)

NOTE on idempotent outcomes:
  "already enrolled" and "not enrolled" are NOT errors. They are ordinary
  EnrollResult outcomes (see capacity.go), because a retried enroll or cancel
  must succeed quietly.

SEE ALSO:
  - capacity.go: returns ErrSessionFull / ErrSessionNotAvailable
  - reconcile.go: returns ErrOverPayment
  - store/sqlite: translates UNIQUE violations into these sentinels
*/
package school

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSessionNotFound is returned when a referenced session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrProgramNotFound is returned when a referenced training program doesn't exist.
	ErrProgramNotFound = errors.New("training program not found")

	// ErrEnrollmentNotFound is returned when a referenced enrollment doesn't exist.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrSessionFull is returned when an enroll attempt finds no free seat.
	ErrSessionFull = errors.New("session is at full capacity")

	// ErrSessionNotAvailable is returned when the session is closed for
	// enrollment (availability gate off, or start time already passed).
	ErrSessionNotAvailable = errors.New("session is not available for enrollment")

	// ErrSessionOccupied is returned when deleting a session that still has
	// enrolled members. Empty it first.
	ErrSessionOccupied = errors.New("session still has enrolled customers")

	// ErrOverPayment is returned when a payment would push the COMPLETED
	// total above the program price.
	ErrOverPayment = errors.New("payment exceeds remaining balance")

	// ErrDuplicateEnrollment is returned when the customer already has an
	// enrollment for the same program.
	ErrDuplicateEnrollment = errors.New("customer already enrolled in this program")

	// ErrDuplicateMembership is returned by stores when the membership row
	// already exists. The capacity manager converts it into the idempotent
	// "already enrolled" outcome.
	ErrDuplicateMembership = errors.New("customer already holds a seat in this session")

	// ErrDuplicateReceipt is returned by stores when a payment insert reuses
	// an already-issued receipt number. The sequence makes this unreachable;
	// it surfacing means the sequence state was tampered with.
	ErrDuplicateReceipt = errors.New("receipt number already issued")

	// ErrInvalidTransition is returned for an enrollment status change the
	// lifecycle state machine forbids.
	ErrInvalidTransition = errors.New("invalid enrollment status transition")

	// ErrInvalidSession is returned for malformed session definitions
	// (end before start, non-positive capacity).
	ErrInvalidSession = errors.New("invalid session definition")

	// ErrInvalidPayment is returned for malformed payment input
	// (non-positive amount, unknown method or status).
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrForbidden is returned when the acting identity lacks the role an
	// operation requires.
	ErrForbidden = errors.New("operation not permitted for this actor")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverPaymentError reports by how much a payment would exceed the price.
type OverPaymentError struct {
	EnrollmentID EnrollmentID
	Price        decimal.Decimal
	TotalPaid    decimal.Decimal
	Attempted    decimal.Decimal
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance: %s already paid of %s",
		e.Attempted, e.TotalPaid, e.Price)
}

func (e *OverPaymentError) Unwrap() error { return ErrOverPayment }

// TransitionError reports a forbidden enrollment status change.
type TransitionError struct {
	EnrollmentID EnrollmentID
	From         EnrollmentStatus
	To           EnrollmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("enrollment %s: cannot transition %s -> %s", e.EnrollmentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProgramNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsClientError returns true if the error is a business-rule violation the
// caller can act on, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSessionFull) ||
		errors.Is(err, ErrSessionNotAvailable) ||
		errors.Is(err, ErrSessionOccupied) ||
		errors.Is(err, ErrOverPayment) ||
		errors.Is(err, ErrDuplicateEnrollment) ||
		errors.Is(err, ErrDuplicateMembership) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrInvalidPayment)
}
