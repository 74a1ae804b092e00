/*
capacity.go - Session Capacity Manager

PURPOSE:
  Owns the invariant "a session's occupancy never exceeds its configured
  capacity" and exposes the only two operations that mutate membership:
  Enroll and Cancel.

ATOMICITY:
  Each call serializes per session (keyed mutex) and runs its read-check-
  write sequence inside one store transaction. Concurrent Enroll calls on
  the same session therefore behave as if executed in some serial order;
  calls on different sessions proceed in parallel.

OUTCOME, NOT EXCEPTION:
  Enroll and Cancel return a structured EnrollResult with a human-readable
  reason. Retrying an enroll for a seat already held, or a cancel for a seat
  not held, is a quiet idempotent outcome, never an error. Only
  infrastructure failures come back through the error return.

SEE ALSO:
  - types.go: Session.OpenForEnrollment and the capacity helpers
  - store.go: AddSessionMember's uniqueness contract
*/
package school

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// ENROLL RESULT - structured outcome for the boundary layer
// =============================================================================

type EnrollOutcome string

const (
	OutcomeEnrolled        EnrollOutcome = "enrolled"
	OutcomeAlreadyEnrolled EnrollOutcome = "already_enrolled"
	OutcomeSessionFull     EnrollOutcome = "session_full"
	OutcomeNotAvailable    EnrollOutcome = "not_available"
	OutcomeNotFound        EnrollOutcome = "not_found"
	OutcomeCancelled       EnrollOutcome = "cancelled"
	OutcomeNotEnrolled     EnrollOutcome = "not_enrolled"
)

// EnrollResult is the definite outcome of an enroll or cancel attempt.
// OK is true only when membership actually changed.
type EnrollResult struct {
	OK      bool
	Outcome EnrollOutcome
	Reason  string
}

func enrollResult(ok bool, outcome EnrollOutcome, reason string) EnrollResult {
	return EnrollResult{OK: ok, Outcome: outcome, Reason: reason}
}

// =============================================================================
// CAPACITY MANAGER
// =============================================================================

// CapacityManager performs atomic seat reservation and release.
type CapacityManager struct {
	store TxStore
	locks *keyedMutex

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func NewCapacityManager(store TxStore) *CapacityManager {
	return &CapacityManager{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (cm *CapacityManager) SetClock(now func() time.Time) { cm.now = now }

// Enroll atomically checks capacity and reserves a seat.
//
// Outcomes:
//   - NotFound:        session or customer absent
//   - NotAvailable:    availability gate off, or the session has started
//   - AlreadyEnrolled: the customer holds a seat (idempotent no-op)
//   - SessionFull:     occupancy == capacity
//   - Enrolled:        seat reserved
func (cm *CapacityManager) Enroll(ctx context.Context, sessionID SessionID, customerID CustomerID) (EnrollResult, error) {
	unlock := cm.locks.Lock(string(sessionID))
	defer unlock()

	var result EnrollResult
	err := cm.store.WithTx(ctx, func(s Store) error {
		session, err := s.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				result = enrollResult(false, OutcomeNotFound, "session not found")
				return nil
			}
			return err
		}

		exists, err := s.CustomerExists(ctx, customerID)
		if err != nil {
			return err
		}
		if !exists {
			result = enrollResult(false, OutcomeNotFound, "customer not found")
			return nil
		}

		if !session.OpenForEnrollment(cm.now()) {
			result = enrollResult(false, OutcomeNotAvailable, "this session is not available for enrollment")
			return nil
		}

		if session.IsMember(customerID) {
			result = enrollResult(false, OutcomeAlreadyEnrolled, "you are already enrolled in this session")
			return nil
		}

		if !session.HasCapacity() {
			result = enrollResult(false, OutcomeSessionFull, "session is already at full capacity")
			return nil
		}

		if err := s.AddSessionMember(ctx, sessionID, customerID); err != nil {
			// The unique membership index fired under a race we didn't see;
			// fold it into the idempotent outcome.
			if errors.Is(err, ErrDuplicateMembership) {
				result = enrollResult(false, OutcomeAlreadyEnrolled, "you are already enrolled in this session")
				return nil
			}
			return err
		}

		result = enrollResult(true, OutcomeEnrolled, "successfully enrolled in session")
		return nil
	})
	if err != nil {
		return EnrollResult{}, err
	}
	return result, nil
}

// Cancel atomically releases the customer's seat. Cancellation never fails
// on capacity, and cancelling a seat that isn't held is a quiet no-op.
func (cm *CapacityManager) Cancel(ctx context.Context, sessionID SessionID, customerID CustomerID) (EnrollResult, error) {
	// Same lock as Enroll so a racing cancel+enroll on one session cannot
	// interleave into a lost update.
	unlock := cm.locks.Lock(string(sessionID))
	defer unlock()

	var result EnrollResult
	err := cm.store.WithTx(ctx, func(s Store) error {
		session, err := s.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				result = enrollResult(false, OutcomeNotFound, "session not found")
				return nil
			}
			return err
		}

		exists, err := s.CustomerExists(ctx, customerID)
		if err != nil {
			return err
		}
		if !exists {
			result = enrollResult(false, OutcomeNotFound, "customer not found")
			return nil
		}

		if !session.IsMember(customerID) {
			result = enrollResult(false, OutcomeNotEnrolled, "you are not enrolled in this session")
			return nil
		}

		if err := s.RemoveSessionMember(ctx, sessionID, customerID); err != nil {
			return err
		}

		result = enrollResult(true, OutcomeCancelled, "successfully canceled enrollment")
		return nil
	})
	if err != nil {
		return EnrollResult{}, err
	}
	return result, nil
}
