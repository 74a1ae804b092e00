/*
enrollment.go - Enrollment lifecycle

PURPOSE:
  Creation, status transitions, and deletion of program enrollments.
  A customer has at most one enrollment per training program; the store
  backs this with a unique index and this service checks it up front.

STATE MACHINE:
  PENDING -> ACTIVE | CANCELLED
  ACTIVE  -> COMPLETED | CANCELLED
  COMPLETED, CANCELLED are terminal.

  IsPaid is orthogonal to status and only ever written by reconcile.go.
  Cancelling an enrollment retains its payment history: the ledger is
  append-preserving, there is no implicit refund.

SEE ALSO:
  - reconcile.go: the only writer of IsPaid
  - store.go: DeleteEnrollment's owned-children contract
*/
package school

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENROLLMENT SERVICE
// =============================================================================

type EnrollmentService struct {
	store TxStore
	now   func() time.Time
}

func NewEnrollmentService(store TxStore) *EnrollmentService {
	return &EnrollmentService{store: store, now: time.Now}
}

// SetClock overrides the time source. Test use only.
func (es *EnrollmentService) SetClock(now func() time.Time) { es.now = now }

// Create registers a customer into a program. The new enrollment starts
// PENDING and unpaid. Fails with ErrDuplicateEnrollment if the pair exists.
func (es *EnrollmentService) Create(
	ctx context.Context,
	actor Actor,
	customerID CustomerID,
	programID ProgramID,
	startDate *time.Time,
	notes string,
) (*Enrollment, error) {
	var enrollment *Enrollment
	err := es.store.WithTx(ctx, func(s Store) error {
		exists, err := s.CustomerExists(ctx, customerID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrCustomerNotFound
		}
		if _, err := s.GetProgram(ctx, programID); err != nil {
			return err
		}

		dup, err := s.EnrollmentExists(ctx, customerID, programID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateEnrollment
		}

		enrollment = &Enrollment{
			ID:         EnrollmentID(uuid.NewString()),
			CustomerID: customerID,
			ProgramID:  programID,
			Status:     EnrollmentPending,
			EnrolledAt: es.now(),
			StartDate:  startDate,
			Notes:      notes,
			IsPaid:     false,
		}
		return s.SaveEnrollment(ctx, *enrollment)
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// EnrollmentPatch carries the staff-mutable fields. Nil means unchanged.
type EnrollmentPatch struct {
	Status         *EnrollmentStatus
	StartDate      *time.Time
	CompletionDate *time.Time
	Notes          *string
}

// Update applies the patch, enforcing the lifecycle state machine. Moving
// to ACTIVE stamps StartDate if unset; moving to COMPLETED stamps
// CompletionDate if unset.
func (es *EnrollmentService) Update(ctx context.Context, actor Actor, id EnrollmentID, patch EnrollmentPatch) (*Enrollment, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}

	var updated *Enrollment
	err := es.store.WithTx(ctx, func(s Store) error {
		e, err := s.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status != e.Status {
			if !e.Status.CanTransitionTo(*patch.Status) {
				return &TransitionError{EnrollmentID: id, From: e.Status, To: *patch.Status}
			}
			e.Status = *patch.Status
			now := es.now()
			switch e.Status {
			case EnrollmentActive:
				if e.StartDate == nil {
					e.StartDate = &now
				}
			case EnrollmentCompleted:
				if e.CompletionDate == nil {
					e.CompletionDate = &now
				}
			}
		}
		if patch.StartDate != nil {
			e.StartDate = patch.StartDate
		}
		if patch.CompletionDate != nil {
			e.CompletionDate = patch.CompletionDate
		}
		if patch.Notes != nil {
			e.Notes = *patch.Notes
		}

		if err := s.SaveEnrollment(ctx, *e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the enrollment and all of its payments in one transaction.
func (es *EnrollmentService) Delete(ctx context.Context, actor Actor, id EnrollmentID) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return es.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetEnrollment(ctx, id); err != nil {
			return err
		}
		return s.DeleteEnrollment(ctx, id)
	})
}

// =============================================================================
// READS
// =============================================================================

func (es *EnrollmentService) Get(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return es.store.GetEnrollment(ctx, id)
}

func (es *EnrollmentService) List(ctx context.Context) ([]Enrollment, error) {
	return es.store.ListEnrollments(ctx)
}

func (es *EnrollmentService) ByCustomer(ctx context.Context, id CustomerID) ([]Enrollment, error) {
	return es.store.EnrollmentsByCustomer(ctx, id)
}

func (es *EnrollmentService) ByProgram(ctx context.Context, id ProgramID) ([]Enrollment, error) {
	return es.store.EnrollmentsByProgram(ctx, id)
}
