/*
reconcile.go - Payment mutations + paid-flag reconciliation

PURPOSE:
  Every mutation of an enrollment's payment set goes through here, and every
  one of them ends with the same reconciliation step: recompute the COMPLETED
  total with the ledger calculator and persist the enrollment's IsPaid flag
  if it changed, inside the same transaction as the mutation. IsPaid is
  therefore never stale relative to the ledger.

OVERPAYMENT:
  The COMPLETED total may never exceed the program price. RecordPayment
  checks this before inserting; UpdatePayment re-checks it when a payment
  transitions INTO completed status. The check and the write share one
  per-enrollment critical section and one transaction, so two concurrent
  payments cannot both slip under the limit.

RECEIPT NUMBERS:
  Format REC-YYYYMMDD-NNNNN. The sequence comes from the store's atomic
  counter, issued inside the payment transaction, so concurrent issuance
  cannot collide. The store additionally keeps a unique index on the column.

SEE ALSO:
  - ledger.go: the pure arithmetic this service persists
  - enrollment.go: lifecycle transitions (orthogonal to IsPaid)
*/
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT SERVICE
// =============================================================================

type PaymentService struct {
	store TxStore
	locks *keyedMutex
	now   func() time.Time
}

func NewPaymentService(store TxStore) *PaymentService {
	return &PaymentService{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (ps *PaymentService) SetClock(now func() time.Time) { ps.now = now }

// PaymentView is a payment enriched with the enrollment's derived ledger
// state at the time of the call.
type PaymentView struct {
	Payment
	Ledger LedgerSummary
}

// RecordPayment appends a COMPLETED payment to the enrollment's ledger.
//
// Fails with ErrEnrollmentNotFound if the enrollment is absent, with
// ErrInvalidPayment for a non-positive amount, and with *OverPaymentError
// if the completed total plus amount would exceed the program price.
func (ps *PaymentService) RecordPayment(
	ctx context.Context,
	actor Actor,
	enrollmentID EnrollmentID,
	amount decimal.Decimal,
	method PaymentMethod,
	description string,
) (*PaymentView, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayment, amount)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, method)
	}

	unlock := ps.locks.Lock(string(enrollmentID))
	defer unlock()

	var view *PaymentView
	err := ps.store.WithTx(ctx, func(s Store) error {
		enrollment, err := s.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		program, err := s.GetProgram(ctx, enrollment.ProgramID)
		if err != nil {
			return err
		}
		existing, err := s.PaymentsByEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}

		totalPaid := TotalPaid(existing)
		if totalPaid.Add(amount).GreaterThan(program.Price) {
			return &OverPaymentError{
				EnrollmentID: enrollmentID,
				Price:        program.Price,
				TotalPaid:    totalPaid,
				Attempted:    amount,
			}
		}

		now := ps.now()
		receipt, err := ps.issueReceipt(ctx, s, now)
		if err != nil {
			return err
		}

		payment := Payment{
			ID:            PaymentID(uuid.NewString()),
			EnrollmentID:  enrollmentID,
			Amount:        amount,
			PaidAt:        now,
			Method:        method,
			Status:        PaymentCompleted,
			Description:   description,
			ReceiptNumber: receipt,
		}
		if err := s.SavePayment(ctx, payment); err != nil {
			return err
		}

		summary, err := reconcile(ctx, s, enrollment, program)
		if err != nil {
			return err
		}
		view = &PaymentView{Payment: payment, Ledger: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// PaymentPatch carries the mutable payment fields. Nil means unchanged.
type PaymentPatch struct {
	Status      *PaymentStatus
	Method      *PaymentMethod
	Description *string
}

// UpdatePayment applies the patch and re-runs reconciliation. A transition
// into COMPLETED status is an overpayment check like RecordPayment's.
func (ps *PaymentService) UpdatePayment(ctx context.Context, actor Actor, id PaymentID, patch PaymentPatch) (*PaymentView, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidPayment, *patch.Status)
	}
	if patch.Method != nil && !patch.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, *patch.Method)
	}

	// Resolve the owning enrollment first so we lock the right key.
	payment, err := ps.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := ps.locks.Lock(string(payment.EnrollmentID))
	defer unlock()

	var view *PaymentView
	err = ps.store.WithTx(ctx, func(s Store) error {
		// Reload under the lock; the pre-lock read may be stale.
		p, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		enrollment, err := s.GetEnrollment(ctx, p.EnrollmentID)
		if err != nil {
			return err
		}
		program, err := s.GetProgram(ctx, enrollment.ProgramID)
		if err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status == PaymentCompleted && p.Status != PaymentCompleted {
			existing, err := s.PaymentsByEnrollment(ctx, p.EnrollmentID)
			if err != nil {
				return err
			}
			totalPaid := TotalPaid(existing)
			if totalPaid.Add(p.Amount).GreaterThan(program.Price) {
				return &OverPaymentError{
					EnrollmentID: p.EnrollmentID,
					Price:        program.Price,
					TotalPaid:    totalPaid,
					Attempted:    p.Amount,
				}
			}
		}

		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.Method != nil {
			p.Method = *patch.Method
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if err := s.SavePayment(ctx, *p); err != nil {
			return err
		}

		summary, err := reconcile(ctx, s, enrollment, program)
		if err != nil {
			return err
		}
		view = &PaymentView{Payment: *p, Ledger: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DeletePayment removes the payment and re-runs reconciliation so IsPaid
// reflects the shrunken ledger.
func (ps *PaymentService) DeletePayment(ctx context.Context, actor Actor, id PaymentID) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}

	payment, err := ps.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}

	unlock := ps.locks.Lock(string(payment.EnrollmentID))
	defer unlock()

	return ps.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		enrollment, err := s.GetEnrollment(ctx, p.EnrollmentID)
		if err != nil {
			return err
		}
		program, err := s.GetProgram(ctx, enrollment.ProgramID)
		if err != nil {
			return err
		}

		if err := s.DeletePayment(ctx, id); err != nil {
			return err
		}

		_, err = reconcile(ctx, s, enrollment, program)
		return err
	})
}

// =============================================================================
// READS
// =============================================================================

// GetPayment returns one payment with its ledger summary.
func (ps *PaymentService) GetPayment(ctx context.Context, id PaymentID) (*PaymentView, error) {
	p, err := ps.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := ps.summaryFor(ctx, p.EnrollmentID)
	if err != nil {
		return nil, err
	}
	return &PaymentView{Payment: *p, Ledger: summary}, nil
}

// PaymentsByEnrollment returns the enrollment's ledger, each entry carrying
// the same (current) summary.
func (ps *PaymentService) PaymentsByEnrollment(ctx context.Context, id EnrollmentID) ([]PaymentView, error) {
	payments, err := ps.store.PaymentsByEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := ps.summaryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, PaymentView{Payment: p, Ledger: summary})
	}
	return views, nil
}

// PaymentsByCustomer returns payments across all of a customer's
// enrollments, newest first.
func (ps *PaymentService) PaymentsByCustomer(ctx context.Context, id CustomerID) ([]Payment, error) {
	return ps.store.PaymentsByCustomer(ctx, id)
}

// ListPayments returns every payment in the store.
func (ps *PaymentService) ListPayments(ctx context.Context) ([]Payment, error) {
	return ps.store.ListPayments(ctx)
}

func (ps *PaymentService) summaryFor(ctx context.Context, id EnrollmentID) (LedgerSummary, error) {
	enrollment, err := ps.store.GetEnrollment(ctx, id)
	if err != nil {
		return LedgerSummary{}, err
	}
	program, err := ps.store.GetProgram(ctx, enrollment.ProgramID)
	if err != nil {
		return LedgerSummary{}, err
	}
	payments, err := ps.store.PaymentsByEnrollment(ctx, id)
	if err != nil {
		return LedgerSummary{}, err
	}
	return Summarize(program.Price, payments), nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// reconcile recomputes the derived ledger state and persists the IsPaid
// flag if it changed. Runs inside the caller's transaction.
func reconcile(ctx context.Context, s Store, enrollment *Enrollment, program *TrainingProgram) (LedgerSummary, error) {
	payments, err := s.PaymentsByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return LedgerSummary{}, err
	}
	summary := Summarize(program.Price, payments)
	if enrollment.IsPaid != summary.FullyPaid {
		enrollment.IsPaid = summary.FullyPaid
		if err := s.SaveEnrollment(ctx, *enrollment); err != nil {
			return LedgerSummary{}, err
		}
	}
	return summary, nil
}

// issueReceipt builds the next unique receipt number from the store's
// atomic sequence. The sequence is embedded whole: %05d pads short values
// and wider values simply grow the field, so no two sequences ever render
// the same receipt.
func (ps *PaymentService) issueReceipt(ctx context.Context, s Store, now time.Time) (string, error) {
	seq, err := s.NextReceiptSeq(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REC-%s-%05d", now.Format("20060102"), seq), nil
}

// Reverify recomputes IsPaid for one enrollment outside any payment
// mutation. Used by operational tooling after manual data fixes.
func (ps *PaymentService) Reverify(ctx context.Context, enrollmentID EnrollmentID) (LedgerSummary, error) {
	unlock := ps.locks.Lock(string(enrollmentID))
	defer unlock()

	var summary LedgerSummary
	err := ps.store.WithTx(ctx, func(s Store) error {
		enrollment, err := s.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		program, err := s.GetProgram(ctx, enrollment.ProgramID)
		if err != nil {
			return err
		}
		summary, err = reconcile(ctx, s, enrollment, program)
		return err
	})
	if err != nil {
		return LedgerSummary{}, err
	}
	return summary, nil
}
