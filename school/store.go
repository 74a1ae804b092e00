/*
store.go - Persistence interfaces for the enrollment engine

PURPOSE:
  Defines the interface between the domain logic and the database. Different
  implementations can use SQLite or in-memory storage; the domain services
  only ever see these interfaces.

KEY INTERFACES:
  Store:   All entity reads/writes (sessions, membership, enrollments,
           payments, customers, programs, receipt sequence)
  TxStore: Store plus WithTx for atomic multi-step units

ATOMIC UNITS:
  Every invariant-bearing operation (enroll, cancel, record/update/delete
  payment, delete enrollment) runs inside WithTx so either the whole unit is
  committed or none of it is. Stores must also enforce uniqueness of the
  membership row and of receipt numbers at the schema level, translating
  violations to the sentinels in errors.go.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - school/store/memory.go: In-memory for testing

SEE ALSO:
  - capacity.go, reconcile.go: the consumers of these interfaces
*/
package school

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Full persistence interface
// =============================================================================

type Store interface {
	SessionStore
	EnrollmentStore
	PaymentStore
	CustomerStore
	ProgramStore

	// NextReceiptSeq atomically increments and returns the global receipt
	// sequence. Two concurrent calls never observe the same value.
	NextReceiptSeq(ctx context.Context) (int64, error)
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SESSION + MEMBERSHIP
// =============================================================================

type SessionStore interface {
	// GetSession returns the session with its membership set eagerly loaded,
	// or ErrSessionNotFound.
	GetSession(ctx context.Context, id SessionID) (*Session, error)

	// SaveSession inserts or updates session fields. Membership is NOT
	// written here; it only changes through Add/RemoveSessionMember.
	SaveSession(ctx context.Context, s Session) error

	// DeleteSession removes the session. Implementations do not check
	// occupancy; SessionService does, inside the same transaction.
	DeleteSession(ctx context.Context, id SessionID) error

	ListSessions(ctx context.Context) ([]Session, error)

	// ListAvailableSessions returns available, scheduled sessions whose
	// start time is after 'now', with members loaded.
	ListAvailableSessions(ctx context.Context, now time.Time) ([]Session, error)

	// SessionsByCustomer returns the sessions the customer holds a seat in.
	SessionsByCustomer(ctx context.Context, id CustomerID) ([]Session, error)

	// AddSessionMember inserts the membership row. Returns
	// ErrDuplicateMembership if it already exists.
	AddSessionMember(ctx context.Context, sessionID SessionID, customerID CustomerID) error

	// RemoveSessionMember deletes the membership row; no-op if absent.
	RemoveSessionMember(ctx context.Context, sessionID SessionID, customerID CustomerID) error
}

// =============================================================================
// ENROLLMENT
// =============================================================================

type EnrollmentStore interface {
	GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error)
	SaveEnrollment(ctx context.Context, e Enrollment) error

	// DeleteEnrollment removes the enrollment AND its payments in the same
	// operation (explicit owned-children rule, not an implicit cascade).
	DeleteEnrollment(ctx context.Context, id EnrollmentID) error

	ListEnrollments(ctx context.Context) ([]Enrollment, error)
	EnrollmentsByCustomer(ctx context.Context, id CustomerID) ([]Enrollment, error)
	EnrollmentsByProgram(ctx context.Context, id ProgramID) ([]Enrollment, error)

	// EnrollmentExists reports whether the (customer, program) pair already
	// has an enrollment.
	EnrollmentExists(ctx context.Context, customerID CustomerID, programID ProgramID) (bool, error)
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentStore interface {
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	SavePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error
	ListPayments(ctx context.Context) ([]Payment, error)

	// PaymentsByEnrollment returns the enrollment's full ledger, ordered by
	// payment time.
	PaymentsByEnrollment(ctx context.Context, id EnrollmentID) ([]Payment, error)

	// PaymentsByCustomer returns payments across all of the customer's
	// enrollments, newest first.
	PaymentsByCustomer(ctx context.Context, id CustomerID) ([]Payment, error)
}

// =============================================================================
// CUSTOMER + PROGRAM (plain lookups; no invariants of their own)
// =============================================================================

type CustomerStore interface {
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	CustomerExists(ctx context.Context, id CustomerID) (bool, error)
	SaveCustomer(ctx context.Context, c Customer) error
	ListCustomers(ctx context.Context) ([]Customer, error)
}

type ProgramStore interface {
	GetProgram(ctx context.Context, id ProgramID) (*TrainingProgram, error)
	SaveProgram(ctx context.Context, p TrainingProgram) error
	ListPrograms(ctx context.Context) ([]TrainingProgram, error)
}
