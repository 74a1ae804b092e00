/*
Package school provides the core enrollment and payment engine for a
driving-school management system.

PURPOSE:
  This package contains the domain types and algorithms with real invariants:
  session seat capacity under concurrent enrollment, and the payment ledger
  that drives each enrollment's derived paid status. Everything else (HTTP,
  auth, file storage) lives outside and talks to this package through plain
  interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Session: a scheduled, capacity-bounded class/test slot
  - Enrollment: a customer's registration into a training program
  - Payment: a settled (or pending/failed) amount against an enrollment
  - Membership: the session <-> customer seat relation

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float
  2. Type Safety: distinct ID types so session and enrollment IDs can't mix
  3. Derived state: Enrollment.IsPaid is always recomputed from the ledger
  4. Explicit identity: the acting caller is a parameter, never ambient state

SEE ALSO:
  - ledger.go: pure ledger arithmetic (total paid, remaining, fully paid)
  - capacity.go: atomic enroll/cancel with the capacity invariant
  - reconcile.go: payment mutations + paid-flag reconciliation
*/
package school

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SessionID string
type CustomerID string
type ProgramID string
type EnrollmentID string
type PaymentID string

// Actor identifies the caller of an operation. It is passed explicitly into
// every mutation so there is no ambient security context to look up.
type Actor struct {
	ID   string
	Role Role
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the actor may perform staff-only mutations.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID            CustomerID
	FirstName     string
	LastName      string
	Email         string
	LicenseNumber string
	CreatedAt     time.Time
}

// =============================================================================
// TRAINING PROGRAM
// =============================================================================

// TrainingProgram is the thing a customer enrolls into. Price is the fixed
// amount the enrollment's payment ledger is reconciled against.
type TrainingProgram struct {
	ID              ProgramID
	Name            string
	LicenseCategory string
	Duration        string
	Description     string
	Price           decimal.Decimal
}

// =============================================================================
// SESSION - capacity-bounded class/test slot
// =============================================================================

type SessionType string

const (
	SessionPractical SessionType = "practical"
	SessionTheory    SessionType = "theory"
	SessionTest      SessionType = "test"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionPractical, SessionTheory, SessionTest:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Valid reports whether s is one of the known session statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Session is a scheduled slot with a hard seat limit.
//
// INVARIANT: len(Members) <= MaxCapacity at all times, including under
// concurrent Enroll calls. The membership set is always fetched eagerly
// together with the session so occupancy is computed inside the same atomic
// unit that mutates it.
type Session struct {
	ID              SessionID
	Title           string
	Type            SessionType
	StartTime       time.Time
	EndTime         time.Time
	Status          SessionStatus
	LicenseCategory string
	Notes           string
	MaxCapacity     int
	IsAvailable     bool
	CreatedAt       time.Time

	// Members is the eagerly loaded set of customers holding a seat.
	Members []CustomerID
}

// Occupancy returns the number of seats currently taken.
func (s *Session) Occupancy() int { return len(s.Members) }

// HasCapacity reports whether at least one seat remains.
func (s *Session) HasCapacity() bool { return len(s.Members) < s.MaxCapacity }

// IsMember reports whether the customer already holds a seat.
func (s *Session) IsMember(id CustomerID) bool {
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

// OpenForEnrollment reports whether the session can be joined at 'now'.
// The join window is [creation, StartTime): once a session has started it is
// closed regardless of the availability gate. Only SCHEDULED sessions are
// joinable; a cancelled session stays closed even if the availability flag
// was left on. This is the same predicate ListAvailableSessions filters by.
func (s *Session) OpenForEnrollment(now time.Time) bool {
	return s.IsAvailable && s.Status == SessionScheduled && now.Before(s.StartTime)
}

// =============================================================================
// ENROLLMENT - customer x program registration
// =============================================================================

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "PENDING"
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentCompleted || s == EnrollmentCancelled
}

// CanTransitionTo encodes the lifecycle state machine:
//
//	PENDING -> ACTIVE | CANCELLED
//	ACTIVE  -> COMPLETED | CANCELLED
//
// Terminal states are frozen. Cancelling never touches payment history.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case EnrollmentPending:
		return next == EnrollmentActive || next == EnrollmentCancelled
	case EnrollmentActive:
		return next == EnrollmentCompleted || next == EnrollmentCancelled
	default:
		return false
	}
}

// Enrollment links a customer to a training program. At most one enrollment
// exists per (customer, program) pair.
//
// IsPaid is derived: it must always equal
// IsFullyPaid(program price, completed payment total) and is only written by
// the reconciliation step in reconcile.go.
type Enrollment struct {
	ID             EnrollmentID
	CustomerID     CustomerID
	ProgramID      ProgramID
	Status         EnrollmentStatus
	EnrolledAt     time.Time
	StartDate      *time.Time
	CompletionDate *time.Time
	Notes          string
	IsPaid         bool
}

// =============================================================================
// PAYMENT - one ledger entry against an enrollment
// =============================================================================

type PaymentMethod string

const (
	PayCash         PaymentMethod = "cash"
	PayCard         PaymentMethod = "card"
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayMobile       PaymentMethod = "mobile"
)

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayBankTransfer, PayMobile:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentCompleted, PaymentPending, PaymentFailed:
		return true
	}
	return false
}

// Payment is a recorded settlement fact. Only COMPLETED payments count
// toward the ledger sum; the COMPLETED total for an enrollment never exceeds
// the program price.
type Payment struct {
	ID            PaymentID
	EnrollmentID  EnrollmentID
	Amount        decimal.Decimal
	PaidAt        time.Time
	Method        PaymentMethod
	Status        PaymentStatus
	Description   string
	ReceiptNumber string
}

// MustParseDecimal parses s, returning zero on failure. For constants and
// test fixtures only.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
