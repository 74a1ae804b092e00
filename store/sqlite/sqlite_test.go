package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/enrollment-engine/school"
	"github.com/driveline/enrollment-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCustomer(t *testing.T, s *sqlite.Store, id school.CustomerID) {
	t.Helper()
	require.NoError(t, s.SaveCustomer(context.Background(), school.Customer{
		ID:        id,
		FirstName: "Test",
		LastName:  string(id),
		Email:     string(id) + "@example.com",
		CreatedAt: testNow,
	}))
}

func seedProgram(t *testing.T, s *sqlite.Store, id school.ProgramID, price string) {
	t.Helper()
	require.NoError(t, s.SaveProgram(context.Background(), school.TrainingProgram{
		ID:              id,
		Name:            "Program " + string(id),
		LicenseCategory: "B",
		Price:           school.MustParseDecimal(price),
	}))
}

func seedSession(t *testing.T, s *sqlite.Store, id school.SessionID, capacity int) {
	t.Helper()
	require.NoError(t, s.SaveSession(context.Background(), school.Session{
		ID:          id,
		Title:       "Session " + string(id),
		Type:        school.SessionPractical,
		StartTime:   testNow.Add(48 * time.Hour),
		EndTime:     testNow.Add(50 * time.Hour),
		Status:      school.SessionScheduled,
		MaxCapacity: capacity,
		IsAvailable: true,
		CreatedAt:   testNow,
	}))
}

// =============================================================================
// SESSIONS + MEMBERSHIP
// =============================================================================

func TestSQLite_SessionRoundTripWithMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-1", 3)
	seedCustomer(t, store, "cust-1")
	seedCustomer(t, store, "cust-2")

	require.NoError(t, store.AddSessionMember(ctx, "sess-1", "cust-1"))
	require.NoError(t, store.AddSessionMember(ctx, "sess-1", "cust-2"))

	session, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Session sess-1", session.Title)
	assert.Equal(t, 2, session.Occupancy())
	assert.True(t, session.IsMember("cust-1"))
	assert.True(t, session.IsMember("cust-2"))
	assert.Equal(t, testNow.Add(48*time.Hour), session.StartTime.UTC())
}

func TestSQLite_DuplicateMembershipSentinel(t *testing.T) {
	// The composite primary key fires and is translated to the sentinel.
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-1", 3)
	seedCustomer(t, store, "cust-1")

	require.NoError(t, store.AddSessionMember(ctx, "sess-1", "cust-1"))
	err := store.AddSessionMember(ctx, "sess-1", "cust-1")
	assert.ErrorIs(t, err, school.ErrDuplicateMembership)
}

func TestSQLite_RemoveMemberAbsentIsNoOp(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", 3)
	assert.NoError(t, store.RemoveSessionMember(context.Background(), "sess-1", "ghost"))
}

func TestSQLite_GetSessionNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSession(context.Background(), "no-such")
	assert.ErrorIs(t, err, school.ErrSessionNotFound)
}

func TestSQLite_ListAvailableSessionsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "future-open", 3)

	closed := school.Session{
		ID: "closed", Title: "closed", Type: school.SessionTheory,
		StartTime: testNow.Add(48 * time.Hour), EndTime: testNow.Add(50 * time.Hour),
		Status: school.SessionScheduled, MaxCapacity: 3, IsAvailable: false, CreatedAt: testNow,
	}
	require.NoError(t, store.SaveSession(ctx, closed))

	started := school.Session{
		ID: "started", Title: "started", Type: school.SessionTheory,
		StartTime: testNow.Add(-2 * time.Hour), EndTime: testNow.Add(-time.Hour),
		Status: school.SessionScheduled, MaxCapacity: 3, IsAvailable: true, CreatedAt: testNow,
	}
	require.NoError(t, store.SaveSession(ctx, started))

	sessions, err := store.ListAvailableSessions(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, school.SessionID("future-open"), sessions[0].ID)
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func TestSQLite_EnrollmentUniquePairSentinel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "1000.00")

	e := school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentPending, EnrolledAt: testNow,
	}
	require.NoError(t, store.SaveEnrollment(ctx, e))

	dup := e
	dup.ID = "enr-2"
	err := store.SaveEnrollment(ctx, dup)
	assert.ErrorIs(t, err, school.ErrDuplicateEnrollment)

	exists, err := store.EnrollmentExists(ctx, "cust-1", "prog-b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLite_EnrollmentNullableDates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "1000.00")

	start := testNow.Add(24 * time.Hour)
	e := school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentActive, EnrolledAt: testNow, StartDate: &start,
	}
	require.NoError(t, store.SaveEnrollment(ctx, e))

	got, err := store.GetEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	require.NotNil(t, got.StartDate)
	assert.Equal(t, start, got.StartDate.UTC())
	assert.Nil(t, got.CompletionDate)
}

func TestSQLite_DeleteEnrollmentCascadesPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "1000.00")
	require.NoError(t, store.SaveEnrollment(ctx, school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentPending, EnrolledAt: testNow,
	}))
	require.NoError(t, store.SavePayment(ctx, school.Payment{
		ID: "pay-1", EnrollmentID: "enr-1",
		Amount: school.MustParseDecimal("100.00"), PaidAt: testNow,
		Method: school.PayCash, Status: school.PaymentCompleted,
		ReceiptNumber: "REC-20260301-00001",
	}))

	require.NoError(t, store.DeleteEnrollment(ctx, "enr-1"))

	_, err := store.GetEnrollment(ctx, "enr-1")
	assert.ErrorIs(t, err, school.ErrEnrollmentNotFound)
	_, err = store.GetPayment(ctx, "pay-1")
	assert.ErrorIs(t, err, school.ErrPaymentNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestSQLite_PaymentAmountSurvivesExactly(t *testing.T) {
	// Amounts are stored as decimal strings, so 0.10 stays 0.10.
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "0.30")
	require.NoError(t, store.SaveEnrollment(ctx, school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentPending, EnrolledAt: testNow,
	}))
	require.NoError(t, store.SavePayment(ctx, school.Payment{
		ID: "pay-1", EnrollmentID: "enr-1",
		Amount: school.MustParseDecimal("0.10"), PaidAt: testNow,
		Method: school.PayCash, Status: school.PaymentCompleted,
		ReceiptNumber: "REC-20260301-00001",
	}))

	got, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(school.MustParseDecimal("0.10")))

	program, err := store.GetProgram(ctx, "prog-b")
	require.NoError(t, err)
	assert.True(t, program.Price.Equal(school.MustParseDecimal("0.30")))
}

func TestSQLite_PaymentsByEnrollmentOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "1000.00")
	require.NoError(t, store.SaveEnrollment(ctx, school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentPending, EnrolledAt: testNow,
	}))

	// Insert out of order on purpose.
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		require.NoError(t, store.SavePayment(ctx, school.Payment{
			ID:           school.PaymentID(fmt.Sprintf("pay-%d", i)),
			EnrollmentID: "enr-1",
			Amount:       school.MustParseDecimal("100.00"),
			PaidAt:       testNow.Add(offset),
			Method:       school.PayCash, Status: school.PaymentCompleted,
			ReceiptNumber: fmt.Sprintf("REC-20260301-0000%d", i+1),
		}))
	}

	payments, err := store.PaymentsByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	require.Len(t, payments, 3)
	for i := 1; i < len(payments); i++ {
		assert.False(t, payments[i].PaidAt.Before(payments[i-1].PaidAt))
	}
}

func TestSQLite_DuplicateReceiptTranslated(t *testing.T) {
	// The UNIQUE index on receipt_number surfaces as the domain sentinel,
	// not a raw driver error.

	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "cust-1")
	seedProgram(t, store, "prog-b", "1000.00")
	require.NoError(t, store.SaveEnrollment(ctx, school.Enrollment{
		ID: "enr-1", CustomerID: "cust-1", ProgramID: "prog-b",
		Status: school.EnrollmentPending, EnrolledAt: testNow,
	}))
	require.NoError(t, store.SavePayment(ctx, school.Payment{
		ID: "pay-1", EnrollmentID: "enr-1",
		Amount: school.MustParseDecimal("100.00"), PaidAt: testNow,
		Method: school.PayCash, Status: school.PaymentCompleted,
		ReceiptNumber: "REC-20260301-00001",
	}))

	err := store.SavePayment(ctx, school.Payment{
		ID: "pay-2", EnrollmentID: "enr-1",
		Amount: school.MustParseDecimal("100.00"), PaidAt: testNow,
		Method: school.PayCard, Status: school.PaymentCompleted,
		ReceiptNumber: "REC-20260301-00001",
	})
	assert.ErrorIs(t, err, school.ErrDuplicateReceipt)
}

// =============================================================================
// RECEIPT SEQUENCE
// =============================================================================

func TestSQLite_ReceiptSeqMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		seq, err := store.NextReceiptSeq(ctx)
		require.NoError(t, err)
		assert.Greater(t, seq, last)
		last = seq
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A unit that writes a session and then fails
	// THEN: Nothing is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(s school.Store) error {
		if err := s.SaveSession(ctx, school.Session{
			ID: "sess-tx", Title: "doomed", Type: school.SessionTheory,
			StartTime: testNow, EndTime: testNow.Add(time.Hour),
			Status: school.SessionScheduled, MaxCapacity: 1, IsAvailable: true, CreatedAt: testNow,
		}); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = store.GetSession(ctx, "sess-tx")
	assert.ErrorIs(t, err, school.ErrSessionNotFound)
}

func TestSQLite_WithTxCommitsAsOneUnit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-1", 2)
	seedCustomer(t, store, "cust-1")

	err := store.WithTx(ctx, func(s school.Store) error {
		if err := s.AddSessionMember(ctx, "sess-1", "cust-1"); err != nil {
			return err
		}
		session, err := s.GetSession(ctx, "sess-1")
		if err != nil {
			return err
		}
		// The write is visible inside the same transaction.
		if !session.IsMember("cust-1") {
			return errors.New("member not visible in tx")
		}
		return nil
	})
	require.NoError(t, err)

	session, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, session.IsMember("cust-1"))
}

// =============================================================================
// ENGINE OVER SQLITE - end-to-end capacity invariant
// =============================================================================

func TestSQLite_CapacityManagerEndToEnd(t *testing.T) {
	// The same invariant tests run against memory in school/; this pins the
	// production store to the identical behavior.

	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "sess-1", 2)
	for i := 0; i < 3; i++ {
		seedCustomer(t, store, school.CustomerID(fmt.Sprintf("cust-%d", i)))
	}

	cm := school.NewCapacityManager(store)
	cm.SetClock(func() time.Time { return testNow })

	for i := 0; i < 2; i++ {
		result, err := cm.Enroll(ctx, "sess-1", school.CustomerID(fmt.Sprintf("cust-%d", i)))
		require.NoError(t, err)
		require.True(t, result.OK)
	}

	result, err := cm.Enroll(ctx, "sess-1", "cust-2")
	require.NoError(t, err)
	assert.Equal(t, school.OutcomeSessionFull, result.Outcome)

	result, err = cm.Cancel(ctx, "sess-1", "cust-0")
	require.NoError(t, err)
	require.True(t, result.OK)

	result, err = cm.Enroll(ctx, "sess-1", "cust-2")
	require.NoError(t, err)
	assert.True(t, result.OK)
}
