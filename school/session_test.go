package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/enrollment-engine/school"
	"github.com/driveline/enrollment-engine/school/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newSessionFixture(t *testing.T) (*school.SessionService, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	ss := school.NewSessionService(mem)
	ss.SetClock(fixedClock)
	return ss, mem
}

func validInput() school.SessionInput {
	return school.SessionInput{
		Title:       "Parking maneuvers",
		Type:        school.SessionPractical,
		StartTime:   fixedNow.Add(24 * time.Hour),
		EndTime:     fixedNow.Add(26 * time.Hour),
		MaxCapacity: 4,
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateSession_ScheduledAndAvailable(t *testing.T) {
	ss, _ := newSessionFixture(t)

	session, err := ss.Create(context.Background(), staff, validInput())
	require.NoError(t, err)
	assert.Equal(t, school.SessionScheduled, session.Status)
	assert.True(t, session.IsAvailable)
	assert.Equal(t, 0, session.Occupancy())
	assert.NotEmpty(t, session.ID)
}

func TestCreateSession_Validation(t *testing.T) {
	ss, _ := newSessionFixture(t)
	ctx := context.Background()

	in := validInput()
	in.EndTime = in.StartTime.Add(-time.Hour)
	_, err := ss.Create(ctx, staff, in)
	assert.ErrorIs(t, err, school.ErrInvalidSession)

	in = validInput()
	in.MaxCapacity = 0
	_, err = ss.Create(ctx, staff, in)
	assert.ErrorIs(t, err, school.ErrInvalidSession)

	in = validInput()
	in.Type = school.SessionType("seance")
	_, err = ss.Create(ctx, staff, in)
	assert.ErrorIs(t, err, school.ErrInvalidSession)
}

func TestUpdateSession_UnknownTypeOrStatusRejected(t *testing.T) {
	ss, _ := newSessionFixture(t)
	ctx := context.Background()

	session, err := ss.Create(ctx, staff, validInput())
	require.NoError(t, err)

	badType := school.SessionType("seance")
	_, err = ss.Update(ctx, staff, session.ID, school.SessionPatch{Type: &badType})
	assert.ErrorIs(t, err, school.ErrInvalidSession)

	badStatus := school.SessionStatus("postponed")
	_, err = ss.Update(ctx, staff, session.ID, school.SessionPatch{Status: &badStatus})
	assert.ErrorIs(t, err, school.ErrInvalidSession)

	unchanged, err := ss.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, school.SessionPractical, unchanged.Type)
	assert.Equal(t, school.SessionScheduled, unchanged.Status)
}

func TestCreateSession_RequiresStaff(t *testing.T) {
	ss, _ := newSessionFixture(t)

	customer := school.Actor{ID: "cust-1", Role: school.RoleCustomer}
	_, err := ss.Create(context.Background(), customer, validInput())
	assert.ErrorIs(t, err, school.ErrForbidden)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateSession_CannotShrinkBelowOccupancy(t *testing.T) {
	// GIVEN: A session with 2 of 4 seats taken
	// WHEN: Shrinking capacity to 1
	// THEN: Rejected; seated members are never evicted by a field edit

	ss, mem := newSessionFixture(t)
	ctx := context.Background()

	session, err := ss.Create(ctx, staff, validInput())
	require.NoError(t, err)

	for _, c := range []school.CustomerID{"cust-1", "cust-2"} {
		require.NoError(t, mem.SaveCustomer(ctx, school.Customer{ID: c, FirstName: "X", LastName: "Y", Email: string(c) + "@example.com"}))
		require.NoError(t, mem.AddSessionMember(ctx, session.ID, c))
	}

	one := 1
	_, err = ss.Update(ctx, staff, session.ID, school.SessionPatch{MaxCapacity: &one})
	assert.ErrorIs(t, err, school.ErrInvalidSession)

	two := 2
	updated, err := ss.Update(ctx, staff, session.ID, school.SessionPatch{MaxCapacity: &two})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxCapacity)
	assert.False(t, updated.HasCapacity())
}

func TestUpdateSession_AvailabilityToggle(t *testing.T) {
	ss, _ := newSessionFixture(t)
	ctx := context.Background()

	session, err := ss.Create(ctx, staff, validInput())
	require.NoError(t, err)

	off := false
	updated, err := ss.Update(ctx, staff, session.ID, school.SessionPatch{IsAvailable: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsAvailable)
	assert.False(t, updated.OpenForEnrollment(fixedNow))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteSession_RefusedWhileOccupied(t *testing.T) {
	ss, mem := newSessionFixture(t)
	ctx := context.Background()

	session, err := ss.Create(ctx, staff, validInput())
	require.NoError(t, err)

	require.NoError(t, mem.SaveCustomer(ctx, school.Customer{ID: "cust-1", FirstName: "X", LastName: "Y", Email: "x@example.com"}))
	require.NoError(t, mem.AddSessionMember(ctx, session.ID, "cust-1"))

	err = ss.Delete(ctx, staff, session.ID)
	assert.ErrorIs(t, err, school.ErrSessionOccupied)

	// Empty the session, then deletion goes through.
	require.NoError(t, mem.RemoveSessionMember(ctx, session.ID, "cust-1"))
	require.NoError(t, ss.Delete(ctx, staff, session.ID))

	_, err = mem.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, school.ErrSessionNotFound)
}

// =============================================================================
// AVAILABLE LISTING
// =============================================================================

func TestListAvailable_FiltersWindowAndGate(t *testing.T) {
	// GIVEN: A future open session, a closed one, and an already-started one
	// THEN: Only the future open session is listed

	ss, _ := newSessionFixture(t)
	ctx := context.Background()

	open, err := ss.Create(ctx, staff, validInput())
	require.NoError(t, err)

	closedIn := validInput()
	closedIn.Title = "Closed"
	closed, err := ss.Create(ctx, staff, closedIn)
	require.NoError(t, err)
	off := false
	_, err = ss.Update(ctx, staff, closed.ID, school.SessionPatch{IsAvailable: &off})
	require.NoError(t, err)

	pastIn := validInput()
	pastIn.Title = "Started"
	pastIn.StartTime = fixedNow.Add(-2 * time.Hour)
	pastIn.EndTime = fixedNow.Add(-time.Hour)
	_, err = ss.Create(ctx, staff, pastIn)
	require.NoError(t, err)

	available, err := ss.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, open.ID, available[0].ID)
}
