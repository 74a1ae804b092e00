/*
session.go - Session administration

PURPOSE:
  Staff-facing CRUD on sessions. Field mutation lives here; membership
  mutation lives exclusively in capacity.go. Deletion is refused while the
  session still has enrolled members, so a session can never disappear out
  from under the seats it holds.
*/
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION SERVICE
// =============================================================================

type SessionService struct {
	store TxStore
	now   func() time.Time
}

func NewSessionService(store TxStore) *SessionService {
	return &SessionService{store: store, now: time.Now}
}

// SetClock overrides the time source. Test use only.
func (ss *SessionService) SetClock(now func() time.Time) { ss.now = now }

// SessionInput is the staff-supplied definition of a new session.
type SessionInput struct {
	Title           string
	Type            SessionType
	StartTime       time.Time
	EndTime         time.Time
	LicenseCategory string
	Notes           string
	MaxCapacity     int
}

func (in SessionInput) validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown session type %q", ErrInvalidSession, in.Type)
	}
	if !in.EndTime.After(in.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidSession)
	}
	if in.MaxCapacity <= 0 {
		return fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidSession)
	}
	return nil
}

// Create builds a scheduled, available session with no members.
func (ss *SessionService) Create(ctx context.Context, actor Actor, in SessionInput) (*Session, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	session := &Session{
		ID:              SessionID(uuid.NewString()),
		Title:           in.Title,
		Type:            in.Type,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Status:          SessionScheduled,
		LicenseCategory: in.LicenseCategory,
		Notes:           in.Notes,
		MaxCapacity:     in.MaxCapacity,
		IsAvailable:     true,
		CreatedAt:       ss.now(),
	}
	if err := ss.store.SaveSession(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionPatch carries the staff-mutable fields. Nil means unchanged.
type SessionPatch struct {
	Title           *string
	Type            *SessionType
	StartTime       *time.Time
	EndTime         *time.Time
	Status          *SessionStatus
	LicenseCategory *string
	Notes           *string
	MaxCapacity     *int
	IsAvailable     *bool
}

// Update applies the patch. Shrinking MaxCapacity below current occupancy is
// rejected; already-seated members are never evicted by a field edit.
func (ss *SessionService) Update(ctx context.Context, actor Actor, id SessionID, patch SessionPatch) (*Session, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", ErrInvalidSession, *patch.Type)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown session status %q", ErrInvalidSession, *patch.Status)
	}

	var updated *Session
	err := ss.store.WithTx(ctx, func(s Store) error {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			session.Title = *patch.Title
		}
		if patch.Type != nil {
			session.Type = *patch.Type
		}
		if patch.StartTime != nil {
			session.StartTime = *patch.StartTime
		}
		if patch.EndTime != nil {
			session.EndTime = *patch.EndTime
		}
		if patch.Status != nil {
			session.Status = *patch.Status
		}
		if patch.LicenseCategory != nil {
			session.LicenseCategory = *patch.LicenseCategory
		}
		if patch.Notes != nil {
			session.Notes = *patch.Notes
		}
		if patch.MaxCapacity != nil {
			if *patch.MaxCapacity < session.Occupancy() {
				return fmt.Errorf("%w: capacity %d below current occupancy %d",
					ErrInvalidSession, *patch.MaxCapacity, session.Occupancy())
			}
			session.MaxCapacity = *patch.MaxCapacity
		}
		if patch.IsAvailable != nil {
			session.IsAvailable = *patch.IsAvailable
		}

		if !session.EndTime.After(session.StartTime) {
			return fmt.Errorf("%w: end time must be after start time", ErrInvalidSession)
		}

		if err := s.SaveSession(ctx, *session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an empty session. A session with members must be emptied
// (every seat cancelled) first.
func (ss *SessionService) Delete(ctx context.Context, actor Actor, id SessionID) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return ss.store.WithTx(ctx, func(s Store) error {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if session.Occupancy() > 0 {
			return ErrSessionOccupied
		}
		return s.DeleteSession(ctx, id)
	})
}

// =============================================================================
// READS
// =============================================================================

func (ss *SessionService) Get(ctx context.Context, id SessionID) (*Session, error) {
	return ss.store.GetSession(ctx, id)
}

func (ss *SessionService) List(ctx context.Context) ([]Session, error) {
	return ss.store.ListSessions(ctx)
}

// ListAvailable returns future-dated sessions open for enrollment.
func (ss *SessionService) ListAvailable(ctx context.Context) ([]Session, error) {
	return ss.store.ListAvailableSessions(ctx, ss.now())
}

// ByCustomer returns the sessions the customer holds a seat in.
func (ss *SessionService) ByCustomer(ctx context.Context, id CustomerID) ([]Session, error) {
	return ss.store.SessionsByCustomer(ctx, id)
}
