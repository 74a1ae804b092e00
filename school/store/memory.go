// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driveline/enrollment-engine/school"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	sessions    map[school.SessionID]school.Session
	members     map[school.SessionID]map[school.CustomerID]bool
	enrollments map[school.EnrollmentID]school.Enrollment
	payments    map[school.PaymentID]school.Payment
	customers   map[school.CustomerID]school.Customer
	programs    map[school.ProgramID]school.TrainingProgram
	receiptSeq  int64
}

func NewMemory() *Memory {
	return &Memory{
		sessions:    make(map[school.SessionID]school.Session),
		members:     make(map[school.SessionID]map[school.CustomerID]bool),
		enrollments: make(map[school.EnrollmentID]school.Enrollment),
		payments:    make(map[school.PaymentID]school.Payment),
		customers:   make(map[school.CustomerID]school.Customer),
		programs:    make(map[school.ProgramID]school.TrainingProgram),
	}
}

// =============================================================================
// SESSIONS + MEMBERSHIP
// =============================================================================

func (m *Memory) GetSession(_ context.Context, id school.SessionID) (*school.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSessionLocked(id)
}

func (m *Memory) getSessionLocked(id school.SessionID) (*school.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, school.ErrSessionNotFound
	}
	s.Members = m.membersLocked(id)
	return &s, nil
}

func (m *Memory) membersLocked(id school.SessionID) []school.CustomerID {
	set := m.members[id]
	out := make([]school.CustomerID, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Memory) SaveSession(_ context.Context, s school.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSessionLocked(s)
}

func (m *Memory) saveSessionLocked(s school.Session) error {
	s.Members = nil // membership lives in its own map
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, id school.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSessionLocked(id)
}

func (m *Memory) deleteSessionLocked(id school.SessionID) error {
	if _, ok := m.sessions[id]; !ok {
		return school.ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.members, id)
	return nil
}

func (m *Memory) ListSessions(_ context.Context) ([]school.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]school.Session, 0, len(m.sessions))
	for id := range m.sessions {
		s, _ := m.getSessionLocked(id)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) ListAvailableSessions(_ context.Context, now time.Time) ([]school.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []school.Session
	for id, s := range m.sessions {
		if s.IsAvailable && s.Status == school.SessionScheduled && s.StartTime.After(now) {
			full, _ := m.getSessionLocked(id)
			out = append(out, *full)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) SessionsByCustomer(_ context.Context, id school.CustomerID) ([]school.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []school.Session
	for sid, set := range m.members {
		if set[id] {
			s, _ := m.getSessionLocked(sid)
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) AddSessionMember(_ context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addMemberLocked(sessionID, customerID)
}

func (m *Memory) addMemberLocked(sessionID school.SessionID, customerID school.CustomerID) error {
	if _, ok := m.sessions[sessionID]; !ok {
		return school.ErrSessionNotFound
	}
	set := m.members[sessionID]
	if set == nil {
		set = make(map[school.CustomerID]bool)
		m.members[sessionID] = set
	}
	if set[customerID] {
		return school.ErrDuplicateMembership
	}
	set[customerID] = true
	return nil
}

func (m *Memory) RemoveSessionMember(_ context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeMemberLocked(sessionID, customerID)
}

func (m *Memory) removeMemberLocked(sessionID school.SessionID, customerID school.CustomerID) error {
	delete(m.members[sessionID], customerID)
	return nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (m *Memory) GetEnrollment(_ context.Context, id school.EnrollmentID) (*school.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEnrollmentLocked(id)
}

func (m *Memory) getEnrollmentLocked(id school.EnrollmentID) (*school.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, school.ErrEnrollmentNotFound
	}
	return &e, nil
}

func (m *Memory) SaveEnrollment(_ context.Context, e school.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEnrollmentLocked(e)
}

func (m *Memory) saveEnrollmentLocked(e school.Enrollment) error {
	m.enrollments[e.ID] = e
	return nil
}

func (m *Memory) DeleteEnrollment(_ context.Context, id school.EnrollmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEnrollmentLocked(id)
}

func (m *Memory) deleteEnrollmentLocked(id school.EnrollmentID) error {
	if _, ok := m.enrollments[id]; !ok {
		return school.ErrEnrollmentNotFound
	}
	delete(m.enrollments, id)
	// Owned children go with the parent, same unit.
	for pid, p := range m.payments {
		if p.EnrollmentID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *Memory) ListEnrollments(_ context.Context) ([]school.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]school.Enrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (m *Memory) EnrollmentsByCustomer(_ context.Context, id school.CustomerID) ([]school.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []school.Enrollment
	for _, e := range m.enrollments {
		if e.CustomerID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (m *Memory) EnrollmentsByProgram(_ context.Context, id school.ProgramID) ([]school.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []school.Enrollment
	for _, e := range m.enrollments {
		if e.ProgramID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (m *Memory) EnrollmentExists(_ context.Context, customerID school.CustomerID, programID school.ProgramID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enrollmentExistsLocked(customerID, programID), nil
}

func (m *Memory) enrollmentExistsLocked(customerID school.CustomerID, programID school.ProgramID) bool {
	for _, e := range m.enrollments {
		if e.CustomerID == customerID && e.ProgramID == programID {
			return true
		}
	}
	return false
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) GetPayment(_ context.Context, id school.PaymentID) (*school.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id)
}

func (m *Memory) getPaymentLocked(id school.PaymentID) (*school.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, school.ErrPaymentNotFound
	}
	return &p, nil
}

func (m *Memory) SavePayment(_ context.Context, p school.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePaymentLocked(p)
}

func (m *Memory) savePaymentLocked(p school.Payment) error {
	// Same uniqueness rule the SQLite schema enforces on receipt_number.
	if p.ReceiptNumber != "" {
		for _, other := range m.payments {
			if other.ID != p.ID && other.ReceiptNumber == p.ReceiptNumber {
				return school.ErrDuplicateReceipt
			}
		}
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id school.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id school.PaymentID) error {
	if _, ok := m.payments[id]; !ok {
		return school.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) ListPayments(_ context.Context) ([]school.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]school.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (m *Memory) PaymentsByEnrollment(_ context.Context, id school.EnrollmentID) ([]school.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsByEnrollmentLocked(id), nil
}

func (m *Memory) paymentsByEnrollmentLocked(id school.EnrollmentID) []school.Payment {
	var out []school.Payment
	for _, p := range m.payments {
		if p.EnrollmentID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out
}

func (m *Memory) PaymentsByCustomer(_ context.Context, id school.CustomerID) ([]school.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []school.Payment
	for _, p := range m.payments {
		e, ok := m.enrollments[p.EnrollmentID]
		if ok && e.CustomerID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

// =============================================================================
// CUSTOMERS + PROGRAMS
// =============================================================================

func (m *Memory) GetCustomer(_ context.Context, id school.CustomerID) (*school.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, school.ErrCustomerNotFound
	}
	return &c, nil
}

func (m *Memory) CustomerExists(_ context.Context, id school.CustomerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.customers[id]
	return ok, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c school.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]school.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]school.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProgram(_ context.Context, id school.ProgramID) (*school.TrainingProgram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProgramLocked(id)
}

func (m *Memory) getProgramLocked(id school.ProgramID) (*school.TrainingProgram, error) {
	p, ok := m.programs[id]
	if !ok {
		return nil, school.ErrProgramNotFound
	}
	return &p, nil
}

func (m *Memory) SaveProgram(_ context.Context, p school.TrainingProgram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs[p.ID] = p
	return nil
}

func (m *Memory) ListPrograms(_ context.Context) ([]school.TrainingProgram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]school.TrainingProgram, 0, len(m.programs))
	for _, p := range m.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// RECEIPT SEQUENCE
// =============================================================================

func (m *Memory) NextReceiptSeq(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextReceiptSeqLocked(), nil
}

func (m *Memory) nextReceiptSeqLocked() int64 {
	m.receiptSeq++
	return m.receiptSeq
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot + rollback on error; the store mutex is held
// for the whole unit, so it is also fully serialized.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(school.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	sessions    map[school.SessionID]school.Session
	members     map[school.SessionID]map[school.CustomerID]bool
	enrollments map[school.EnrollmentID]school.Enrollment
	payments    map[school.PaymentID]school.Payment
	customers   map[school.CustomerID]school.Customer
	programs    map[school.ProgramID]school.TrainingProgram
	receiptSeq  int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		sessions:    make(map[school.SessionID]school.Session, len(tm.sessions)),
		members:     make(map[school.SessionID]map[school.CustomerID]bool, len(tm.members)),
		enrollments: make(map[school.EnrollmentID]school.Enrollment, len(tm.enrollments)),
		payments:    make(map[school.PaymentID]school.Payment, len(tm.payments)),
		customers:   make(map[school.CustomerID]school.Customer, len(tm.customers)),
		programs:    make(map[school.ProgramID]school.TrainingProgram, len(tm.programs)),
		receiptSeq:  tm.receiptSeq,
	}
	for k, v := range tm.sessions {
		snap.sessions[k] = v
	}
	for k, set := range tm.members {
		cp := make(map[school.CustomerID]bool, len(set))
		for c := range set {
			cp[c] = true
		}
		snap.members[k] = cp
	}
	for k, v := range tm.enrollments {
		snap.enrollments[k] = v
	}
	for k, v := range tm.payments {
		snap.payments[k] = v
	}
	for k, v := range tm.customers {
		snap.customers[k] = v
	}
	for k, v := range tm.programs {
		snap.programs[k] = v
	}
	return snap
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.sessions = s.sessions
	tm.members = s.members
	tm.enrollments = s.enrollments
	tm.payments = s.payments
	tm.customers = s.customers
	tm.programs = s.programs
	tm.receiptSeq = s.receiptSeq
}

// txMemoryView routes store calls to the parent's unlocked internals while
// WithTx holds the store mutex.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetSession(_ context.Context, id school.SessionID) (*school.Session, error) {
	return tv.parent.getSessionLocked(id)
}

func (tv *txMemoryView) SaveSession(_ context.Context, s school.Session) error {
	return tv.parent.saveSessionLocked(s)
}

func (tv *txMemoryView) DeleteSession(_ context.Context, id school.SessionID) error {
	return tv.parent.deleteSessionLocked(id)
}

func (tv *txMemoryView) ListSessions(ctx context.Context) ([]school.Session, error) {
	out := make([]school.Session, 0, len(tv.parent.sessions))
	for id := range tv.parent.sessions {
		s, _ := tv.parent.getSessionLocked(id)
		out = append(out, *s)
	}
	return out, nil
}

func (tv *txMemoryView) ListAvailableSessions(_ context.Context, now time.Time) ([]school.Session, error) {
	var out []school.Session
	for id, s := range tv.parent.sessions {
		if s.IsAvailable && s.Status == school.SessionScheduled && s.StartTime.After(now) {
			full, _ := tv.parent.getSessionLocked(id)
			out = append(out, *full)
		}
	}
	return out, nil
}

func (tv *txMemoryView) SessionsByCustomer(_ context.Context, id school.CustomerID) ([]school.Session, error) {
	var out []school.Session
	for sid, set := range tv.parent.members {
		if set[id] {
			s, _ := tv.parent.getSessionLocked(sid)
			out = append(out, *s)
		}
	}
	return out, nil
}

func (tv *txMemoryView) AddSessionMember(_ context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	return tv.parent.addMemberLocked(sessionID, customerID)
}

func (tv *txMemoryView) RemoveSessionMember(_ context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	return tv.parent.removeMemberLocked(sessionID, customerID)
}

func (tv *txMemoryView) GetEnrollment(_ context.Context, id school.EnrollmentID) (*school.Enrollment, error) {
	return tv.parent.getEnrollmentLocked(id)
}

func (tv *txMemoryView) SaveEnrollment(_ context.Context, e school.Enrollment) error {
	return tv.parent.saveEnrollmentLocked(e)
}

func (tv *txMemoryView) DeleteEnrollment(_ context.Context, id school.EnrollmentID) error {
	return tv.parent.deleteEnrollmentLocked(id)
}

func (tv *txMemoryView) ListEnrollments(_ context.Context) ([]school.Enrollment, error) {
	out := make([]school.Enrollment, 0, len(tv.parent.enrollments))
	for _, e := range tv.parent.enrollments {
		out = append(out, e)
	}
	return out, nil
}

func (tv *txMemoryView) EnrollmentsByCustomer(_ context.Context, id school.CustomerID) ([]school.Enrollment, error) {
	var out []school.Enrollment
	for _, e := range tv.parent.enrollments {
		if e.CustomerID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tv *txMemoryView) EnrollmentsByProgram(_ context.Context, id school.ProgramID) ([]school.Enrollment, error) {
	var out []school.Enrollment
	for _, e := range tv.parent.enrollments {
		if e.ProgramID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tv *txMemoryView) EnrollmentExists(_ context.Context, customerID school.CustomerID, programID school.ProgramID) (bool, error) {
	return tv.parent.enrollmentExistsLocked(customerID, programID), nil
}

func (tv *txMemoryView) GetPayment(_ context.Context, id school.PaymentID) (*school.Payment, error) {
	return tv.parent.getPaymentLocked(id)
}

func (tv *txMemoryView) SavePayment(_ context.Context, p school.Payment) error {
	return tv.parent.savePaymentLocked(p)
}

func (tv *txMemoryView) DeletePayment(_ context.Context, id school.PaymentID) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txMemoryView) ListPayments(_ context.Context) ([]school.Payment, error) {
	out := make([]school.Payment, 0, len(tv.parent.payments))
	for _, p := range tv.parent.payments {
		out = append(out, p)
	}
	return out, nil
}

func (tv *txMemoryView) PaymentsByEnrollment(_ context.Context, id school.EnrollmentID) ([]school.Payment, error) {
	return tv.parent.paymentsByEnrollmentLocked(id), nil
}

func (tv *txMemoryView) PaymentsByCustomer(_ context.Context, id school.CustomerID) ([]school.Payment, error) {
	var out []school.Payment
	for _, p := range tv.parent.payments {
		e, ok := tv.parent.enrollments[p.EnrollmentID]
		if ok && e.CustomerID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tv *txMemoryView) GetCustomer(_ context.Context, id school.CustomerID) (*school.Customer, error) {
	c, ok := tv.parent.customers[id]
	if !ok {
		return nil, school.ErrCustomerNotFound
	}
	return &c, nil
}

func (tv *txMemoryView) CustomerExists(_ context.Context, id school.CustomerID) (bool, error) {
	_, ok := tv.parent.customers[id]
	return ok, nil
}

func (tv *txMemoryView) SaveCustomer(_ context.Context, c school.Customer) error {
	tv.parent.customers[c.ID] = c
	return nil
}

func (tv *txMemoryView) ListCustomers(_ context.Context) ([]school.Customer, error) {
	out := make([]school.Customer, 0, len(tv.parent.customers))
	for _, c := range tv.parent.customers {
		out = append(out, c)
	}
	return out, nil
}

func (tv *txMemoryView) GetProgram(_ context.Context, id school.ProgramID) (*school.TrainingProgram, error) {
	return tv.parent.getProgramLocked(id)
}

func (tv *txMemoryView) SaveProgram(_ context.Context, p school.TrainingProgram) error {
	tv.parent.programs[p.ID] = p
	return nil
}

func (tv *txMemoryView) ListPrograms(_ context.Context) ([]school.TrainingProgram, error) {
	out := make([]school.TrainingProgram, 0, len(tv.parent.programs))
	for _, p := range tv.parent.programs {
		out = append(out, p)
	}
	return out, nil
}

func (tv *txMemoryView) NextReceiptSeq(_ context.Context) (int64, error) {
	return tv.parent.nextReceiptSeqLocked(), nil
}
