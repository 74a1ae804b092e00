/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements school.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

SCHEMA-LEVEL INVARIANTS:
  The database is the last line of defense for the engine's invariants:
  - session_members has a composite primary key, so a duplicate seat insert
    fails even if a racing caller slipped past the in-process check
  - enrollments carries UNIQUE(customer_id, program_id)
  - payments carries UNIQUE(receipt_number)
  Violations are translated to the sentinels in school/errors.go.

CONCURRENCY:
  A single mutex serializes top-level calls and transactions. WithTx holds
  the mutex for the whole unit and hands the callback a view whose
  operations run on the open sql.Tx, so an atomic unit commits or rolls
  back as one.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/school.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - school/store.go: Interface definitions
  - school/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/driveline/enrollment-engine/school"
)

// Store implements school.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database coherent and makes the
	// store mutex the only writer gate.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		license_number TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		license_category TEXT NOT NULL,
		duration TEXT,
		description TEXT,
		price TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL,
		license_category TEXT,
		notes TEXT,
		max_capacity INTEGER NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start_time
		ON sessions(start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_availability
		ON sessions(is_available, status, start_time);

	-- CRITICAL: the composite primary key makes the seat insert the
	-- indivisible step the capacity invariant rests on.
	CREATE TABLE IF NOT EXISTS session_members (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		created_at TEXT NOT NULL,
		PRIMARY KEY (session_id, customer_id)
	);

	CREATE INDEX IF NOT EXISTS idx_session_members_customer
		ON session_members(customer_id);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		program_id TEXT NOT NULL REFERENCES programs(id),
		status TEXT NOT NULL,
		enrolled_at TEXT NOT NULL,
		start_date TEXT,
		completion_date TEXT,
		notes TEXT,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(customer_id, program_id)
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_customer
		ON enrollments(customer_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_program
		ON enrollments(program_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		receipt_number TEXT NOT NULL UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_payments_enrollment
		ON payments(enrollment_id, paid_at);

	-- Single-row atomic counter for receipt numbers.
	CREATE TABLE IF NOT EXISTS receipt_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO receipt_sequence (id, value) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// TRANSACTIONS (school.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(school.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call onto the open transaction. The Store
// mutex is already held by WithTx, so no locking happens here.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// SESSIONS + MEMBERSHIP
// =============================================================================

const sessionColumns = `id, title, type, start_time, end_time, status,
	license_category, notes, max_capacity, is_available, created_at`

func (s *Store) GetSession(ctx context.Context, id school.SessionID) (*school.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getSession(ctx, s.db, id)
}

func (ts *txStore) GetSession(ctx context.Context, id school.SessionID) (*school.Session, error) {
	return getSession(ctx, ts.tx, id)
}

func getSession(ctx context.Context, db dbtx, id school.SessionID) (*school.Session, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, school.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	members, err := sessionMembers(ctx, db, id)
	if err != nil {
		return nil, err
	}
	session.Members = members
	return session, nil
}

func sessionMembers(ctx context.Context, db dbtx, id school.SessionID) ([]school.CustomerID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT customer_id FROM session_members
		WHERE session_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []school.CustomerID
	for rows.Next() {
		var c school.CustomerID
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		members = append(members, c)
	}
	return members, rows.Err()
}

func scanSession(row rowScanner) (*school.Session, error) {
	var (
		s                  school.Session
		startTime, endTime string
		createdAt          string
		licenseCat, notes  sql.NullString
	)
	err := row.Scan(&s.ID, &s.Title, &s.Type, &startTime, &endTime, &s.Status,
		&licenseCat, &notes, &s.MaxCapacity, &s.IsAvailable, &createdAt)
	if err != nil {
		return nil, err
	}
	s.StartTime, _ = time.Parse(time.RFC3339, startTime)
	s.EndTime, _ = time.Parse(time.RFC3339, endTime)
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.LicenseCategory = licenseCat.String
	s.Notes = notes.String
	return &s, nil
}

func (s *Store) SaveSession(ctx context.Context, sess school.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSession(ctx, s.db, sess)
}

func (ts *txStore) SaveSession(ctx context.Context, sess school.Session) error {
	return saveSession(ctx, ts.tx, sess)
}

func saveSession(ctx context.Context, db dbtx, sess school.Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, title, type, start_time, end_time, status, license_category,
		 notes, max_capacity, is_available, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			license_category = excluded.license_category,
			notes = excluded.notes,
			max_capacity = excluded.max_capacity,
			is_available = excluded.is_available`,
		sess.ID, sess.Title, sess.Type,
		sess.StartTime.Format(time.RFC3339), sess.EndTime.Format(time.RFC3339),
		sess.Status, sess.LicenseCategory, sess.Notes,
		sess.MaxCapacity, sess.IsAvailable, sess.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id school.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSession(ctx, s.db, id)
}

func (ts *txStore) DeleteSession(ctx context.Context, id school.SessionID) error {
	return deleteSession(ctx, ts.tx, id)
}

func deleteSession(ctx context.Context, db dbtx, id school.SessionID) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM session_members WHERE session_id = ?", id); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return school.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]school.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listSessions(ctx, s.db,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY start_time ASC")
}

func (ts *txStore) ListSessions(ctx context.Context) ([]school.Session, error) {
	return listSessions(ctx, ts.tx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY start_time ASC")
}

func listSessions(ctx context.Context, db dbtx, query string, args ...any) ([]school.Session, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	var sessions []school.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Membership is loaded eagerly, same unit as the row read.
	for i := range sessions {
		members, err := sessionMembers(ctx, db, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Members = members
	}
	return sessions, nil
}

func (s *Store) ListAvailableSessions(ctx context.Context, now time.Time) ([]school.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listAvailableSessions(ctx, s.db, now)
}

func (ts *txStore) ListAvailableSessions(ctx context.Context, now time.Time) ([]school.Session, error) {
	return listAvailableSessions(ctx, ts.tx, now)
}

func listAvailableSessions(ctx context.Context, db dbtx, now time.Time) ([]school.Session, error) {
	return listSessions(ctx, db, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE is_available = TRUE AND status = 'scheduled' AND start_time > ?
		ORDER BY start_time ASC`, now.Format(time.RFC3339))
}

func (s *Store) SessionsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionsByCustomer(ctx, s.db, id)
}

func (ts *txStore) SessionsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Session, error) {
	return sessionsByCustomer(ctx, ts.tx, id)
}

func sessionsByCustomer(ctx context.Context, db dbtx, id school.CustomerID) ([]school.Session, error) {
	return listSessions(ctx, db, `
		SELECT s.id, s.title, s.type, s.start_time, s.end_time, s.status,
		       s.license_category, s.notes, s.max_capacity, s.is_available, s.created_at
		FROM sessions s
		JOIN session_members m ON m.session_id = s.id
		WHERE m.customer_id = ?
		ORDER BY s.start_time ASC`, id)
}

func (s *Store) AddSessionMember(ctx context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addSessionMember(ctx, s.db, sessionID, customerID)
}

func (ts *txStore) AddSessionMember(ctx context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	return addSessionMember(ctx, ts.tx, sessionID, customerID)
}

func addSessionMember(ctx context.Context, db dbtx, sessionID school.SessionID, customerID school.CustomerID) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session_members (session_id, customer_id, created_at)
		VALUES (?, ?, ?)`,
		sessionID, customerID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return school.ErrDuplicateMembership
		}
		return fmt.Errorf("failed to add session member: %w", err)
	}
	return nil
}

func (s *Store) RemoveSessionMember(ctx context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeSessionMember(ctx, s.db, sessionID, customerID)
}

func (ts *txStore) RemoveSessionMember(ctx context.Context, sessionID school.SessionID, customerID school.CustomerID) error {
	return removeSessionMember(ctx, ts.tx, sessionID, customerID)
}

func removeSessionMember(ctx context.Context, db dbtx, sessionID school.SessionID, customerID school.CustomerID) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM session_members WHERE session_id = ? AND customer_id = ?",
		sessionID, customerID)
	return err
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

const enrollmentColumns = `id, customer_id, program_id, status, enrolled_at,
	start_date, completion_date, notes, is_paid`

func (s *Store) GetEnrollment(ctx context.Context, id school.EnrollmentID) (*school.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getEnrollment(ctx, s.db, id)
}

func (ts *txStore) GetEnrollment(ctx context.Context, id school.EnrollmentID) (*school.Enrollment, error) {
	return getEnrollment(ctx, ts.tx, id)
}

func getEnrollment(ctx context.Context, db dbtx, id school.EnrollmentID) (*school.Enrollment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE id = ?", id)

	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, school.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEnrollment(row rowScanner) (*school.Enrollment, error) {
	var (
		e                         school.Enrollment
		enrolledAt                string
		startDate, completionDate sql.NullString
		notes                     sql.NullString
	)
	err := row.Scan(&e.ID, &e.CustomerID, &e.ProgramID, &e.Status, &enrolledAt,
		&startDate, &completionDate, &notes, &e.IsPaid)
	if err != nil {
		return nil, err
	}
	e.EnrolledAt, _ = time.Parse(time.RFC3339, enrolledAt)
	if startDate.Valid {
		t, _ := time.Parse(time.RFC3339, startDate.String)
		e.StartDate = &t
	}
	if completionDate.Valid {
		t, _ := time.Parse(time.RFC3339, completionDate.String)
		e.CompletionDate = &t
	}
	e.Notes = notes.String
	return &e, nil
}

func (s *Store) SaveEnrollment(ctx context.Context, e school.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEnrollment(ctx, s.db, e)
}

func (ts *txStore) SaveEnrollment(ctx context.Context, e school.Enrollment) error {
	return saveEnrollment(ctx, ts.tx, e)
}

func saveEnrollment(ctx context.Context, db dbtx, e school.Enrollment) error {
	var startDate, completionDate *string
	if e.StartDate != nil {
		v := e.StartDate.Format(time.RFC3339)
		startDate = &v
	}
	if e.CompletionDate != nil {
		v := e.CompletionDate.Format(time.RFC3339)
		completionDate = &v
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO enrollments
		(id, customer_id, program_id, status, enrolled_at, start_date,
		 completion_date, notes, is_paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			start_date = excluded.start_date,
			completion_date = excluded.completion_date,
			notes = excluded.notes,
			is_paid = excluded.is_paid`,
		e.ID, e.CustomerID, e.ProgramID, e.Status,
		e.EnrolledAt.Format(time.RFC3339), startDate, completionDate,
		e.Notes, e.IsPaid,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return school.ErrDuplicateEnrollment
		}
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

func (s *Store) DeleteEnrollment(ctx context.Context, id school.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEnrollment(ctx, s.db, id)
}

func (ts *txStore) DeleteEnrollment(ctx context.Context, id school.EnrollmentID) error {
	return deleteEnrollment(ctx, ts.tx, id)
}

func deleteEnrollment(ctx context.Context, db dbtx, id school.EnrollmentID) error {
	// Owned payments go first, in the same unit.
	if _, err := db.ExecContext(ctx, "DELETE FROM payments WHERE enrollment_id = ?", id); err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM enrollments WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return school.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Store) ListEnrollments(ctx context.Context) ([]school.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryEnrollments(ctx, s.db,
		"SELECT "+enrollmentColumns+" FROM enrollments ORDER BY enrolled_at ASC")
}

func (ts *txStore) ListEnrollments(ctx context.Context) ([]school.Enrollment, error) {
	return queryEnrollments(ctx, ts.tx,
		"SELECT "+enrollmentColumns+" FROM enrollments ORDER BY enrolled_at ASC")
}

func (s *Store) EnrollmentsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryEnrollments(ctx, s.db,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE customer_id = ? ORDER BY enrolled_at ASC", id)
}

func (ts *txStore) EnrollmentsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Enrollment, error) {
	return queryEnrollments(ctx, ts.tx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE customer_id = ? ORDER BY enrolled_at ASC", id)
}

func (s *Store) EnrollmentsByProgram(ctx context.Context, id school.ProgramID) ([]school.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryEnrollments(ctx, s.db,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE program_id = ? ORDER BY enrolled_at ASC", id)
}

func (ts *txStore) EnrollmentsByProgram(ctx context.Context, id school.ProgramID) ([]school.Enrollment, error) {
	return queryEnrollments(ctx, ts.tx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE program_id = ? ORDER BY enrolled_at ASC", id)
}

func queryEnrollments(ctx context.Context, db dbtx, query string, args ...any) ([]school.Enrollment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []school.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func (s *Store) EnrollmentExists(ctx context.Context, customerID school.CustomerID, programID school.ProgramID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return enrollmentExists(ctx, s.db, customerID, programID)
}

func (ts *txStore) EnrollmentExists(ctx context.Context, customerID school.CustomerID, programID school.ProgramID) (bool, error) {
	return enrollmentExists(ctx, ts.tx, customerID, programID)
}

func enrollmentExists(ctx context.Context, db dbtx, customerID school.CustomerID, programID school.ProgramID) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrollments WHERE customer_id = ? AND program_id = ?",
		customerID, programID).Scan(&count)
	return count > 0, err
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, enrollment_id, amount, paid_at, method, status,
	description, receipt_number`

func (s *Store) GetPayment(ctx context.Context, id school.PaymentID) (*school.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getPayment(ctx, s.db, id)
}

func (ts *txStore) GetPayment(ctx context.Context, id school.PaymentID) (*school.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func getPayment(ctx context.Context, db dbtx, id school.PaymentID) (*school.Payment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, school.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row rowScanner) (*school.Payment, error) {
	var (
		p           school.Payment
		amount      string
		paidAt      string
		description sql.NullString
	)
	err := row.Scan(&p.ID, &p.EnrollmentID, &amount, &paidAt, &p.Method,
		&p.Status, &description, &p.ReceiptNumber)
	if err != nil {
		return nil, err
	}
	p.Amount, _ = decimal.NewFromString(amount)
	p.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
	p.Description = description.String
	return &p, nil
}

func (s *Store) SavePayment(ctx context.Context, p school.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayment(ctx, s.db, p)
}

func (ts *txStore) SavePayment(ctx context.Context, p school.Payment) error {
	return savePayment(ctx, ts.tx, p)
}

func savePayment(ctx context.Context, db dbtx, p school.Payment) error {
	// Amount, paid_at and receipt_number are immutable after insert; the
	// upsert only touches the mutable fields.
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments
		(id, enrollment_id, amount, paid_at, method, status, description, receipt_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			method = excluded.method,
			status = excluded.status,
			description = excluded.description`,
		p.ID, p.EnrollmentID, p.Amount.String(),
		p.PaidAt.Format(time.RFC3339), p.Method, p.Status,
		p.Description, p.ReceiptNumber,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return school.ErrDuplicateReceipt
		}
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id school.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func (ts *txStore) DeletePayment(ctx context.Context, id school.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func deletePayment(ctx context.Context, db dbtx, id school.PaymentID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return school.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]school.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryPayments(ctx, s.db,
		"SELECT "+paymentColumns+" FROM payments ORDER BY paid_at ASC")
}

func (ts *txStore) ListPayments(ctx context.Context) ([]school.Payment, error) {
	return queryPayments(ctx, ts.tx,
		"SELECT "+paymentColumns+" FROM payments ORDER BY paid_at ASC")
}

func (s *Store) PaymentsByEnrollment(ctx context.Context, id school.EnrollmentID) ([]school.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryPayments(ctx, s.db,
		"SELECT "+paymentColumns+" FROM payments WHERE enrollment_id = ? ORDER BY paid_at ASC", id)
}

func (ts *txStore) PaymentsByEnrollment(ctx context.Context, id school.EnrollmentID) ([]school.Payment, error) {
	return queryPayments(ctx, ts.tx,
		"SELECT "+paymentColumns+" FROM payments WHERE enrollment_id = ? ORDER BY paid_at ASC", id)
}

func (s *Store) PaymentsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paymentsByCustomer(ctx, s.db, id)
}

func (ts *txStore) PaymentsByCustomer(ctx context.Context, id school.CustomerID) ([]school.Payment, error) {
	return paymentsByCustomer(ctx, ts.tx, id)
}

func paymentsByCustomer(ctx context.Context, db dbtx, id school.CustomerID) ([]school.Payment, error) {
	return queryPayments(ctx, db, `
		SELECT p.id, p.enrollment_id, p.amount, p.paid_at, p.method, p.status,
		       p.description, p.receipt_number
		FROM payments p
		JOIN enrollments e ON e.id = p.enrollment_id
		WHERE e.customer_id = ?
		ORDER BY p.paid_at DESC`, id)
}

func queryPayments(ctx context.Context, db dbtx, query string, args ...any) ([]school.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []school.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) GetCustomer(ctx context.Context, id school.CustomerID) (*school.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getCustomer(ctx, s.db, id)
}

func (ts *txStore) GetCustomer(ctx context.Context, id school.CustomerID) (*school.Customer, error) {
	return getCustomer(ctx, ts.tx, id)
}

func getCustomer(ctx context.Context, db dbtx, id school.CustomerID) (*school.Customer, error) {
	var (
		c          school.Customer
		licenseNum sql.NullString
		createdAt  string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, license_number, created_at
		FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &licenseNum, &createdAt)
	if err == sql.ErrNoRows {
		return nil, school.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	c.LicenseNumber = licenseNum.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (s *Store) CustomerExists(ctx context.Context, id school.CustomerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return customerExists(ctx, s.db, id)
}

func (ts *txStore) CustomerExists(ctx context.Context, id school.CustomerID) (bool, error) {
	return customerExists(ctx, ts.tx, id)
}

func customerExists(ctx context.Context, db dbtx, id school.CustomerID) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (s *Store) SaveCustomer(ctx context.Context, c school.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCustomer(ctx, s.db, c)
}

func (ts *txStore) SaveCustomer(ctx context.Context, c school.Customer) error {
	return saveCustomer(ctx, ts.tx, c)
}

func saveCustomer(ctx context.Context, db dbtx, c school.Customer) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO customers (id, first_name, last_name, email, license_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			license_number = excluded.license_number`,
		c.ID, c.FirstName, c.LastName, c.Email, c.LicenseNumber,
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]school.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listCustomers(ctx, s.db)
}

func (ts *txStore) ListCustomers(ctx context.Context) ([]school.Customer, error) {
	return listCustomers(ctx, ts.tx)
}

func listCustomers(ctx context.Context, db dbtx) ([]school.Customer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, license_number, created_at
		FROM customers ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []school.Customer
	for rows.Next() {
		var (
			c          school.Customer
			licenseNum sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &licenseNum, &createdAt); err != nil {
			return nil, err
		}
		c.LicenseNumber = licenseNum.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// PROGRAMS
// =============================================================================

func (s *Store) GetProgram(ctx context.Context, id school.ProgramID) (*school.TrainingProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getProgram(ctx, s.db, id)
}

func (ts *txStore) GetProgram(ctx context.Context, id school.ProgramID) (*school.TrainingProgram, error) {
	return getProgram(ctx, ts.tx, id)
}

func getProgram(ctx context.Context, db dbtx, id school.ProgramID) (*school.TrainingProgram, error) {
	var (
		p                     school.TrainingProgram
		price                 string
		duration, description sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, license_category, duration, description, price
		FROM programs WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.LicenseCategory, &duration, &description, &price)
	if err == sql.ErrNoRows {
		return nil, school.ErrProgramNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Duration = duration.String
	p.Description = description.String
	p.Price, _ = decimal.NewFromString(price)
	return &p, nil
}

func (s *Store) SaveProgram(ctx context.Context, p school.TrainingProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveProgram(ctx, s.db, p)
}

func (ts *txStore) SaveProgram(ctx context.Context, p school.TrainingProgram) error {
	return saveProgram(ctx, ts.tx, p)
}

func saveProgram(ctx context.Context, db dbtx, p school.TrainingProgram) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO programs (id, name, license_category, duration, description, price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			license_category = excluded.license_category,
			duration = excluded.duration,
			description = excluded.description,
			price = excluded.price`,
		p.ID, p.Name, p.LicenseCategory, p.Duration, p.Description, p.Price.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	return nil
}

func (s *Store) ListPrograms(ctx context.Context) ([]school.TrainingProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listPrograms(ctx, s.db)
}

func (ts *txStore) ListPrograms(ctx context.Context) ([]school.TrainingProgram, error) {
	return listPrograms(ctx, ts.tx)
}

func listPrograms(ctx context.Context, db dbtx) ([]school.TrainingProgram, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, license_category, duration, description, price
		FROM programs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []school.TrainingProgram
	for rows.Next() {
		var (
			p                     school.TrainingProgram
			price                 string
			duration, description sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.LicenseCategory, &duration, &description, &price); err != nil {
			return nil, err
		}
		p.Duration = duration.String
		p.Description = description.String
		p.Price, _ = decimal.NewFromString(price)
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// =============================================================================
// RECEIPT SEQUENCE
// =============================================================================

func (s *Store) NextReceiptSeq(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextReceiptSeq(ctx, s.db)
}

func (ts *txStore) NextReceiptSeq(ctx context.Context) (int64, error) {
	return nextReceiptSeq(ctx, ts.tx)
}

func nextReceiptSeq(ctx context.Context, db dbtx) (int64, error) {
	if _, err := db.ExecContext(ctx, "UPDATE receipt_sequence SET value = value + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to advance receipt sequence: %w", err)
	}
	var value int64
	if err := db.QueryRowContext(ctx, "SELECT value FROM receipt_sequence WHERE id = 1").Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "enrollments", "session_members", "sessions", "customers", "programs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, "UPDATE receipt_sequence SET value = 0 WHERE id = 1")
	return err
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
