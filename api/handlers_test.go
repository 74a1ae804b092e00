package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/enrollment-engine/api"
	"github.com/driveline/enrollment-engine/school"
	"github.com/driveline/enrollment-engine/school/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	router http.Handler
	store  *store.TxMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewTxMemory()
	handler := api.NewHandler(mem)
	return &fixture{router: api.NewRouter(handler), store: mem}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.SaveCustomer(ctx, school.Customer{
		ID: "cust-1", FirstName: "Dana", LastName: "Learner",
		Email: "dana@example.com", CreatedAt: time.Now(),
	}))
	require.NoError(t, f.store.SaveProgram(ctx, school.TrainingProgram{
		ID: "prog-b", Name: "Category B full course",
		LicenseCategory: "B", Price: school.MustParseDecimal("1000.00"),
	}))
	require.NoError(t, f.store.SaveSession(ctx, school.Session{
		ID: "sess-1", Title: "Highway driving", Type: school.SessionPractical,
		StartTime: time.Now().Add(48 * time.Hour), EndTime: time.Now().Add(50 * time.Hour),
		Status: school.SessionScheduled, MaxCapacity: 2, IsAvailable: true,
		CreatedAt: time.Now(),
	}))
}

// do runs a request with the given actor identity and decodes the JSON body
// into out (if non-nil).
func (f *fixture) do(t *testing.T, method, path string, body any, actorID, actorRole string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	if actorRole != "" {
		req.Header.Set("X-Actor-Role", actorRole)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

// =============================================================================
// SESSION ENROLLMENT OVER HTTP
// =============================================================================

func TestHTTP_EnrollAndRetry(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var resp api.EnrollActionResponse
	rec := f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "enrolled", resp.Outcome)

	// Retry is a quiet no-op, still 200.
	rec = f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "already_enrolled", resp.Outcome)
}

func TestHTTP_EnrollMalformedBodyRejected(t *testing.T) {
	// A body that fails to parse must be a 400, not a silent fallback to the
	// header actor.

	f := newFixture(t)
	f.seed(t)

	req := httptest.NewRequest("POST", "/api/sessions/sess-1/enroll", strings.NewReader(`{"customer_id": `))
	req.Header.Set("X-Actor-ID", "cust-1")
	req.Header.Set("X-Actor-Role", "customer")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The header actor must not have been enrolled as a side effect.
	session, err := f.store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, session.Occupancy())
}

func TestHTTP_EnrollSessionFull(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	for i := 2; i <= 3; i++ {
		require.NoError(t, f.store.SaveCustomer(ctx, school.Customer{
			ID: school.CustomerID(fmt.Sprintf("cust-%d", i)), FirstName: "X", LastName: "Y",
			Email: fmt.Sprintf("c%d@example.com", i), CreatedAt: time.Now(),
		}))
	}

	var resp api.EnrollActionResponse
	for _, c := range []string{"cust-1", "cust-2"} {
		rec := f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, c, "customer", &resp)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, resp.Success)
	}

	rec := f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-3", "customer", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "session_full", resp.Outcome)
}

func TestHTTP_StaffEnrollsOnBehalf(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var resp api.EnrollActionResponse
	rec := f.do(t, "POST", "/api/sessions/sess-1/enroll",
		map[string]string{"customer_id": "cust-1"}, "staff-1", "staff", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestHTTP_CancelSeat(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var resp api.EnrollActionResponse
	f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &resp)
	require.True(t, resp.Success)

	rec := f.do(t, "DELETE", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "cancelled", resp.Outcome)
}

func TestHTTP_EnrollWithoutIdentity(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SESSION CRUD OVER HTTP
// =============================================================================

func TestHTTP_CreateSessionRequiresStaff(t *testing.T) {
	f := newFixture(t)

	body := api.CreateSessionRequest{
		Title: "New session", Type: "theory",
		StartTime:   time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		EndTime:     time.Now().Add(26 * time.Hour).Format(time.RFC3339),
		MaxCapacity: 10,
	}

	rec := f.do(t, "POST", "/api/sessions", body, "cust-1", "customer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var dto api.SessionDTO
	rec = f.do(t, "POST", "/api/sessions", body, "staff-1", "staff", &dto)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 10, dto.MaxCapacity)
	assert.Equal(t, 10, dto.SpotsLeft)
	assert.True(t, dto.IsAvailable)
}

func TestHTTP_GetSessionNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/sessions/no-such", nil, "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_DeleteOccupiedSessionConflicts(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var resp api.EnrollActionResponse
	f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &resp)
	require.True(t, resp.Success)

	rec := f.do(t, "DELETE", "/api/sessions/sess-1", nil, "staff-1", "staff", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// ENROLLMENTS + PAYMENTS OVER HTTP
// =============================================================================

func TestHTTP_EnrollmentAndPaymentFlow(t *testing.T) {
	// Full flow: enroll in program, pay in two installments, watch is_paid
	// flip, and catch the overpayment conflict.

	f := newFixture(t)
	f.seed(t)

	var enrollment api.EnrollmentDTO
	rec := f.do(t, "POST", "/api/enrollments",
		api.CreateEnrollmentRequest{CustomerID: "cust-1", ProgramID: "prog-b"},
		"staff-1", "staff", &enrollment)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "PENDING", enrollment.Status)
	assert.False(t, enrollment.IsPaid)

	// Duplicate pair conflicts.
	rec = f.do(t, "POST", "/api/enrollments",
		api.CreateEnrollmentRequest{CustomerID: "cust-1", ProgramID: "prog-b"},
		"staff-1", "staff", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// First installment.
	var view api.PaymentViewDTO
	rec = f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: enrollment.ID, Amount: "600.00", Method: "cash"},
		"staff-1", "staff", &view)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "600.00", view.Ledger.TotalPaid)
	assert.Equal(t, "400.00", view.Ledger.Remaining)
	assert.False(t, view.Ledger.FullyPaid)
	assert.Regexp(t, `^REC-\d{8}-\d{5}$`, view.ReceiptNumber)

	// Overpayment conflicts.
	rec = f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: enrollment.ID, Amount: "500.00", Method: "card"},
		"staff-1", "staff", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Exact remainder settles the ledger.
	rec = f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: enrollment.ID, Amount: "400.00", Method: "card"},
		"staff-1", "staff", &view)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, view.Ledger.FullyPaid)

	var got api.EnrollmentDTO
	rec = f.do(t, "GET", "/api/enrollments/"+enrollment.ID, nil, "", "", &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.IsPaid)
}

func TestHTTP_PaymentRequiresStaff(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var enrollment api.EnrollmentDTO
	rec := f.do(t, "POST", "/api/enrollments",
		api.CreateEnrollmentRequest{CustomerID: "cust-1", ProgramID: "prog-b"},
		"staff-1", "staff", &enrollment)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: enrollment.ID, Amount: "100.00", Method: "cash"},
		"cust-1", "customer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_InvalidStatusTransitionIsBadRequest(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var enrollment api.EnrollmentDTO
	rec := f.do(t, "POST", "/api/enrollments",
		api.CreateEnrollmentRequest{CustomerID: "cust-1", ProgramID: "prog-b"},
		"staff-1", "staff", &enrollment)
	require.Equal(t, http.StatusCreated, rec.Code)

	completed := "COMPLETED"
	rec = f.do(t, "PUT", "/api/enrollments/"+enrollment.ID,
		api.UpdateEnrollmentRequest{Status: &completed}, "staff-1", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_InvalidPaymentAmount(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: "whatever", Amount: "not-a-number", Method: "cash"},
		"staff-1", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CUSTOMER VIEWS
// =============================================================================

func TestHTTP_CustomerViews(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var enrollResp api.EnrollActionResponse
	f.do(t, "POST", "/api/sessions/sess-1/enroll", nil, "cust-1", "customer", &enrollResp)
	require.True(t, enrollResp.Success)

	var enrollment api.EnrollmentDTO
	rec := f.do(t, "POST", "/api/enrollments",
		api.CreateEnrollmentRequest{CustomerID: "cust-1", ProgramID: "prog-b"},
		"staff-1", "staff", &enrollment)
	require.Equal(t, http.StatusCreated, rec.Code)

	f.do(t, "POST", "/api/payments",
		api.CreatePaymentRequest{EnrollmentID: enrollment.ID, Amount: "250.00", Method: "card"},
		"staff-1", "staff", nil)

	var sessions []api.SessionDTO
	rec = f.do(t, "GET", "/api/customers/cust-1/sessions", nil, "", "", &sessions)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)

	var enrollments []api.EnrollmentDTO
	rec = f.do(t, "GET", "/api/customers/cust-1/enrollments", nil, "", "", &enrollments)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, enrollments, 1)

	var payments []api.PaymentDTO
	rec = f.do(t, "GET", "/api/customers/cust-1/payments", nil, "", "", &payments)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, payments, 1)
	assert.Equal(t, "250.00", payments[0].Amount)
}
