/*
handlers.go - HTTP API handlers for the enrollment engine

PURPOSE:
  Exposes the enrollment and payment engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Sessions:
    GET    /api/sessions                 List all sessions
    GET    /api/sessions/available       List open, future-dated sessions
    POST   /api/sessions                 Create session (staff)
    GET    /api/sessions/{id}            Get session details
    PUT    /api/sessions/{id}            Update session (staff)
    DELETE /api/sessions/{id}            Delete empty session (staff)
    POST   /api/sessions/{id}/enroll     Enroll into the session
    DELETE /api/sessions/{id}/enroll     Cancel the session seat

  Enrollments:
    GET    /api/enrollments              List program enrollments
    POST   /api/enrollments              Enroll customer in a program
    GET    /api/enrollments/{id}         Get enrollment
    PUT    /api/enrollments/{id}         Update status/fields (staff)
    DELETE /api/enrollments/{id}         Delete with its payments (staff)
    GET    /api/enrollments/{id}/payments  The enrollment's ledger
    POST   /api/enrollments/{id}/reverify  Recompute paid flag

  Payments:
    GET    /api/payments                 List all payments
    POST   /api/payments                 Record payment (staff)
    GET    /api/payments/{id}            Get payment with ledger state
    PUT    /api/payments/{id}            Update payment (staff)
    DELETE /api/payments/{id}            Delete payment (staff)

  Customers / Programs:
    CRUD under /api/customers and /api/programs, plus per-customer views
    of sessions, enrollments, and payments.

IDENTITY:
  The acting caller comes from the X-Actor-ID and X-Actor-Role headers and
  is passed explicitly into every domain mutation. There is no session or
  token handling here; an authenticating proxy is expected in front.

ERROR HANDLING:
  Domain errors are mapped 1:1 to HTTP status:
  - 400: Validation errors, invalid input, forbidden lifecycle transition
  - 403: Actor lacks the required role
  - 404: Entity not found
  - 409: Rule conflicts (capacity, overpayment, duplicates, occupied)
  - 500: Infrastructure failures
  Enroll/cancel refusals are NOT errors: they come back 200 with a
  structured outcome, so a retried request is quiet.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - school/: The domain services these delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/driveline/enrollment-engine/school"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       school.TxStore
	Capacity    *school.CapacityManager
	Sessions    *school.SessionService
	Enrollments *school.EnrollmentService
	Payments    *school.PaymentService
}

// NewHandler creates a new handler wired onto the given store.
func NewHandler(store school.TxStore) *Handler {
	return &Handler{
		Store:       store,
		Capacity:    school.NewCapacityManager(store),
		Sessions:    school.NewSessionService(store),
		Enrollments: school.NewEnrollmentService(store),
		Payments:    school.NewPaymentService(store),
	}
}

// actorFrom extracts the acting identity from request headers. An absent
// role defaults to customer, the least privileged.
func actorFrom(r *http.Request) school.Actor {
	role := school.Role(r.Header.Get("X-Actor-Role"))
	switch role {
	case school.RoleStaff, school.RoleAdmin:
	default:
		role = school.RoleCustomer
	}
	return school.Actor{ID: r.Header.Get("X-Actor-ID"), Role: role}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns all sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// ListAvailableSessions returns open, future-dated sessions.
func (h *Handler) ListAvailableSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.ListAvailable(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// GetSession returns a single session with its membership.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := school.SessionID(chi.URLParam(r, "id"))
	session, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// CreateSession creates a new session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time (use RFC 3339)", err)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_time (use RFC 3339)", err)
		return
	}

	session, err := h.Sessions.Create(r.Context(), actorFrom(r), school.SessionInput{
		Title:           req.Title,
		Type:            school.SessionType(req.Type),
		StartTime:       startTime,
		EndTime:         endTime,
		LicenseCategory: req.LicenseCategory,
		Notes:           req.Notes,
		MaxCapacity:     req.MaxCapacity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(*session))
}

// UpdateSession applies a partial update to a session.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := school.SessionID(chi.URLParam(r, "id"))

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := school.SessionPatch{
		Title:           req.Title,
		LicenseCategory: req.LicenseCategory,
		Notes:           req.Notes,
		MaxCapacity:     req.MaxCapacity,
		IsAvailable:     req.IsAvailable,
	}
	if req.Type != nil {
		t := school.SessionType(*req.Type)
		patch.Type = &t
	}
	if req.Status != nil {
		st := school.SessionStatus(*req.Status)
		patch.Status = &st
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_time (use RFC 3339)", err)
			return
		}
		patch.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_time (use RFC 3339)", err)
			return
		}
		patch.EndTime = &t
	}

	session, err := h.Sessions.Update(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// DeleteSession deletes an empty session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := school.SessionID(chi.URLParam(r, "id"))
	if err := h.Sessions.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// enrollTarget resolves who the seat is for: an explicit customer_id in the
// body (staff acting for someone), otherwise the actor itself.
type enrollRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
}

func enrollTarget(r *http.Request) (school.CustomerID, error) {
	var req enrollRequest
	if r.Body != nil {
		// No body at all is fine; a body that isn't valid JSON is not.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	if req.CustomerID != "" {
		return school.CustomerID(req.CustomerID), nil
	}
	return school.CustomerID(r.Header.Get("X-Actor-ID")), nil
}

// EnrollInSession reserves a seat. Refusals (full, closed, already seated)
// come back 200 with success=false, matching the idempotent retry contract.
func (h *Handler) EnrollInSession(w http.ResponseWriter, r *http.Request) {
	id := school.SessionID(chi.URLParam(r, "id"))
	customerID, err := enrollTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "No customer to enroll: set X-Actor-ID or customer_id", nil)
		return
	}

	result, err := h.Capacity.Enroll(r.Context(), id, customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EnrollActionResponse{
		Success: result.OK,
		Outcome: string(result.Outcome),
		Message: result.Reason,
	})
}

// CancelSessionEnrollment releases the seat. Cancelling a seat not held is
// a quiet no-op.
func (h *Handler) CancelSessionEnrollment(w http.ResponseWriter, r *http.Request) {
	id := school.SessionID(chi.URLParam(r, "id"))
	customerID, err := enrollTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "No customer to cancel: set X-Actor-ID or customer_id", nil)
		return
	}

	result, err := h.Capacity.Cancel(r.Context(), id, customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EnrollActionResponse{
		Success: result.OK,
		Outcome: string(result.Outcome),
		Message: result.Reason,
	})
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// ListEnrollments returns all program enrollments.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.Enrollments.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTOs(enrollments))
}

// GetEnrollment returns a single enrollment.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := school.EnrollmentID(chi.URLParam(r, "id"))
	enrollment, err := h.Enrollments.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(*enrollment))
}

// CreateEnrollment registers a customer into a training program.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CustomerID == "" || req.ProgramID == "" {
		writeError(w, http.StatusBadRequest, "customer_id and program_id are required", nil)
		return
	}

	var startDate *time.Time
	if req.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use RFC 3339)", err)
			return
		}
		startDate = &t
	}

	enrollment, err := h.Enrollments.Create(r.Context(), actorFrom(r),
		school.CustomerID(req.CustomerID), school.ProgramID(req.ProgramID), startDate, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(*enrollment))
}

// UpdateEnrollment applies a partial update, enforcing the status lifecycle.
func (h *Handler) UpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	id := school.EnrollmentID(chi.URLParam(r, "id"))

	var req UpdateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := school.EnrollmentPatch{Notes: req.Notes}
	if req.Status != nil {
		st := school.EnrollmentStatus(*req.Status)
		patch.Status = &st
	}
	if req.StartDate != nil {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use RFC 3339)", err)
			return
		}
		patch.StartDate = &t
	}
	if req.CompletionDate != nil {
		t, err := time.Parse(time.RFC3339, *req.CompletionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid completion_date (use RFC 3339)", err)
			return
		}
		patch.CompletionDate = &t
	}

	enrollment, err := h.Enrollments.Update(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(*enrollment))
}

// DeleteEnrollment deletes the enrollment together with its payments.
func (h *Handler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id := school.EnrollmentID(chi.URLParam(r, "id"))
	if err := h.Enrollments.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEnrollmentPayments returns the enrollment's full payment ledger.
func (h *Handler) GetEnrollmentPayments(w http.ResponseWriter, r *http.Request) {
	id := school.EnrollmentID(chi.URLParam(r, "id"))
	views, err := h.Payments.PaymentsByEnrollment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PaymentViewDTO, len(views))
	for i, v := range views {
		dtos[i] = toPaymentViewDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReverifyEnrollment recomputes the paid flag from the ledger. Operational
// endpoint for after manual data fixes.
func (h *Handler) ReverifyEnrollment(w http.ResponseWriter, r *http.Request) {
	id := school.EnrollmentID(chi.URLParam(r, "id"))
	summary, err := h.Payments.Reverify(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(summary))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns all payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.ListPayments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// GetPayment returns one payment with the ledger state of its enrollment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))
	view, err := h.Payments.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentViewDTO(*view))
}

// CreatePayment records a completed payment against an enrollment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EnrollmentID == "" {
		writeError(w, http.StatusBadRequest, "enrollment_id is required", nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string)", err)
		return
	}

	view, err := h.Payments.RecordPayment(r.Context(), actorFrom(r),
		school.EnrollmentID(req.EnrollmentID), amount,
		school.PaymentMethod(req.Method), req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentViewDTO(*view))
}

// UpdatePayment applies a partial update and re-runs reconciliation.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))

	var req UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := school.PaymentPatch{Description: req.Description}
	if req.Status != nil {
		st := school.PaymentStatus(*req.Status)
		patch.Status = &st
	}
	if req.Method != nil {
		m := school.PaymentMethod(*req.Method)
		patch.Method = &m
	}

	view, err := h.Payments.UpdatePayment(r.Context(), actorFrom(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentViewDTO(*view))
}

// DeletePayment removes the payment and re-runs reconciliation.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := school.PaymentID(chi.URLParam(r, "id"))
	if err := h.Payments.DeletePayment(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := school.CustomerID(chi.URLParam(r, "id"))
	customer, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*customer))
}

// CreateCustomer creates a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and email are required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	customer := school.Customer{
		ID:            school.CustomerID(id),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		CreatedAt:     time.Now(),
	}
	if err := h.Store.SaveCustomer(r.Context(), customer); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// CustomerSessions returns the sessions the customer holds a seat in.
func (h *Handler) CustomerSessions(w http.ResponseWriter, r *http.Request) {
	id := school.CustomerID(chi.URLParam(r, "id"))
	sessions, err := h.Sessions.ByCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// CustomerEnrollments returns the customer's program enrollments.
func (h *Handler) CustomerEnrollments(w http.ResponseWriter, r *http.Request) {
	id := school.CustomerID(chi.URLParam(r, "id"))
	enrollments, err := h.Enrollments.ByCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTOs(enrollments))
}

// CustomerPayments returns payments across the customer's enrollments,
// newest first.
func (h *Handler) CustomerPayments(w http.ResponseWriter, r *http.Request) {
	id := school.CustomerID(chi.URLParam(r, "id"))
	payments, err := h.Payments.PaymentsByCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// =============================================================================
// PROGRAM HANDLERS
// =============================================================================

// ListPrograms returns all training programs.
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.Store.ListPrograms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProgramDTO, len(programs))
	for i, p := range programs {
		dtos[i] = toProgramDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProgram returns a single training program.
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	id := school.ProgramID(chi.URLParam(r, "id"))
	program, err := h.Store.GetProgram(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(*program))
}

// CreateProgram creates a new training program.
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsStaff() {
		writeDomainError(w, school.ErrForbidden)
		return
	}

	var req CreateProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid price (use a non-negative decimal string)", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	program := school.TrainingProgram{
		ID:              school.ProgramID(id),
		Name:            req.Name,
		LicenseCategory: req.LicenseCategory,
		Duration:        req.Duration,
		Description:     req.Description,
		Price:           price,
	}
	if err := h.Store.SaveProgram(r.Context(), program); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgramDTO(program))
}

// ProgramEnrollments returns the program's enrollments.
func (h *Handler) ProgramEnrollments(w http.ResponseWriter, r *http.Request) {
	id := school.ProgramID(chi.URLParam(r, "id"))
	enrollments, err := h.Enrollments.ByProgram(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTOs(enrollments))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status. Every sentinel in
// school/errors.go has exactly one mapping here.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, school.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case school.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, school.ErrSessionFull),
		errors.Is(err, school.ErrSessionNotAvailable),
		errors.Is(err, school.ErrSessionOccupied),
		errors.Is(err, school.ErrOverPayment),
		errors.Is(err, school.ErrDuplicateEnrollment),
		errors.Is(err, school.ErrDuplicateMembership):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case school.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
