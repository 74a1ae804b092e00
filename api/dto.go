/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as decimal strings ("450.00"), never JSON numbers. The
  handlers parse them with shopspring/decimal so nothing ever rounds.

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - school/types.go: The domain model these mirror
*/
package api

import (
	"time"

	"github.com/driveline/enrollment-engine/school"
)

// =============================================================================
// SESSION TYPES
// =============================================================================

// SessionDTO represents a session in API responses. EnrolledCount and
// SpotsLeft are derived from the membership set at read time.
type SessionDTO struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Status          string   `json:"status"`
	LicenseCategory string   `json:"license_category,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	MaxCapacity     int      `json:"max_capacity"`
	IsAvailable     bool     `json:"is_available"`
	EnrolledCount   int      `json:"enrolled_count"`
	SpotsLeft       int      `json:"spots_left"`
	Members         []string `json:"members,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// CreateSessionRequest is the request to create a session.
type CreateSessionRequest struct {
	Title           string `json:"title"`
	Type            string `json:"type"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	LicenseCategory string `json:"license_category,omitempty"`
	Notes           string `json:"notes,omitempty"`
	MaxCapacity     int    `json:"max_capacity"`
}

// UpdateSessionRequest is a partial update; absent fields are unchanged.
type UpdateSessionRequest struct {
	Title           *string `json:"title,omitempty"`
	Type            *string `json:"type,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	Status          *string `json:"status,omitempty"`
	LicenseCategory *string `json:"license_category,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	MaxCapacity     *int    `json:"max_capacity,omitempty"`
	IsAvailable     *bool   `json:"is_available,omitempty"`
}

// EnrollActionResponse reports the outcome of an enroll or cancel attempt.
// Success is false both for rule refusals (full, unavailable) and for the
// idempotent no-op cases (already enrolled, not enrolled).
type EnrollActionResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// =============================================================================
// ENROLLMENT TYPES
// =============================================================================

// EnrollmentDTO represents a program enrollment in API responses.
type EnrollmentDTO struct {
	ID             string  `json:"id"`
	CustomerID     string  `json:"customer_id"`
	ProgramID      string  `json:"program_id"`
	Status         string  `json:"status"`
	EnrolledAt     string  `json:"enrolled_at"`
	StartDate      *string `json:"start_date,omitempty"`
	CompletionDate *string `json:"completion_date,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	IsPaid         bool    `json:"is_paid"`
}

// CreateEnrollmentRequest is the request to enroll a customer in a program.
type CreateEnrollmentRequest struct {
	CustomerID string  `json:"customer_id"`
	ProgramID  string  `json:"program_id"`
	StartDate  *string `json:"start_date,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// UpdateEnrollmentRequest is a partial update; absent fields are unchanged.
type UpdateEnrollmentRequest struct {
	Status         *string `json:"status,omitempty"`
	StartDate      *string `json:"start_date,omitempty"`
	CompletionDate *string `json:"completion_date,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID            string `json:"id"`
	EnrollmentID  string `json:"enrollment_id"`
	Amount        string `json:"amount"`
	PaidAt        string `json:"paid_at"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
	ReceiptNumber string `json:"receipt_number"`
}

// LedgerDTO is the derived payment state of one enrollment.
type LedgerDTO struct {
	Price     string `json:"price"`
	TotalPaid string `json:"total_paid"`
	Remaining string `json:"remaining"`
	FullyPaid bool   `json:"fully_paid"`
}

// PaymentViewDTO is a payment together with the enrollment's ledger state
// at the time of the call.
type PaymentViewDTO struct {
	PaymentDTO
	Ledger LedgerDTO `json:"ledger"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	EnrollmentID string `json:"enrollment_id"`
	Amount       string `json:"amount"`
	Method       string `json:"method"`
	Description  string `json:"description,omitempty"`
}

// UpdatePaymentRequest is a partial update; absent fields are unchanged.
type UpdatePaymentRequest struct {
	Status      *string `json:"status,omitempty"`
	Method      *string `json:"method,omitempty"`
	Description *string `json:"description,omitempty"`
}

// =============================================================================
// CUSTOMER / PROGRAM TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateCustomerRequest is the request to create a customer.
type CreateCustomerRequest struct {
	ID            string `json:"id,omitempty"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number,omitempty"`
}

// ProgramDTO represents a training program in API responses.
type ProgramDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	LicenseCategory string `json:"license_category"`
	Duration        string `json:"duration,omitempty"`
	Description     string `json:"description,omitempty"`
	Price           string `json:"price"`
}

// CreateProgramRequest is the request to create a training program.
type CreateProgramRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	LicenseCategory string `json:"license_category"`
	Duration        string `json:"duration,omitempty"`
	Description     string `json:"description,omitempty"`
	Price           string `json:"price"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSessionDTO(s school.Session) SessionDTO {
	members := make([]string, len(s.Members))
	for i, m := range s.Members {
		members[i] = string(m)
	}
	spotsLeft := s.MaxCapacity - s.Occupancy()
	if spotsLeft < 0 {
		spotsLeft = 0
	}
	return SessionDTO{
		ID:              string(s.ID),
		Title:           s.Title,
		Type:            string(s.Type),
		StartTime:       s.StartTime.Format(time.RFC3339),
		EndTime:         s.EndTime.Format(time.RFC3339),
		Status:          string(s.Status),
		LicenseCategory: s.LicenseCategory,
		Notes:           s.Notes,
		MaxCapacity:     s.MaxCapacity,
		IsAvailable:     s.IsAvailable,
		EnrolledCount:   s.Occupancy(),
		SpotsLeft:       spotsLeft,
		Members:         members,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
	}
}

func toSessionDTOs(sessions []school.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

func toEnrollmentDTO(e school.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:         string(e.ID),
		CustomerID: string(e.CustomerID),
		ProgramID:  string(e.ProgramID),
		Status:     string(e.Status),
		EnrolledAt: e.EnrolledAt.Format(time.RFC3339),
		Notes:      e.Notes,
		IsPaid:     e.IsPaid,
	}
	if e.StartDate != nil {
		v := e.StartDate.Format(time.RFC3339)
		dto.StartDate = &v
	}
	if e.CompletionDate != nil {
		v := e.CompletionDate.Format(time.RFC3339)
		dto.CompletionDate = &v
	}
	return dto
}

func toEnrollmentDTOs(enrollments []school.Enrollment) []EnrollmentDTO {
	dtos := make([]EnrollmentDTO, len(enrollments))
	for i, e := range enrollments {
		dtos[i] = toEnrollmentDTO(e)
	}
	return dtos
}

func toPaymentDTO(p school.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		EnrollmentID:  string(p.EnrollmentID),
		Amount:        p.Amount.StringFixed(2),
		PaidAt:        p.PaidAt.Format(time.RFC3339),
		Method:        string(p.Method),
		Status:        string(p.Status),
		Description:   p.Description,
		ReceiptNumber: p.ReceiptNumber,
	}
}

func toPaymentDTOs(payments []school.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toLedgerDTO(s school.LedgerSummary) LedgerDTO {
	return LedgerDTO{
		Price:     s.Price.StringFixed(2),
		TotalPaid: s.TotalPaid.StringFixed(2),
		Remaining: s.Remaining.StringFixed(2),
		FullyPaid: s.FullyPaid,
	}
}

func toPaymentViewDTO(v school.PaymentView) PaymentViewDTO {
	return PaymentViewDTO{
		PaymentDTO: toPaymentDTO(v.Payment),
		Ledger:     toLedgerDTO(v.Ledger),
	}
}

func toCustomerDTO(c school.Customer) CustomerDTO {
	return CustomerDTO{
		ID:            string(c.ID),
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		LicenseNumber: c.LicenseNumber,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

func toProgramDTO(p school.TrainingProgram) ProgramDTO {
	return ProgramDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		LicenseCategory: p.LicenseCategory,
		Duration:        p.Duration,
		Description:     p.Description,
		Price:           p.Price.StringFixed(2),
	}
}
