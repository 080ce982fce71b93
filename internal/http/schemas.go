package httpx

import (
	"net/mail"
	"strings"
	"time"

	"github.com/kycdesk/kycdesk/internal/domain"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate reports every invalid field.
func (r registerRequest) Validate() []domain.FieldError {
	var errs []domain.FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "Name is required"})
	}
	if !validEmail(r.Email) {
		errs = append(errs, domain.FieldError{Field: "email", Message: "Valid email is required"})
	}
	if len(r.Password) < 6 {
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password must be at least 6 characters long"})
	}
	return errs
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate reports every invalid field.
func (r loginRequest) Validate() []domain.FieldError {
	var errs []domain.FieldError
	if !validEmail(r.Email) {
		errs = append(errs, domain.FieldError{Field: "email", Message: "Valid email is required"})
	}
	if r.Password == "" {
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password is required"})
	}
	return errs
}

type decideRequest struct {
	Status string `json:"status"`
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(raw string) bool {
	if raw == "" || strings.TrimSpace(raw) != raw {
		return false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return false
	}
	at := strings.LastIndexByte(raw, '@')
	host := raw[at+1:]
	return strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}

type messageResponse struct {
	Message string `json:"message"`
}

type fieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorsResponse struct {
	Errors []fieldErrorResponse `json:"errors"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type ownerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// submissionResponse renders a submission. User is the owner id, or the owner
// projection in admin listings.
type submissionResponse struct {
	ID           string    `json:"id"`
	User         any       `json:"user"`
	DocumentPath string    `json:"documentPath"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type submissionMessageResponse struct {
	Message    string             `json:"message"`
	Submission submissionResponse `json:"submission"`
}

type dashboardResponse struct {
	TotalUsers          int64 `json:"totalUsers"`
	TotalKYCSubmissions int64 `json:"totalKycSubmissions"`
	PendingCount        int64 `json:"pendingCount"`
	ApprovedCount       int64 `json:"approvedCount"`
	RejectedCount       int64 `json:"rejectedCount"`
}

type eventResponse struct {
	Type       string             `json:"type"`
	Submission submissionResponse `json:"submission"`
	At         time.Time          `json:"at"`
}

func toSubmissionResponse(sub domain.KYCSubmission) submissionResponse {
	return submissionResponse{
		ID:           sub.ID,
		User:         sub.UserID,
		DocumentPath: sub.DocumentPath,
		Status:       string(sub.Status),
		SubmittedAt:  sub.SubmittedAt,
	}
}

func toListResponse(items []domain.SubmissionWithUser) []submissionResponse {
	out := make([]submissionResponse, 0, len(items))
	for _, item := range items {
		resp := toSubmissionResponse(item.KYCSubmission)
		resp.User = ownerResponse{ID: item.Owner.ID, Name: item.Owner.Name, Email: item.Owner.Email}
		out = append(out, resp)
	}
	return out
}

func toDashboardResponse(s domain.DashboardStats) dashboardResponse {
	return dashboardResponse{
		TotalUsers:          s.TotalUsers,
		TotalKYCSubmissions: s.TotalKYCSubmissions,
		PendingCount:        s.PendingCount,
		ApprovedCount:       s.ApprovedCount,
		RejectedCount:       s.RejectedCount,
	}
}
