package domain

import (
	"fmt"
	"time"
)

// KYCStatus is the review state of a submission.
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

// Conflict messages reported when a user may not submit.
const (
	MsgAlreadyPending  = "KYC submission is already pending. Please wait for approval or rejection before resubmitting."
	MsgAlreadyApproved = "KYC is already approved. No need to resubmit."
	MsgAlreadyDecided  = "KYC submission has already been decided"
)

// ParseKYCStatus converts raw input into a KYCStatus. Matching is exact.
func ParseKYCStatus(raw string) (KYCStatus, error) {
	switch s := KYCStatus(raw); s {
	case KYCStatusPending, KYCStatusApproved, KYCStatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("unknown kyc status %q", raw)
	}
}

// IsDecision reports whether s is a status an administrator may assign.
func (s KYCStatus) IsDecision() bool {
	return s == KYCStatusApproved || s == KYCStatusRejected
}

// KYCSubmission is the single identity-document record owned by a user.
type KYCSubmission struct {
	ID           string
	UserID       string
	DocumentPath string
	Status       KYCStatus
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

// SubmissionOwner is the public projection of a user attached to admin listings.
type SubmissionOwner struct {
	ID    string
	Name  string
	Email string
}

// SubmissionWithUser joins a submission with its owner.
type SubmissionWithUser struct {
	KYCSubmission
	Owner SubmissionOwner
}

// DashboardStats summarizes users and submissions.
type DashboardStats struct {
	TotalUsers          int64
	TotalKYCSubmissions int64
	PendingCount        int64
	ApprovedCount       int64
	RejectedCount       int64
}

// SubmitTransition returns the status a submission takes when its owner submits
// a document. current is nil when the user has no submission yet.
func SubmitTransition(current *KYCStatus) (KYCStatus, error) {
	if current == nil {
		return KYCStatusPending, nil
	}
	switch *current {
	case KYCStatusPending:
		return "", NewConflict(MsgAlreadyPending)
	case KYCStatusApproved:
		return "", NewConflict(MsgAlreadyApproved)
	case KYCStatusRejected:
		return KYCStatusPending, nil
	default:
		return "", NewInternal(fmt.Errorf("submission in unknown status %q", *current))
	}
}

// DecideTransition validates an administrator decision from current to target.
// With allowRedecide a decided submission may be decided again.
func DecideTransition(current, target KYCStatus, allowRedecide bool) error {
	if !target.IsDecision() {
		return NewValidation("Invalid status", FieldError{Field: "status", Message: "Status must be either approved or rejected"})
	}
	if current != KYCStatusPending && !allowRedecide {
		return NewConflict(MsgAlreadyDecided)
	}
	return nil
}

// ConflictMessageFor maps the stored status that blocked a submission to the
// message reported to the user.
func ConflictMessageFor(status KYCStatus) string {
	if status == KYCStatusApproved {
		return MsgAlreadyApproved
	}
	return MsgAlreadyPending
}
