package repository

import (
	"context"

	"github.com/kycdesk/kycdesk/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CountUsersByRole(ctx context.Context, role domain.Role) (int64, error)
}

// SubmissionRepository persists KYC submissions, one per user.
type SubmissionRepository interface {
	GetSubmissionByUser(ctx context.Context, userID string) (*domain.KYCSubmission, error)
	GetSubmissionByID(ctx context.Context, id string) (*domain.KYCSubmission, error)
	// SubmitDocument creates the user's submission or, when the stored one is
	// rejected, overwrites it in place. Any other stored status yields ErrConflict.
	SubmitDocument(ctx context.Context, sub *domain.KYCSubmission) (*domain.KYCSubmission, error)
	// UpdateSubmissionStatus sets the status of submission id. A non-empty onlyFrom
	// makes the update conditional on the stored status.
	UpdateSubmissionStatus(ctx context.Context, id string, status, onlyFrom domain.KYCStatus) (*domain.KYCSubmission, error)
	ListSubmissions(ctx context.Context) ([]domain.SubmissionWithUser, error)
	// CountSubmissions counts submissions in status, or all of them when status is empty.
	CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error)
}

// Store bundles the repositories a backend provides.
type Store interface {
	UserRepository
	SubmissionRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
