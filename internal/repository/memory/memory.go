// Package memory provides an in-process Store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
)

// Repository keeps users and submissions in maps guarded by a mutex.
type Repository struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	emails      map[string]string
	submissions map[string]domain.KYCSubmission
	byUser      map[string]string
	now         func() time.Time
}

var _ repository.Store = (*Repository)(nil)

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		users:       make(map[string]domain.User),
		emails:      make(map[string]string),
		submissions: make(map[string]domain.KYCSubmission),
		byUser:      make(map[string]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[user.Email]; ok {
		return fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicate)
	}
	r.users[user.ID] = *user
	r.emails[user.Email] = user.ID
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.emails[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := r.users[id]
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// CountUsersByRole counts accounts holding role.
func (r *Repository) CountUsersByRole(ctx context.Context, role domain.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// GetSubmissionByUser returns the submission owned by userID.
func (r *Repository) GetSubmissionByUser(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sub := r.submissions[id]
	return &sub, nil
}

// GetSubmissionByID returns a submission by identifier.
func (r *Repository) GetSubmissionByID(ctx context.Context, id string) (*domain.KYCSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

// SubmitDocument creates or resubmits the user's submission.
func (r *Repository) SubmitDocument(ctx context.Context, sub *domain.KYCSubmission) (*domain.KYCSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUser[sub.UserID]; ok {
		existing := r.submissions[id]
		if existing.Status != domain.KYCStatusRejected {
			return nil, fmt.Errorf("submit document for %s: %w", sub.UserID, repository.ErrConflict)
		}
		existing.DocumentPath = sub.DocumentPath
		existing.Status = sub.Status
		existing.SubmittedAt = sub.SubmittedAt
		existing.UpdatedAt = sub.UpdatedAt
		r.submissions[id] = existing
		return &existing, nil
	}
	created := *sub
	r.submissions[created.ID] = created
	r.byUser[created.UserID] = created.ID
	return &created, nil
}

// UpdateSubmissionStatus sets the status of a submission.
func (r *Repository) UpdateSubmissionStatus(ctx context.Context, id string, status, onlyFrom domain.KYCStatus) (*domain.KYCSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if onlyFrom != "" && sub.Status != onlyFrom {
		return nil, fmt.Errorf("update submission %s: %w", id, repository.ErrConflict)
	}
	sub.Status = status
	sub.UpdatedAt = r.now()
	r.submissions[id] = sub
	return &sub, nil
}

// ListSubmissions returns every submission with its owner, newest first.
func (r *Repository) ListSubmissions(ctx context.Context) ([]domain.SubmissionWithUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SubmissionWithUser, 0, len(r.submissions))
	for _, sub := range r.submissions {
		item := domain.SubmissionWithUser{KYCSubmission: sub}
		if u, ok := r.users[sub.UserID]; ok {
			item.Owner = domain.SubmissionOwner{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.SubmissionWithUser) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// CountSubmissions counts submissions, optionally filtered by status.
func (r *Repository) CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status == "" {
		return int64(len(r.submissions)), nil
	}
	var n int64
	for _, sub := range r.submissions {
		if sub.Status == status {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (r *Repository) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (r *Repository) Close(ctx context.Context) error { return nil }
