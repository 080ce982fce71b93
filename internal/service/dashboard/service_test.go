package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository/memory"
)

func TestStatsCountsEachBucket(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	require.NoError(t, repo.CreateUser(ctx, &domain.User{ID: uuid.NewString(), Email: "admin@kyc.com", Role: domain.RoleAdmin}))

	statuses := []domain.KYCStatus{domain.KYCStatusPending, domain.KYCStatusApproved, domain.KYCStatusRejected, domain.KYCStatusRejected}
	for i, status := range statuses {
		u := domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Role: domain.RoleUser}
		require.NoError(t, repo.CreateUser(ctx, &u))
		sub, err := repo.SubmitDocument(ctx, &domain.KYCSubmission{ID: uuid.NewString(), UserID: u.ID, Status: domain.KYCStatusPending, SubmittedAt: time.Now().Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
		if status != domain.KYCStatusPending {
			_, err = repo.UpdateSubmissionStatus(ctx, sub.ID, status, "")
			require.NoError(t, err)
		}
	}
	require.NoError(t, repo.CreateUser(ctx, &domain.User{ID: uuid.NewString(), Email: "idle@example.com", Role: domain.RoleUser}))

	stats, err := New(repo).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DashboardStats{
		TotalUsers:          5,
		TotalKYCSubmissions: 4,
		PendingCount:        1,
		ApprovedCount:       1,
		RejectedCount:       2,
	}, stats)
	assert.Equal(t, stats.TotalKYCSubmissions, stats.PendingCount+stats.ApprovedCount+stats.RejectedCount)
}

func TestStatsEmpty(t *testing.T) {
	stats, err := New(memory.New()).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DashboardStats{}, stats)
}

type failingCounter struct{}

func (failingCounter) CountUsersByRole(ctx context.Context, role domain.Role) (int64, error) {
	return 0, nil
}

func (failingCounter) CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error) {
	if status == domain.KYCStatusApproved {
		return 0, errors.New("timeout")
	}
	return 3, nil
}

func TestStatsFailureIsInternal(t *testing.T) {
	_, err := New(failingCounter{}).Stats(context.Background())
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
