package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kycdesk/kycdesk/internal/domain"
)

// Counter is the read surface the dashboard aggregates over.
type Counter interface {
	CountUsersByRole(ctx context.Context, role domain.Role) (int64, error)
	CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error)
}

// Service computes administrator statistics on demand.
type Service struct {
	store Counter
}

// New constructs a Service.
func New(store Counter) Service {
	return Service{store: store}
}

// Stats issues the five counts concurrently. The counts are not taken from a
// single snapshot.
func (s Service) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.store.CountUsersByRole(gctx, domain.RoleUser)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalKYCSubmissions, err = s.store.CountSubmissions(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		stats.PendingCount, err = s.store.CountSubmissions(gctx, domain.KYCStatusPending)
		return err
	})
	g.Go(func() (err error) {
		stats.ApprovedCount, err = s.store.CountSubmissions(gctx, domain.KYCStatusApproved)
		return err
	})
	g.Go(func() (err error) {
		stats.RejectedCount, err = s.store.CountSubmissions(gctx, domain.KYCStatusRejected)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, domain.NewInternal(fmt.Errorf("dashboard counts: %w", err))
	}
	return stats, nil
}
