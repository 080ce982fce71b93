//go:build integration

package mongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
)

type MongoSuite struct {
	suite.Suite
	container *tcmongo.MongoDBContainer
	repo      *Repository
}

func TestMongoSuite(t *testing.T) {
	suite.Run(t, new(MongoSuite))
}

func (s *MongoSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcmongo.Run(ctx, "mongo:7")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	repo, err := Connect(ctx, uri, "kyc_test")
	s.Require().NoError(err)
	s.repo = repo
}

func (s *MongoSuite) TearDownSuite() {
	ctx := context.Background()
	if s.repo != nil {
		_ = s.repo.Close(ctx)
	}
	if s.container != nil {
		_ = s.container.Terminate(ctx)
	}
}

func (s *MongoSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.repo.users.DeleteMany(ctx, bson.M{})
	s.Require().NoError(err)
	_, err = s.repo.submissions.DeleteMany(ctx, bson.M{})
	s.Require().NoError(err)
}

func (s *MongoSuite) createUser(email string, role domain.Role) domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := domain.User{ID: uuid.NewString(), Name: "user " + email, Email: email, PasswordHash: []byte("hash"), Role: role, CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.repo.CreateUser(context.Background(), &u))
	return u
}

func (s *MongoSuite) submission(userID string, at time.Time) *domain.KYCSubmission {
	return &domain.KYCSubmission{ID: uuid.NewString(), UserID: userID, DocumentPath: "uploads/" + uuid.NewString(), Status: domain.KYCStatusPending, SubmittedAt: at, UpdatedAt: at}
}

func (s *MongoSuite) TestDuplicateEmail() {
	s.createUser("dup@example.com", domain.RoleUser)
	err := s.repo.CreateUser(context.Background(), &domain.User{ID: uuid.NewString(), Email: "dup@example.com", Role: domain.RoleUser})
	s.ErrorIs(err, repository.ErrDuplicate)
}

func (s *MongoSuite) TestConditionalUpsert() {
	ctx := context.Background()
	u := s.createUser("submit@example.com", domain.RoleUser)

	first, err := s.repo.SubmitDocument(ctx, s.submission(u.ID, time.Now().UTC()))
	s.Require().NoError(err)
	s.Equal(domain.KYCStatusPending, first.Status)

	_, err = s.repo.SubmitDocument(ctx, s.submission(u.ID, time.Now().UTC()))
	s.ErrorIs(err, repository.ErrConflict)

	_, err = s.repo.UpdateSubmissionStatus(ctx, first.ID, domain.KYCStatusRejected, "")
	s.Require().NoError(err)

	again := s.submission(u.ID, time.Now().UTC())
	resubmitted, err := s.repo.SubmitDocument(ctx, again)
	s.Require().NoError(err)
	s.Equal(first.ID, resubmitted.ID)
	s.Equal(again.DocumentPath, resubmitted.DocumentPath)
}

func (s *MongoSuite) TestConcurrentFirstSubmissions() {
	ctx := context.Background()
	u := s.createUser("race@example.com", domain.RoleUser)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.SubmitDocument(ctx, s.submission(u.ID, time.Now().UTC())); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, wins)
	count, err := s.repo.CountSubmissions(ctx, "")
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *MongoSuite) TestListJoinsOwners() {
	ctx := context.Background()
	a := s.createUser("a@example.com", domain.RoleUser)
	b := s.createUser("b@example.com", domain.RoleUser)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.repo.SubmitDocument(ctx, s.submission(a.ID, base))
	s.Require().NoError(err)
	_, err = s.repo.SubmitDocument(ctx, s.submission(b.ID, base.Add(time.Minute)))
	s.Require().NoError(err)

	list, err := s.repo.ListSubmissions(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("b@example.com", list[0].Owner.Email)
	s.Equal(a.Name, list[1].Owner.Name)

	_, err = s.repo.UpdateSubmissionStatus(ctx, "missing", domain.KYCStatusApproved, domain.KYCStatusPending)
	s.ErrorIs(err, repository.ErrNotFound)
}
