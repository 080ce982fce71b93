package kyc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
	"github.com/kycdesk/kycdesk/internal/repository/memory"
	"github.com/kycdesk/kycdesk/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	seq     int
	saved   []string
	removed []string
}

func (f *fakeStore) Save(ctx context.Context, upload storage.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ref := fmt.Sprintf("uploads/%d-%s", f.seq, upload.Filename)
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeStore) Remove(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	return nil
}

func (f *fakeStore) Handler() http.Handler { return http.NotFoundHandler() }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SubmissionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.SubmissionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repo   *memory.Repository
	docs   *fakeStore
	events *recordingPublisher
	svc    Service
	userID string
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	repo := memory.New()
	u := domain.User{ID: uuid.NewString(), Name: "Ann", Email: "ann@example.com", Role: domain.RoleUser}
	require.NoError(t, repo.CreateUser(context.Background(), &u))
	f := &fixture{repo: repo, docs: &fakeStore{}, events: &recordingPublisher{}, userID: u.ID}
	f.svc = New(repo, f.docs, f.events, policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func upload(name string) *storage.Upload {
	return &storage.Upload{Filename: name, Body: strings.NewReader("bytes")}
}

func requireKind(t *testing.T, err error, kind domain.Kind, msg string) {
	t.Helper()
	var de *domain.Error
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	assert.Equal(t, kind, de.Kind)
	if msg != "" {
		assert.Equal(t, msg, de.Message)
	}
}

func TestSubmitFirstTime(t *testing.T) {
	f := newFixture(t, Policy{AllowRedecide: true})
	res, err := f.svc.Submit(context.Background(), f.userID, upload("id.png"))
	require.NoError(t, err)
	assert.False(t, res.Resubmitted)
	assert.Equal(t, domain.KYCStatusPending, res.Submission.Status)
	assert.Equal(t, "uploads/1-id.png", res.Submission.DocumentPath)
	assert.Equal(t, f.userID, res.Submission.UserID)
	assert.Equal(t, []domain.EventType{domain.EventSubmitted}, f.events.types())
}

func TestSubmitWithoutDocument(t *testing.T) {
	f := newFixture(t, Policy{AllowRedecide: true})
	_, err := f.svc.Submit(context.Background(), f.userID, nil)
	requireKind(t, err, domain.KindValidation, "Document file is required")
	assert.Empty(t, f.docs.saved)

	n, err := f.repo.CountSubmissions(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitConflictsRegardlessOfFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{AllowRedecide: true})
	first, err := f.svc.Submit(ctx, f.userID, upload("id.png"))
	require.NoError(t, err)

	for _, doc := range []*storage.Upload{nil, upload("again.png")} {
		_, err := f.svc.Submit(ctx, f.userID, doc)
		requireKind(t, err, domain.KindConflict, domain.MsgAlreadyPending)
	}

	_, err = f.svc.Decide(ctx, first.Submission.ID, "approved")
	require.NoError(t, err)
	for _, doc := range []*storage.Upload{nil, upload("again.png")} {
		_, err := f.svc.Submit(ctx, f.userID, doc)
		requireKind(t, err, domain.KindConflict, domain.MsgAlreadyApproved)
	}
	assert.Len(t, f.docs.saved, 1)

	stored, err := f.svc.Status(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, first.Submission.DocumentPath, stored.DocumentPath)
}

func TestResubmitAfterRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{AllowRedecide: true})
	first, err := f.svc.Submit(ctx, f.userID, upload("id.png"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, first.Submission.ID, "rejected")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.userID, nil)
	requireKind(t, err, domain.KindValidation, "Document file is required")

	again, err := f.svc.Submit(ctx, f.userID, upload("new.png"))
	require.NoError(t, err)
	assert.True(t, again.Resubmitted)
	assert.Equal(t, first.Submission.ID, again.Submission.ID)
	assert.Equal(t, domain.KYCStatusPending, again.Submission.Status)
	assert.Equal(t, "uploads/2-new.png", again.Submission.DocumentPath)
	assert.False(t, again.Submission.SubmittedAt.Before(first.Submission.SubmittedAt))
	assert.Equal(t, []domain.EventType{domain.EventSubmitted, domain.EventDecided, domain.EventResubmitted}, f.events.types())
}

type racingRepo struct {
	*memory.Repository
	winner func()
}

func (r racingRepo) SubmitDocument(ctx context.Context, sub *domain.KYCSubmission) (*domain.KYCSubmission, error) {
	r.winner()
	return r.Repository.SubmitDocument(ctx, sub)
}

func TestSubmitLosingRaceRemovesDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{AllowRedecide: true})
	repo := racingRepo{Repository: f.repo, winner: func() {
		_, err := f.repo.SubmitDocument(ctx, &domain.KYCSubmission{ID: uuid.NewString(), UserID: f.userID, DocumentPath: "uploads/other", Status: domain.KYCStatusPending, SubmittedAt: time.Now()})
		require.NoError(t, err)
	}}
	svc := New(repo, f.docs, f.events, Policy{AllowRedecide: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Submit(ctx, f.userID, upload("late.png"))
	requireKind(t, err, domain.KindConflict, domain.MsgAlreadyPending)
	assert.Equal(t, []string{"uploads/1-late.png"}, f.docs.removed)
	assert.Empty(t, f.events.types())
}

func TestStatusNotFound(t *testing.T) {
	f := newFixture(t, Policy{AllowRedecide: true})
	_, err := f.svc.Status(context.Background(), f.userID)
	requireKind(t, err, domain.KindNotFound, "No submission found")
}

func TestDecideValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{AllowRedecide: true})
	res, err := f.svc.Submit(ctx, f.userID, upload("id.png"))
	require.NoError(t, err)

	for _, bad := range []string{"", "pending", "maybe", " approved", "approved\n", "Approved", "REJECTED"} {
		_, err := f.svc.Decide(ctx, res.Submission.ID, bad)
		requireKind(t, err, domain.KindValidation, "")
	}
	stored, err := f.svc.Status(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusPending, stored.Status)

	_, err = f.svc.Decide(ctx, "does-not-exist", "approved")
	requireKind(t, err, domain.KindNotFound, "Submission not found")
}

func TestDecideRedecidePolicy(t *testing.T) {
	ctx := context.Background()

	allow := newFixture(t, Policy{AllowRedecide: true})
	res, err := allow.svc.Submit(ctx, allow.userID, upload("id.png"))
	require.NoError(t, err)
	_, err = allow.svc.Decide(ctx, res.Submission.ID, "approved")
	require.NoError(t, err)
	updated, err := allow.svc.Decide(ctx, res.Submission.ID, "rejected")
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusRejected, updated.Status)

	strict := newFixture(t, Policy{AllowRedecide: false})
	res, err = strict.svc.Submit(ctx, strict.userID, upload("id.png"))
	require.NoError(t, err)
	_, err = strict.svc.Decide(ctx, res.Submission.ID, "approved")
	require.NoError(t, err)
	_, err = strict.svc.Decide(ctx, res.Submission.ID, "rejected")
	requireKind(t, err, domain.KindConflict, domain.MsgAlreadyDecided)
}

type brokenSubs struct {
	repository.SubmissionRepository
}

func (brokenSubs) GetSubmissionByUser(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	return nil, errors.New("connection reset")
}

func (brokenSubs) ListSubmissions(ctx context.Context) ([]domain.SubmissionWithUser, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailuresAreInternal(t *testing.T) {
	svc := New(brokenSubs{}, &fakeStore{}, nil, Policy{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.Submit(context.Background(), "u", upload("id.png"))
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	_, err = svc.Status(context.Background(), "u")
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	_, err = svc.List(context.Background())
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
