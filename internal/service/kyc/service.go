package kyc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
	"github.com/kycdesk/kycdesk/internal/storage"
)

const (
	msgDocumentRequired   = "Document file is required"
	msgNoSubmission       = "No submission found"
	msgSubmissionNotFound = "Submission not found"
)

// EventPublisher receives submission lifecycle events. Implementations must not block.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SubmissionEvent)
}

// Policy tunes administrative decisions.
type Policy struct {
	// AllowRedecide lets administrators change an already decided submission.
	AllowRedecide bool
}

// Service implements the submission state machine.
type Service struct {
	subs      repository.SubmissionRepository
	documents storage.Store
	events    EventPublisher
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Service. events may be nil.
func New(subs repository.SubmissionRepository, documents storage.Store, events EventPublisher, policy Policy, logger *slog.Logger) Service {
	return Service{
		subs:      subs,
		documents: documents,
		events:    events,
		policy:    policy,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitResult reports the stored submission and whether it replaced a rejected one.
type SubmitResult struct {
	Submission  domain.KYCSubmission
	Resubmitted bool
}

// Submit stores doc as the user's identity document. doc may be nil, in which case
// only status conflicts or a validation error can result.
func (s Service) Submit(ctx context.Context, userID string, doc *storage.Upload) (SubmitResult, error) {
	var current *domain.KYCStatus
	existing, err := s.subs.GetSubmissionByUser(ctx, userID)
	switch {
	case err == nil:
		current = &existing.Status
	case errors.Is(err, repository.ErrNotFound):
	default:
		return SubmitResult{}, domain.NewInternal(fmt.Errorf("lookup submission: %w", err))
	}

	next, err := domain.SubmitTransition(current)
	if err != nil {
		return SubmitResult{}, err
	}
	if doc == nil {
		return SubmitResult{}, domain.NewValidation(msgDocumentRequired)
	}

	ref, err := s.documents.Save(ctx, *doc)
	if err != nil {
		return SubmitResult{}, domain.NewInternal(fmt.Errorf("save document: %w", err))
	}

	now := s.now()
	candidate := &domain.KYCSubmission{
		ID:           uuid.NewString(),
		UserID:       userID,
		DocumentPath: ref,
		Status:       next,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	stored, err := s.subs.SubmitDocument(ctx, candidate)
	if err != nil {
		s.discard(ref)
		if errors.Is(err, repository.ErrConflict) {
			return SubmitResult{}, s.conflictFor(ctx, userID)
		}
		return SubmitResult{}, domain.NewInternal(fmt.Errorf("store submission: %w", err))
	}

	result := SubmitResult{Submission: *stored, Resubmitted: stored.ID != candidate.ID}
	eventType := domain.EventSubmitted
	if result.Resubmitted {
		eventType = domain.EventResubmitted
	}
	s.logger.Info("kyc submission stored", "user_id", userID, "submission_id", stored.ID, "resubmitted", result.Resubmitted)
	s.publish(ctx, eventType, *stored)
	return result, nil
}

// Status returns the caller's submission.
func (s Service) Status(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	sub, err := s.subs.GetSubmissionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFound(msgNoSubmission)
		}
		return nil, domain.NewInternal(fmt.Errorf("lookup submission: %w", err))
	}
	return sub, nil
}

// List returns every submission with its owner, newest first.
func (s Service) List(ctx context.Context) ([]domain.SubmissionWithUser, error) {
	subs, err := s.subs.ListSubmissions(ctx)
	if err != nil {
		return nil, domain.NewInternal(fmt.Errorf("list submissions: %w", err))
	}
	return subs, nil
}

// Decide records an administrator decision on submission id.
func (s Service) Decide(ctx context.Context, id, rawStatus string) (*domain.KYCSubmission, error) {
	target, _ := domain.ParseKYCStatus(rawStatus)
	if err := domain.DecideTransition(domain.KYCStatusPending, target, true); err != nil {
		return nil, err
	}
	existing, err := s.subs.GetSubmissionByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFound(msgSubmissionNotFound)
		}
		return nil, domain.NewInternal(fmt.Errorf("lookup submission: %w", err))
	}
	if err := domain.DecideTransition(existing.Status, target, s.policy.AllowRedecide); err != nil {
		return nil, err
	}

	var onlyFrom domain.KYCStatus
	if !s.policy.AllowRedecide {
		onlyFrom = domain.KYCStatusPending
	}
	updated, err := s.subs.UpdateSubmissionStatus(ctx, id, target, onlyFrom)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NewNotFound(msgSubmissionNotFound)
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.NewConflict(domain.MsgAlreadyDecided)
		}
		return nil, domain.NewInternal(fmt.Errorf("update submission: %w", err))
	}
	s.logger.Info("kyc submission decided", "submission_id", id, "status", target, "previous", existing.Status)
	s.publish(ctx, domain.EventDecided, *updated)
	return updated, nil
}

func (s Service) conflictFor(ctx context.Context, userID string) error {
	current, err := s.subs.GetSubmissionByUser(ctx, userID)
	if err != nil {
		return domain.NewConflict(domain.MsgAlreadyPending)
	}
	return domain.NewConflict(domain.ConflictMessageFor(current.Status))
}

func (s Service) discard(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.documents.Remove(ctx, ref); err != nil {
		s.logger.Warn("document cleanup failed", "ref", ref, "error", err)
	}
}

func (s Service) publish(ctx context.Context, typ domain.EventType, sub domain.KYCSubmission) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.SubmissionEvent{Type: typ, Submission: sub, At: s.now()})
}
