package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.SubmissionRepository = (*Repository)(nil)
	_ repository.Store                = (*Repository)(nil)
)

const submissionColumns = `id, user_id, document_path, status, submitted_at, updated_at`

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return err
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, role, created_at, updated_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, role, created_at, updated_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// CountUsersByRole counts accounts holding role.
func (r *Repository) CountUsersByRole(ctx context.Context, role domain.Role) (int64, error) {
	const query = `SELECT COUNT(1) FROM users WHERE role = $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, string(role)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetSubmissionByUser returns the submission owned by userID.
func (r *Repository) GetSubmissionByUser(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM kyc_submissions WHERE user_id = $1`
	return scanSubmission(r.pool.QueryRow(ctx, query, userID))
}

// GetSubmissionByID returns a submission by identifier.
func (r *Repository) GetSubmissionByID(ctx context.Context, id string) (*domain.KYCSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM kyc_submissions WHERE id = $1`
	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// SubmitDocument inserts the user's submission or overwrites a rejected one.
func (r *Repository) SubmitDocument(ctx context.Context, sub *domain.KYCSubmission) (*domain.KYCSubmission, error) {
	query := `INSERT INTO kyc_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			document_path = EXCLUDED.document_path,
			status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at
		WHERE kyc_submissions.status = 'rejected'
		RETURNING ` + submissionColumns
	row := r.pool.QueryRow(ctx, query, sub.ID, sub.UserID, sub.DocumentPath, string(sub.Status), sub.SubmittedAt, sub.UpdatedAt)
	stored, err := scanSubmission(row)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("submit document for %s: %w", sub.UserID, repository.ErrConflict)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("submit document for %s: %w", sub.UserID, repository.ErrNotFound)
		}
		return nil, err
	}
	return stored, nil
}

// UpdateSubmissionStatus sets the status of a submission.
func (r *Repository) UpdateSubmissionStatus(ctx context.Context, id string, status, onlyFrom domain.KYCStatus) (*domain.KYCSubmission, error) {
	query := `UPDATE kyc_submissions SET status = $2, updated_at = $3
		WHERE id = $1 AND ($4::text = '' OR status = $4::text)
		RETURNING ` + submissionColumns
	stored, err := scanSubmission(r.pool.QueryRow(ctx, query, id, string(status), time.Now().UTC(), string(onlyFrom)))
	if !errors.Is(err, repository.ErrNotFound) {
		return stored, err
	}
	if onlyFrom == "" {
		return nil, repository.ErrNotFound
	}
	if _, lookupErr := r.GetSubmissionByID(ctx, id); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, fmt.Errorf("update submission %s: %w", id, repository.ErrConflict)
}

// ListSubmissions returns every submission joined with its owner, newest first.
func (r *Repository) ListSubmissions(ctx context.Context) ([]domain.SubmissionWithUser, error) {
	const query = `SELECT s.id, s.user_id, s.document_path, s.status, s.submitted_at, s.updated_at,
			u.id, u.name, u.email
		FROM kyc_submissions s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.submitted_at DESC, s.id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SubmissionWithUser
	for rows.Next() {
		var (
			item   domain.SubmissionWithUser
			status string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.DocumentPath, &status, &item.SubmittedAt, &item.UpdatedAt,
			&item.Owner.ID, &item.Owner.Name, &item.Owner.Email); err != nil {
			return nil, err
		}
		item.Status = domain.KYCStatus(status)
		out = append(out, item)
	}
	return out, rows.Err()
}

// CountSubmissions counts submissions, optionally filtered by status.
func (r *Repository) CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error) {
	const query = `SELECT COUNT(1) FROM kyc_submissions WHERE $1::text = '' OR status = $1::text`
	var count int64
	if err := r.pool.QueryRow(ctx, query, string(status)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping verifies connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Repository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func scanSubmission(row pgx.Row) (*domain.KYCSubmission, error) {
	var (
		sub    domain.KYCSubmission
		status string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.DocumentPath, &status, &sub.SubmittedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	sub.Status = domain.KYCStatus(status)
	return &sub, nil
}
