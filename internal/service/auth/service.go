package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
	"github.com/kycdesk/kycdesk/pkg/config"
	"github.com/kycdesk/kycdesk/pkg/crypto"
	jwtpkg "github.com/kycdesk/kycdesk/pkg/jwt"
)

const (
	msgUserExists   = "User already exists"
	msgTokenInvalid = "Token is not valid"
)

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterInput carries the fields of a new account. Role defaults to User.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// Register creates a new account.
func (s Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, domain.NewValidation("Invalid role", domain.FieldError{Field: "role", Message: "Role must be User or Admin"})
	}
	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, domain.NewConflict(msgUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewInternal(fmt.Errorf("lookup user: %w", err))
	}
	hash, err := crypto.HashPassword(in.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, domain.NewValidation("Password too long", domain.FieldError{Field: "password", Message: "Password must be at most 72 bytes"})
	}
	if err != nil {
		return nil, domain.NewInternal(fmt.Errorf("hash password: %w", err))
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.NewConflict(msgUserExists)
		}
		return nil, domain.NewInternal(fmt.Errorf("create user: %w", err))
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login authenticates a user and returns a signed access token.
func (s Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, domain.NewInvalidCredentials()
		}
		return "", nil, domain.NewInternal(fmt.Errorf("lookup user: %w", err))
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		}
		return "", nil, domain.NewInvalidCredentials()
	}
	token, err := jwtpkg.GenerateToken(user.ID, string(user.Role), s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", nil, domain.NewInternal(fmt.Errorf("issue token: %w", err))
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, user, nil
}

// Authorize validates a bearer token and returns the identity it carries.
// No store lookup is performed.
func (s Service) Authorize(token string) (domain.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Identity{}, domain.NewUnauthorized(msgTokenInvalid, errors.New("token required"))
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return domain.Identity{}, domain.NewUnauthorized(msgTokenInvalid, err)
	}
	return domain.Identity{UserID: claims.User.ID, Role: domain.Role(claims.User.Role)}, nil
}

// SeedAdmin creates the configured administrator when no Admin account exists.
// It reports whether an account was created.
func (s Service) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	admins, err := s.users.CountUsersByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		s.logger.Info("admin account already present")
		return false, nil
	}
	user, err := s.Register(ctx, RegisterInput{Name: name, Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("admin account created", "user_id", user.ID, "email", user.Email)
	return true, nil
}
