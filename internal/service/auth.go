package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/webapp-auth/backend/internal/config"
	"github.com/webapp-auth/backend/internal/db"
	"github.com/webapp-auth/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// InvalidCredentials is the only failure reason a caller ever sees, whether
// the username is unknown or the password is wrong.
const InvalidCredentials = "Invalid credentials"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrMisconfigured = errors.New("auth config invalid")
)

// CredentialRepository answers username lookups for the validator.
type CredentialRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type SessionRepository interface {
	InsertSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetSessionByToken(ctx context.Context, tokenHash string) (*model.Session, error)
	DeleteSessionByToken(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type AuthRepository interface {
	CredentialRepository
	SessionRepository
	CreateUser(ctx context.Context, username, passwordHash string, email *string) (*model.User, error)
}

type AuthService struct {
	repo      AuthRepository
	issuer    *SessionIssuer
	dummyHash []byte
	now       func() time.Time
}

func NewAuthService(repo AuthRepository, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.RequireSecureSecret && cfg.JWTSecret == config.DefaultJWTSecret {
		return nil, fmt.Errorf("%w: JWT_SECRET_KEY must be set in production", ErrMisconfigured)
	}

	ttl, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	issuer, err := NewSessionIssuer(cfg.JWTSecret, cfg.JWTPreviousSecrets, ttl)
	if err != nil {
		return nil, err
	}

	// compared against when the username is unknown, so both failure paths
	// pay for one bcrypt comparison
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), hashCost)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		repo:      repo,
		issuer:    issuer,
		dummyHash: dummyHash,
		now:       time.Now,
	}, nil
}

// EnsureAdmin creates the configured admin account unless it already exists.
// With no admin configured it does nothing.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: ADMIN_USERNAME/ADMIN_PASSWORD must be set together", ErrMisconfigured)
	}

	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	var emailPtr *string
	if email = strings.TrimSpace(email); email != "" {
		emailPtr = &email
	}

	if _, err := s.repo.CreateUser(ctx, username, hash, emailPtr); err != nil {
		if db.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	logrus.WithField("username", username).Info("Seeded admin account")
	return nil
}

// Authenticate checks the password against the stored hash and, on success,
// issues a token and records its session. A credential mismatch is a normal
// outcome reported in the result; err is non-nil only for storage or signing
// faults.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.AuthResult, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if !db.IsNoRows(err) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return failedAuth(), nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return failedAuth(), nil
	}

	token, issuedAt, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertSession(ctx, user.ID, hashToken(token), expiresAt); err != nil {
		return nil, err
	}

	return &model.AuthResult{
		Success:  true,
		Token:    token,
		IssuedAt: issuedAt,
		Expires:  expiresAt,
	}, nil
}

// ParseAccessToken verifies the signature and expiry and requires the
// session to still be recorded, so logged-out tokens are rejected.
func (s *AuthService) ParseAccessToken(ctx context.Context, tokenStr string) (*model.AuthUser, error) {
	user, err := s.issuer.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.GetSessionByToken(ctx, hashToken(tokenStr))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if session.UserID != user.ID || !s.now().Before(session.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) Logout(ctx context.Context, tokenStr string) error {
	if strings.TrimSpace(tokenStr) == "" {
		return nil
	}
	return s.repo.DeleteSessionByToken(ctx, hashToken(tokenStr))
}

func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now())
}

func failedAuth() *model.AuthResult {
	return &model.AuthResult{Success: false, Error: InvalidCredentials}
}
