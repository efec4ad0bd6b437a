package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials hides whether the phone or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid phone or password")
	// ErrNotVerified is returned on login before the phone passed OTP verification.
	ErrNotVerified = errors.New("phone not verified")
	// ErrMissingFields is returned when registration lacks phone or password.
	ErrMissingFields = errors.New("phone and password are required")
)

// Service manages member identities for the gateway stub.
type Service struct {
	repo Repository
	cost int
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// NewFastService hashes with the minimum bcrypt cost. Tests only.
func NewFastService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.MinCost}
}

// Register creates an unverified member and stores a hashed password.
func (s *Service) Register(ctx context.Context, creds Credentials, profile map[string]any) (User, error) {
	phone := strings.TrimSpace(creds.Phone)
	if phone == "" || creds.Password == "" {
		return User{}, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Phone:        phone,
		PasswordHash: hash,
		Profile:      profile,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials. Members must have verified their phone.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(creds.Phone))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	if !user.Verified {
		return User{}, ErrNotVerified
	}

	return user, nil
}

// Exists reports whether phone is registered.
func (s *Service) Exists(ctx context.Context, phone string) bool {
	_, err := s.repo.FindByPhone(ctx, phone)
	return err == nil
}

// Verify marks the phone as verified after a correct OTP.
func (s *Service) Verify(ctx context.Context, phone string) (User, error) {
	return s.repo.MarkVerified(ctx, phone)
}
