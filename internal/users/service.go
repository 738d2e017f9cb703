package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
)

type Service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Create registers a user and returns the new id.
func (s *Service) Create(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return "", apperr.Validation("Missing required fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		// Passwords over 72 bytes are rejected by bcrypt.
		return "", apperr.Validation("password cannot be used")
	}

	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return "", apperr.Validation("email already registered")
		}
		logging.FromContext(ctx).Error("create user failed", zap.Error(err))
		return "", apperr.Upstream(err, "user store unavailable")
	}

	logging.FromContext(ctx).Info("user created", zap.String("user_id", u.ID))
	return u.ID, nil
}
