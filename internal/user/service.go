package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/messaging-permissions/internal"
	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

type Repository interface {
	// GetByID returns internal.ErrUserNotFound for unknown ids.
	GetByID(ctx context.Context, userID string) (*User, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// RoleOf resolves the account role used for messaging decisions. Inactive
// accounts keep their role; deactivation is enforced at login.
func (s *Service) RoleOf(ctx context.Context, userID string) (coreuser.Role, error) {
	ctx, cancel := internal.WithTimeout(ctx, internal.DefaultQueryTimeout)
	defer cancel()

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.Role.Valid() {
		s.logger.Warn("user has unknown role", "user_id", userID, "role", u.Role)
		return "", fmt.Errorf("user %s has unknown role %q", userID, u.Role)
	}
	return u.Role, nil
}
