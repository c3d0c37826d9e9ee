package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/auth"
	userDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) GetCredentialsByID(ctx context.Context, userID string) (*auth.Credentials, error) {
	return r.first(ctx, "id = ?", userID)
}

func (r *Repository) first(ctx context.Context, cond string, arg string) (*auth.Credentials, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "role", "password_hash", "is_active").
		Where(cond, arg).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}

	return &auth.Credentials{
		UserID:       row.ID,
		Email:        row.Email,
		Role:         coreuser.Role(row.Role),
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
	}, nil
}
