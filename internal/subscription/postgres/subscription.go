package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/messaging-permissions/internal/subscription"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const currentSubscriptionQuery = `
	SELECT user_id, plan, status, messaging_enabled, current_period_end
	FROM subscriptions
	WHERE user_id = ?
	ORDER BY updated_at DESC
	LIMIT 1`

func (r *Repository) CurrentForUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := r.db.GetContext(ctx, &sub, r.db.Rebind(currentSubscriptionQuery), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select current subscription: %w", err)
	}
	return &sub, nil
}
