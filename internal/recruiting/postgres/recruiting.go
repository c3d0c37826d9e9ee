package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/messaging-permissions/internal/recruiting"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const latestApplicationQuery = `
	SELECT a.id, a.job_id, a.candidate_id, j.employer_id, a.status
	FROM applications a
	JOIN jobs j ON j.id = a.job_id
	WHERE a.candidate_id = ? AND j.employer_id = ? AND a.status <> ?
	ORDER BY a.created_at DESC
	LIMIT 1`

func (r *Repository) LatestApplication(ctx context.Context, candidateID, employerID string) (*recruiting.Application, error) {
	var app recruiting.Application
	err := r.db.GetContext(ctx, &app, r.db.Rebind(latestApplicationQuery), candidateID, employerID, recruiting.StatusWithdrawn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select latest application: %w", err)
	}
	return &app, nil
}
