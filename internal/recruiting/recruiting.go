package recruiting

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/messaging-permissions/internal"
)

const StatusWithdrawn = "withdrawn"

// Application links a candidate to one of an employer's jobs.
type Application struct {
	ID          string `db:"id" json:"id"`
	JobID       string `db:"job_id" json:"job_id"`
	CandidateID string `db:"candidate_id" json:"candidate_id"`
	EmployerID  string `db:"employer_id" json:"employer_id"`
	Status      string `db:"status" json:"status"`
}

type Repository interface {
	// LatestApplication returns nil, nil when the candidate has no live
	// application to any of the employer's jobs.
	LatestApplication(ctx context.Context, candidateID, employerID string) (*Application, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// LatestApplication answers whether candidateID has applied to a job posted
// by employerID.
func (s *Service) LatestApplication(ctx context.Context, candidateID, employerID string) (*Application, error) {
	ctx, cancel := internal.WithTimeout(ctx, internal.DefaultQueryTimeout)
	defer cancel()

	app, err := s.repo.LatestApplication(ctx, candidateID, employerID)
	if err != nil {
		s.logger.Error("failed to look up application", "candidate_id", candidateID, "employer_id", employerID, "error", err)
		return nil, err
	}
	return app, nil
}
