package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/messaging-permissions/internal"
)

type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

type Subscription struct {
	UserID           string     `db:"user_id"`
	Plan             Plan       `db:"plan"`
	Status           Status     `db:"status"`
	MessagingEnabled bool       `db:"messaging_enabled"`
	CurrentPeriodEnd *time.Time `db:"current_period_end"`
}

// Entitlement is the answer handed to the permission engine.
type Entitlement struct {
	Allowed bool
	Plan    Plan
}

type Repository interface {
	// CurrentForUser returns nil, nil when the user never subscribed.
	CurrentForUser(ctx context.Context, userID string) (*Subscription, error)
}

// Policy decides which plans carry direct messaging.
type Policy struct {
	qualifying map[Plan]struct{}
}

func NewPolicy(plans []string) Policy {
	q := make(map[Plan]struct{}, len(plans))
	for _, p := range plans {
		q[Plan(p)] = struct{}{}
	}
	return Policy{qualifying: q}
}

func (p Policy) Qualifies(plan Plan) bool {
	_, ok := p.qualifying[plan]
	return ok
}

// AllowsAutoMessaging reports whether sub is live at now and its plan
// includes direct messaging.
func (p Policy) AllowsAutoMessaging(sub *Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.Status != StatusActive && sub.Status != StatusTrialing {
		return false
	}
	if sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now) {
		return false
	}
	return sub.MessagingEnabled && p.Qualifies(sub.Plan)
}

type Service struct {
	repo   Repository
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository, policy Policy, logger *slog.Logger) *Service {
	return &Service{repo: repo, policy: policy, now: time.Now, logger: logger}
}

// WithNow overrides the clock used to judge period ends.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Entitlement(ctx context.Context, userID string) (Entitlement, error) {
	ctx, cancel := internal.WithTimeout(ctx, internal.DefaultQueryTimeout)
	defer cancel()

	sub, err := s.repo.CurrentForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load subscription", "user_id", userID, "error", err)
		return Entitlement{}, err
	}
	if sub == nil {
		return Entitlement{}, nil
	}
	return Entitlement{
		Allowed: s.policy.AllowsAutoMessaging(sub, s.now()),
		Plan:    sub.Plan,
	}, nil
}
