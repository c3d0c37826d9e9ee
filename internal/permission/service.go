package permission

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dependencies are the collaborators the engine consults. Any oracle may be
// nil, in which case it always answers "no".
type Dependencies struct {
	Repository    Repository
	Users         UserDirectory
	Relationships RelationshipOracle
	Entitlements  EntitlementOracle
	Notifications NotificationSink
	Clock         Clock
}

type Config struct {
	RequestTTL        time.Duration
	MaxRequestTTLDays int
	AutoGrantTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestTTL:        7 * 24 * time.Hour,
		MaxRequestTTLDays: 30,
		AutoGrantTTL:      90 * 24 * time.Hour,
	}
}

// Service is the entry point for every messaging permission operation.
type Service struct {
	repo        Repository
	clock       Clock
	gate        *Gate
	workflow    *Workflow
	blocking    *Blocking
	renewal     *RenewalManager
	maintenance *Maintenance
	logger      *slog.Logger
}

func NewService(deps Dependencies, cfg Config, logger *slog.Logger) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	roles := NewRoleResolver(deps.Users, logger)
	relationships := NewRelationshipResolver(deps.Relationships, logger)
	entitlements := NewEntitlementResolver(deps.Entitlements, logger)

	autoGrant := NewAutoGrantEngine(deps.Repository, relationships, entitlements, clock, cfg.AutoGrantTTL, logger)
	renewal := NewRenewalManager(deps.Repository, roles, entitlements, deps.Notifications, clock, cfg.AutoGrantTTL, logger)
	blocking := NewBlocking(deps.Repository, clock, cfg.RequestTTL, logger)

	return &Service{
		repo:        deps.Repository,
		clock:       clock,
		gate:        NewGate(deps.Repository, roles, autoGrant, renewal, clock, logger),
		workflow:    NewWorkflow(deps.Repository, deps.Users, blocking, deps.Notifications, clock, cfg.RequestTTL, cfg.MaxRequestTTLDays, logger),
		blocking:    blocking,
		renewal:     renewal,
		maintenance: NewMaintenance(deps.Repository, clock, logger),
		logger:      logger,
	}
}

func (s *Service) RequestPermission(ctx context.Context, in RequestInput) (*Permission, error) {
	return s.workflow.Request(ctx, in)
}

func (s *Service) RespondToRequest(ctx context.Context, in RespondInput) (*Permission, error) {
	return s.workflow.Respond(ctx, in)
}

func (s *Service) CanMessage(ctx context.Context, senderID, recipientID string) (Decision, error) {
	return s.gate.CanMessage(ctx, senderID, recipientID)
}

func (s *Service) Block(ctx context.Context, blockerID, blockedID string) ([]*Permission, error) {
	return s.blocking.Block(ctx, blockerID, blockedID)
}

func (s *Service) Unblock(ctx context.Context, callerID, otherID string) ([]*Permission, error) {
	return s.blocking.Unblock(ctx, callerID, otherID)
}

func (s *Service) RenewAllExpiredForSponsor(ctx context.Context, callerID, sponsorID string) (int, error) {
	return s.renewal.RenewAllExpiredForSponsor(ctx, callerID, sponsorID)
}

func (s *Service) SweepStalePending(ctx context.Context) (int64, error) {
	return s.maintenance.SweepStalePending(ctx)
}

// ListIncoming returns requests waiting for userID's answer.
func (s *Service) ListIncoming(ctx context.Context, userID string) ([]*Permission, error) {
	rows, err := s.repo.ListByTarget(ctx, userID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list incoming: %w", err)
	}
	return rows, nil
}

// ListOutgoing returns userID's own requests still waiting for an answer.
func (s *Service) ListOutgoing(ctx context.Context, userID string) ([]*Permission, error) {
	rows, err := s.repo.ListByRequester(ctx, userID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list outgoing: %w", err)
	}
	return rows, nil
}

// ListActive returns the grants that currently let userID message someone.
func (s *Service) ListActive(ctx context.Context, userID string) ([]*Permission, error) {
	rows, err := s.repo.ListByRequester(ctx, userID, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	now := s.clock.Now()
	active := make([]*Permission, 0, len(rows))
	for _, p := range rows {
		if p.Usable(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	incoming, err := s.repo.ListByTarget(ctx, userID, StatusPending)
	if err != nil {
		return Stats{}, fmt.Errorf("stats incoming: %w", err)
	}
	outgoing, err := s.repo.ListByRequester(ctx, userID, StatusPending, StatusApproved, StatusBlocked)
	if err != nil {
		return Stats{}, fmt.Errorf("stats outgoing: %w", err)
	}

	now := s.clock.Now()
	stats := Stats{IncomingPending: len(incoming)}
	for _, p := range outgoing {
		switch {
		case p.Status == StatusPending:
			stats.OutgoingPending++
		case p.Usable(now):
			stats.Active++
		case p.Status == StatusBlocked && p.Metadata.BlockedBy == userID:
			stats.Blocked++
		}
	}
	return stats, nil
}
