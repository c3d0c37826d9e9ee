package permission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/messaging-permissions/internal"
	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

const (
	ReasonSelf            = "self-message"
	ReasonAdminOverride   = "administrative override"
	ReasonAutoApplication = "auto-granted: candidate applied to employer's job"
	ReasonAutoSponsor     = "auto-granted: employer subscription includes direct messaging"
	ReasonNoPermission    = "no permission; request access first"
	ReasonBlocked         = "messaging blocked"
	ReasonRejected        = "permission request was rejected"
	ReasonPending         = "permission request is pending approval"
	ReasonApproved        = "permission approved"
	ReasonRenewed         = "permission renewed"
	ReasonExpired         = "permission expired"
)

// verdict applies the stored-row rules to p at now.
func verdict(p *Permission, now time.Time) (bool, string) {
	if p == nil {
		return false, ReasonNoPermission
	}
	switch p.Status {
	case StatusBlocked:
		return false, ReasonBlocked
	case StatusRejected:
		return false, ReasonRejected
	case StatusPending:
		return false, ReasonPending
	case StatusApproved:
		if p.Expired(now) {
			return false, ReasonExpired
		}
		return true, ReasonApproved
	}
	return false, ReasonNoPermission
}

type RenewalManager struct {
	repo         Repository
	roles        *RoleResolver
	entitlements *EntitlementResolver
	notifier     *notifier
	clock        Clock
	ttl          time.Duration
	logger       *slog.Logger
}

func NewRenewalManager(repo Repository, roles *RoleResolver, entitlements *EntitlementResolver, sink NotificationSink, clock Clock, ttl time.Duration, logger *slog.Logger) *RenewalManager {
	return &RenewalManager{
		repo:         repo,
		roles:        roles,
		entitlements: entitlements,
		notifier:     newNotifier(sink, logger),
		clock:        clock,
		ttl:          ttl,
		logger:       logger,
	}
}

// Reevaluate handles an approved row whose window has closed. Relationship
// grants whose employer is entitled right now get a fresh window; anything
// else is deactivated and denied.
func (m *RenewalManager) Reevaluate(ctx context.Context, p *Permission) (Decision, error) {
	if p.Kind == KindAutoRelationship {
		if sponsorID := m.sponsorOf(ctx, p); sponsorID != "" && m.entitlements.Allows(ctx, sponsorID) {
			current, renewed, err := m.renew(ctx, p.Pair(), sponsorID)
			if err != nil {
				return Decision{}, err
			}
			allowed, reason := verdict(current, m.clock.Now())
			if renewed {
				reason = ReasonRenewed
			}
			return Decision{
				Allowed:    allowed,
				Reason:     reason,
				Permission: current,
				Trace:      []TraceStep{{Tier: "renewal", Outcome: outcome(allowed), Detail: "sponsor " + sponsorID + " entitled"}},
			}, nil
		}
	}

	current, err := m.deactivate(ctx, p.Pair())
	if err != nil {
		return Decision{}, err
	}
	allowed, reason := verdict(current, m.clock.Now())
	return Decision{
		Allowed:    allowed,
		Reason:     reason,
		Permission: current,
		Trace:      []TraceStep{{Tier: "renewal", Outcome: outcome(allowed), Detail: "not renewable"}},
	}, nil
}

// RenewAllExpiredForSponsor renews every expired relationship grant that
// sponsorID sponsors, provided sponsorID is entitled right now. Grants where
// sponsorID is only the candidate are left alone. Only the sponsor or an
// administrator may trigger it.
func (m *RenewalManager) RenewAllExpiredForSponsor(ctx context.Context, callerID, sponsorID string) (int, error) {
	if callerID != sponsorID && !m.roles.RoleOf(ctx, callerID).IsAdmin() {
		return 0, internal.ErrSponsorMismatch
	}

	if !m.entitlements.Allows(ctx, sponsorID) {
		m.logger.Info("sponsor not entitled, nothing renewed", "sponsor_id", sponsorID)
		return 0, nil
	}

	expired, err := m.repo.ListExpiredAutoGrants(ctx, sponsorID, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired grants: %w", err)
	}

	renewedCount := 0
	for _, p := range expired {
		if m.sponsorOf(ctx, p) != sponsorID {
			continue
		}
		_, renewed, err := m.renew(ctx, p.Pair(), sponsorID)
		if err != nil {
			return renewedCount, err
		}
		if renewed {
			renewedCount++
		}
	}

	m.logger.Info("renewed expired grants for sponsor", "sponsor_id", sponsorID, "renewed_count", renewedCount)
	return renewedCount, nil
}

// sponsorOf prefers the sponsor recorded at grant time and falls back to
// whichever side is an employer.
func (m *RenewalManager) sponsorOf(ctx context.Context, p *Permission) string {
	if p.Metadata.SponsorID != "" {
		return p.Metadata.SponsorID
	}
	if m.roles.RoleOf(ctx, p.RequesterID) == coreuser.RoleEmployer {
		return p.RequesterID
	}
	if m.roles.RoleOf(ctx, p.TargetID) == coreuser.RoleEmployer {
		return p.TargetID
	}
	return ""
}

// renew extends the row's window when, once locked, it is still an expired
// approved relationship grant sponsored by sponsorID. It returns the row as
// stored afterwards.
func (m *RenewalManager) renew(ctx context.Context, pair Pair, sponsorID string) (*Permission, bool, error) {
	var (
		result  *Permission
		renewed bool
	)
	err := m.repo.Mutate(ctx, []Pair{pair}, func(current map[Pair]*Permission) ([]*Permission, error) {
		result, renewed = current[pair], false
		now := m.clock.Now()
		if result == nil || result.Kind != KindAutoRelationship || result.Status != StatusApproved || !result.Expired(now) {
			return nil, nil
		}
		if m.sponsorOf(ctx, result) != sponsorID {
			return nil, nil
		}
		result.ExpiresAt = now.Add(m.ttl)
		result.IsActive = true
		result.Metadata.Renewals++
		result.UpdatedAt = now
		renewed = true
		return []*Permission{result}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("renew permission: %w", err)
	}

	if renewed {
		m.logger.Info("renewed messaging permission",
			"permission_id", result.ID,
			"requester_id", result.RequesterID,
			"target_id", result.TargetID,
			"expires_at", result.ExpiresAt,
		)
		m.notifier.send(ctx, notificationFor(NotificationRenewed, result.RequesterID, result, m.clock.Now()))
	}
	return result, renewed, nil
}

func (m *RenewalManager) deactivate(ctx context.Context, pair Pair) (*Permission, error) {
	var (
		result      *Permission
		deactivated bool
	)
	err := m.repo.Mutate(ctx, []Pair{pair}, func(current map[Pair]*Permission) ([]*Permission, error) {
		result, deactivated = current[pair], false
		now := m.clock.Now()
		if result == nil || result.Status != StatusApproved || !result.Expired(now) || !result.IsActive {
			return nil, nil
		}
		result.IsActive = false
		result.UpdatedAt = now
		deactivated = true
		return []*Permission{result}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("deactivate permission: %w", err)
	}

	if deactivated {
		m.logger.Info("messaging permission expired",
			"permission_id", result.ID,
			"requester_id", result.RequesterID,
			"target_id", result.TargetID,
		)
		m.notifier.send(ctx, notificationFor(NotificationExpired, result.RequesterID, result, m.clock.Now()))
	}
	return result, nil
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
