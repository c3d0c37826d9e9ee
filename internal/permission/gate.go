package permission

import (
	"context"
	"fmt"
	"log/slog"
)

// Gate answers whether one user may send a direct message to another.
type Gate struct {
	repo      Repository
	roles     *RoleResolver
	autoGrant *AutoGrantEngine
	renewal   *RenewalManager
	clock     Clock
	logger    *slog.Logger
}

func NewGate(repo Repository, roles *RoleResolver, autoGrant *AutoGrantEngine, renewal *RenewalManager, clock Clock, logger *slog.Logger) *Gate {
	return &Gate{
		repo:      repo,
		roles:     roles,
		autoGrant: autoGrant,
		renewal:   renewal,
		clock:     clock,
		logger:    logger,
	}
}

type trace struct {
	steps []TraceStep
}

func (t *trace) add(tier, outcome, detail string) {
	t.steps = append(t.steps, TraceStep{Tier: tier, Outcome: outcome, Detail: detail})
}

func (t *trace) decide(allowed bool, reason string, p *Permission) Decision {
	return Decision{Allowed: allowed, Reason: reason, Permission: p, Trace: t.steps}
}

// CanMessage walks the precedence tiers in order and stops at the first one
// that decides: self, administrator, relationship auto-grant, then the stored
// row (missing, blocked, rejected, pending, approved, expired). An error is
// returned only when the permission store itself fails.
func (g *Gate) CanMessage(ctx context.Context, senderID, recipientID string) (Decision, error) {
	t := &trace{}

	if senderID == recipientID {
		t.add("self", "allow", "")
		return t.decide(true, ReasonSelf, nil), nil
	}
	t.add("self", "skip", "")

	senderRole := g.roles.RoleOf(ctx, senderID)
	recipientRole := g.roles.RoleOf(ctx, recipientID)
	if senderRole.IsAdmin() || recipientRole.IsAdmin() {
		t.add("admin", "allow", fmt.Sprintf("sender=%s recipient=%s", senderRole, recipientRole))
		return t.decide(true, ReasonAdminOverride, nil), nil
	}
	t.add("admin", "skip", "")

	stored, err := g.autoGrant.TryAutoGrant(ctx, senderID, recipientID, senderRole, recipientRole)
	if err != nil {
		return Decision{}, err
	}
	now := g.clock.Now()
	if stored != nil && stored.Usable(now) && stored.Kind == KindAutoRelationship {
		t.add("auto_grant", "allow", string(stored.Metadata.Reason))
		return t.decide(true, autoGrantReason(stored), stored), nil
	}
	if stored != nil {
		t.add("auto_grant", "skip", "existing row "+string(stored.Status))
	} else {
		t.add("auto_grant", "skip", "no qualifying relationship")
		stored, err = g.repo.FindByPair(ctx, Pair{RequesterID: senderID, TargetID: recipientID})
		if err != nil {
			return Decision{}, fmt.Errorf("load permission: %w", err)
		}
	}

	if stored != nil && stored.Status == StatusApproved && stored.Expired(now) {
		t.add("stored", "expired", stored.ID)
		d, err := g.renewal.Reevaluate(ctx, stored)
		if err != nil {
			return Decision{}, err
		}
		d.Trace = append(t.steps, d.Trace...)
		g.logDecision(ctx, senderID, recipientID, d)
		return d, nil
	}

	allowed, reason := verdict(stored, now)
	detail := "no row"
	if stored != nil {
		detail = string(stored.Status)
	}
	t.add("stored", outcome(allowed), detail)

	d := t.decide(allowed, reason, stored)
	g.logDecision(ctx, senderID, recipientID, d)
	return d, nil
}

func (g *Gate) logDecision(ctx context.Context, senderID, recipientID string, d Decision) {
	g.logger.DebugContext(ctx, "messaging decision",
		"sender_id", senderID,
		"recipient_id", recipientID,
		"allowed", d.Allowed,
		"reason", d.Reason,
	)
}

func autoGrantReason(p *Permission) string {
	if p.Metadata.Reason == ReasonApplication {
		return ReasonAutoApplication
	}
	if p.Metadata.Reason == ReasonSubscription {
		return ReasonAutoSponsor
	}
	return ReasonApproved
}
