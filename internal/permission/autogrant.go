package permission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

type AutoGrantEngine struct {
	repo          Repository
	relationships *RelationshipResolver
	entitlements  *EntitlementResolver
	clock         Clock
	ttl           time.Duration
	logger        *slog.Logger
}

func NewAutoGrantEngine(repo Repository, relationships *RelationshipResolver, entitlements *EntitlementResolver, clock Clock, ttl time.Duration, logger *slog.Logger) *AutoGrantEngine {
	return &AutoGrantEngine{
		repo:          repo,
		relationships: relationships,
		entitlements:  entitlements,
		clock:         clock,
		ttl:           ttl,
		logger:        logger,
	}
}

type grantBasis struct {
	reason        GrantReason
	employerID    string
	candidateID   string
	jobID         string
	applicationID string
	plan          string
}

// TryAutoGrant creates approved rows in both directions between an employer
// and a job seeker when they are related, then returns the stored
// sender->recipient row. Existing rows are never overwritten, so a pending,
// rejected or blocked row keeps deciding the outcome. It returns nil when the
// pair does not qualify.
func (e *AutoGrantEngine) TryAutoGrant(ctx context.Context, senderID, recipientID string, senderRole, recipientRole coreuser.Role) (*Permission, error) {
	employerID, candidateID, ok := employerAndCandidate(senderID, recipientID, senderRole, recipientRole)
	if !ok {
		return nil, nil
	}

	basis, ok := e.qualify(ctx, employerID, candidateID)
	if !ok {
		return nil, nil
	}

	now := e.clock.Now()
	forward := basis.record(Pair{RequesterID: employerID, TargetID: candidateID}, now, e.ttl)
	reverse := basis.record(Pair{RequesterID: candidateID, TargetID: employerID}, now, e.ttl)

	created, err := e.repo.CreateIfAbsent(ctx, forward, reverse)
	if err != nil {
		return nil, fmt.Errorf("auto-grant pair: %w", err)
	}
	if created > 0 {
		e.logger.Info("auto-granted messaging permission",
			"employer_id", employerID,
			"candidate_id", candidateID,
			"reason", basis.reason,
			"created", created,
		)
	}

	return e.repo.FindByPair(ctx, Pair{RequesterID: senderID, TargetID: recipientID})
}

func (e *AutoGrantEngine) qualify(ctx context.Context, employerID, candidateID string) (grantBasis, bool) {
	basis := grantBasis{employerID: employerID, candidateID: candidateID}

	if app := e.relationships.HasApplied(ctx, candidateID, employerID); app != nil {
		basis.reason = ReasonApplication
		basis.jobID = app.JobID
		basis.applicationID = app.ID
		return basis, true
	}

	if ent := e.entitlements.Resolve(ctx, employerID); ent.Allowed {
		basis.reason = ReasonSubscription
		basis.plan = string(ent.Plan)
		return basis, true
	}

	return grantBasis{}, false
}

func (b grantBasis) record(pair Pair, now time.Time, ttl time.Duration) *Permission {
	return &Permission{
		ID:                   uuid.NewString(),
		RequesterID:          pair.RequesterID,
		TargetID:             pair.TargetID,
		Status:               StatusApproved,
		Kind:                 KindAutoRelationship,
		RelatedJobID:         stringPtr(b.jobID),
		RelatedApplicationID: stringPtr(b.applicationID),
		ExpiresAt:            now.Add(ttl),
		IsActive:             true,
		Metadata: Metadata{
			Reason:      b.reason,
			SponsorID:   b.employerID,
			CandidateID: b.candidateID,
			PlanTier:    b.plan,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func employerAndCandidate(senderID, recipientID string, senderRole, recipientRole coreuser.Role) (employerID, candidateID string, ok bool) {
	switch {
	case senderRole == coreuser.RoleEmployer && recipientRole == coreuser.RoleJobSeeker:
		return senderID, recipientID, true
	case senderRole == coreuser.RoleJobSeeker && recipientRole == coreuser.RoleEmployer:
		return recipientID, senderID, true
	}
	return "", "", false
}
