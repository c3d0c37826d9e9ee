package permission

import (
	"context"
	"log/slog"

	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
	"github.com/frahmantamala/messaging-permissions/internal/recruiting"
	"github.com/frahmantamala/messaging-permissions/internal/subscription"
)

// The resolvers wrap collaborator lookups. Any oracle failure is logged and
// read as "no": a broken collaborator can deny but never grant.

type RoleResolver struct {
	users  UserDirectory
	logger *slog.Logger
}

func NewRoleResolver(users UserDirectory, logger *slog.Logger) *RoleResolver {
	return &RoleResolver{users: users, logger: logger}
}

// RoleOf returns "" when the role cannot be determined.
func (r *RoleResolver) RoleOf(ctx context.Context, userID string) coreuser.Role {
	if r.users == nil {
		return ""
	}
	role, err := r.users.RoleOf(ctx, userID)
	if err != nil {
		r.logger.Warn("role lookup failed, treating user as unprivileged", "user_id", userID, "error", err)
		return ""
	}
	return role
}

type RelationshipResolver struct {
	oracle RelationshipOracle
	logger *slog.Logger
}

func NewRelationshipResolver(oracle RelationshipOracle, logger *slog.Logger) *RelationshipResolver {
	return &RelationshipResolver{oracle: oracle, logger: logger}
}

// HasApplied returns the candidate's application to one of the employer's
// jobs, or nil.
func (r *RelationshipResolver) HasApplied(ctx context.Context, candidateID, employerID string) *recruiting.Application {
	if r.oracle == nil {
		return nil
	}
	app, err := r.oracle.LatestApplication(ctx, candidateID, employerID)
	if err != nil {
		r.logger.Warn("relationship oracle failed, treating as no relationship",
			"candidate_id", candidateID, "employer_id", employerID, "error", err)
		return nil
	}
	return app
}

type EntitlementResolver struct {
	oracle EntitlementOracle
	logger *slog.Logger
}

func NewEntitlementResolver(oracle EntitlementOracle, logger *slog.Logger) *EntitlementResolver {
	return &EntitlementResolver{oracle: oracle, logger: logger}
}

func (r *EntitlementResolver) Resolve(ctx context.Context, userID string) subscription.Entitlement {
	if r.oracle == nil {
		return subscription.Entitlement{}
	}
	ent, err := r.oracle.Entitlement(ctx, userID)
	if err != nil {
		r.logger.Warn("entitlement oracle failed, treating as not entitled", "user_id", userID, "error", err)
		return subscription.Entitlement{}
	}
	return ent
}

func (r *EntitlementResolver) Allows(ctx context.Context, userID string) bool {
	return r.Resolve(ctx, userID).Allowed
}
