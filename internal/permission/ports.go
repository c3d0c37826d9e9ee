package permission

import (
	"context"
	"time"

	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
	"github.com/frahmantamala/messaging-permissions/internal/recruiting"
	"github.com/frahmantamala/messaging-permissions/internal/subscription"
)

// MutateFunc receives the locked rows for the requested pairs (nil when a
// pair has no row yet) and returns the rows to persist. Returning an error
// aborts the whole mutation.
type MutateFunc func(current map[Pair]*Permission) ([]*Permission, error)

// Repository is the durable permission store. Every write that depends on a
// row's current state goes through Mutate so concurrent writers on the same
// pair are serialized.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Permission, error)
	// FindByPair returns nil, nil when the pair has no row.
	FindByPair(ctx context.Context, pair Pair) (*Permission, error)
	ListByRequester(ctx context.Context, requesterID string, statuses ...Status) ([]*Permission, error)
	ListByTarget(ctx context.Context, targetID string, statuses ...Status) ([]*Permission, error)
	// ListExpiredAutoGrants returns approved auto_relationship rows involving
	// userID on either side whose window closed at or before now.
	ListExpiredAutoGrants(ctx context.Context, userID string, now time.Time) ([]*Permission, error)
	// CreateIfAbsent inserts each record whose pair has no row and leaves
	// existing rows untouched, all in one transaction. It returns how many
	// rows were inserted.
	CreateIfAbsent(ctx context.Context, records ...*Permission) (int, error)
	Mutate(ctx context.Context, pairs []Pair, fn MutateFunc) error
	// RejectStalePending flips pending rows with expires_at <= now to
	// rejected and inactive.
	RejectStalePending(ctx context.Context, now time.Time) (int64, error)
}

// UserDirectory resolves a user's account role. Unknown users return
// internal.ErrUserNotFound.
type UserDirectory interface {
	RoleOf(ctx context.Context, userID string) (coreuser.Role, error)
}

// RelationshipOracle answers whether a candidate applied to an employer's job.
type RelationshipOracle interface {
	LatestApplication(ctx context.Context, candidateID, employerID string) (*recruiting.Application, error)
}

// EntitlementOracle answers whether a user's subscription includes direct
// messaging right now.
type EntitlementOracle interface {
	Entitlement(ctx context.Context, userID string) (subscription.Entitlement, error)
}

type NotificationType string

const (
	NotificationRequested NotificationType = "permission.requested"
	NotificationResponded NotificationType = "permission.responded"
	NotificationRenewed   NotificationType = "permission.renewed"
	NotificationExpired   NotificationType = "permission.expired"
)

type Notification struct {
	Type         NotificationType
	RecipientID  string
	PermissionID string
	RequesterID  string
	TargetID     string
	Status       Status
	Message      *string
	OccurredAt   time.Time
}

// NotificationSink delivers workflow notifications. Delivery failures never
// change a permission outcome.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
