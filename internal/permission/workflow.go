package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/messaging-permissions/internal"
)

type RequestInput struct {
	RequesterID  string
	TargetID     string
	Message      *string
	RelatedJobID *string
	// TTLDays overrides the default request lifetime when positive.
	TTLDays int
}

type RespondInput struct {
	PermissionID    string
	ResponderID     string
	Decision        Status
	ResponseMessage *string
}

// Workflow runs explicit permission requests: a requester asks, the target
// answers.
type Workflow struct {
	repo       Repository
	users      UserDirectory
	blocking   *Blocking
	notifier   *notifier
	clock      Clock
	requestTTL time.Duration
	maxTTLDays int
	logger     *slog.Logger
}

func NewWorkflow(repo Repository, users UserDirectory, blocking *Blocking, sink NotificationSink, clock Clock, requestTTL time.Duration, maxTTLDays int, logger *slog.Logger) *Workflow {
	return &Workflow{
		repo:       repo,
		users:      users,
		blocking:   blocking,
		notifier:   newNotifier(sink, logger),
		clock:      clock,
		requestTTL: requestTTL,
		maxTTLDays: maxTTLDays,
		logger:     logger,
	}
}

// Request creates or reuses the requester->target row as a pending request.
// An approved row that is still valid is returned unchanged.
func (w *Workflow) Request(ctx context.Context, in RequestInput) (*Permission, error) {
	if in.RequesterID == in.TargetID {
		return nil, internal.ErrSelfPermission
	}
	if in.TTLDays < 0 || (w.maxTTLDays > 0 && in.TTLDays > w.maxTTLDays) {
		return nil, internal.NewValidationFieldError("ttl_days",
			fmt.Sprintf("ttl_days must be between 1 and %d", w.maxTTLDays), internal.ErrCodeValidationFailed)
	}
	if err := w.ensureUser(ctx, in.TargetID); err != nil {
		return nil, err
	}

	ttl := w.requestTTL
	if in.TTLDays > 0 {
		ttl = time.Duration(in.TTLDays) * 24 * time.Hour
	}

	pair := Pair{RequesterID: in.RequesterID, TargetID: in.TargetID}
	var (
		result  *Permission
		written bool
	)
	err := w.repo.Mutate(ctx, []Pair{pair}, func(current map[Pair]*Permission) ([]*Permission, error) {
		now := w.clock.Now()
		existing := current[pair]
		written = false

		switch {
		case existing == nil:
			result = &Permission{
				ID:          uuid.NewString(),
				RequesterID: in.RequesterID,
				TargetID:    in.TargetID,
				CreatedAt:   now,
			}
		case existing.Status == StatusPending:
			return nil, internal.ErrRequestAlreadyPending
		case existing.Status == StatusBlocked:
			return nil, internal.ErrPermissionBlocked
		case existing.Usable(now):
			result = existing
			return nil, nil
		default:
			result = existing
		}

		result.Status = StatusPending
		result.Kind = KindExplicit
		result.RequestMessage = cloneString(in.Message)
		result.ResponseMessage = nil
		result.RelatedJobID = cloneString(in.RelatedJobID)
		result.RelatedApplicationID = nil
		result.ExpiresAt = now.Add(ttl)
		result.IsActive = false
		result.Metadata = Metadata{Reason: ReasonRequest}
		result.UpdatedAt = now
		written = true
		return []*Permission{result}, nil
	})
	if err != nil {
		return nil, err
	}

	if written {
		w.logger.Info("messaging permission requested",
			"permission_id", result.ID,
			"requester_id", result.RequesterID,
			"target_id", result.TargetID,
			"expires_at", result.ExpiresAt,
		)
		w.notifier.send(ctx, notificationFor(NotificationRequested, result.TargetID, result, w.clock.Now()))
	}
	return result, nil
}

// Respond records the target's answer to a pending request. Blocking also
// blocks the reverse direction.
func (w *Workflow) Respond(ctx context.Context, in RespondInput) (*Permission, error) {
	switch in.Decision {
	case StatusApproved, StatusRejected, StatusBlocked:
	default:
		return nil, internal.ErrInvalidDecision
	}

	p, err := w.repo.GetByID(ctx, in.PermissionID)
	if err != nil {
		return nil, err
	}
	if p.TargetID != in.ResponderID {
		return nil, internal.ErrNotRequestTarget
	}

	if in.Decision == StatusBlocked {
		rows, err := w.blocking.block(ctx, in.ResponderID, p.RequesterID, p.ID, in.ResponseMessage)
		if err != nil {
			return nil, err
		}
		result := rows[p.Pair()]
		w.notifyResponse(ctx, result)
		return result, nil
	}

	pair := p.Pair()
	var result *Permission
	err = w.repo.Mutate(ctx, []Pair{pair}, func(current map[Pair]*Permission) ([]*Permission, error) {
		now := w.clock.Now()
		row := current[pair]
		if err := checkAnswerable(row, in.PermissionID, now); err != nil {
			return nil, err
		}

		row.Status = in.Decision
		row.IsActive = in.Decision == StatusApproved
		row.ResponseMessage = cloneString(in.ResponseMessage)
		row.UpdatedAt = now
		result = row
		return []*Permission{row}, nil
	})
	if err != nil {
		return nil, err
	}

	w.notifyResponse(ctx, result)
	return result, nil
}

// checkAnswerable requires the locked row to still be the pending request the
// caller loaded.
func checkAnswerable(row *Permission, permissionID string, now time.Time) error {
	if row == nil || row.ID != permissionID {
		return internal.ErrPermissionNotFound
	}
	if row.Status != StatusPending {
		return internal.ErrRequestAlreadyResolved
	}
	if row.Expired(now) {
		return internal.ErrRequestExpired
	}
	return nil
}

func (w *Workflow) notifyResponse(ctx context.Context, p *Permission) {
	w.logger.Info("messaging permission request answered",
		"permission_id", p.ID,
		"requester_id", p.RequesterID,
		"target_id", p.TargetID,
		"status", p.Status,
	)
	w.notifier.send(ctx, notificationFor(NotificationResponded, p.RequesterID, p, w.clock.Now()))
}

func (w *Workflow) ensureUser(ctx context.Context, userID string) error {
	if w.users == nil {
		return nil
	}
	if _, err := w.users.RoleOf(ctx, userID); err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return internal.ErrUserNotFound
		}
		return fmt.Errorf("look up user: %w", err)
	}
	return nil
}
