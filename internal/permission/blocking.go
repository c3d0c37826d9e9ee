package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/messaging-permissions/internal"
)

// Blocking keeps both directions of a pair blocked together.
type Blocking struct {
	repo       Repository
	clock      Clock
	requestTTL time.Duration
	logger     *slog.Logger
}

func NewBlocking(repo Repository, clock Clock, requestTTL time.Duration, logger *slog.Logger) *Blocking {
	return &Blocking{repo: repo, clock: clock, requestTTL: requestTTL, logger: logger}
}

// Block marks blockerID->blockedID and blockedID->blockerID as blocked and
// inactive, creating rows where none exist.
func (b *Blocking) Block(ctx context.Context, blockerID, blockedID string) ([]*Permission, error) {
	if blockerID == blockedID {
		return nil, internal.ErrSelfPermission
	}
	rows, err := b.block(ctx, blockerID, blockedID, "", nil)
	if err != nil {
		return nil, err
	}
	return orderedPair(rows, Pair{RequesterID: blockerID, TargetID: blockedID}), nil
}

// block applies a symmetric block. When pendingID is set the blocked->blocker
// row must still be that pending request, which is how a target answers a
// request with "blocked".
func (b *Blocking) block(ctx context.Context, blockerID, blockedID, pendingID string, responseMessage *string) (map[Pair]*Permission, error) {
	outgoing := Pair{RequesterID: blockerID, TargetID: blockedID}
	incoming := outgoing.Reverse()

	result := make(map[Pair]*Permission, 2)
	err := b.repo.Mutate(ctx, []Pair{outgoing, incoming}, func(current map[Pair]*Permission) ([]*Permission, error) {
		now := b.clock.Now()
		if pendingID != "" {
			if err := checkAnswerable(current[incoming], pendingID, now); err != nil {
				return nil, err
			}
		}

		writes := make([]*Permission, 0, 2)
		for _, pair := range []Pair{outgoing, incoming} {
			row := current[pair]
			if row == nil {
				row = &Permission{
					ID:          uuid.NewString(),
					RequesterID: pair.RequesterID,
					TargetID:    pair.TargetID,
					Kind:        KindExplicit,
					ExpiresAt:   now.Add(b.requestTTL),
					CreatedAt:   now,
				}
			}
			row.Status = StatusBlocked
			row.IsActive = false
			row.Metadata = Metadata{Reason: ReasonBlock, BlockedBy: blockerID}
			row.UpdatedAt = now
			if pair == incoming && pendingID != "" {
				row.ResponseMessage = cloneString(responseMessage)
			}
			result[pair] = row
			writes = append(writes, row)
		}
		return writes, nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("messaging blocked", "blocker_id", blockerID, "blocked_id", blockedID)
	return result, nil
}

// Unblock lifts a block placed by callerID. Both directions go back to
// pending and inactive, so either side still has to approve before
// messaging resumes.
func (b *Blocking) Unblock(ctx context.Context, callerID, otherID string) ([]*Permission, error) {
	if callerID == otherID {
		return nil, internal.ErrSelfPermission
	}
	outgoing := Pair{RequesterID: callerID, TargetID: otherID}
	incoming := outgoing.Reverse()

	result := make(map[Pair]*Permission, 2)
	err := b.repo.Mutate(ctx, []Pair{outgoing, incoming}, func(current map[Pair]*Permission) ([]*Permission, error) {
		now := b.clock.Now()

		var blocked []*Permission
		for _, pair := range []Pair{outgoing, incoming} {
			if row := current[pair]; row != nil && row.Status == StatusBlocked {
				blocked = append(blocked, row)
			}
		}
		if len(blocked) == 0 {
			return nil, internal.ErrBlockNotFound
		}
		for _, row := range blocked {
			if row.Metadata.BlockedBy != "" && row.Metadata.BlockedBy != callerID {
				return nil, internal.ErrNotBlocker
			}
		}

		for _, row := range blocked {
			row.Status = StatusPending
			row.Kind = KindExplicit
			row.IsActive = false
			row.ExpiresAt = now.Add(b.requestTTL)
			row.RequestMessage = nil
			row.ResponseMessage = nil
			row.Metadata = Metadata{Reason: ReasonUnblock}
			row.UpdatedAt = now
			result[row.Pair()] = row
		}
		return blocked, nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("messaging unblocked", "blocker_id", callerID, "unblocked_id", otherID)
	return orderedPair(result, outgoing), nil
}

func orderedPair(rows map[Pair]*Permission, first Pair) []*Permission {
	out := make([]*Permission, 0, 2)
	for _, pair := range []Pair{first, first.Reverse()} {
		if row, ok := rows[pair]; ok {
			out = append(out, row)
		}
	}
	return out
}
