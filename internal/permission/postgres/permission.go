package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/messaging-permissions/internal"
	datamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/permission"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

const maxMutateAttempts = 3

// PermissionRepository implements permission.Repository using GORM. Pair
// uniqueness is enforced by the (requester_id, target_id) unique index; rows
// touched by Mutate are locked FOR UPDATE for the length of the transaction.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

var pairColumns = []clause.Column{{Name: "requester_id"}, {Name: "target_id"}}

func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*permission.Permission, error) {
	var row datamodel.MessagingPermission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPermissionNotFound
		}
		return nil, err
	}
	return permission.FromDataModel(&row), nil
}

func (r *PermissionRepository) FindByPair(ctx context.Context, pair permission.Pair) (*permission.Permission, error) {
	row, err := findPair(r.db.WithContext(ctx), pair)
	if err != nil || row == nil {
		return nil, err
	}
	return permission.FromDataModel(row), nil
}

func (r *PermissionRepository) ListByRequester(ctx context.Context, requesterID string, statuses ...permission.Status) ([]*permission.Permission, error) {
	return r.list(ctx, "requester_id = ?", requesterID, statuses)
}

func (r *PermissionRepository) ListByTarget(ctx context.Context, targetID string, statuses ...permission.Status) ([]*permission.Permission, error) {
	return r.list(ctx, "target_id = ?", targetID, statuses)
}

func (r *PermissionRepository) list(ctx context.Context, cond string, userID string, statuses []permission.Status) ([]*permission.Permission, error) {
	q := r.db.WithContext(ctx).Where(cond, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}

	var rows []*datamodel.MessagingPermission
	if err := q.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *PermissionRepository) ListExpiredAutoGrants(ctx context.Context, userID string, now time.Time) ([]*permission.Permission, error) {
	var rows []*datamodel.MessagingPermission
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR target_id = ?)", userID, userID).
		Where("kind = ? AND status = ? AND expires_at <= ?", string(permission.KindAutoRelationship), string(permission.StatusApproved), now).
		Order("expires_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (r *PermissionRepository) CreateIfAbsent(ctx context.Context, records ...*permission.Permission) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = 0
		for _, rec := range records {
			res := tx.Clauses(clause.OnConflict{Columns: pairColumns, DoNothing: true}).
				Create(permission.ToDataModel(rec))
			if res.Error != nil {
				return res.Error
			}
			created += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Mutate locks the rows for pairs, hands them to fn and writes back what fn
// returns. Two writers inserting the same missing pair collide on the unique
// index; the loser retries against the now-existing row.
func (r *PermissionRepository) Mutate(ctx context.Context, pairs []permission.Pair, fn permission.MutateFunc) error {
	ordered := sortedPairs(pairs)

	var err error
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return mutateOnce(tx, ordered, fn)
		})
		if err == nil || !isUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("mutate permission pair after %d attempts: %w", maxMutateAttempts, err)
}

func mutateOnce(tx *gorm.DB, pairs []permission.Pair, fn permission.MutateFunc) error {
	current := make(map[permission.Pair]*permission.Permission, len(pairs))
	existing := make(map[permission.Pair]bool, len(pairs))

	for _, pair := range pairs {
		row, err := findPair(tx.Clauses(clause.Locking{Strength: "UPDATE"}), pair)
		if err != nil {
			return err
		}
		if row == nil {
			current[pair] = nil
			continue
		}
		current[pair] = permission.FromDataModel(row)
		existing[pair] = true
	}

	writes, err := fn(current)
	if err != nil {
		return err
	}

	for _, w := range writes {
		if _, ok := current[w.Pair()]; !ok {
			return fmt.Errorf("write for unlocked pair %s->%s", w.RequesterID, w.TargetID)
		}
		row := permission.ToDataModel(w)
		if existing[w.Pair()] {
			err = tx.Save(row).Error
		} else {
			err = tx.Create(row).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PermissionRepository) RejectStalePending(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&datamodel.MessagingPermission{}).
		Where("status = ? AND expires_at <= ?", string(permission.StatusPending), now).
		Updates(map[string]interface{}{
			"status":     string(permission.StatusRejected),
			"is_active":  false,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func findPair(db *gorm.DB, pair permission.Pair) (*datamodel.MessagingPermission, error) {
	var row datamodel.MessagingPermission
	err := db.Where("requester_id = ? AND target_id = ?", pair.RequesterID, pair.TargetID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// sortedPairs deduplicates and orders pairs so concurrent transactions lock
// rows in the same order.
func sortedPairs(pairs []permission.Pair) []permission.Pair {
	seen := make(map[permission.Pair]bool, len(pairs))
	out := make([]permission.Pair, 0, len(pairs))
	for _, p := range pairs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequesterID != out[j].RequesterID {
			return out[i].RequesterID < out[j].RequesterID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func statusStrings(statuses []permission.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func fromRows(rows []*datamodel.MessagingPermission) []*permission.Permission {
	out := make([]*permission.Permission, len(rows))
	for i, row := range rows {
		out[i] = permission.FromDataModel(row)
	}
	return out
}
