package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

// Store is an in-process permission.Repository. A single mutex serializes
// every write, which gives Mutate the same all-or-nothing behaviour as a
// database transaction.
type Store struct {
	mu     sync.Mutex
	byID   map[string]*permission.Permission
	byPair map[permission.Pair]string
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*permission.Permission),
		byPair: make(map[permission.Pair]string),
	}
}

func (s *Store) GetByID(ctx context.Context, id string) (*permission.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, internal.ErrPermissionNotFound
	}
	return p.Clone(), nil
}

func (s *Store) FindByPair(ctx context.Context, pair permission.Pair) (*permission.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(pair).Clone(), nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID string, statuses ...permission.Status) ([]*permission.Permission, error) {
	return s.filter(func(p *permission.Permission) bool {
		return p.RequesterID == requesterID && hasStatus(p, statuses)
	}), nil
}

func (s *Store) ListByTarget(ctx context.Context, targetID string, statuses ...permission.Status) ([]*permission.Permission, error) {
	return s.filter(func(p *permission.Permission) bool {
		return p.TargetID == targetID && hasStatus(p, statuses)
	}), nil
}

func (s *Store) ListExpiredAutoGrants(ctx context.Context, userID string, now time.Time) ([]*permission.Permission, error) {
	return s.filter(func(p *permission.Permission) bool {
		return (p.RequesterID == userID || p.TargetID == userID) &&
			p.Kind == permission.KindAutoRelationship &&
			p.Status == permission.StatusApproved &&
			p.Expired(now)
	}), nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, records ...*permission.Permission) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, rec := range records {
		if s.lookup(rec.Pair()) != nil {
			continue
		}
		s.put(rec.Clone())
		created++
	}
	return created, nil
}

func (s *Store) Mutate(ctx context.Context, pairs []permission.Pair, fn permission.MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[permission.Pair]*permission.Permission, len(pairs))
	for _, pair := range pairs {
		current[pair] = s.lookup(pair).Clone()
	}

	writes, err := fn(current)
	if err != nil {
		return err
	}

	for _, w := range writes {
		if _, ok := current[w.Pair()]; !ok {
			return fmt.Errorf("write for unlocked pair %s->%s", w.RequesterID, w.TargetID)
		}
	}
	for _, w := range writes {
		row := w.Clone()
		if existing := s.lookup(row.Pair()); existing != nil {
			row.ID = existing.ID
		} else if row.ID == "" {
			row.ID = uuid.NewString()
		}
		s.put(row)
	}
	return nil
}

func (s *Store) RejectStalePending(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, p := range s.byID {
		if p.Status == permission.StatusPending && p.Expired(now) {
			p.Status = permission.StatusRejected
			p.IsActive = false
			p.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// Len reports how many rows are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) lookup(pair permission.Pair) *permission.Permission {
	id, ok := s.byPair[pair]
	if !ok {
		return nil
	}
	return s.byID[id]
}

func (s *Store) put(p *permission.Permission) {
	s.byID[p.ID] = p
	s.byPair[p.Pair()] = p.ID
}

func (s *Store) filter(keep func(*permission.Permission) bool) []*permission.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*permission.Permission, 0)
	for _, p := range s.byID {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func hasStatus(p *permission.Permission, statuses []permission.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}
