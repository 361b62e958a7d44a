// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]core.User
	cats       []core.Category
	expenses   map[string]core.Expense
	snapshots  map[string]core.InsightSnapshot
	staleSince map[string]time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]core.User),
		expenses:   make(map[string]core.Expense),
		snapshots:  make(map[string]core.InsightSnapshot),
		staleSince: make(map[string]time.Time),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return core.ErrEmailTaken
		}
	}
	u.CreatedAt = prev.CreatedAt
	s.users[u.ID] = u
	return nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) SeedCategories(_ context.Context, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		if slices.ContainsFunc(s.cats, func(e core.Category) bool { return e.Name == c.Name }) {
			continue
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.cats = append(s.cats, c)
	}
	return nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, limit int) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.byUser(userID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = storage.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AllExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.byUser(userID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) byUser(userID string) []core.Expense {
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.expenses[e.ID]
	if !ok || prev.UserID != e.UserID {
		return core.ErrNotFound
	}
	e.CreatedAt = prev.CreatedAt
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func snapshotKey(userID, profile string) string { return userID + "\x00" + profile }

func (s *Store) SaveSnapshot(_ context.Context, snap core.InsightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Payload = append([]byte(nil), snap.Payload...)
	s.snapshots[snapshotKey(snap.UserID, snap.Profile)] = snap
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, userID, profile string) (core.InsightSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile != "" {
		snap, ok := s.snapshots[snapshotKey(userID, profile)]
		if !ok {
			return core.InsightSnapshot{}, core.ErrNotFound
		}
		return snap, nil
	}
	var (
		best  core.InsightSnapshot
		found bool
	)
	for _, snap := range s.snapshots {
		if snap.UserID == userID && (!found || snap.GeneratedAt.After(best.GeneratedAt)) {
			best, found = snap, true
		}
	}
	if !found {
		return core.InsightSnapshot{}, core.ErrNotFound
	}
	return best, nil
}

func (s *Store) MarkStale(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleSince[userID] = time.Now()
	return nil
}

func (s *Store) StaleUsers(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.staleSince))
	for id := range s.staleSince {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.staleSince[ids[i]].Before(s.staleSince[ids[j]]) })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) ClearStale(_ context.Context, userID string, upTo time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if marked, ok := s.staleSince[userID]; ok && !marked.After(upTo) {
		delete(s.staleSince, userID)
	}
	return nil
}
