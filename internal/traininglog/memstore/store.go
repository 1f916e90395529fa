// Package memstore is an in-process training log store. Transactions buffer
// their writes in an overlay that becomes visible all at once on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/2beens/traininglog/internal/traininglog"
)

type Store struct {
	mu      sync.RWMutex
	entries map[string]traininglog.Entry
	byPair  map[traininglog.Pair]map[string]struct{}

	locks *pairLocks
}

var _ traininglog.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries: make(map[string]traininglog.Entry),
		byPair:  make(map[traininglog.Pair]map[string]struct{}),
		locks:   newPairLocks(),
	}
}

func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx traininglog.Tx) error) error {
	t := &tx{
		view: view{
			store:  s,
			writes: make(map[string]*traininglog.Entry),
		},
	}
	defer t.releaseLocks()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.commit(t.writes)
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*traininglog.Entry, error) {
	return s.readView().FindByID(ctx, id)
}

func (s *Store) FindCurrentPR(ctx context.Context, userID, exerciseID string) (*traininglog.Entry, error) {
	return s.readView().FindCurrentPR(ctx, userID, exerciseID)
}

func (s *Store) List(ctx context.Context, params traininglog.ListParams) ([]traininglog.Entry, error) {
	return s.readView().List(ctx, params)
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) readView() *view {
	return &view{store: s}
}

func (s *Store) commit(writes map[string]*traininglog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range writes {
		if w == nil {
			if old, ok := s.entries[id]; ok {
				ids := s.byPair[old.Pair()]
				delete(ids, id)
				if len(ids) == 0 {
					delete(s.byPair, old.Pair())
				}
				delete(s.entries, id)
			}
			continue
		}

		s.entries[id] = *w
		pair := w.Pair()
		ids, ok := s.byPair[pair]
		if !ok {
			ids = make(map[string]struct{})
			s.byPair[pair] = ids
		}
		ids[id] = struct{}{}
	}
}

// view reads committed state with an optional overlay of uncommitted writes.
// A nil overlay value marks a deleted entry.
type view struct {
	store  *Store
	writes map[string]*traininglog.Entry
}

func (v *view) get(id string) (traininglog.Entry, bool) {
	if w, ok := v.writes[id]; ok {
		if w == nil {
			return traininglog.Entry{}, false
		}
		return *w, true
	}

	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	e, ok := v.store.entries[id]
	return e, ok
}

func (v *view) FindByID(_ context.Context, id string) (*traininglog.Entry, error) {
	e, ok := v.get(id)
	if !ok {
		return nil, traininglog.ErrNotFound
	}
	return &e, nil
}

func (v *view) FindCurrentPR(ctx context.Context, userID, exerciseID string) (*traininglog.Entry, error) {
	flagged, err := v.List(ctx, traininglog.ListParams{
		UserID:     userID,
		ExerciseID: exerciseID,
		PROnly:     true,
	})
	if err != nil {
		return nil, err
	}

	switch len(flagged) {
	case 0:
		return nil, nil
	case 1:
		return &flagged[0], nil
	default:
		return nil, &traininglog.InvariantViolationError{
			Pair:    traininglog.Pair{UserID: userID, ExerciseID: exerciseID},
			Holders: len(flagged),
		}
	}
}

func (v *view) List(_ context.Context, params traininglog.ListParams) ([]traininglog.Entry, error) {
	matched := v.collect(params)
	sortEntries(matched, params.Order)
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	return matched, nil
}

func (v *view) FindMaxWeightExcluding(_ context.Context, userID, exerciseID, excludeID string) (*traininglog.Entry, error) {
	var best *traininglog.Entry
	for _, e := range v.collect(traininglog.ListParams{UserID: userID, ExerciseID: exerciseID}) {
		if e.ID == excludeID {
			continue
		}
		if best == nil || e.Outranks(best) {
			candidate := e
			best = &candidate
		}
	}
	return best, nil
}

// collect returns every visible entry matching params, unordered.
func (v *view) collect(params traininglog.ListParams) []traininglog.Entry {
	found := make(map[string]traininglog.Entry)

	v.store.mu.RLock()
	if params.UserID != "" && params.ExerciseID != "" {
		pair := traininglog.Pair{UserID: params.UserID, ExerciseID: params.ExerciseID}
		for id := range v.store.byPair[pair] {
			if e := v.store.entries[id]; matches(e, params) {
				found[id] = e
			}
		}
	} else {
		for id, e := range v.store.entries {
			if matches(e, params) {
				found[id] = e
			}
		}
	}
	v.store.mu.RUnlock()

	for id, w := range v.writes {
		delete(found, id)
		if w != nil && matches(*w, params) {
			found[id] = *w
		}
	}

	entries := make([]traininglog.Entry, 0, len(found))
	for _, e := range found {
		entries = append(entries, e)
	}
	return entries
}

func matches(e traininglog.Entry, params traininglog.ListParams) bool {
	if params.UserID != "" && e.UserID != params.UserID {
		return false
	}
	if params.ExerciseID != "" && e.ExerciseID != params.ExerciseID {
		return false
	}
	if params.PROnly && !e.IsPR {
		return false
	}
	if params.From != nil && e.Date.Before(*params.From) {
		return false
	}
	if params.To != nil && e.Date.After(*params.To) {
		return false
	}
	return true
}

func sortEntries(entries []traininglog.Entry, order traininglog.Order) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch order {
		case traininglog.OrderEstimated1RMDesc:
			if a.Estimated1RM != b.Estimated1RM {
				return a.Estimated1RM > b.Estimated1RM
			}
		case traininglog.OrderDateAsc:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		default:
			if !a.Date.Equal(b.Date) {
				return a.Date.After(b.Date)
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type tx struct {
	view
	locked []traininglog.Pair
}

func (t *tx) LockPair(ctx context.Context, userID, exerciseID string) error {
	pair := traininglog.Pair{UserID: userID, ExerciseID: exerciseID}
	for _, p := range t.locked {
		if p == pair {
			return nil
		}
	}
	if err := t.store.locks.acquire(ctx, pair); err != nil {
		return err
	}
	t.locked = append(t.locked, pair)
	return nil
}

func (t *tx) releaseLocks() {
	for _, p := range t.locked {
		t.store.locks.release(p)
	}
	t.locked = nil
}

func (t *tx) Insert(_ context.Context, entry *traininglog.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if _, exists := t.get(entry.ID); exists {
		return fmt.Errorf("entry [%s] already exists", entry.ID)
	}
	stored := *entry
	t.writes[entry.ID] = &stored
	return nil
}

func (t *tx) Update(_ context.Context, entry *traininglog.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	current, ok := t.get(entry.ID)
	if !ok {
		return traininglog.ErrNotFound
	}

	updated := current
	updated.Weight = entry.Weight
	updated.Reps = entry.Reps
	updated.Sets = entry.Sets
	updated.Notes = entry.Notes
	updated.Date = entry.Date
	updated.Volume = entry.Volume
	updated.Estimated1RM = entry.Estimated1RM
	updated.IsEdited = entry.IsEdited
	updated.EditedAt = entry.EditedAt
	t.writes[entry.ID] = &updated
	return nil
}

func (t *tx) SetPR(_ context.Context, id string, isPR bool) error {
	current, ok := t.get(id)
	if !ok {
		return traininglog.ErrNotFound
	}
	current.IsPR = isPR
	t.writes[id] = &current
	return nil
}

func (t *tx) Delete(_ context.Context, id string) error {
	if _, ok := t.get(id); !ok {
		return traininglog.ErrNotFound
	}
	t.writes[id] = nil
	return nil
}
