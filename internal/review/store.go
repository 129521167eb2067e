// Package review owns items and their review states.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/at-ishikawa/leetrecall/internal/schedule"
	"github.com/at-ishikawa/leetrecall/internal/storage"
)

const (
	itemKeyPrefix   = "item:"
	reviewKeyPrefix = "review:"
)

func itemKey(id string) string   { return itemKeyPrefix + id }
func reviewKey(id string) string { return reviewKeyPrefix + id }

// Store persists items and review states in a key/value engine.
// Every mutation commits with a single SetMulti while holding the write lock,
// so readers never observe half of an update.
type Store struct {
	kv     storage.KV
	policy schedule.Policy
	now    func() time.Time
	mu     sync.RWMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new Store.
func NewStore(kv storage.KV, policy schedule.Policy, opts ...StoreOption) *Store {
	s := &Store{
		kv:     kv,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the scheduling policy the store applies.
func (s *Store) Policy() schedule.Policy {
	return s.policy
}

// Get returns the record for id, or nil when neither the item nor its state exists.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.kv.GetMulti(ctx, []string{itemKey(id), reviewKey(id)})
	if err != nil {
		return nil, fmt.Errorf("kv.GetMulti(%s) > %w", id, err)
	}
	record, err := decodeRecord(id, values[itemKey(id)], values[reviewKey(id)])
	if err != nil {
		return nil, err
	}
	if record.Item == nil && record.State == nil {
		return nil, nil
	}
	return record, nil
}

// UpsertItem merges patch into the item, creating it when absent.
func (s *Store) UpsertItem(ctx context.Context, id string, patch ItemPatch) (*Item, error) {
	var item *Item
	err := s.Update(ctx, []string{id}, func(b *Batch) error {
		var err error
		item, err = b.UpsertItem(id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// InitReviewStateIfAbsent creates the default state for id and reports whether
// it did. Existing scheduling state is never overwritten.
func (s *Store) InitReviewStateIfAbsent(ctx context.Context, id string, firstSeenAt time.Time) (bool, error) {
	var created bool
	err := s.Update(ctx, []string{id}, func(b *Batch) error {
		var err error
		created, err = b.InitReviewStateIfAbsent(id, firstSeenAt)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// RecordOutcome applies outcome to the state of id at now.
func (s *Store) RecordOutcome(ctx context.Context, id string, outcome schedule.Outcome, now time.Time) (*ReviewState, error) {
	var state *ReviewState
	err := s.Update(ctx, []string{id}, func(b *Batch) error {
		var err error
		state, err = b.RecordOutcome(id, outcome, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// All returns a snapshot of every record. Undecodable entries are logged and skipped.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.kv.Scan(ctx, itemKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("kv.Scan(%s) > %w", itemKeyPrefix, err)
	}
	states, err := s.kv.Scan(ctx, reviewKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("kv.Scan(%s) > %w", reviewKeyPrefix, err)
	}

	ids := make(map[string]struct{}, len(items))
	for key := range items {
		ids[strings.TrimPrefix(key, itemKeyPrefix)] = struct{}{}
	}
	for key := range states {
		ids[strings.TrimPrefix(key, reviewKeyPrefix)] = struct{}{}
	}

	records := make([]Record, 0, len(ids))
	for id := range ids {
		record, err := decodeRecord(id, items[itemKey(id)], states[reviewKey(id)])
		if err != nil {
			slog.Default().Warn("skip undecodable record",
				"item_id", id,
				"error", err,
			)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

// Update loads ids, passes the staged snapshot to fn and commits every change
// fn made in one write. Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, ids []string, fn func(b *Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &Batch{
		ctx:    ctx,
		kv:     s.kv,
		policy: s.policy,
		now:    s.now(),
		items:  make(map[string]*Item),
		states: make(map[string]*ReviewState),
		loaded: make(map[string]bool),
		dirty:  make(map[string]bool),
	}
	if err := b.load(ids...); err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return b.commit()
}

// Batch is a staged set of changes. It is only valid inside Store.Update.
type Batch struct {
	ctx    context.Context
	kv     storage.KV
	policy schedule.Policy
	now    time.Time

	items  map[string]*Item
	states map[string]*ReviewState
	loaded map[string]bool
	dirty  map[string]bool
}

// Get returns copies of the staged item and state; either may be nil.
func (b *Batch) Get(id string) (*Item, *ReviewState, error) {
	if err := b.load(id); err != nil {
		return nil, nil, err
	}
	var item *Item
	var state *ReviewState
	if it, ok := b.items[id]; ok {
		item = it.clone()
	}
	if st, ok := b.states[id]; ok {
		state = st.clone()
	}
	return item, state, nil
}

func (b *Batch) UpsertItem(id string, patch ItemPatch) (*Item, error) {
	if err := b.load(id); err != nil {
		return nil, err
	}
	item, ok := b.items[id]
	if !ok {
		item = &Item{ID: id, Tags: NewTagSet()}
		b.items[id] = item
	}
	item.apply(patch, b.now)
	b.dirty[itemKey(id)] = true
	return item.clone(), nil
}

func (b *Batch) InitReviewStateIfAbsent(id string, firstSeenAt time.Time) (bool, error) {
	if err := b.load(id); err != nil {
		return false, err
	}
	if _, ok := b.states[id]; ok {
		return false, nil
	}
	b.states[id] = newReviewState(b.policy, firstSeenAt)
	b.dirty[reviewKey(id)] = true
	return true, nil
}

func (b *Batch) RecordOutcome(id string, outcome schedule.Outcome, now time.Time) (*ReviewState, error) {
	if err := b.load(id); err != nil {
		return nil, err
	}
	state, ok := b.states[id]
	if !ok {
		slog.Default().Warn("recording outcome for an item without review state",
			"item_id", id,
			"outcome", outcome,
		)
		state = newReviewState(b.policy, now)
		b.states[id] = state
	}
	state.advance(b.policy, outcome, now)
	b.dirty[reviewKey(id)] = true
	return state.clone(), nil
}

func (b *Batch) load(ids ...string) error {
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		if b.loaded[id] {
			continue
		}
		keys = append(keys, itemKey(id), reviewKey(id))
	}
	if len(keys) == 0 {
		return nil
	}

	values, err := b.kv.GetMulti(b.ctx, keys)
	if err != nil {
		return fmt.Errorf("kv.GetMulti(%d keys) > %w", len(keys), err)
	}
	for _, id := range ids {
		if b.loaded[id] {
			continue
		}
		record, err := decodeRecord(id, values[itemKey(id)], values[reviewKey(id)])
		if err != nil {
			return err
		}
		if record.Item != nil {
			b.items[id] = record.Item
		}
		if record.State != nil {
			b.states[id] = record.State
		}
		b.loaded[id] = true
	}
	return nil
}

func (b *Batch) commit() error {
	if len(b.dirty) == 0 {
		return nil
	}

	entries := make(map[string][]byte, len(b.dirty))
	for key := range b.dirty {
		var value interface{}
		switch {
		case strings.HasPrefix(key, itemKeyPrefix):
			value = b.items[strings.TrimPrefix(key, itemKeyPrefix)]
		default:
			value = b.states[strings.TrimPrefix(key, reviewKeyPrefix)]
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = data
	}
	if err := b.kv.SetMulti(b.ctx, entries); err != nil {
		return fmt.Errorf("kv.SetMulti(%d entries) > %w", len(entries), err)
	}
	return nil
}

func decodeRecord(id string, itemData, stateData []byte) (*Record, error) {
	record := &Record{ID: id}
	if itemData != nil {
		var item Item
		if err := json.Unmarshal(itemData, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", itemKey(id), err)
		}
		if item.Tags == nil {
			item.Tags = NewTagSet()
		}
		record.Item = &item
	}
	if stateData != nil {
		var state ReviewState
		if err := json.Unmarshal(stateData, &state); err != nil {
			return nil, fmt.Errorf("decode %s: %w", reviewKey(id), err)
		}
		record.State = &state
	}
	return record, nil
}
