package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/leetrecall/internal/review"
)

// MergeResult counts what happened to one batch.
type MergeResult struct {
	Received       int `json:"received" yaml:"received"`
	Malformed      int `json:"malformed" yaml:"malformed"`
	Duplicates     int `json:"duplicates" yaml:"duplicates"`
	Initialized    int `json:"initialized" yaml:"initialized"`
	AlreadyTracked int `json:"already_tracked" yaml:"already_tracked"`
}

// Merger applies batches of completion events to a review store.
type Merger struct {
	store    *review.Store
	validate *validator.Validate
}

// NewMerger creates a new Merger.
func NewMerger(store *review.Store) *Merger {
	return &Merger{
		store:    store,
		validate: newValidator(),
	}
}

// Merge upserts the metadata of every valid event and initializes review state
// for items seen for the first time, using the earliest acceptance time within
// the batch. All changes are written at once. Re-merging a batch leaves
// scheduling state untouched.
func (m *Merger) Merge(ctx context.Context, events []CompletionEvent) (*MergeResult, error) {
	result := &MergeResult{Received: len(events)}

	var order []string
	firstSeen := make(map[string]time.Time)
	valid := make([]CompletionEvent, 0, len(events))
	for i, event := range events {
		if err := validateEvent(m.validate, &event); err != nil {
			slog.Default().Warn("skip malformed completion event",
				"index", i,
				"item_id", event.ItemID,
				"error", err,
			)
			result.Malformed++
			continue
		}
		valid = append(valid, event)

		seen, ok := firstSeen[event.ItemID]
		if !ok {
			order = append(order, event.ItemID)
			firstSeen[event.ItemID] = event.AcceptedAt
			continue
		}
		result.Duplicates++
		if event.AcceptedAt.Before(seen) {
			firstSeen[event.ItemID] = event.AcceptedAt
		}
	}
	if len(order) == 0 {
		return result, nil
	}

	var initialized, tracked int
	err := m.store.Update(ctx, order, func(b *review.Batch) error {
		initialized, tracked = 0, 0
		for _, event := range valid {
			if _, err := b.UpsertItem(event.ItemID, event.patch()); err != nil {
				return fmt.Errorf("upsert %s: %w", event.ItemID, err)
			}
		}
		for _, id := range order {
			created, err := b.InitReviewStateIfAbsent(id, firstSeen[id])
			if err != nil {
				return fmt.Errorf("init review state %s: %w", id, err)
			}
			if created {
				initialized++
			} else {
				tracked++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store.Update(%d items) > %w", len(order), err)
	}
	result.Initialized = initialized
	result.AlreadyTracked = tracked

	slog.Default().Debug("merged completion events",
		"received", result.Received,
		"malformed", result.Malformed,
		"duplicates", result.Duplicates,
		"initialized", result.Initialized,
		"already_tracked", result.AlreadyTracked,
	)
	return result, nil
}
