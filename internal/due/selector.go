// Package due selects the items that should be reviewed now.
package due

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/at-ishikawa/leetrecall/internal/review"
)

// Item is a due item joined with its scheduling state.
type Item struct {
	ItemID       string    `json:"item_id" yaml:"item_id"`
	Title        string    `json:"title" yaml:"title"`
	Difficulty   string    `json:"difficulty" yaml:"difficulty"`
	Tags         []string  `json:"tags" yaml:"tags"`
	URL          string    `json:"url,omitempty" yaml:"url,omitempty"`
	EaseFactor   float64   `json:"ease_factor" yaml:"ease_factor"`
	Interval     int       `json:"interval" yaml:"interval"`
	NextReviewAt time.Time `json:"next_review_at" yaml:"next_review_at"`
}

// RecordSource lists every record. *review.Store implements it.
type RecordSource interface {
	All(ctx context.Context) ([]review.Record, error)
}

// Selector answers what is due at a point in time.
type Selector struct {
	source RecordSource
}

// NewSelector creates a new Selector.
func NewSelector(source RecordSource) *Selector {
	return &Selector{source: source}
}

// Count returns the number of review states whose next review is at or before
// now. States without item metadata are counted too; List skips them.
func (s *Selector) Count(ctx context.Context, now time.Time) (int, error) {
	items, orphans, err := s.collect(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(items) + orphans, nil
}

// List returns up to limit due items, most overdue first with ties broken by id.
// On failure it returns an empty list together with the error.
func (s *Selector) List(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	if limit <= 0 {
		return []Item{}, nil
	}
	items, _, err := s.collect(ctx, now)
	if err != nil {
		return []Item{}, err
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextReviewAt.Equal(items[j].NextReviewAt) {
			return items[i].NextReviewAt.Before(items[j].NextReviewAt)
		}
		return items[i].ItemID < items[j].ItemID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// collect returns the due items with metadata and the number of due states without it.
func (s *Selector) collect(ctx context.Context, now time.Time) ([]Item, int, error) {
	records, err := s.source.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("source.All() > %w", err)
	}

	items := make([]Item, 0)
	var orphans []string
	for _, r := range records {
		if r.State == nil || !r.State.IsDue(now) {
			continue
		}
		if r.Item == nil {
			orphans = append(orphans, r.ID)
			continue
		}
		items = append(items, Item{
			ItemID:       r.ID,
			Title:        r.Item.Title,
			Difficulty:   r.Item.Difficulty,
			Tags:         r.Item.Tags.Sorted(),
			URL:          r.Item.URL,
			EaseFactor:   r.State.EaseFactor,
			Interval:     r.State.Interval,
			NextReviewAt: r.State.NextReviewAt,
		})
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		slog.Default().Warn("due review states without item metadata",
			"count", len(orphans),
			"item_ids", orphans,
		)
	}
	return items, len(orphans), nil
}
