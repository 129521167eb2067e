package review

import (
	"time"

	"github.com/at-ishikawa/leetrecall/internal/schedule"
)

// InitialOutcome is the history marker written when an item is first seen.
const InitialOutcome = "initial"

// Item is the descriptive metadata of something the learner studies.
type Item struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Difficulty      string    `json:"difficulty" yaml:"difficulty"`
	Tags            TagSet    `json:"tags" yaml:"tags"`
	URL             string    `json:"url,omitempty" yaml:"url,omitempty"`
	LastCompletedAt time.Time `json:"last_completed_at" yaml:"last_completed_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// ItemPatch is merged into an Item. Empty scalar fields keep the current value.
type ItemPatch struct {
	Title       string
	Difficulty  string
	Tags        []string
	URL         string
	CompletedAt time.Time
}

func (i *Item) apply(patch ItemPatch, now time.Time) {
	if patch.Title != "" {
		i.Title = patch.Title
	}
	if patch.Difficulty != "" {
		i.Difficulty = patch.Difficulty
	}
	if patch.URL != "" {
		i.URL = patch.URL
	}
	i.Tags = i.Tags.Union(NewTagSet(patch.Tags...))
	if patch.CompletedAt.After(i.LastCompletedAt) {
		i.LastCompletedAt = patch.CompletedAt
	}
	i.UpdatedAt = now
}

// HistoryEntry is one recorded outcome.
type HistoryEntry struct {
	At      time.Time `json:"at" yaml:"at"`
	Outcome string    `json:"outcome" yaml:"outcome"`
}

// ReviewState is the scheduling state of one item.
type ReviewState struct {
	EaseFactor         float64        `json:"ease_factor" yaml:"ease_factor"`
	Interval           int            `json:"interval" yaml:"interval"`
	ConsecutiveCorrect int            `json:"consecutive_correct" yaml:"consecutive_correct"`
	NextReviewAt       time.Time      `json:"next_review_at" yaml:"next_review_at"`
	LastReviewedAt     time.Time      `json:"last_reviewed_at" yaml:"last_reviewed_at"`
	History            []HistoryEntry `json:"history" yaml:"history"`
}

func newReviewState(policy schedule.Policy, firstSeenAt time.Time) *ReviewState {
	return &ReviewState{
		EaseFactor:         policy.InitialEase,
		Interval:           policy.FirstInterval,
		ConsecutiveCorrect: 0,
		NextReviewAt:       schedule.NextReviewAt(firstSeenAt, policy.FirstInterval),
		LastReviewedAt:     firstSeenAt,
		History:            []HistoryEntry{{At: firstSeenAt, Outcome: InitialOutcome}},
	}
}

// Progress returns the part of the state the scheduling engine works on.
func (s *ReviewState) Progress() schedule.Progress {
	return schedule.Progress{
		EaseFactor:         s.EaseFactor,
		Interval:           s.Interval,
		ConsecutiveCorrect: s.ConsecutiveCorrect,
	}
}

// IsDue reports whether now >= NextReviewAt.
func (s *ReviewState) IsDue(now time.Time) bool {
	return !now.Before(s.NextReviewAt)
}

// advance runs the engine and fills in the timestamps and history.
func (s *ReviewState) advance(policy schedule.Policy, outcome schedule.Outcome, now time.Time) {
	next := policy.Advance(s.Progress(), outcome)
	s.EaseFactor = next.EaseFactor
	s.Interval = next.Interval
	s.ConsecutiveCorrect = next.ConsecutiveCorrect
	s.LastReviewedAt = now
	s.NextReviewAt = schedule.NextReviewAt(now, next.Interval)
	s.History = appendHistory(s.History, HistoryEntry{At: now, Outcome: outcome.String()}, policy.HistoryLimit)
}

func appendHistory(history []HistoryEntry, entry HistoryEntry, limit int) []HistoryEntry {
	history = append(history, entry)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]HistoryEntry(nil), history...)
}

func (s *ReviewState) clone() *ReviewState {
	c := *s
	c.History = append([]HistoryEntry(nil), s.History...)
	return &c
}

func (i *Item) clone() *Item {
	c := *i
	c.Tags = i.Tags.Union(nil)
	return &c
}

// Record joins an item with its review state. Either side may be nil when
// the store is missing it.
type Record struct {
	ID    string
	Item  *Item
	State *ReviewState
}
