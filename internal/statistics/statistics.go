// Package statistics summarizes the review store for display.
package statistics

import (
	"fmt"
	"sort"
	"time"

	"github.com/at-ishikawa/leetrecall/internal/review"
	"github.com/at-ishikawa/leetrecall/internal/schedule"
)

// Summary holds totals across all tracked items.
type Summary struct {
	Tracked        int                      `json:"tracked" yaml:"tracked"`
	Due            int                      `json:"due" yaml:"due"`
	ByDifficulty   map[string]int           `json:"by_difficulty" yaml:"by_difficulty"`
	Outcomes       map[schedule.Outcome]int `json:"outcomes" yaml:"outcomes"`
	AverageEase    float64                  `json:"average_ease" yaml:"average_ease"`
	LastReviewedAt time.Time                `json:"last_reviewed_at" yaml:"last_reviewed_at"`
}

// PeriodStatistics counts reviews in one month ("2025-01").
type PeriodStatistics struct {
	Period       string `json:"period" yaml:"period"`
	Reviews      int    `json:"reviews" yaml:"reviews"`
	UniqueItems  int    `json:"unique_items" yaml:"unique_items"`
	AgainReviews int    `json:"again_reviews" yaml:"again_reviews"`
}

// Summarize computes the summary at now. Records without a review state are
// not tracked. Difficulties other than Easy, Medium and Hard are counted as "Other".
func Summarize(records []review.Record, now time.Time) Summary {
	s := Summary{
		ByDifficulty: map[string]int{"Easy": 0, "Medium": 0, "Hard": 0},
		Outcomes:     make(map[schedule.Outcome]int, len(schedule.Outcomes)),
	}
	for _, o := range schedule.Outcomes {
		s.Outcomes[o] = 0
	}

	var easeSum float64
	for _, r := range records {
		if r.State == nil {
			continue
		}
		s.Tracked++
		easeSum += r.State.EaseFactor
		if r.State.IsDue(now) {
			s.Due++
		}
		s.ByDifficulty[difficultyBucket(r.Item)]++
		if r.State.LastReviewedAt.After(s.LastReviewedAt) {
			s.LastReviewedAt = r.State.LastReviewedAt
		}
		for _, h := range r.State.History {
			if o := schedule.Outcome(h.Outcome); o.IsValid() {
				s.Outcomes[o]++
			}
		}
	}
	if s.Tracked > 0 {
		s.AverageEase = easeSum / float64(s.Tracked)
	}
	return s
}

func difficultyBucket(item *review.Item) string {
	if item == nil {
		return "Other"
	}
	switch item.Difficulty {
	case "Easy", "Medium", "Hard":
		return item.Difficulty
	}
	return "Other"
}

// ReviewPeriods counts recorded outcomes per month, newest month first.
// year and month filter the periods; 0 means no filter.
func ReviewPeriods(records []review.Record, year, month int) []PeriodStatistics {
	type periodData struct {
		reviews int
		again   int
		unique  map[string]struct{}
	}
	periods := make(map[string]*periodData)

	for _, r := range records {
		if r.State == nil {
			continue
		}
		for _, h := range r.State.History {
			if h.Outcome == review.InitialOutcome || h.At.IsZero() {
				continue
			}
			if !matchesFilter(h.At.Year(), int(h.At.Month()), year, month) {
				continue
			}
			key := fmt.Sprintf("%d-%02d", h.At.Year(), int(h.At.Month()))
			data, ok := periods[key]
			if !ok {
				data = &periodData{unique: make(map[string]struct{})}
				periods[key] = data
			}
			data.reviews++
			data.unique[r.ID] = struct{}{}
			if h.Outcome == schedule.Again.String() {
				data.again++
			}
		}
	}

	result := make([]PeriodStatistics, 0, len(periods))
	for key, data := range periods {
		result = append(result, PeriodStatistics{
			Period:       key,
			Reviews:      data.reviews,
			UniqueItems:  len(data.unique),
			AgainReviews: data.again,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Period > result[j].Period
	})
	return result
}

func matchesFilter(logYear, logMonth, filterYear, filterMonth int) bool {
	if filterYear == 0 {
		return true
	}
	if logYear != filterYear {
		return false
	}
	if filterMonth == 0 {
		return true
	}
	return logMonth == filterMonth
}
