// Package schedule implements the SM-2 family scheduler that turns a review
// outcome into the next ease factor, interval and success streak.
package schedule

import (
	"log/slog"
	"math"
	"time"
)

// ceilEpsilon absorbs float noise so that e.g. 5*0.8 does not round up to 5.
const ceilEpsilon = 1e-9

// Progress is the part of a review state the scheduler computes.
type Progress struct {
	EaseFactor         float64
	Interval           int
	ConsecutiveCorrect int
}

// Advance applies outcome to prior using the default policy.
func Advance(prior Progress, outcome Outcome) Progress {
	return DefaultPolicy().Advance(prior, outcome)
}

// Advance computes the progress after one review. It is pure: the caller is
// responsible for timestamps and history.
//
// Hard and Again both reset the streak. Hard shrinks the interval while
// Again restarts it at one day.
func (p Policy) Advance(prior Progress, outcome Outcome) Progress {
	prior = p.normalize(prior)

	next := prior
	switch outcome {
	case Easy:
		next.EaseFactor = prior.EaseFactor + p.EasyBonus
		next.ConsecutiveCorrect = prior.ConsecutiveCorrect + 1
	case Good:
		next.ConsecutiveCorrect = prior.ConsecutiveCorrect + 1
	case Hard:
		next.EaseFactor = prior.EaseFactor - p.HardPenalty
		next.ConsecutiveCorrect = 0
	case Again:
		next.EaseFactor = prior.EaseFactor - p.AgainPenalty
		next.ConsecutiveCorrect = 0
	default:
		slog.Default().Warn("ignoring unknown review outcome", "outcome", string(outcome))
		return prior
	}

	next.EaseFactor = math.Max(next.EaseFactor, p.MinEase)
	next.Interval = p.clampInterval(p.nextInterval(prior, next, outcome))
	return next
}

// nextInterval picks the raw interval before clamping.
// The first and second successful reps are keyed on the streak the item had
// before this review, so a fresh item graded Good gets FirstInterval.
func (p Policy) nextInterval(prior, next Progress, outcome Outcome) int {
	switch {
	case outcome == Again:
		return p.MinInterval
	case outcome.resetsStreak():
		return max(p.MinInterval, ceilDays(float64(prior.Interval)*p.HardIntervalFactor))
	case prior.ConsecutiveCorrect == 0:
		return p.FirstInterval
	case prior.ConsecutiveCorrect == 1:
		return p.SecondInterval
	default:
		return ceilDays(float64(prior.Interval) * next.EaseFactor)
	}
}

// normalize fills defaults for zero values left by older records and
// clamps out-of-range priors.
func (p Policy) normalize(prog Progress) Progress {
	if prog.EaseFactor == 0 {
		prog.EaseFactor = p.InitialEase
	}
	prog.EaseFactor = math.Max(prog.EaseFactor, p.MinEase)
	prog.Interval = p.clampInterval(prog.Interval)
	if prog.ConsecutiveCorrect < 0 {
		prog.ConsecutiveCorrect = 0
	}
	return prog
}

func (p Policy) clampInterval(days int) int {
	return min(max(days, p.MinInterval), p.MaxInterval)
}

func ceilDays(v float64) int {
	return int(math.Ceil(v - ceilEpsilon))
}

// NextReviewAt returns the time the item becomes due again.
func NextReviewAt(now time.Time, interval int) time.Time {
	return now.AddDate(0, 0, interval)
}
