package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOutcome is returned by ParseOutcome for anything other than the four review grades.
var ErrUnknownOutcome = errors.New("unknown review outcome")

// Outcome is the learner's self-assessed grade for one review.
type Outcome string

const (
	Again Outcome = "again" // did not recall
	Hard  Outcome = "hard"  // recalled, but slowly
	Good  Outcome = "good"
	Easy  Outcome = "easy"
)

// Outcomes lists the recognized grades from worst to best.
var Outcomes = []Outcome{Again, Hard, Good, Easy}

// IsValid reports whether o is one of the four recognized grades.
func (o Outcome) IsValid() bool {
	switch o {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

// resetsStreak reports whether o breaks the success streak.
func (o Outcome) resetsStreak() bool {
	return o == Again || o == Hard
}

func (o Outcome) String() string {
	return string(o)
}

// ParseOutcome converts user input such as "Good" or " easy " into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
	}
	return o, nil
}
