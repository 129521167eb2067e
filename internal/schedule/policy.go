package schedule

import (
	"errors"
	"fmt"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MaxIntervalDays   = 365
	HistoryLimit      = 10
)

// Policy holds the tunable constants of the scheduler.
// The zero value is not usable; start from DefaultPolicy.
type Policy struct {
	InitialEase        float64
	MinEase            float64
	EasyBonus          float64
	HardPenalty        float64
	AgainPenalty       float64
	HardIntervalFactor float64
	FirstInterval      int
	SecondInterval     int
	MinInterval        int
	MaxInterval        int
	HistoryLimit       int
}

// DefaultPolicy returns the SM-2 variant used by default.
func DefaultPolicy() Policy {
	return Policy{
		InitialEase:        DefaultEaseFactor,
		MinEase:            MinEaseFactor,
		EasyBonus:          0.15,
		HardPenalty:        0.15,
		AgainPenalty:       0.20,
		HardIntervalFactor: 0.8,
		FirstInterval:      1,
		SecondInterval:     3,
		MinInterval:        1,
		MaxInterval:        MaxIntervalDays,
		HistoryLimit:       HistoryLimit,
	}
}

// Validate rejects policies that would break the ease and interval bounds.
func (p Policy) Validate() error {
	var errs []error
	if p.MinEase <= 0 {
		errs = append(errs, fmt.Errorf("min ease must be positive, got %v", p.MinEase))
	}
	if p.InitialEase < p.MinEase {
		errs = append(errs, fmt.Errorf("initial ease %v is below min ease %v", p.InitialEase, p.MinEase))
	}
	if p.EasyBonus < 0 || p.HardPenalty < 0 || p.AgainPenalty < 0 {
		errs = append(errs, errors.New("ease adjustments must not be negative"))
	}
	if p.HardIntervalFactor <= 0 || p.HardIntervalFactor > 1 {
		errs = append(errs, fmt.Errorf("hard interval factor must be in (0, 1], got %v", p.HardIntervalFactor))
	}
	if p.MinInterval < 1 {
		errs = append(errs, fmt.Errorf("min interval must be at least 1 day, got %d", p.MinInterval))
	}
	if p.MaxInterval < p.MinInterval {
		errs = append(errs, fmt.Errorf("max interval %d is below min interval %d", p.MaxInterval, p.MinInterval))
	}
	if p.FirstInterval < 1 || p.SecondInterval < 1 {
		errs = append(errs, errors.New("first and second intervals must be at least 1 day"))
	}
	if p.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history limit must be at least 1, got %d", p.HistoryLimit))
	}
	return errors.Join(errs...)
}
