// Package report holds domain logic shared by the generation and observation
// paths: duration estimate resolution and queued-report wakeup notification.
package report

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultEstimate indicates the configured default estimate is not positive.
var ErrInvalidDefaultEstimate = errors.New("default estimate must be positive")

// ErrInvalidMaxEstimate indicates the configured maximum is below the default.
var ErrInvalidMaxEstimate = errors.New("max estimate must be >= default estimate")

// EstimateSource identifies how a report's estimated duration was resolved.
type EstimateSource string

const (
	// EstimateSourceExplicit indicates the caller supplied a usable duration.
	EstimateSourceExplicit EstimateSource = "explicit"
	// EstimateSourceDefault indicates the configured default was used.
	EstimateSourceDefault EstimateSource = "default"
	// EstimateSourceClamped indicates the requested duration was clamped into the supported range.
	EstimateSourceClamped EstimateSource = "clamped"
)

// DurationPolicy normalises caller-supplied duration estimates. The resolved
// value drives the progress estimator; it is a hint, never a deadline.
type DurationPolicy struct {
	defaultEstimate time.Duration
	maxEstimate     time.Duration
}

// NewDurationPolicy constructs a DurationPolicy from the configured default
// and maximum estimates.
func NewDurationPolicy(defaultEstimate, maxEstimate time.Duration) (*DurationPolicy, error) {
	if defaultEstimate <= 0 {
		return nil, ErrInvalidDefaultEstimate
	}
	if maxEstimate < defaultEstimate {
		return nil, ErrInvalidMaxEstimate
	}
	return &DurationPolicy{
		defaultEstimate: defaultEstimate,
		maxEstimate:     maxEstimate,
	}, nil
}

// Default returns the configured default estimate.
func (p *DurationPolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultEstimate
}

// EstimateDecision captures the outcome of resolving a duration estimate.
type EstimateDecision struct {
	Seconds   int
	Source    EstimateSource
	Requested time.Duration
}

// UsedDefault reports whether the policy fell back to the default estimate.
func (d EstimateDecision) UsedDefault() bool {
	return d.Source == EstimateSourceDefault
}

// Clamped reports whether the requested value was clamped into range.
func (d EstimateDecision) Clamped() bool {
	return d.Source == EstimateSourceClamped
}

// Duration returns the resolved estimate as a duration.
func (d EstimateDecision) Duration() time.Duration {
	return time.Duration(d.Seconds) * time.Second
}

// Resolve normalises the requested duration to whole seconds within
// [1s, maxEstimate]. A zero request uses the default; a negative or
// sub-second request clamps to the minimum.
func (p *DurationPolicy) Resolve(request time.Duration) EstimateDecision {
	if p == nil {
		return EstimateDecision{Source: EstimateSourceDefault, Requested: request}
	}

	decision := EstimateDecision{Requested: request}

	switch {
	case request > 0:
		seconds, clamped := durationToSeconds(request)
		if ceiling := int(p.maxEstimate / time.Second); seconds > ceiling {
			seconds = ceiling
			clamped = true
		}
		decision.Seconds = seconds
		if clamped {
			decision.Source = EstimateSourceClamped
		} else {
			decision.Source = EstimateSourceExplicit
		}
		return decision
	case request == 0:
		seconds, _ := durationToSeconds(p.defaultEstimate)
		decision.Seconds = seconds
		decision.Source = EstimateSourceDefault
		return decision
	default:
		decision.Seconds = 1
		decision.Source = EstimateSourceClamped
		return decision
	}
}

func durationToSeconds(d time.Duration) (int, bool) {
	seconds := int64(d / time.Second)
	clamped := false

	if seconds <= 0 {
		seconds = 1
		clamped = true
	}

	maxSeconds := int64(math.MaxInt)
	if seconds > maxSeconds {
		seconds = maxSeconds
		clamped = true
	}

	return int(seconds), clamped
}
