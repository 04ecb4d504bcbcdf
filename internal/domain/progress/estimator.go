// Package progress maps elapsed generation time to an estimated completion
// percentage and a human-readable phase message. Estimation is pure and
// deterministic so observers can be tested without real clocks.
package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ceiling is the highest progress the estimator may report. Only the
// completion write sets 100; an estimate must never claim the result exists.
const Ceiling = 95

// ErrNoPhases indicates an estimator was constructed without phase labels.
var ErrNoPhases = errors.New("at least one phase is required")

// Phase labels the progress band below Threshold. Phases are ordered by
// ascending threshold; the final phase covers everything up to the ceiling.
type Phase struct {
	Threshold int
	Label     string
}

// Snapshot is one estimated progress observation.
type Snapshot struct {
	Progress int
	Message  string
}

// DefaultPhases returns the standard phase bands.
func DefaultPhases() []Phase {
	return []Phase{
		{Threshold: 20, Label: "starting"},
		{Threshold: 40, Label: "analyzing"},
		{Threshold: 60, Label: "detecting"},
		{Threshold: 80, Label: "generating report"},
		{Threshold: Ceiling, Label: "finalizing"},
	}
}

// ParsePhases parses a comma-separated "threshold:label" list, e.g.
// "20:starting,40:analyzing". An empty input yields the default phases.
func ParsePhases(raw string) ([]Phase, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPhases(), nil
	}

	parts := strings.Split(raw, ",")
	phases := make([]Phase, 0, len(parts))
	for _, part := range parts {
		threshold, label, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid phase %q: want threshold:label", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(threshold))
		if err != nil {
			return nil, fmt.Errorf("invalid phase threshold %q: %w", threshold, err)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("invalid phase %q: empty label", part)
		}
		phases = append(phases, Phase{Threshold: n, Label: label})
	}
	return phases, nil
}

// Estimator computes progress snapshots from elapsed time. It holds the phase
// configuration; thresholds are never hardcoded at call sites.
type Estimator struct {
	phases []Phase
}

// NewEstimator validates the phase configuration and constructs an Estimator.
func NewEstimator(phases []Phase) (*Estimator, error) {
	if len(phases) == 0 {
		return nil, ErrNoPhases
	}
	prev := 0
	for i, p := range phases {
		if p.Label == "" {
			return nil, fmt.Errorf("phase %d: empty label", i)
		}
		if p.Threshold <= prev && i > 0 {
			return nil, fmt.Errorf("phase %d: threshold %d not ascending", i, p.Threshold)
		}
		if p.Threshold < 0 || p.Threshold > Ceiling {
			return nil, fmt.Errorf("phase %d: threshold %d outside [0,%d]", i, p.Threshold, Ceiling)
		}
		prev = p.Threshold
	}
	return &Estimator{phases: append([]Phase(nil), phases...)}, nil
}

// MustNewEstimator constructs an Estimator or panics. Intended for wiring
// with already-validated configuration.
func MustNewEstimator(phases []Phase) *Estimator {
	e, err := NewEstimator(phases)
	if err != nil {
		panic(err)
	}
	return e
}

// Estimate maps elapsed time against the estimated total to a snapshot.
// Progress = min(Ceiling, floor(elapsed/total*100)); monotonically
// non-decreasing in elapsed for a fixed total. Negative elapsed counts as
// zero; a non-positive total caps at the ceiling immediately.
func (e *Estimator) Estimate(elapsed, total time.Duration) Snapshot {
	if elapsed < 0 {
		elapsed = 0
	}

	pct := Ceiling
	if total > 0 {
		pct = int(elapsed * 100 / total)
		if pct > Ceiling {
			pct = Ceiling
		}
	}

	return Snapshot{Progress: pct, Message: e.Label(pct)}
}

// Label returns the phase label for a progress value: the first phase whose
// threshold exceeds it, or the final phase once every threshold is passed.
func (e *Estimator) Label(pct int) string {
	for _, p := range e.phases {
		if pct < p.Threshold {
			return p.Label
		}
	}
	return e.phases[len(e.phases)-1].Label
}
