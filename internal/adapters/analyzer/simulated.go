package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/progress"
)

// Metadata directives recognised by the simulated runner.
const (
	simulateFailure = "failure"
	simulateHang    = "hang"
)

// SimulatedRunnerConfig configures the development runner.
type SimulatedRunnerConfig struct {
	// MaxStepDelay caps the pause between milestones so long estimates stay
	// responsive in development. Zero means 2s.
	MaxStepDelay time.Duration

	// Phases override the milestone bands; defaults to the standard ones.
	Phases []progress.Phase
}

// SimulatedRunner produces deterministic milestones spread over the estimate
// and a canned content payload. Request metadata can steer it:
// {"simulate": "failure"} fails after the milestones, {"simulate": "hang"}
// blocks until the context ends, which exercises the watchdog path.
type SimulatedRunner struct {
	phases       []progress.Phase
	maxStepDelay time.Duration
}

// NewSimulatedRunner constructs a runner with defaults filled in.
func NewSimulatedRunner(cfg SimulatedRunnerConfig) *SimulatedRunner {
	phases := cfg.Phases
	if len(phases) == 0 {
		phases = progress.DefaultPhases()
	}
	maxStepDelay := cfg.MaxStepDelay
	if maxStepDelay <= 0 {
		maxStepDelay = 2 * time.Second
	}
	return &SimulatedRunner{
		phases:       phases,
		maxStepDelay: maxStepDelay,
	}
}

type simulatedMilestone struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

type simulatedSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type simulatedContent struct {
	Target      string             `json:"target"`
	Summary     string             `json:"summary"`
	Sections    []simulatedSection `json:"sections"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Run walks the phase bands, emitting one milestone per band, then returns
// canned content or the directed failure.
func (r *SimulatedRunner) Run(
	ctx context.Context,
	req core.AnalysisRequest,
	emit func(payload json.RawMessage),
) (json.RawMessage, error) {
	directive := simulationDirective(req.Metadata)
	if directive == simulateHang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	total := time.Duration(req.EstimatedSeconds) * time.Second
	if total <= 0 {
		total = 10 * time.Second
	}
	step := total / time.Duration(len(r.phases))
	if step > r.maxStepDelay {
		step = r.maxStepDelay
	}

	for _, phase := range r.phases {
		if err := sleepCtx(ctx, step); err != nil {
			return nil, err
		}
		if emit != nil {
			payload, err := json.Marshal(simulatedMilestone{
				Progress: phase.Threshold,
				Message:  phase.Label,
			})
			if err == nil {
				emit(payload)
			}
		}
	}

	if directive == simulateFailure {
		return nil, errors.New("simulated analysis failure")
	}

	content, err := json.Marshal(simulatedContent{
		Target:  req.Target,
		Summary: fmt.Sprintf("Simulated analysis of %s", req.Target),
		Sections: []simulatedSection{
			{Title: "Overview", Body: fmt.Sprintf("No findings for %s.", req.Target)},
			{Title: "Details", Body: "Generated by the simulated analyzer."},
		},
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal simulated content: %w", err)
	}
	return content, nil
}

// simulationDirective reads the optional {"simulate": ...} metadata key.
func simulationDirective(metadata json.RawMessage) string {
	if len(metadata) == 0 {
		return ""
	}
	var meta struct {
		Simulate string `json:"simulate"`
	}
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return ""
	}
	return meta.Simulate
}

// sleepCtx waits for d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
