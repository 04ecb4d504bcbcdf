package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/reportable/reportgen/internal/domain/progress"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// MilestoneRule names one payload shape an analyzer may emit and the JMESPath
// expressions that read its progress and message fields. Either expression may
// be empty when a shape carries only one of the two.
type MilestoneRule struct {
	Name     string
	Progress string
	Message  string
}

// DefaultMilestoneRules covers the flat shape the simulated analyzer emits
// plus the nested shapes observed from analysis services.
func DefaultMilestoneRules() []MilestoneRule {
	return []MilestoneRule{
		{Name: "flat", Progress: "progress", Message: "message"},
		{Name: "nested", Progress: "milestone.progress", Message: "milestone.message"},
		{Name: "status", Progress: "status.percent", Message: "status.phase"},
	}
}

// Milestone is the override extracted from one analyzer payload. A nil field
// means no rule matched it and estimation continues for that field.
type Milestone struct {
	Progress *int
	Message  *string
}

// Empty reports whether the payload yielded no override at all.
func (m Milestone) Empty() bool {
	return m.Progress == nil && m.Message == nil
}

// ClampedProgress bounds the extracted progress into [current, ceiling].
// Milestones only move progress forward and never claim completion.
func (m Milestone) ClampedProgress(current int) (int, bool) {
	if m.Progress == nil {
		return 0, false
	}
	p := *m.Progress
	if p < current {
		p = current
	}
	if p > progress.Ceiling {
		p = progress.Ceiling
	}
	return p, true
}

// MilestoneExtractorOptions groups dependencies for MilestoneExtractor.
type MilestoneExtractorOptions struct {
	Rules     []MilestoneRule   // Optional: defaults to DefaultMilestoneRules
	Evaluator JMESPathEvaluator // Optional: defaults to the go-jmespath evaluator
	Logger    *slog.Logger      // Optional: structured logger
}

// MilestoneExtractor maps free-form analyzer milestone payloads to progress
// overrides. Rules are evaluated in order, first-match-wins per field; every
// expression is validated at construction so a bad rule fails wiring, not a
// running report.
type MilestoneExtractor struct {
	rules  []MilestoneRule
	jems   JMESPathEvaluator
	logger *slog.Logger
}

// NewMilestoneExtractor validates the rule expressions and constructs a
// MilestoneExtractor.
func NewMilestoneExtractor(opts MilestoneExtractorOptions) (*MilestoneExtractor, error) {
	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultMilestoneRules()
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}

	for i, rule := range rules {
		if strings.TrimSpace(rule.Progress) == "" && strings.TrimSpace(rule.Message) == "" {
			return nil, fmt.Errorf("milestone rule %d: at least one expression is required", i)
		}
		if err := jems.Validate(rule.Progress); err != nil {
			return nil, fmt.Errorf("milestone rule %d: invalid progress expression %q: %w", i, rule.Progress, err)
		}
		if err := jems.Validate(rule.Message); err != nil {
			return nil, fmt.Errorf("milestone rule %d: invalid message expression %q: %w", i, rule.Message, err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "milestone_extractor")
	}

	return &MilestoneExtractor{
		rules:  append([]MilestoneRule(nil), rules...),
		jems:   jems,
		logger: logger,
	}, nil
}

// MustNewMilestoneExtractor constructs a MilestoneExtractor and panics on error.
func MustNewMilestoneExtractor(opts MilestoneExtractorOptions) *MilestoneExtractor {
	e, err := NewMilestoneExtractor(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create MilestoneExtractor: %v", err))
	}
	return e
}

// Extract evaluates the rules against one payload. Malformed payloads and
// unmatched fields yield no override; extraction never fails a report.
func (e *MilestoneExtractor) Extract(payload json.RawMessage) Milestone {
	var milestone Milestone
	if len(payload) == 0 {
		return milestone
	}

	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		if e.logger != nil {
			e.logger.Debug("skipping malformed milestone payload", "error", err)
		}
		return milestone
	}

	for _, rule := range e.rules {
		if milestone.Progress == nil && rule.Progress != "" {
			if value, err := e.jems.Evaluate(rule.Progress, data); err == nil {
				if n, ok := asProgressValue(value); ok {
					milestone.Progress = &n
				}
			}
		}
		if milestone.Message == nil && rule.Message != "" {
			if value, err := e.jems.Evaluate(rule.Message, data); err == nil {
				if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
					msg := strings.TrimSpace(s)
					milestone.Message = &msg
				}
			}
		}
		if milestone.Progress != nil && milestone.Message != nil {
			break
		}
	}

	return milestone
}

// asProgressValue accepts the numeric shapes JSON payloads carry progress in.
func asProgressValue(value any) (int, bool) {
	switch n := value.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
