package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reportable/reportgen/internal/domain/progress"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the HTTP API server.
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeGenerator runs the report generation workers.
	ServiceModeGenerator ServiceMode = "generator"
	// ServiceModeWatchdog runs the overdue-report watchdog.
	ServiceModeWatchdog ServiceMode = "watchdog"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeAPI,
		ServiceModeGenerator,
		ServiceModeWatchdog,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI, ServiceModeGenerator, ServiceModeWatchdog:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, generator, watchdog)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReportConfig contains report lifecycle configuration shared by the API
// server and the background services.
type ReportConfig struct {
	// DefaultEstimate is applied when a create request omits estimated_seconds.
	DefaultEstimate time.Duration `env:"REPORT_DEFAULT_ESTIMATE" envDefault:"60s"`

	// MaxEstimate caps caller-supplied estimates.
	MaxEstimate time.Duration `env:"REPORT_MAX_ESTIMATE" envDefault:"15m"`

	// PollInterval is the status poller's fetch cadence.
	PollInterval time.Duration `env:"REPORT_POLL_INTERVAL" envDefault:"2s"`

	// PollTimeout bounds how long a poll waits for a terminal status.
	PollTimeout time.Duration `env:"REPORT_POLL_TIMEOUT" envDefault:"10m"`

	// PlaceholderTTL bounds placeholder lifetime in the placeholder store.
	PlaceholderTTL time.Duration `env:"REPORT_PLACEHOLDER_TTL" envDefault:"30m"`
}

// Sanitize applies guardrails to report configuration values.
func (r *ReportConfig) Sanitize() {
	if r.DefaultEstimate < time.Second {
		r.DefaultEstimate = 60 * time.Second
	}
	if r.MaxEstimate < r.DefaultEstimate {
		r.MaxEstimate = r.DefaultEstimate
	}
	if r.PollInterval < 500*time.Millisecond {
		r.PollInterval = 500 * time.Millisecond
	}
	if r.PollTimeout <= r.PollInterval {
		r.PollTimeout = 10 * time.Minute
	}
	if r.PlaceholderTTL < time.Minute {
		r.PlaceholderTTL = time.Minute
	}
}

// AnalyzerKind selects the analysis backend for generation workers.
type AnalyzerKind string

const (
	// AnalyzerKindSimulated runs the deterministic in-process analyzer.
	AnalyzerKindSimulated AnalyzerKind = "simulated"
	// AnalyzerKindHTTP calls the external analysis service.
	AnalyzerKindHTTP AnalyzerKind = "http"
)

// UnmarshalText implements encoding.TextUnmarshaler for AnalyzerKind.
func (a *AnalyzerKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "simulated", "http":
		*a = AnalyzerKind(v)
		return nil
	default:
		return fmt.Errorf("invalid AnalyzerKind: %q (valid options: simulated, http)", v)
	}
}

// GeneratorConfig contains generation worker configuration.
type GeneratorConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"GENERATOR_CONCURRENCY" envDefault:"2"`

	// MaxGeneration is the per-report deadline stamped when a report is claimed.
	MaxGeneration time.Duration `env:"GENERATOR_MAX_GENERATION" envDefault:"10m"`

	// ProgressInterval is the progress write cadence during generation.
	ProgressInterval time.Duration `env:"REPORT_PROGRESS_INTERVAL" envDefault:"2s"`

	// ProgressPhases overrides the estimator's phase bands as comma-separated
	// threshold:label pairs, e.g. "25:collecting,60:analyzing,95:rendering".
	// Empty uses the built-in bands.
	ProgressPhases string `env:"REPORT_PROGRESS_PHASES"`

	// Analyzer selects the analysis backend.
	Analyzer AnalyzerKind `env:"GENERATOR_ANALYZER" envDefault:"simulated"`

	// AnalyzerEndpoint receives analysis requests when Analyzer=http.
	AnalyzerEndpoint string `env:"GENERATOR_ANALYZER_ENDPOINT"`

	// Outbound OAuth2 client credentials for the HTTP analyzer.
	// An empty client ID or token URL disables outbound auth.
	AnalyzerTokenURL     string `env:"GENERATOR_ANALYZER_TOKEN_URL"`
	AnalyzerClientID     string `env:"GENERATOR_ANALYZER_CLIENT_ID"`
	AnalyzerClientSecret string `env:"GENERATOR_ANALYZER_CLIENT_SECRET"`
}

// Sanitize applies guardrails to generator configuration values.
func (g *GeneratorConfig) Sanitize() {
	if g.Concurrency < 1 {
		g.Concurrency = 1
	}
	if g.MaxGeneration < 30*time.Second {
		g.MaxGeneration = 30 * time.Second
	}
	if g.ProgressInterval < 250*time.Millisecond {
		g.ProgressInterval = 250 * time.Millisecond
	}
	if g.Analyzer == "" {
		g.Analyzer = AnalyzerKindSimulated
	}
}

// Phases parses ProgressPhases into estimator bands. An empty setting
// returns nil so callers fall back to the built-in bands.
func (g *GeneratorConfig) Phases() ([]progress.Phase, error) {
	raw := strings.TrimSpace(g.ProgressPhases)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	phases := make([]progress.Phase, 0, len(parts))
	for _, part := range parts {
		pair := strings.TrimSpace(part)
		if pair == "" {
			continue
		}
		thresholdStr, label, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid progress phase %q (want threshold:label)", pair)
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(thresholdStr))
		if err != nil {
			return nil, fmt.Errorf("invalid progress phase threshold %q: %w", thresholdStr, err)
		}
		phases = append(phases, progress.Phase{
			Threshold: threshold,
			Label:     strings.TrimSpace(label),
		})
	}
	if len(phases) == 0 {
		return nil, nil
	}
	return phases, nil
}

// WatchdogConfig contains overdue-report watchdog configuration.
type WatchdogConfig struct {
	// Interval is the sweep interval.
	Interval time.Duration `env:"WATCHDOG_INTERVAL" envDefault:"30s"`

	// BatchSize is the maximum number of rows force-failed per batch.
	// Batching prevents long locks on large tables.
	BatchSize int `env:"WATCHDOG_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to watchdog configuration values.
func (w *WatchdogConfig) Sanitize() {
	if w.Interval < 5*time.Second {
		w.Interval = 5 * time.Second
	}
	if w.BatchSize < 1 {
		w.BatchSize = 1
	}
	if w.BatchSize > 10000 {
		w.BatchSize = 10000
	}
}
