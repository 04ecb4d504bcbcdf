package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/reportable/reportgen/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "api only",
			modes: []config.ServiceMode{config.ServiceModeAPI},
			want:  1,
		},
		{
			name:  "api and generator",
			modes: []config.ServiceMode{config.ServiceModeAPI, config.ServiceModeGenerator},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeAPI,
				config.ServiceModeGenerator,
				config.ServiceModeWatchdog,
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 1,
		},
		{
			name:  "api only",
			modes: []config.ServiceMode{config.ServiceModeAPI},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeAPI,
				config.ServiceModeGenerator,
				config.ServiceModeWatchdog,
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelBufferSize(enabled); got != tt.want {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestBuildObservabilityDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	obs := buildObservability(logger, config.ObservabilityConfig{})

	if obs.MetricsSink != nil {
		t.Errorf("MetricsSink = %v, want nil when metrics are disabled", obs.MetricsSink)
	}
	if obs.FailureNotifier == nil {
		t.Error("FailureNotifier is nil; notifier must exist even when notifications are disabled")
	}
}

func TestNewPlaceholderStoreFallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := newPlaceholderStore(nil, config.ReportConfig{}, logger)
	if store == nil {
		t.Fatal("newPlaceholderStore() = nil, want in-memory fallback")
	}
}
