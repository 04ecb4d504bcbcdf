package metrics

import (
	"time"

	obserrors "github.com/reportable/reportgen/internal/observability/errors"
	"github.com/reportable/reportgen/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// ReportMetric captures details about a report lifecycle event for metric emission.
type ReportMetric struct {
	Transition string
	Result     string
	ErrorKind  string
	Duration   time.Duration
	Err        error
}

// EmitReportLifecycle emits standardised report lifecycle metrics.
func EmitReportLifecycle(sink statsd.Sink, in ReportMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.ErrorKind != "" {
		tags["error_kind"] = in.ErrorKind
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("report.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("report.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
