package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/reportable/reportgen/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ReportFailurePayload{
		ReportID:   "123",
		OwnerID:    "owner-1",
		Target:     "example.com",
		ErrorKind:  "timeout",
		Error:      "boom",
		ErrorClass: "test_error",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Report failure alert", "123", "owner-1", "example.com", "timeout", "boom", "test_error"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageReportLink(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL:      "https://hooks.slack.com/services/test",
		ReportURLPrefix: "https://app.reportgen.local/reports",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ReportFailurePayload{
		ReportID: "report-123",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	expected := "<https://app.reportgen.local/reports/report-123|report-123>"
	if !strings.Contains(text, expected) {
		t.Fatalf("expected report link %q in text: %s", expected, text)
	}
}

func TestFormatMessageEscapesTarget(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ReportFailurePayload{
		ReportID: "report-123",
		Target:   "shop & <deals>",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "shop &amp; &lt;deals&gt;") {
		t.Fatalf("expected escaped target, got: %s", text)
	}
}

func TestFormatReportValuePermutations(t *testing.T) {
	tcs := []struct {
		name     string
		reportID string
		target   string
		prefix   string
		want     string
	}{
		{
			name:     "id with link",
			reportID: "report-1",
			prefix:   "https://app.example/reports",
			want:     "<https://app.example/reports/report-1|report-1>",
		},
		{
			name:   "target only",
			target: "example.com",
			prefix: "https://app.example/reports",
			want:   "example.com",
		},
		{
			name:     "id and target with link",
			reportID: "report-2",
			target:   "example.com",
			prefix:   "https://app.example/reports",
			want:     "<https://app.example/reports/report-2|example.com> (report-2)",
		},
		{
			name:     "id and target without link",
			reportID: "report-3",
			target:   "example.com",
			prefix:   "not a url",
			want:     "example.com (report-3)",
		},
		{
			name:   "empty inputs",
			want:   "",
			target: "",
			prefix: "https://app.example/reports",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(Config{
				WebhookURL:      "https://hooks.slack.com/services/test",
				ReportURLPrefix: tc.prefix,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := client.formatReportValue(tc.reportID, tc.target)
			if got != tc.want {
				t.Fatalf("formatReportValue(%q,%q) = %q, want %q", tc.reportID, tc.target, got, tc.want)
			}
		})
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
