package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/service"
)

// DefaultOwnerID is the owner that receives seeded reports. Dev auth keys
// should map at least one API key to this owner so the seeded data is
// reachable through the API.
const DefaultOwnerID = "dev-owner"

const seedDefaultEstimate = 2 * time.Minute

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB      *sql.DB
	reports *service.ReportService
	repo    *data.ReportRepo
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	repo := data.NewReportRepo(db, data.RepoConfig{})
	reports := service.MustNewReportService(service.ReportServiceOptions{
		Repo:            repo,
		DefaultEstimate: seedDefaultEstimate,
	})

	return Services{
		DB:      db,
		reports: reports,
		repo:    repo,
	}
}

// Run executes the full development seeding workflow against the provided DB.
// Seeding is skipped when the dev owner already has reports, so repeated runs
// are safe.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	existing, err := svcs.reports.Stats(ctx, DefaultOwnerID)
	if err != nil {
		return fmt.Errorf("check existing reports: %w", err)
	}
	if total := countReports(existing); total > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "seed data already present", "owner_id", DefaultOwnerID, "reports", total)
		}
		return nil
	}

	failures := 0
	for _, spec := range defaultReportSeedSpecs() {
		if seedErr := seedReport(ctx, svcs, spec); seedErr != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed report",
					"target", spec.target, "state", spec.state, "error", seedErr)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded report", "target", spec.target, "state", spec.state)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func countReports(stats *model.ReportStats) int {
	if stats == nil {
		return 0
	}
	return stats.Queued + stats.Generating + stats.Completed + stats.Failed + stats.Archived
}

type seedState string

const (
	seedStateQueued     seedState = "queued"
	seedStateGenerating seedState = "generating"
	seedStateCompleted  seedState = "completed"
	seedStateFailed     seedState = "failed"
	seedStateTimedOut   seedState = "timed_out"
	seedStateArchived   seedState = "archived"
)

type reportSeedSpec struct {
	target           string
	estimatedSeconds int
	metadata         string
	state            seedState
	content          string
	failure          string
}

// defaultReportSeedSpecs lists the reports created for the dev owner. Targets
// use distinct registrable domains because creation normalizes a URL down to
// its registrable host. Specs that stay queued must come last: advancing a
// report claims the oldest queued row, so an earlier queued spec would be
// claimed instead.
func defaultReportSeedSpecs() []reportSeedSpec {
	return []reportSeedSpec{
		{
			target:           "https://shop.example.com/checkout",
			estimatedSeconds: 90,
			metadata:         `{"format": "pdf", "locale": "en-US"}`,
			state:            seedStateCompleted,
			content: `{
        "title": "Checkout funnel summary",
        "sections": [
          {"heading": "Traffic", "body": "12,482 sessions entered the funnel."},
          {"heading": "Conversion", "body": "3.4% completed checkout, up 0.2pt week over week."}
        ]
      }`,
		},
		{
			target:           "https://api.example.org/v2",
			estimatedSeconds: 45,
			metadata:         `{"format": "json"}`,
			state:            seedStateCompleted,
			content: `{
        "title": "API latency digest",
        "sections": [
          {"heading": "p50", "body": "38ms across all regions."},
          {"heading": "p99", "body": "412ms, dominated by the eu-west replica."}
        ]
      }`,
		},
		{
			target:           "https://example.net/quarterly",
			estimatedSeconds: 120,
			metadata:         `{"format": "pdf", "quarter": "Q2"}`,
			state:            seedStateArchived,
			content: `{
        "title": "Quarterly rollup",
        "sections": [
          {"heading": "Summary", "body": "All tracked properties within budget."}
        ]
      }`,
		},
		{
			target:           "https://legacy.example-exports.com/export",
			estimatedSeconds: 60,
			state:            seedStateFailed,
			failure:          "upstream export returned 502 after 3 retries",
		},
		{
			target:           "https://slow.example-crawls.com/full-crawl",
			estimatedSeconds: 30,
			state:            seedStateTimedOut,
			failure:          "generation deadline exceeded",
		},
		{
			target:           "https://status.example-boards.com",
			estimatedSeconds: 20,
			metadata:         `{"format": "html"}`,
			state:            seedStateGenerating,
		},
		{
			target:           "https://example-digests.com/weekly",
			estimatedSeconds: 75,
			state:            seedStateQueued,
		},
		{
			target: "https://docs.example.edu/changelog",
			state:  seedStateQueued,
		},
	}
}

func seedReport(ctx context.Context, svcs Services, spec reportSeedSpec) error {
	req := &model.CreateReportRequest{
		Target:           spec.target,
		EstimatedSeconds: spec.estimatedSeconds,
	}
	if spec.metadata != "" {
		req.Metadata = json.RawMessage(spec.metadata)
	}

	created, err := svcs.reports.Create(ctx, DefaultOwnerID, req)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if spec.state == seedStateQueued {
		return nil
	}
	return advanceReport(ctx, svcs, created.ID, spec)
}

// advanceReport walks a freshly created report through the real lifecycle
// writes so seeded rows are indistinguishable from generated ones.
func advanceReport(ctx context.Context, svcs Services, id string, spec reportSeedSpec) error {
	claimed, err := svcs.repo.ClaimNextQueued(ctx, time.Hour)
	if err != nil {
		return fmt.Errorf("claim report: %w", err)
	}
	if claimed.ID != id {
		return fmt.Errorf("claimed report %s while advancing %s; seed order is wrong", claimed.ID, id)
	}

	switch spec.state {
	case seedStateGenerating:
		if _, progressErr := svcs.repo.UpdateProgress(ctx, core.ProgressUpdateParams{
			ID:       id,
			Progress: 40,
			Message:  "rendering sections",
		}); progressErr != nil {
			return fmt.Errorf("update progress: %w", progressErr)
		}
		return nil
	case seedStateCompleted:
		return completeSeededReport(ctx, svcs, id, spec.content)
	case seedStateArchived:
		if completeErr := completeSeededReport(ctx, svcs, id, spec.content); completeErr != nil {
			return completeErr
		}
		if _, archiveErr := svcs.repo.Archive(ctx, DefaultOwnerID, id); archiveErr != nil {
			return fmt.Errorf("archive report: %w", archiveErr)
		}
		return nil
	case seedStateFailed:
		return failSeededReport(ctx, svcs, id, spec.failure, model.ErrorKindFault)
	case seedStateTimedOut:
		return failSeededReport(ctx, svcs, id, spec.failure, model.ErrorKindTimeout)
	case seedStateQueued:
		return nil
	default:
		return fmt.Errorf("unknown seed state %q", spec.state)
	}
}

func completeSeededReport(ctx context.Context, svcs Services, id, content string) error {
	params := core.CompleteReportParams{ID: id}
	if content != "" {
		params.Content = json.RawMessage(content)
	}
	won, err := svcs.repo.Complete(ctx, params)
	if err != nil {
		return fmt.Errorf("complete report: %w", err)
	}
	if !won {
		return fmt.Errorf("report %s already terminal", id)
	}
	return nil
}

func failSeededReport(ctx context.Context, svcs Services, id, message string, kind model.ErrorKind) error {
	won, err := svcs.repo.Fail(ctx, core.FailReportParams{
		ID:        id,
		Error:     message,
		ErrorKind: kind,
	})
	if err != nil {
		return fmt.Errorf("fail report: %w", err)
	}
	if !won {
		return fmt.Errorf("report %s already terminal", id)
	}
	return nil
}
