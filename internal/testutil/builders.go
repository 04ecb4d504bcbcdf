// Package testutil provides testing utilities and helpers for the reportgen system.
package testutil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
)

// ReportRequestBuilder provides a fluent interface for building CreateReportRequest objects for testing.
type ReportRequestBuilder struct {
	req *model.CreateReportRequest
}

// NewReportRequest creates a new ReportRequestBuilder with sensible defaults.
func NewReportRequest() *ReportRequestBuilder {
	return &ReportRequestBuilder{
		req: &model.CreateReportRequest{
			Target:           "example.com",
			EstimatedSeconds: 25,
		},
	}
}

// WithTarget sets the report target.
func (b *ReportRequestBuilder) WithTarget(target string) *ReportRequestBuilder {
	b.req.Target = target
	return b
}

// WithEstimatedSeconds sets the estimated generation duration.
func (b *ReportRequestBuilder) WithEstimatedSeconds(seconds int) *ReportRequestBuilder {
	b.req.EstimatedSeconds = seconds
	return b
}

// WithMetadata sets the report metadata.
func (b *ReportRequestBuilder) WithMetadata(metadata json.RawMessage) *ReportRequestBuilder {
	b.req.Metadata = metadata
	return b
}

// WithMetadataString sets the report metadata from a string.
func (b *ReportRequestBuilder) WithMetadataString(metadata string) *ReportRequestBuilder {
	b.req.Metadata = json.RawMessage(metadata)
	return b
}

// Build returns the constructed CreateReportRequest.
func (b *ReportRequestBuilder) Build() *model.CreateReportRequest {
	return b.req
}

// ReportSeeder drives a repository through the report lifecycle to put rows
// into known states for list and stats tests.
//
// Claiming always takes the oldest queued row, so seed reports that must leave
// the queued state before seeding rows that should stay queued.
type ReportSeeder struct {
	t             TestingTB
	repo          core.ReportRepository
	maxGeneration time.Duration
}

// NewReportSeeder creates a seeder backed by the given repository.
func NewReportSeeder(t TestingTB, repo core.ReportRepository) *ReportSeeder {
	return &ReportSeeder{t: t, repo: repo, maxGeneration: 5 * time.Minute}
}

// SeedQueued creates a report and leaves it queued.
func (s *ReportSeeder) SeedQueued(ctx context.Context, ownerID, target string) *model.Report {
	s.t.Helper()

	report, err := s.repo.Create(ctx, core.CreateReportParams{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Target:           target,
		EstimatedSeconds: 25,
	})
	if err != nil {
		s.t.Fatalf("seed queued report: %v", err)
	}
	return report
}

// SeedGenerating creates a report and claims it.
func (s *ReportSeeder) SeedGenerating(ctx context.Context, ownerID, target string) *model.Report {
	s.t.Helper()

	created := s.SeedQueued(ctx, ownerID, target)
	claimed, err := s.repo.ClaimNextQueued(ctx, s.maxGeneration)
	if err != nil {
		s.t.Fatalf("seed generating report: claim: %v", err)
	}
	if claimed.ID != created.ID {
		s.t.Fatalf("seed generating report: claimed %s, expected %s; seed generating reports before queued ones", claimed.ID, created.ID)
	}
	return claimed
}

// SeedCompleted creates a report, claims it, and completes it with placeholder content.
func (s *ReportSeeder) SeedCompleted(ctx context.Context, ownerID, target string) *model.Report {
	s.t.Helper()

	claimed := s.SeedGenerating(ctx, ownerID, target)
	won, err := s.repo.Complete(ctx, core.CompleteReportParams{
		ID:      claimed.ID,
		Content: json.RawMessage(`{"seeded":true}`),
	})
	if err != nil {
		s.t.Fatalf("seed completed report: %v", err)
	}
	if !won {
		s.t.Fatalf("seed completed report: completion lost the terminal race for %s", claimed.ID)
	}
	return s.mustGet(ctx, ownerID, claimed.ID)
}

// SeedFailed creates a report, claims it, and fails it.
func (s *ReportSeeder) SeedFailed(ctx context.Context, ownerID, target, errorMsg string) *model.Report {
	s.t.Helper()

	claimed := s.SeedGenerating(ctx, ownerID, target)
	won, err := s.repo.Fail(ctx, core.FailReportParams{
		ID:        claimed.ID,
		Error:     errorMsg,
		ErrorKind: model.ErrorKindFault,
	})
	if err != nil {
		s.t.Fatalf("seed failed report: %v", err)
	}
	if !won {
		s.t.Fatalf("seed failed report: failure lost the terminal race for %s", claimed.ID)
	}
	return s.mustGet(ctx, ownerID, claimed.ID)
}

// SeedArchived creates a completed report and archives it.
func (s *ReportSeeder) SeedArchived(ctx context.Context, ownerID, target string) *model.Report {
	s.t.Helper()

	completed := s.SeedCompleted(ctx, ownerID, target)
	archived, err := s.repo.Archive(ctx, ownerID, completed.ID)
	if err != nil {
		s.t.Fatalf("seed archived report: %v", err)
	}
	return archived
}

func (s *ReportSeeder) mustGet(ctx context.Context, ownerID, id string) *model.Report {
	s.t.Helper()

	report, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		s.t.Fatalf("seeded report %s not readable: %v", id, err)
	}
	return report
}
