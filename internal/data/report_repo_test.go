package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name    string
		params  core.CreateReportParams
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid report creation",
			params: core.CreateReportParams{
				ID:               "11111111-1111-1111-1111-111111111111",
				OwnerID:          "owner-1",
				Target:           "example.com",
				EstimatedSeconds: 25,
			},
			wantErr: false,
		},
		{
			name: "report with metadata",
			params: core.CreateReportParams{
				ID:               "22222222-2222-2222-2222-222222222222",
				OwnerID:          "owner-1",
				Target:           "shop.example.com",
				Metadata:         json.RawMessage(`{"depth": 3, "locale": "en-US"}`),
				EstimatedSeconds: 40,
			},
			wantErr: false,
		},
		{
			name: "missing id",
			params: core.CreateReportParams{
				OwnerID:          "owner-1",
				Target:           "example.com",
				EstimatedSeconds: 25,
			},
			wantErr: true,
			errMsg:  "report id is required",
		},
		{
			name: "missing owner",
			params: core.CreateReportParams{
				ID:               "33333333-3333-3333-3333-333333333333",
				Target:           "example.com",
				EstimatedSeconds: 25,
			},
			wantErr: true,
			errMsg:  "owner id is required",
		},
		{
			name: "missing target",
			params: core.CreateReportParams{
				ID:               "44444444-4444-4444-4444-444444444444",
				OwnerID:          "owner-1",
				EstimatedSeconds: 25,
			},
			wantErr: true,
			errMsg:  "target is required",
		},
		{
			name: "zero estimated seconds",
			params: core.CreateReportParams{
				ID:      "55555555-5555-5555-5555-555555555555",
				OwnerID: "owner-1",
				Target:  "example.com",
			},
			wantErr: true,
			errMsg:  "estimated seconds must be positive",
		},
		{
			name: "invalid metadata",
			params: core.CreateReportParams{
				ID:               "66666666-6666-6666-6666-666666666666",
				OwnerID:          "owner-1",
				Target:           "example.com",
				Metadata:         json.RawMessage(`{"broken":`),
				EstimatedSeconds: 25,
			},
			wantErr: true,
			errMsg:  "metadata must be valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewReportRepo(db, RepoConfig{})

				report, err := repo.Create(context.Background(), tt.params)

				if tt.wantErr {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					assert.Nil(t, report)
					return
				}

				require.NoError(t, err)
				require.NotNil(t, report)

				// Verify report fields
				assert.Equal(t, tt.params.ID, report.ID)
				assert.Equal(t, tt.params.OwnerID, report.OwnerID)
				assert.Equal(t, model.ReportStatusQueued, report.Status)
				assert.Equal(t, tt.params.Target, report.Target)
				assert.Equal(t, 0, report.Progress)
				assert.Empty(t, report.Message)
				assert.Nil(t, report.Error)
				assert.Equal(t, model.ErrorKindNone, report.ErrorKind)
				assert.Equal(t, tt.params.EstimatedSeconds, report.EstimatedSeconds)
				assert.Nil(t, report.StartedAt)
				assert.Nil(t, report.Deadline)
				assert.NotZero(t, report.CreatedAt)
				assert.NotZero(t, report.UpdatedAt)

				if tt.params.Metadata != nil {
					assert.JSONEq(t, string(tt.params.Metadata), string(report.Metadata))
				} else {
					assert.JSONEq(t, `{}`, string(report.Metadata))
				}
			})
		})
	}
}

func TestReportRepo_Create_DuplicateID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()

		params := core.CreateReportParams{
			ID:               "77777777-7777-7777-7777-777777777777",
			OwnerID:          "owner-1",
			Target:           "example.com",
			EstimatedSeconds: 25,
		}

		_, err := repo.Create(ctx, params)
		require.NoError(t, err)

		_, err = repo.Create(ctx, params)
		require.Error(t, err)
	})
}

func TestReportRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()

		created, err := repo.Create(ctx, core.CreateReportParams{
			ID:               "88888888-8888-8888-8888-888888888888",
			OwnerID:          "owner-1",
			Target:           "example.com",
			Metadata:         json.RawMessage(`{"depth": 2}`),
			EstimatedSeconds: 25,
		})
		require.NoError(t, err)

		t.Run("found for its owner", func(t *testing.T) {
			report, getErr := repo.GetByID(ctx, "owner-1", created.ID)
			require.NoError(t, getErr)
			assert.Equal(t, created.ID, report.ID)
			assert.Equal(t, model.ReportStatusQueued, report.Status)
			assert.JSONEq(t, `{"depth": 2}`, string(report.Metadata))
		})

		t.Run("not found for another owner", func(t *testing.T) {
			_, getErr := repo.GetByID(ctx, "owner-2", created.ID)
			require.ErrorIs(t, getErr, ErrReportNotFound)
		})

		t.Run("not found for unknown id", func(t *testing.T) {
			_, getErr := repo.GetByID(ctx, "owner-1", "00000000-0000-0000-0000-000000000000")
			require.ErrorIs(t, getErr, ErrReportNotFound)
		})
	})
}

func TestReportRepo_ClaimNextQueued(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("claims the oldest queued report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			// A fixed clock gives both rows the same created_at, so the id
			// tiebreak decides and the order is deterministic.
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewReportRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			first, err := repo.Create(ctx, core.CreateReportParams{
				ID:               "00000000-0000-0000-0000-000000000001",
				OwnerID:          "owner-1",
				Target:           "first.example.com",
				EstimatedSeconds: 25,
			})
			require.NoError(t, err)

			_, err = repo.Create(ctx, core.CreateReportParams{
				ID:               "00000000-0000-0000-0000-000000000002",
				OwnerID:          "owner-1",
				Target:           "second.example.com",
				EstimatedSeconds: 25,
			})
			require.NoError(t, err)

			claimed, err := repo.ClaimNextQueued(ctx, 5*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, first.ID, claimed.ID)
			assert.Equal(t, model.ReportStatusGenerating, claimed.Status)
		})
	})

	t.Run("stamps started_at and deadline from the claim time", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			timeProvider := NewFixedTimeProvider(testutil.TestTime())
			repo := NewReportRepo(db, RepoConfig{TimeProvider: timeProvider})
			ctx := context.Background()

			_, err := repo.Create(ctx, core.CreateReportParams{
				ID:               "00000000-0000-0000-0000-000000000003",
				OwnerID:          "owner-1",
				Target:           "example.com",
				EstimatedSeconds: 25,
			})
			require.NoError(t, err)

			timeProvider.AddTime(30 * time.Second)
			claimTime := timeProvider.Now()

			claimed, err := repo.ClaimNextQueued(ctx, 5*time.Minute)
			require.NoError(t, err)
			require.NotNil(t, claimed.StartedAt)
			require.NotNil(t, claimed.Deadline)
			assert.WithinDuration(t, claimTime, *claimed.StartedAt, time.Second)
			assert.WithinDuration(t, claimTime.Add(5*time.Minute), *claimed.Deadline, time.Second)
		})
	})

	t.Run("returns ErrNoReportsQueued when the queue is empty", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			_, err := repo.ClaimNextQueued(context.Background(), 5*time.Minute)
			require.ErrorIs(t, err, model.ErrNoReportsQueued)
		})
	})

	t.Run("does not claim reports in other states", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			seeder.SeedGenerating(ctx, "owner-1", "generating.example.com")
			seeder.SeedCompleted(ctx, "owner-1", "completed.example.com")
			seeder.SeedFailed(ctx, "owner-1", "failed.example.com", "boom")

			_, err := repo.ClaimNextQueued(ctx, 5*time.Minute)
			require.ErrorIs(t, err, model.ErrNoReportsQueued)
		})
	})

	t.Run("rejects a non-positive max generation duration", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			_, err := repo.ClaimNextQueued(context.Background(), 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "maxGeneration must be positive")
		})
	})
}

func TestReportRepo_UpdateProgress(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()
		seeder := testutil.NewReportSeeder(t, repo)

		claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

		t.Run("writes progress on a generating report", func(t *testing.T) {
			applied, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: 40,
				Message:  "analyzing",
			})
			require.NoError(t, err)
			assert.True(t, applied)

			report, err := repo.GetByID(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, 40, report.Progress)
			assert.Equal(t, "analyzing", report.Message)
		})

		t.Run("refreshes the message at equal progress", func(t *testing.T) {
			applied, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: 40,
				Message:  "still analyzing",
			})
			require.NoError(t, err)
			assert.True(t, applied)
		})

		t.Run("drops backward progress writes", func(t *testing.T) {
			applied, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: 20,
				Message:  "rewinding",
			})
			require.NoError(t, err)
			assert.False(t, applied)

			report, err := repo.GetByID(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, 40, report.Progress)
			assert.Equal(t, "still analyzing", report.Message)
		})

		t.Run("ignores writes to non-generating reports", func(t *testing.T) {
			queued := seeder.SeedQueued(ctx, "owner-1", "queued.example.com")

			applied, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       queued.ID,
				Progress: 10,
				Message:  "early",
			})
			require.NoError(t, err)
			assert.False(t, applied)
		})

		t.Run("rejects out-of-range progress", func(t *testing.T) {
			_, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: 101,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "progress out of range")

			_, err = repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: -1,
			})
			require.Error(t, err)
		})
	})
}

func TestReportRepo_Complete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("completes a generating report and stores content", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

			won, err := repo.Complete(ctx, core.CompleteReportParams{
				ID:      claimed.ID,
				Content: json.RawMessage(`{"findings": [], "score": 0.9}`),
			})
			require.NoError(t, err)
			assert.True(t, won)

			report, err := repo.GetByID(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ReportStatusCompleted, report.Status)
			assert.Equal(t, model.ProgressMax, report.Progress)
			assert.Equal(t, "completed", report.Message)
			assert.Nil(t, report.Error)
			assert.Equal(t, model.ErrorKindNone, report.ErrorKind)
			assert.Nil(t, report.Deadline)

			var content []byte
			err = db.QueryRowContext(ctx, `
				SELECT content FROM report_contents WHERE report_id = $1
			`, claimed.ID).Scan(&content)
			require.NoError(t, err)
			assert.JSONEq(t, `{"findings": [], "score": 0.9}`, string(content))
		})
	})

	t.Run("first terminal write wins", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

			won, err := repo.Complete(ctx, core.CompleteReportParams{ID: claimed.ID})
			require.NoError(t, err)
			require.True(t, won)

			won, err = repo.Complete(ctx, core.CompleteReportParams{ID: claimed.ID})
			require.NoError(t, err)
			assert.False(t, won)

			failWon, err := repo.Fail(ctx, core.FailReportParams{
				ID:        claimed.ID,
				Error:     "late failure",
				ErrorKind: model.ErrorKindFault,
			})
			require.NoError(t, err)
			assert.False(t, failWon)

			report, err := repo.GetByID(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ReportStatusCompleted, report.Status)
			assert.Nil(t, report.Error)
		})
	})

	t.Run("completes a queued report without a claim", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			queued := seeder.SeedQueued(ctx, "owner-1", "example.com")

			won, err := repo.Complete(ctx, core.CompleteReportParams{
				ID:      queued.ID,
				Content: json.RawMessage(`{"fast": true}`),
			})
			require.NoError(t, err)
			assert.True(t, won)
		})
	})

	t.Run("defaults empty content to an empty document", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

			won, err := repo.Complete(ctx, core.CompleteReportParams{ID: claimed.ID})
			require.NoError(t, err)
			require.True(t, won)

			var content []byte
			err = db.QueryRowContext(ctx, `
				SELECT content FROM report_contents WHERE report_id = $1
			`, claimed.ID).Scan(&content)
			require.NoError(t, err)
			assert.JSONEq(t, `{}`, string(content))
		})
	})

	t.Run("reports false for an unknown report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			won, err := repo.Complete(context.Background(), core.CompleteReportParams{
				ID: "00000000-0000-0000-0000-000000000000",
			})
			require.NoError(t, err)
			assert.False(t, won)
		})
	})
}

func TestReportRepo_Fail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails a generating report and preserves progress", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

			applied, err := repo.UpdateProgress(ctx, core.ProgressUpdateParams{
				ID:       claimed.ID,
				Progress: 40,
				Message:  "analyzing",
			})
			require.NoError(t, err)
			require.True(t, applied)

			won, err := repo.Fail(ctx, core.FailReportParams{
				ID:        claimed.ID,
				Error:     "analysis crashed",
				ErrorKind: model.ErrorKindFault,
			})
			require.NoError(t, err)
			assert.True(t, won)

			report, err := repo.GetByID(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ReportStatusFailed, report.Status)
			require.NotNil(t, report.Error)
			assert.Equal(t, "analysis crashed", *report.Error)
			assert.Equal(t, model.ErrorKindFault, report.ErrorKind)
			assert.Equal(t, 40, report.Progress)
			assert.Nil(t, report.Deadline)
		})
	})

	t.Run("rejects unknown error kinds", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			_, err := repo.Fail(context.Background(), core.FailReportParams{
				ID:    "00000000-0000-0000-0000-000000000000",
				Error: "boom",
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid error kind")
		})
	})

	t.Run("does not fail a completed report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			completed := seeder.SeedCompleted(ctx, "owner-1", "example.com")

			won, err := repo.Fail(ctx, core.FailReportParams{
				ID:        completed.ID,
				Error:     "late failure",
				ErrorKind: model.ErrorKindFault,
			})
			require.NoError(t, err)
			assert.False(t, won)
		})
	})

	t.Run("reports false for an unknown report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			won, err := repo.Fail(context.Background(), core.FailReportParams{
				ID:        "00000000-0000-0000-0000-000000000000",
				Error:     "boom",
				ErrorKind: model.ErrorKindFault,
			})
			require.NoError(t, err)
			assert.False(t, won)
		})
	})
}

func TestReportRepo_ArchiveRestore(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("archives a completed report and restores it", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			completed := seeder.SeedCompleted(ctx, "owner-1", "example.com")

			archived, err := repo.Archive(ctx, "owner-1", completed.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ReportStatusArchived, archived.Status)

			restored, err := repo.Restore(ctx, "owner-1", archived.ID)
			require.NoError(t, err)
			assert.Equal(t, model.ReportStatusCompleted, restored.Status)
		})
	})

	t.Run("archive requires completed status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			queued := seeder.SeedQueued(ctx, "owner-1", "example.com")

			_, err := repo.Archive(ctx, "owner-1", queued.ID)
			require.ErrorIs(t, err, ErrReportNotArchivable)
		})
	})

	t.Run("restore requires archived status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			completed := seeder.SeedCompleted(ctx, "owner-1", "example.com")

			_, err := repo.Restore(ctx, "owner-1", completed.ID)
			require.ErrorIs(t, err, ErrReportNotRestorable)
		})
	})

	t.Run("unknown report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			_, err := repo.Archive(context.Background(), "owner-1", "00000000-0000-0000-0000-000000000000")
			require.ErrorIs(t, err, ErrReportNotFound)
		})
	})

	t.Run("scoped to the owner", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			completed := seeder.SeedCompleted(ctx, "owner-1", "example.com")

			_, err := repo.Archive(ctx, "owner-2", completed.ID)
			require.ErrorIs(t, err, ErrReportNotFound)
		})
	})
}

func TestReportRepo_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes a queued report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			queued := seeder.SeedQueued(ctx, "owner-1", "example.com")

			err := repo.Delete(ctx, "owner-1", queued.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, "owner-1", queued.ID)
			require.ErrorIs(t, err, ErrReportNotFound)
		})
	})

	t.Run("deletes a generating report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			claimed := seeder.SeedGenerating(ctx, "owner-1", "example.com")

			err := repo.Delete(ctx, "owner-1", claimed.ID)
			require.NoError(t, err)

			_, err = repo.GetByID(ctx, "owner-1", claimed.ID)
			require.ErrorIs(t, err, ErrReportNotFound)
		})
	})

	t.Run("removes content with the report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			completed := seeder.SeedCompleted(ctx, "owner-1", "example.com")

			err := repo.Delete(ctx, "owner-1", completed.ID)
			require.NoError(t, err)

			var count int
			err = db.QueryRowContext(ctx, `
				SELECT count(*) FROM report_contents WHERE report_id = $1
			`, completed.ID).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 0, count, "content row should cascade with the report")
		})
	})

	t.Run("unknown report", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			err := repo.Delete(context.Background(), "owner-1", "00000000-0000-0000-0000-000000000000")
			require.ErrorIs(t, err, ErrReportNotFound)
		})
	})

	t.Run("scoped to the owner", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})
			ctx := context.Background()
			seeder := testutil.NewReportSeeder(t, repo)

			queued := seeder.SeedQueued(ctx, "owner-1", "example.com")

			err := repo.Delete(ctx, "owner-2", queued.ID)
			require.ErrorIs(t, err, ErrReportNotFound)

			_, err = repo.GetByID(ctx, "owner-1", queued.ID)
			require.NoError(t, err)
		})
	})
}

func TestReportRepo_BulkDelete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()
		seeder := testutil.NewReportSeeder(t, repo)

		seeder.SeedArchived(ctx, "owner-1", "archived.example.com")
		seeder.SeedCompleted(ctx, "owner-1", "completed.example.com")
		seeder.SeedQueued(ctx, "owner-1", "queued.example.com")
		otherQueued := seeder.SeedQueued(ctx, "owner-2", "other.example.com")

		count, err := repo.BulkDelete(ctx, "owner-1", model.BulkDeleteOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		remaining, err := repo.List(ctx, "owner-1", &model.ReportListOptions{IncludeArchived: true, Limit: 10})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, model.ReportStatusArchived, remaining[0].Status)

		count, err = repo.BulkDelete(ctx, "owner-1", model.BulkDeleteOptions{IncludeArchived: true})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// The other owner's reports are untouched.
		_, err = repo.GetByID(ctx, "owner-2", otherQueued.ID)
		require.NoError(t, err)
	})
}

func TestReportRepo_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()
		seeder := testutil.NewReportSeeder(t, repo)

		seeder.SeedArchived(ctx, "owner-1", "archived.example.com")
		seeder.SeedCompleted(ctx, "owner-1", "completed.example.com")
		seeder.SeedFailed(ctx, "owner-1", "failed.example.com", "boom")
		seeder.SeedGenerating(ctx, "owner-1", "generating.example.com")
		seeder.SeedQueued(ctx, "owner-1", "queued.example.com")
		seeder.SeedQueued(ctx, "owner-2", "other.example.com")

		stats, err := repo.Stats(ctx, "owner-1")
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Equal(t, 1, stats.Queued)
		assert.Equal(t, 1, stats.Generating)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 1, stats.Archived)

		empty, err := repo.Stats(ctx, "owner-3")
		require.NoError(t, err)
		assert.Equal(t, &model.ReportStats{}, empty)
	})
}

func TestReportRepo_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewReportRepo(db, RepoConfig{})
		ctx := context.Background()
		seeder := testutil.NewReportSeeder(t, repo)

		completed := seeder.SeedCompleted(ctx, "owner-1", "completed.example.com")
		failed := seeder.SeedFailed(ctx, "owner-1", "failed.example.com", "boom")
		archived := seeder.SeedArchived(ctx, "owner-1", "archived.example.com")
		queued := seeder.SeedQueued(ctx, "owner-1", "queued.example.com")
		other := seeder.SeedQueued(ctx, "owner-2", "other.example.com")

		tests := []struct {
			name    string
			ownerID string
			opts    *model.ReportListOptions
			wantIDs []string
		}{
			{
				name:    "excludes archived by default",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{Limit: 10},
				wantIDs: []string{queued.ID, failed.ID, completed.ID},
			},
			{
				name:    "includes archived on request",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{IncludeArchived: true, Limit: 10},
				wantIDs: []string{queued.ID, archived.ID, failed.ID, completed.ID},
			},
			{
				name:    "filter by status",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{Status: reportStatusPtr(model.ReportStatusCompleted), Limit: 10},
				wantIDs: []string{completed.ID},
			},
			{
				name:    "explicit archived filter implies inclusion",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{Status: reportStatusPtr(model.ReportStatusArchived), Limit: 10},
				wantIDs: []string{archived.ID},
			},
			{
				name:    "pagination with limit",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{Limit: 2},
				wantIDs: []string{queued.ID, failed.ID},
			},
			{
				name:    "pagination with offset",
				ownerID: "owner-1",
				opts:    &model.ReportListOptions{Limit: 2, Offset: 2},
				wantIDs: []string{completed.ID},
			},
			{
				name:    "scoped to the owner",
				ownerID: "owner-2",
				opts:    &model.ReportListOptions{Limit: 10},
				wantIDs: []string{other.ID},
			},
			{
				name:    "nil options use defaults",
				ownerID: "owner-1",
				opts:    nil,
				wantIDs: []string{queued.ID, failed.ID, completed.ID},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				reports, err := repo.List(ctx, tt.ownerID, tt.opts)
				require.NoError(t, err)
				require.Len(t, reports, len(tt.wantIDs))
				for i, want := range tt.wantIDs {
					assert.Equal(t, want, reports[i].ID)
				}
			})
		}

		t.Run("rows carry full fields", func(t *testing.T) {
			reports, err := repo.List(ctx, "owner-1", &model.ReportListOptions{
				Status: reportStatusPtr(model.ReportStatusFailed),
			})
			require.NoError(t, err)
			require.Len(t, reports, 1)

			row := reports[0]
			assert.Equal(t, model.ReportStatusFailed, row.Status)
			require.NotNil(t, row.Error)
			assert.Equal(t, "boom", *row.Error)
			assert.Equal(t, model.ErrorKindFault, row.ErrorKind)
			assert.JSONEq(t, `{}`, string(row.Metadata))
			assert.NotNil(t, row.StartedAt)
		})
	})
}

func TestReportRepo_WaitForQueued(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("wakes on report creation", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			waitErr := make(chan error, 1)
			go func() {
				waitErr <- repo.WaitForQueued(ctx)
			}()

			// Give the listener time to register before the insert notifies.
			time.Sleep(250 * time.Millisecond)

			_, err := repo.Create(ctx, core.CreateReportParams{
				ID:               "99999999-9999-9999-9999-999999999999",
				OwnerID:          "owner-1",
				Target:           "example.com",
				EstimatedSeconds: 25,
			})
			require.NoError(t, err)

			select {
			case err := <-waitErr:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("WaitForQueued did not wake after report creation")
			}
		})
	})

	t.Run("returns when the context is canceled", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewReportRepo(db, RepoConfig{})

			ctx, cancel := context.WithCancel(context.Background())
			waitErr := make(chan error, 1)
			go func() {
				waitErr <- repo.WaitForQueued(ctx)
			}()

			time.Sleep(100 * time.Millisecond)
			cancel()

			select {
			case err := <-waitErr:
				require.Error(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("WaitForQueued did not return after cancellation")
			}
		})
	})
}

// Helper functions.
func reportStatusPtr(s model.ReportStatus) *model.ReportStatus {
	return &s
}
