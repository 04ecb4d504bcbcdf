package workflowtest

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/reportable/reportgen/internal/adapters/redis"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/domain/model"
)

// dbProvider wires the production repositories into the harness.
type dbProvider struct{}

func (p *dbProvider) ReportRepository(db *sql.DB) core.ReportRepository {
	return data.NewReportRepo(db, data.RepoConfig{})
}

func (p *dbProvider) ContentRepository(db *sql.DB) core.ContentRepository {
	return data.NewContentRepo(db)
}

// redisStoreProvider wires the production Redis stores into the harness.
type redisStoreProvider struct{}

func (p *redisStoreProvider) CacheRepository(client *redis.Client) core.CacheRepository {
	return data.NewRedisCacheRepo(client)
}

func (p *redisStoreProvider) PlaceholderStore(client *redis.Client) core.PlaceholderStore {
	return redisadapter.NewPlaceholderStore(client, redisadapter.PlaceholderStoreConfig{})
}

func defaultHarnessOptions() WorkflowTestOptions {
	opts := DefaultWorkflowOptions()
	opts.RepositoryProvider = &dbProvider{}
	return opts
}

// TestWorkflowHarnessCompleteLifecycle drives a report from creation to the
// completed state the way a client and worker pair would.
func TestWorkflowHarnessCompleteLifecycle(t *testing.T) {
	WithWorkflowHarness(t, defaultHarnessOptions(), func(harness *WorkflowTestHarness) {
		helpers := harness.NewWorkflowHelpers()

		rec, final := helpers.RunCompleteWorkflow(UniqueTarget("complete"))

		assert.Equal(t, model.ReportStatusCompleted, rec.Status)
		assert.Equal(t, model.ProgressMax, final.Progress)
		assert.Nil(t, final.Error)

		content := helpers.VerifyContentStored(rec.ID)
		assert.Contains(t, string(content), rec.Target)

		stats := helpers.Client().GetStats()
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 0, stats.Queued)

		list := helpers.Client().ListReports("")
		require.Len(t, list.Reports, 1)
		assert.Equal(t, rec.ID, list.Reports[0].ID)
	})
}

// TestWorkflowHarnessFailedLifecycle drives a report through a failing run
// and checks the client-observed error surface.
func TestWorkflowHarnessFailedLifecycle(t *testing.T) {
	WithWorkflowHarness(t, defaultHarnessOptions(), func(harness *WorkflowTestHarness) {
		helpers := harness.NewWorkflowHelpers()

		rec, final := helpers.RunFailedWorkflow(UniqueTarget("failed"), "analyzer exploded")

		assert.Equal(t, model.ReportStatusFailed, rec.Status)
		require.NotNil(t, final.Error)
		assert.Contains(t, *final.Error, "analyzer exploded")
		assert.Equal(t, model.ErrorKindFault, final.ErrorKind)

		stats := helpers.Client().GetStats()
		assert.Equal(t, 1, stats.Failed)
	})
}

// TestWorkflowHarnessArchiveRoundTrip covers the post-completion transitions:
// archive, restore, delete.
func TestWorkflowHarnessArchiveRoundTrip(t *testing.T) {
	WithWorkflowHarness(t, defaultHarnessOptions(), func(harness *WorkflowTestHarness) {
		helpers := harness.NewWorkflowHelpers()
		client := helpers.Client()

		rec, _ := helpers.RunCompleteWorkflow(UniqueTarget("archive"))

		archived := client.ArchiveReport(rec.ID)
		assert.Equal(t, model.ReportStatusArchived, archived.Status)

		// Archived reports leave the default list but stay reachable
		assert.Empty(t, client.ListReports("").Reports)
		assert.Len(t, client.ListReports("include_archived=true").Reports, 1)

		restored := client.RestoreReport(rec.ID)
		assert.Equal(t, model.ReportStatusCompleted, restored.Status)

		client.DeleteReport(rec.ID)

		resp := client.DoJSON(http.MethodGet, "/api/reports/"+rec.ID+"/status", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// TestWorkflowHarnessOwnerIsolation checks that one owner's reports are
// invisible to another owner's client.
func TestWorkflowHarnessOwnerIsolation(t *testing.T) {
	WithWorkflowHarness(t, defaultHarnessOptions(), func(harness *WorkflowTestHarness) {
		helpers := harness.NewWorkflowHelpers()
		other := harness.NewOwnerClient("other-owner")

		created := helpers.CreateTestReport(UniqueTarget("isolated"), 5)

		assert.Empty(t, other.ListReports("").Reports)

		resp := other.DoJSON(http.MethodGet, "/api/reports/"+created.ID+"/status", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// TestWorkflowHarnessWithRedis runs the complete workflow against the
// Redis-backed placeholder and cache stores.
func TestWorkflowHarnessWithRedis(t *testing.T) {
	opts := RedisWorkflowOptions()
	opts.RepositoryProvider = &dbProvider{}
	opts.CacheProvider = &redisStoreProvider{}

	WithWorkflowHarness(t, opts, func(harness *WorkflowTestHarness) {
		require.NotNil(t, harness.RedisClient)
		require.NotNil(t, harness.CacheRepo)
		require.NotNil(t, harness.Placeholders)

		helpers := harness.NewWorkflowHelpers()
		rec, final := helpers.RunCompleteWorkflow(UniqueTarget("redis"))

		assert.Equal(t, model.ReportStatusCompleted, rec.Status)
		assert.Equal(t, model.ProgressMax, final.Progress)
		helpers.VerifyContentStored(rec.ID)

		// The terminal write cleared the Redis placeholder
		remaining, err := harness.Placeholders.ListByOwner(context.Background(), defaultOwnerID)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})
}
