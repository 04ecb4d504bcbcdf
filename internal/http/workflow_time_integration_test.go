package httpx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/testutil"
	"github.com/reportable/reportgen/internal/testutil/workflowtest"
)

// newFixedTimeEnv builds a workflow environment whose repository reads time
// from a scripted clock, so deadline behavior is tested without sleeping.
func newFixedTimeEnv(t *testing.T, db *sql.DB, start time.Time) (*workflowEnv, *testutil.TestTimeProvider) {
	t.Helper()

	clock := testutil.NewTestTimeProvider(start)
	repo := data.NewReportRepo(db, data.RepoConfig{TimeProvider: clock})
	return newWorkflowEnvFor(t, repo, db), clock
}

// A claimed report whose deadline passes without a terminal write is failed
// by the watchdog with a timeout error the client can observe.
func Test_Workflow_DeadlineExpiry_WatchdogTimesOut_viaREST_WithFixedTime(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		env, clock := newFixedTimeEnv(t, db, testutil.TestTime())
		ctx := context.Background()

		id := env.createReportHTTP(t, workflowtest.SimpleReportRequest(workflowtest.UniqueTarget("overdue"), 30))

		// Worker claims with a 60s budget; the deadline is fixed at claim time
		claimed, err := env.svc.ClaimNextQueued(ctx, 60*time.Second)
		require.NoError(t, err)
		require.Equal(t, id, claimed.ID)

		generating := env.reportStatusHTTP(t, id)
		assert.Equal(t, model.ReportStatusGenerating, generating.Status)

		// The worker dies silently; time passes the deadline
		clock.AddTime(61 * time.Second)

		failed, err := env.repo.FailOverdueGenerating(ctx, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, id, failed[0].ID)

		// The client sees a failed report with a timeout error kind
		final := env.reportStatusHTTP(t, id)
		assert.Equal(t, model.ReportStatusFailed, final.Status)
		require.NotNil(t, final.Error)
		assert.Equal(t, "generation deadline exceeded", *final.Error)
		assert.Equal(t, model.ErrorKindTimeout, final.ErrorKind)
	})
}

// Progress writes keep the client's view fresh but never move the deadline;
// a run that keeps reporting progress still times out on schedule.
func Test_Workflow_ProgressDoesNotExtendDeadline_viaREST_WithFixedTime(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		env, clock := newFixedTimeEnv(t, db, testutil.TestTime())
		ctx := context.Background()

		id := env.createReportHTTP(t, workflowtest.SimpleReportRequest(workflowtest.UniqueTarget("stuck"), 30))

		_, err := env.svc.ClaimNextQueued(ctx, 60*time.Second)
		require.NoError(t, err)

		// One second before the deadline a progress write still lands
		clock.AddTime(59 * time.Second)
		won, err := env.repo.UpdateProgress(ctx, core.ProgressUpdateParams{
			ID:       id,
			Progress: 80,
			Message:  "rendering",
		})
		require.NoError(t, err)
		require.True(t, won)

		view := env.reportStatusHTTP(t, id)
		assert.Equal(t, model.ReportStatusGenerating, view.Status)
		assert.Equal(t, 80, view.Progress)
		assert.Equal(t, "rendering", view.Message)

		// Two seconds later the original deadline has passed regardless
		clock.AddTime(2 * time.Second)

		failed, err := env.repo.FailOverdueGenerating(ctx, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, id, failed[0].ID)

		final := env.reportStatusHTTP(t, id)
		assert.Equal(t, model.ReportStatusFailed, final.Status)
		assert.Equal(t, model.ErrorKindTimeout, final.ErrorKind)
	})
}

// Claims hand out queued reports oldest first, and an empty queue reports
// itself rather than blocking.
func Test_Workflow_OldestQueuedClaimedFirst_viaREST_WithFixedTime(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		env, clock := newFixedTimeEnv(t, db, testutil.TestTime())
		ctx := context.Background()

		firstID := env.createReportHTTP(t, workflowtest.SimpleReportRequest(workflowtest.UniqueTarget("first"), 10))
		clock.AddTime(time.Second)
		secondID := env.createReportHTTP(t, workflowtest.SimpleReportRequest(workflowtest.UniqueTarget("second"), 10))

		claimed, err := env.svc.ClaimNextQueued(ctx, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, firstID, claimed.ID)

		// The second report is untouched while the first generates
		assert.Equal(t, model.ReportStatusGenerating, env.reportStatusHTTP(t, firstID).Status)
		assert.Equal(t, model.ReportStatusQueued, env.reportStatusHTTP(t, secondID).Status)

		claimed, err = env.svc.ClaimNextQueued(ctx, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, secondID, claimed.ID)

		_, err = env.svc.ClaimNextQueued(ctx, time.Minute)
		assert.True(t, errors.Is(err, model.ErrNoReportsQueued))
	})
}
