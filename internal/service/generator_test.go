package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	"github.com/reportable/reportgen/internal/mocks"
)

// mockReportWriter records progress and terminal writes for assertions.
type mockReportWriter struct {
	progressCalls []core.ProgressUpdateParams
	progressOK    bool
	progressErr   error

	completeCalls []core.CompleteReportParams
	completeOK    bool
	completeErrs  []error

	failCalls []core.FailReportParams
	failOK    bool
	failErrs  []error
}

func newMockReportWriter() *mockReportWriter {
	return &mockReportWriter{progressOK: true, completeOK: true, failOK: true}
}

func (m *mockReportWriter) UpdateProgress(_ context.Context, params core.ProgressUpdateParams) (bool, error) {
	m.progressCalls = append(m.progressCalls, params)
	if m.progressErr != nil {
		return false, m.progressErr
	}
	return m.progressOK, nil
}

func (m *mockReportWriter) Complete(_ context.Context, params core.CompleteReportParams) (bool, error) {
	m.completeCalls = append(m.completeCalls, params)
	if n := len(m.completeCalls); n <= len(m.completeErrs) {
		return false, m.completeErrs[n-1]
	}
	return m.completeOK, nil
}

func (m *mockReportWriter) Fail(_ context.Context, params core.FailReportParams) (bool, error) {
	m.failCalls = append(m.failCalls, params)
	if n := len(m.failCalls); n <= len(m.failErrs) {
		return false, m.failErrs[n-1]
	}
	return m.failOK, nil
}

// runnerFunc adapts a function to core.AnalysisRunner.
type runnerFunc func(ctx context.Context, req core.AnalysisRequest, emit func(json.RawMessage)) (json.RawMessage, error)

func (f runnerFunc) Run(ctx context.Context, req core.AnalysisRequest, emit func(json.RawMessage)) (json.RawMessage, error) {
	return f(ctx, req, emit)
}

// mockPlaceholderStore tracks deletions only; the generator never reads.
type mockPlaceholderStore struct {
	deleted []string
}

func (m *mockPlaceholderStore) Put(context.Context, *model.Report) error { return nil }

func (m *mockPlaceholderStore) Get(context.Context, string, string) (*model.Report, error) {
	return nil, core.ErrPlaceholderNotFound
}

func (m *mockPlaceholderStore) ListByOwner(context.Context, string) ([]*model.Report, error) {
	return nil, nil
}

func (m *mockPlaceholderStore) Delete(_ context.Context, _, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockPlaceholderStore) DeleteByOwner(context.Context, string) (int, error) { return 0, nil }

func (m *mockPlaceholderStore) PurgeExpired(context.Context) (int, error) { return 0, nil }

func claimedReport(estimatedSeconds int, deadline time.Duration) *model.Report {
	now := time.Now().UTC()
	d := now.Add(deadline)
	return &model.Report{
		ID:               "report-1",
		OwnerID:          "owner-1",
		Target:           "example.com",
		Status:           model.ReportStatusGenerating,
		EstimatedSeconds: estimatedSeconds,
		StartedAt:        &now,
		Deadline:         &d,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newTestGenerator(t *testing.T, opts GeneratorServiceOptions) *GeneratorService {
	t.Helper()
	if opts.ProgressInterval == 0 {
		opts.ProgressInterval = 5 * time.Millisecond
	}
	if opts.TerminalRetryBackoff == 0 {
		opts.TerminalRetryBackoff = time.Millisecond
	}
	svc, err := NewGeneratorService(opts)
	require.NoError(t, err)
	return svc
}

func TestNewGeneratorServiceValidation(t *testing.T) {
	runner := runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
		return nil, nil
	})

	_, err := NewGeneratorService(GeneratorServiceOptions{Runner: runner})
	assert.Error(t, err)

	_, err = NewGeneratorService(GeneratorServiceOptions{Repo: newMockReportWriter()})
	assert.Error(t, err)

	svc, err := NewGeneratorService(GeneratorServiceOptions{Repo: newMockReportWriter(), Runner: runner})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGeneratorServiceCompletesReport(t *testing.T) {
	repo := newMockReportWriter()
	placeholders := &mockPlaceholderStore{}
	content := json.RawMessage(`{"findings":[]}`)

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			return content, nil
		}),
		Placeholders: placeholders,
	})

	err := svc.Process(context.Background(), claimedReport(60, time.Minute))
	require.NoError(t, err)

	require.Len(t, repo.completeCalls, 1)
	assert.Equal(t, "report-1", repo.completeCalls[0].ID)
	assert.JSONEq(t, string(content), string(repo.completeCalls[0].Content))
	assert.Empty(t, repo.failCalls)
	assert.Equal(t, []string{"report-1"}, placeholders.deleted)
}

// TestGeneratorServiceTerminalWriteOrder pins the handoff to the analyzer and
// the order of the writes that follow it: the claimed row's fields form the
// analysis request, the completion lands before the placeholder is dropped.
func TestGeneratorServiceTerminalWriteOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockReportRepository(ctrl)
	runner := mocks.NewMockAnalysisRunner(ctrl)
	placeholders := mocks.NewMockPlaceholderStore(ctrl)

	metadata := json.RawMessage(`{"depth":2}`)
	content := json.RawMessage(`{"findings":[{"kind":"skimmer"}]}`)
	report := claimedReport(60, time.Minute)
	report.Metadata = metadata

	run := runner.EXPECT().
		Run(gomock.Any(), core.AnalysisRequest{
			ReportID:         "report-1",
			Target:           "example.com",
			Metadata:         metadata,
			EstimatedSeconds: 60,
		}, gomock.Any()).
		Return(content, nil)
	complete := repo.EXPECT().
		Complete(gomock.Any(), core.CompleteReportParams{ID: "report-1", Content: content}).
		Return(true, nil)
	drop := placeholders.EXPECT().
		Delete(gomock.Any(), "owner-1", "report-1").
		Return(nil)
	gomock.InOrder(run, complete, drop)

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo:         repo,
		Runner:       runner,
		Placeholders: placeholders,
		// No ticks: this test is about the terminal writes only.
		ProgressInterval: time.Hour,
	})

	require.NoError(t, svc.Process(context.Background(), report))
}

func TestGeneratorServiceCompletionFirstWins(t *testing.T) {
	repo := newMockReportWriter()
	repo.completeOK = false
	placeholders := &mockPlaceholderStore{}

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		}),
		Placeholders: placeholders,
	})

	err := svc.Process(context.Background(), claimedReport(60, time.Minute))
	require.NoError(t, err)

	require.Len(t, repo.completeCalls, 1)
	assert.Empty(t, placeholders.deleted, "superseded completion must not touch the placeholder")
}

func TestGeneratorServicePanicBecomesFault(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			panic("browser exploded")
		}),
	})

	err := svc.Process(context.Background(), claimedReport(60, time.Minute))
	require.NoError(t, err)

	require.Len(t, repo.failCalls, 1)
	assert.Equal(t, model.ErrorKindFault, repo.failCalls[0].ErrorKind)
	assert.Contains(t, repo.failCalls[0].Error, "browser exploded")
	assert.Empty(t, repo.completeCalls)
}

func TestGeneratorServiceAnalyzerErrorBecomesFault(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			return nil, errors.New("scan aborted")
		}),
	})

	err := svc.Process(context.Background(), claimedReport(60, time.Minute))
	require.NoError(t, err)

	require.Len(t, repo.failCalls, 1)
	assert.Equal(t, model.ErrorKindFault, repo.failCalls[0].ErrorKind)
	assert.Equal(t, "scan aborted", repo.failCalls[0].Error)
}

func TestGeneratorServiceDeadlineBecomesTimeout(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(ctx context.Context, _ core.AnalysisRequest, _ func(json.RawMessage)) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	err := svc.Process(context.Background(), claimedReport(60, 30*time.Millisecond))
	require.NoError(t, err)

	require.Len(t, repo.failCalls, 1)
	assert.Equal(t, model.ErrorKindTimeout, repo.failCalls[0].ErrorKind)
	assert.Equal(t, "generation deadline exceeded", repo.failCalls[0].Error)
}

func TestGeneratorServiceShutdownLeavesReportGenerating(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(ctx context.Context, _ core.AnalysisRequest, _ func(json.RawMessage)) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := svc.Process(ctx, claimedReport(60, time.Minute))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.failCalls, "shutdown must not record a failure")
	assert.Empty(t, repo.completeCalls)
}

func TestGeneratorServiceTerminalWriteRetries(t *testing.T) {
	repo := newMockReportWriter()
	repo.completeErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
	placeholders := &mockPlaceholderStore{}

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		}),
		Placeholders: placeholders,
	})

	err := svc.Process(context.Background(), claimedReport(60, time.Minute))
	require.NoError(t, err)

	assert.Len(t, repo.completeCalls, 3, "two failed attempts then success")
	assert.Equal(t, []string{"report-1"}, placeholders.deleted)
}

func TestGeneratorServiceWritesProgressTicks(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
			time.Sleep(40 * time.Millisecond)
			return json.RawMessage(`{}`), nil
		}),
		ProgressInterval: 10 * time.Millisecond,
	})

	err := svc.Process(context.Background(), claimedReport(600, time.Minute))
	require.NoError(t, err)

	require.NotEmpty(t, repo.progressCalls)
	last := -1
	for _, call := range repo.progressCalls {
		assert.Equal(t, "report-1", call.ID)
		assert.GreaterOrEqual(t, call.Progress, last, "progress never moves backward")
		last = call.Progress
	}
	// 40ms into a 600s estimate stays in the first phase.
	assert.Equal(t, "starting", repo.progressCalls[0].Message)
}

func TestGeneratorServiceFlushProgress(t *testing.T) {
	report := claimedReport(100, time.Minute)

	t.Run("writes estimator snapshot without milestone", func(t *testing.T) {
		repo := newMockReportWriter()
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second}
		keep := svc.flushProgress(context.Background(), report, state, &milestoneSlot{})

		assert.True(t, keep)
		require.Len(t, repo.progressCalls, 1)
		assert.Equal(t, 10, repo.progressCalls[0].Progress)
		assert.Equal(t, "starting", repo.progressCalls[0].Message)
		assert.Equal(t, 10, state.last)
	})

	t.Run("milestone overrides a single tick", func(t *testing.T) {
		repo := newMockReportWriter()
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second}
		slot := &milestoneSlot{}
		slot.put(Milestone{Progress: intPtr(50), Message: strPtr("halfway there")})

		keep := svc.flushProgress(context.Background(), report, state, slot)
		assert.True(t, keep)
		require.Len(t, repo.progressCalls, 1)
		assert.Equal(t, 50, repo.progressCalls[0].Progress)
		assert.Equal(t, "halfway there", repo.progressCalls[0].Message)

		// Next tick resumes estimation; progress holds at the milestone floor.
		keep = svc.flushProgress(context.Background(), report, state, slot)
		assert.True(t, keep)
		require.Len(t, repo.progressCalls, 2)
		assert.Equal(t, 50, repo.progressCalls[1].Progress)
		assert.Equal(t, "starting", repo.progressCalls[1].Message)
	})

	t.Run("milestone progress clamps to ceiling", func(t *testing.T) {
		repo := newMockReportWriter()
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second}
		slot := &milestoneSlot{}
		slot.put(Milestone{Progress: intPtr(150)})

		svc.flushProgress(context.Background(), report, state, slot)
		require.Len(t, repo.progressCalls, 1)
		assert.Equal(t, 95, repo.progressCalls[0].Progress)
	})

	t.Run("milestone never moves progress backward", func(t *testing.T) {
		repo := newMockReportWriter()
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second, last: 60}
		slot := &milestoneSlot{}
		slot.put(Milestone{Progress: intPtr(20)})

		svc.flushProgress(context.Background(), report, state, slot)
		require.Len(t, repo.progressCalls, 1)
		assert.Equal(t, 60, repo.progressCalls[0].Progress)
	})

	t.Run("superseded write stops ticking", func(t *testing.T) {
		repo := newMockReportWriter()
		repo.progressOK = false
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second}
		keep := svc.flushProgress(context.Background(), report, state, &milestoneSlot{})
		assert.False(t, keep)
	})

	t.Run("write error skips the tick only", func(t *testing.T) {
		repo := newMockReportWriter()
		repo.progressErr = errors.New("connection reset")
		svc := newTestGenerator(t, GeneratorServiceOptions{Repo: repo, Runner: noopRunner()})

		state := &tickState{started: time.Now().Add(-10 * time.Second), total: 100 * time.Second}
		keep := svc.flushProgress(context.Background(), report, state, &milestoneSlot{})
		assert.True(t, keep)
		assert.Equal(t, 0, state.last, "failed write must not advance the floor")
	})
}

func TestGeneratorServiceMilestoneEmitFlow(t *testing.T) {
	repo := newMockReportWriter()

	svc := newTestGenerator(t, GeneratorServiceOptions{
		Repo: repo,
		Runner: runnerFunc(func(_ context.Context, _ core.AnalysisRequest, emit func(json.RawMessage)) (json.RawMessage, error) {
			emit(json.RawMessage(`{"progress": 42, "message": "deep scan"}`))
			time.Sleep(15 * time.Millisecond)
			return json.RawMessage(`{}`), nil
		}),
		ProgressInterval: 5 * time.Millisecond,
	})

	err := svc.Process(context.Background(), claimedReport(600, time.Minute))
	require.NoError(t, err)

	require.NotEmpty(t, repo.progressCalls)
	var sawMilestone bool
	for _, call := range repo.progressCalls {
		if call.Progress == 42 && call.Message == "deep scan" {
			sawMilestone = true
		}
	}
	assert.True(t, sawMilestone, "staged milestone should land on a tick")
	require.Len(t, repo.completeCalls, 1)
}

func noopRunner() runnerFunc {
	return func(context.Context, core.AnalysisRequest, func(json.RawMessage)) (json.RawMessage, error) {
		return nil, nil
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
