package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
)

var listBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// listRecord builds a minimal report row; minutes offsets both timestamps
// from a fixed base so ordering assertions stay deterministic.
func listRecord(id string, status model.ReportStatus, minutes int) *model.Report {
	at := listBase.Add(time.Duration(minutes) * time.Minute)
	return &model.Report{
		ID:        id,
		OwnerID:   "owner-1",
		Target:    "example.com",
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func ids(records []*model.Report) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ID)
	}
	return out
}

func TestReconcile(t *testing.T) {
	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, Reconcile(nil, false))
		assert.Empty(t, Reconcile([]*model.Report{}, true))
	})

	t.Run("distinct records pass through in order", func(t *testing.T) {
		in := []*model.Report{
			listRecord("a", model.ReportStatusCompleted, 0),
			listRecord("b", model.ReportStatusGenerating, 1),
			listRecord("c", model.ReportStatusFailed, 2),
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids(Reconcile(in, false)))
	})

	t.Run("archived excluded unless requested", func(t *testing.T) {
		in := []*model.Report{
			listRecord("a", model.ReportStatusCompleted, 0),
			listRecord("b", model.ReportStatusArchived, 1),
		}
		assert.Equal(t, []string{"a"}, ids(Reconcile(in, false)))
		assert.Equal(t, []string{"a", "b"}, ids(Reconcile(in, true)))
	})

	t.Run("single generating duplicate wins regardless of timestamps", func(t *testing.T) {
		older := listRecord("a", model.ReportStatusGenerating, 0)
		newer := listRecord("a", model.ReportStatusCompleted, 30)

		out := Reconcile([]*model.Report{older, newer}, false)
		require.Len(t, out, 1)
		assert.Equal(t, model.ReportStatusGenerating, out[0].Status)

		out = Reconcile([]*model.Report{newer, older}, false)
		require.Len(t, out, 1)
		assert.Equal(t, model.ReportStatusGenerating, out[0].Status)
	})

	t.Run("otherwise newer updated_at wins", func(t *testing.T) {
		older := listRecord("a", model.ReportStatusFailed, 0)
		newer := listRecord("a", model.ReportStatusCompleted, 5)

		out := Reconcile([]*model.Report{older, newer}, false)
		require.Len(t, out, 1)
		assert.Equal(t, model.ReportStatusCompleted, out[0].Status)

		out = Reconcile([]*model.Report{newer, older}, false)
		require.Len(t, out, 1)
		assert.Equal(t, model.ReportStatusCompleted, out[0].Status)
	})

	t.Run("collapsed record keeps the first occurrence position", func(t *testing.T) {
		in := []*model.Report{
			listRecord("a", model.ReportStatusCompleted, 0),
			listRecord("b", model.ReportStatusCompleted, 1),
			listRecord("a", model.ReportStatusGenerating, 2),
		}
		out := Reconcile(in, false)
		require.Equal(t, []string{"a", "b"}, ids(out))
		assert.Equal(t, model.ReportStatusGenerating, out[0].Status)
	})

	t.Run("more than two occurrences collapse pairwise", func(t *testing.T) {
		in := []*model.Report{
			listRecord("a", model.ReportStatusFailed, 0),
			listRecord("a", model.ReportStatusCompleted, 10),
			listRecord("a", model.ReportStatusGenerating, 1),
		}
		out := Reconcile(in, false)
		require.Len(t, out, 1)
		assert.Equal(t, model.ReportStatusGenerating, out[0].Status)
	})

	t.Run("idempotent", func(t *testing.T) {
		in := []*model.Report{
			listRecord("a", model.ReportStatusCompleted, 0),
			listRecord("a", model.ReportStatusGenerating, 1),
			listRecord("b", model.ReportStatusArchived, 2),
			listRecord("c", model.ReportStatusQueued, 3),
		}
		once := Reconcile(in, false)
		twice := Reconcile(once, false)
		assert.Equal(t, once, twice)
	})
}

// mockReportLister serves a fixed page of rows.
type mockReportLister struct {
	rows []*model.Report
	err  error

	gotOpts *model.ReportListOptions
}

func (m *mockReportLister) List(_ context.Context, _ string, opts *model.ReportListOptions) ([]*model.Report, error) {
	m.gotOpts = opts
	return m.rows, m.err
}

// stubPlaceholders serves a fixed placeholder listing.
type stubPlaceholders struct {
	records []*model.Report
	listErr error
}

func (s *stubPlaceholders) Put(context.Context, *model.Report) error { return nil }

func (s *stubPlaceholders) Get(context.Context, string, string) (*model.Report, error) {
	return nil, core.ErrPlaceholderNotFound
}

func (s *stubPlaceholders) ListByOwner(context.Context, string) ([]*model.Report, error) {
	return s.records, s.listErr
}

func (s *stubPlaceholders) Delete(context.Context, string, string) error { return nil }

func (s *stubPlaceholders) DeleteByOwner(context.Context, string) (int, error) { return 0, nil }

func (s *stubPlaceholders) PurgeExpired(context.Context) (int, error) { return 0, nil }

func newTestReconcileService(t *testing.T, lister *mockReportLister, placeholders core.PlaceholderStore) *ReconcileService {
	t.Helper()
	svc, err := NewReconcileService(ReconcileServiceOptions{
		Repo:         lister,
		Placeholders: placeholders,
	})
	require.NoError(t, err)
	return svc
}

func TestReconcileServiceCanonicalList(t *testing.T) {
	t.Run("requires an owner", func(t *testing.T) {
		svc := newTestReconcileService(t, &mockReportLister{}, nil)
		_, err := svc.CanonicalList(context.Background(), "", nil)
		assert.Error(t, err)
	})

	t.Run("merges unpersisted placeholders newest first", func(t *testing.T) {
		lister := &mockReportLister{rows: []*model.Report{
			listRecord("row-old", model.ReportStatusCompleted, 0),
			listRecord("row-new", model.ReportStatusGenerating, 10),
		}}
		placeholders := &stubPlaceholders{records: []*model.Report{
			listRecord("pending", model.ReportStatusQueued, 20),
		}}
		svc := newTestReconcileService(t, lister, placeholders)

		out, err := svc.CanonicalList(context.Background(), "owner-1", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"pending", "row-new", "row-old"}, ids(out))
	})

	t.Run("persisted row beats its placeholder", func(t *testing.T) {
		row := listRecord("a", model.ReportStatusGenerating, 5)
		row.Progress = 40
		lister := &mockReportLister{rows: []*model.Report{row}}
		placeholders := &stubPlaceholders{records: []*model.Report{
			listRecord("a", model.ReportStatusQueued, 4),
		}}
		svc := newTestReconcileService(t, lister, placeholders)

		out, err := svc.CanonicalList(context.Background(), "owner-1", nil)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 40, out[0].Progress, "the durable row carries the live progress")
	})

	t.Run("terminal placeholders are ignored", func(t *testing.T) {
		lister := &mockReportLister{}
		placeholders := &stubPlaceholders{records: []*model.Report{
			listRecord("stale", model.ReportStatusCompleted, 1),
		}}
		svc := newTestReconcileService(t, lister, placeholders)

		out, err := svc.CanonicalList(context.Background(), "owner-1", nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("placeholder fetch failure degrades to rows", func(t *testing.T) {
		lister := &mockReportLister{rows: []*model.Report{
			listRecord("a", model.ReportStatusCompleted, 0),
		}}
		placeholders := &stubPlaceholders{listErr: errors.New("redis down")}
		svc := newTestReconcileService(t, lister, placeholders)

		out, err := svc.CanonicalList(context.Background(), "owner-1", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(out))
	})

	t.Run("row fetch failure is fatal", func(t *testing.T) {
		lister := &mockReportLister{err: errors.New("pg down")}
		svc := newTestReconcileService(t, lister, nil)

		_, err := svc.CanonicalList(context.Background(), "owner-1", nil)
		assert.Error(t, err)
	})

	t.Run("status filter applies to placeholders too", func(t *testing.T) {
		status := model.ReportStatusGenerating
		lister := &mockReportLister{rows: []*model.Report{
			listRecord("row", model.ReportStatusGenerating, 0),
		}}
		placeholders := &stubPlaceholders{records: []*model.Report{
			listRecord("queued-ph", model.ReportStatusQueued, 1),
			listRecord("generating-ph", model.ReportStatusGenerating, 2),
		}}
		svc := newTestReconcileService(t, lister, placeholders)

		out, err := svc.CanonicalList(context.Background(), "owner-1", &model.ReportListOptions{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, []string{"generating-ph", "row"}, ids(out))
	})
}
