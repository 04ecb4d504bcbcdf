package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data/pgxutil"
	"github.com/reportable/reportgen/internal/domain/model"
)

// reportAddedChannel is the pg_notify channel signaled on every insert so
// generator workers can wake without polling.
const reportAddedChannel = "report_added"

// SQL used by ClaimNextQueued to atomically claim the oldest queued report.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM reports
    WHERE status = 'queued'
    ORDER BY created_at ASC, id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE reports r
  SET
    status = 'generating',
    started_at = COALESCE(r.started_at, $1),
    deadline = $2,
    updated_at = $1
  FROM cte
  WHERE r.id = cte.id
  RETURNING r.id, r.owner_id, r.status, r.target, r.progress, r.message, r.error, r.error_kind, r.metadata, r.estimated_seconds, r.started_at, r.deadline, r.created_at, r.updated_at`

// Create inserts a new queued report and signals waiting generators.
func (r *ReportRepo) Create(ctx context.Context, params core.CreateReportParams) (*model.Report, error) {
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}

	meta, err := prepareReportMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	var report *model.Report
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			report, insertErr = r.insertReportInTx(ctx, tx, params, meta)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return report, nil
}

func validateCreateParams(params core.CreateReportParams) error {
	if strings.TrimSpace(params.ID) == "" {
		return errors.New("report id is required")
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(params.Target) == "" {
		return errors.New("target is required")
	}
	if params.EstimatedSeconds <= 0 {
		return errors.New("estimated seconds must be positive")
	}
	return nil
}

// prepareReportMetadata normalizes the optional metadata document for insertion.
func prepareReportMetadata(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return []byte(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("metadata must be valid JSON")
	}
	return raw, nil
}

// insertReportInTx inserts a report within a pgx.Tx and returns the created report.
func (r *ReportRepo) insertReportInTx(
	ctx context.Context,
	tx pgx.Tx,
	params core.CreateReportParams,
	meta []byte,
) (*model.Report, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
      INSERT INTO reports(id, owner_id, status, target, progress, message, metadata, estimated_seconds, created_at, updated_at)
      VALUES ($1,$2,'queued',$3,0,'',$4,$5,$6,$6)
      RETURNING ` + reportColumns

	rows, err := tx.Query(ctx, query,
		params.ID,
		params.OwnerID,
		params.Target,
		meta,
		params.EstimatedSeconds,
		currentTime,
	)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	report, collectErr := collectReportFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect report: %w", collectErr)
	}

	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, reportAddedChannel, report.ID); execErr != nil {
		return nil, fmt.Errorf("send report notification: %w", execErr)
	}

	return report, nil
}

// collectReportFromRows collects a single report from pgx rows.
func collectReportFromRows(rows pgx.Rows) (*model.Report, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	report, err := scanReportFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return report, nil
}

type reportRowScanner interface {
	Scan(dest ...any) error
}

type reportRowData struct {
	metadata            []byte
	errText             sql.NullString
	startedAt, deadline sql.NullTime
}

func (d *reportRowData) scanInto(scanner reportRowScanner, report *model.Report) error {
	return scanner.Scan(
		&report.ID,
		&report.OwnerID,
		&report.Status,
		&report.Target,
		&report.Progress,
		&report.Message,
		&d.errText,
		&report.ErrorKind,
		&d.metadata,
		&report.EstimatedSeconds,
		&d.startedAt,
		&d.deadline,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
}

func (d *reportRowData) apply(report *model.Report) {
	report.Metadata = cloneJSON(d.metadata)
	report.Error = cloneNullableString(d.errText)
	report.StartedAt = cloneNullableTime(d.startedAt)
	report.Deadline = cloneNullableTime(d.deadline)
}

func scanReportFromRow(scanner reportRowScanner) (*model.Report, error) {
	report := &model.Report{}
	var data reportRowData
	if err := data.scanInto(scanner, report); err != nil {
		return nil, err
	}

	data.apply(report)
	return report, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// GetByID retrieves a report by id, scoped to its owner.
func (r *ReportRepo) GetByID(ctx context.Context, ownerID, id string) (*model.Report, error) {
	var report *model.Report
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+reportColumns+`
			FROM reports
			WHERE id = $1 AND owner_id = $2
		`, id, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		report, err = collectReportFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ClaimNextQueued atomically claims the oldest queued report for generation,
// stamping its deadline maxGeneration from now. Returns
// model.ErrNoReportsQueued when the queue is empty.
func (r *ReportRepo) ClaimNextQueued(ctx context.Context, maxGeneration time.Duration) (*model.Report, error) {
	if maxGeneration <= 0 {
		return nil, errors.New("maxGeneration must be positive")
	}

	var report *model.Report
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			deadline := currentTime.Add(maxGeneration)

			rows, qerr := tx.Query(
				ctx,
				claimNextUpdateSQL,
				currentTime.UTC(),
				deadline.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("claim report: %w", qerr)
			}
			defer rows.Close()

			claimed, cerr := collectReportFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoReportsQueued
			}
			if cerr != nil {
				return fmt.Errorf("claim report: %w", cerr)
			}
			report = claimed
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoReportsQueued) {
			return nil, model.ErrNoReportsQueued
		}
		return nil, err
	}
	return report, nil
}

// UpdateProgress applies a monotonic progress write. The guard makes a write
// against a non-generating report, or one that would move progress backward, a
// silent no-op reported as false.
func (r *ReportRepo) UpdateProgress(ctx context.Context, params core.ProgressUpdateParams) (bool, error) {
	if params.Progress < 0 || params.Progress > model.ProgressMax {
		return false, fmt.Errorf("progress out of range: %d", params.Progress)
	}

	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE reports
		SET progress = $2,
		    message = $3,
		    updated_at = $4
		WHERE id = $1 AND status = 'generating' AND progress <= $2
	`

	res, err := r.DB.ExecContext(ctx, query, params.ID, params.Progress, params.Message, currentTime)
	if err != nil {
		return false, fmt.Errorf("update report progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("progress rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Complete performs the single atomic completion write: the report row moves
// terminal and the content row lands in the same transaction. First-wins:
// false means another terminal write already landed.
func (r *ReportRepo) Complete(ctx context.Context, params core.CompleteReportParams) (bool, error) {
	content := params.Content
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}

	currentTime := r.timeProvider.Now().UTC()

	var won bool
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			res, execErr := tx.ExecContext(ctx, `
				UPDATE reports
				SET status = 'completed',
				    progress = $2,
				    message = 'completed',
				    error = NULL,
				    error_kind = '',
				    deadline = NULL,
				    updated_at = $3
				WHERE id = $1 AND status IN ('queued', 'generating')
			`, params.ID, model.ProgressMax, currentTime)
			if execErr != nil {
				return fmt.Errorf("complete report: %w", execErr)
			}

			rowsAffected, raErr := res.RowsAffected()
			if raErr != nil {
				return fmt.Errorf("complete rows affected: %w", raErr)
			}
			if rowsAffected == 0 {
				return nil
			}

			if _, execErr = tx.ExecContext(ctx, `
				INSERT INTO report_contents (report_id, content, created_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (report_id) DO UPDATE
				SET content = EXCLUDED.content
			`, params.ID, []byte(content), currentTime); execErr != nil {
				return fmt.Errorf("store report content: %w", execErr)
			}

			won = true
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// Fail records a terminal failure, preserving last-known progress. First-wins
// like Complete.
func (r *ReportRepo) Fail(ctx context.Context, params core.FailReportParams) (bool, error) {
	if params.ErrorKind != model.ErrorKindFault && params.ErrorKind != model.ErrorKindTimeout {
		return false, fmt.Errorf("invalid error kind: %q", params.ErrorKind)
	}

	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE reports
		SET status = 'failed',
		    error = $2,
		    error_kind = $3,
		    deadline = NULL,
		    updated_at = $4
		WHERE id = $1 AND status IN ('queued', 'generating')
	`

	res, err := r.DB.ExecContext(ctx, query, params.ID, params.Error, params.ErrorKind, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail report: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Archive moves a completed report to archived.
func (r *ReportRepo) Archive(ctx context.Context, ownerID, id string) (*model.Report, error) {
	return r.transitionStatus(ctx, statusTransition{
		OwnerID:    ownerID,
		ID:         id,
		From:       model.ReportStatusCompleted,
		To:         model.ReportStatusArchived,
		GuardedErr: ErrReportNotArchivable,
	})
}

// Restore moves an archived report back to completed.
func (r *ReportRepo) Restore(ctx context.Context, ownerID, id string) (*model.Report, error) {
	return r.transitionStatus(ctx, statusTransition{
		OwnerID:    ownerID,
		ID:         id,
		From:       model.ReportStatusArchived,
		To:         model.ReportStatusCompleted,
		GuardedErr: ErrReportNotRestorable,
	})
}

// statusTransition groups parameters for the archive/restore guarded update.
type statusTransition struct {
	OwnerID    string
	ID         string
	From       model.ReportStatus
	To         model.ReportStatus
	GuardedErr error
}

func (r *ReportRepo) transitionStatus(ctx context.Context, t statusTransition) (*model.Report, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
		UPDATE reports
		SET status = $4,
		    updated_at = $5
		WHERE id = $1 AND owner_id = $2 AND status = $3
		RETURNING ` + reportColumns

	row := r.DB.QueryRowContext(ctx, query, t.ID, t.OwnerID, t.From, t.To, currentTime)
	report, err := scanReportFromRow(row)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition report status: %w", err)
	}

	// Distinguish a missing report from a wrong-state one.
	if _, getErr := r.GetByID(ctx, t.OwnerID, t.ID); getErr != nil {
		if errors.Is(getErr, ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("re-check report after transition attempt: %w", getErr)
	}
	return nil, t.GuardedErr
}

// Delete removes a report in any state. Content rows cascade with the report.
func (r *ReportRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reports
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

// BulkDelete removes all of an owner's reports, optionally including archived
// ones, and returns the number removed.
func (r *ReportRepo) BulkDelete(ctx context.Context, ownerID string, opts model.BulkDeleteOptions) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM reports
		WHERE owner_id = $1
		  AND ($2 OR status <> 'archived')
	`, ownerID, opts.IncludeArchived)
	if err != nil {
		return 0, fmt.Errorf("bulk delete reports: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// Stats returns per-status counts for an owner's reports.
func (r *ReportRepo) Stats(ctx context.Context, ownerID string) (*model.ReportStats, error) {
	var s model.ReportStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')     AS queued,
    count(*) FILTER (WHERE status = 'generating') AS generating,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed,
    count(*) FILTER (WHERE status = 'archived')   AS archived
  FROM reports
  WHERE owner_id = $1
  `, ownerID).Scan(
		&s.Queued,
		&s.Generating,
		&s.Completed,
		&s.Failed,
		&s.Archived,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get report stats: %w", err)
	}
	return &s, nil
}

// WaitForQueued blocks until a PostgreSQL notification signals a newly queued
// report, or the context ends.
func (r *ReportRepo) WaitForQueued(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{reportAddedChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", reportAddedChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}
