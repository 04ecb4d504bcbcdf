package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reportable/reportgen/internal/data/pgxutil"
	"github.com/reportable/reportgen/internal/domain/model"
)

// Advisory lock namespace for watchdog operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for reportgen watchdog operations.
const (
	advisoryLockWatchdogMajor       = 1000
	advisoryLockWatchdogFailOverdue = 1 // minor key for FailOverdueGenerating
)

// timeoutErrorMessage is recorded on reports the watchdog force-fails.
const timeoutErrorMessage = "generation deadline exceeded"

// FailOverdueGenerating force-fails generating reports whose deadline has
// passed, marking them failed with a timeout error kind. Processes up to
// batchSize reports per call to prevent long locks and I/O spikes. Uses
// advisory locks so concurrent watchdog instances do not conflict; the status
// guard keeps a racing completion from being clobbered. Returns the reports it
// failed.
func (r *ReportRepo) FailOverdueGenerating(ctx context.Context, batchSize int) ([]*model.Report, error) {
	if batchSize <= 0 {
		return nil, errors.New("batch size must be greater than zero")
	}

	var failed []*model.Report
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockWatchdogMajor, advisoryLockWatchdogFailOverdue).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			currentTime := r.timeProvider.Now()

			rows, err := tx.QueryContext(ctx, `
				UPDATE reports
				SET status = 'failed',
				    error = $3,
				    error_kind = 'timeout',
				    deadline = NULL,
				    updated_at = $1
				WHERE status = 'generating'
				  AND id IN (
					SELECT id FROM reports
					WHERE status = 'generating'
					  AND deadline IS NOT NULL
					  AND deadline < $1
					ORDER BY deadline
					LIMIT $2
				  )
				RETURNING `+reportColumns+`
			`, currentTime.UTC(), batchSize, timeoutErrorMessage)
			if err != nil {
				return fmt.Errorf("fail overdue reports: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				report, scanErr := scanReportFromRow(rows)
				if scanErr != nil {
					return fmt.Errorf("scan overdue report: %w", scanErr)
				}
				failed = append(failed, report)
			}
			if rowsErr := rows.Err(); rowsErr != nil {
				return fmt.Errorf("iterate overdue reports: %w", rowsErr)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}
