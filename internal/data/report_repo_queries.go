package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reportable/reportgen/internal/data/pgxutil"
	"github.com/reportable/reportgen/internal/domain/model"
)

// reportFilterQueryBuilder accumulates AND filters with positional args.
type reportFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *reportFilterQueryBuilder) addFilter(column string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", column, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

// buildReportListQuery constructs the SQL query and args for an owner's report list.
func buildReportListQuery(ownerID string, opts *model.ReportListOptions) (string, []any) {
	builder := &reportFilterQueryBuilder{
		query: `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE owner_id = $1`,
		args:   []any{ownerID},
		argIdx: 2,
	}

	if opts.Status != nil && opts.Status.Valid() {
		builder.addFilter("status", string(*opts.Status))
	}

	// An explicit archived status filter implies the caller wants archived rows.
	askedForArchived := opts.Status != nil && *opts.Status == model.ReportStatusArchived
	if !opts.IncludeArchived && !askedForArchived {
		builder.query += " AND status <> 'archived'"
	}

	builder.query += `
		ORDER BY created_at DESC, id DESC`

	return builder.query, builder.args
}

// List returns an owner's reports with optional filtering, newest first.
func (r *ReportRepo) List(ctx context.Context, ownerID string, opts *model.ReportListOptions) ([]*model.Report, error) {
	if opts == nil {
		opts = &model.ReportListOptions{}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	query, args := buildReportListQuery(ownerID, opts)
	argIdx := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	var result []*model.Report
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query reports: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Report])
		if err != nil {
			return fmt.Errorf("collect reports: %w", err)
		}

		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}
