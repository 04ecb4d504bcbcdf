package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ContentRepo reads persisted report content. Content rows are written inside
// the completion transaction in ReportRepo.Complete; this repository covers
// the read side used by the content cache fallback.
type ContentRepo struct {
	DB *sql.DB
}

// NewContentRepo constructs a ContentRepo.
func NewContentRepo(db *sql.DB) *ContentRepo {
	return &ContentRepo{DB: db}
}

// GetByReportID retrieves the stored content for a report.
func (r *ContentRepo) GetByReportID(ctx context.Context, reportID string) (json.RawMessage, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, errors.New("report id is required")
	}

	const query = `
		SELECT content
		FROM report_contents
		WHERE report_id = $1`

	var content []byte
	err := r.DB.QueryRowContext(ctx, query, reportID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report content: %w", err)
	}
	return cloneJSON(content), nil
}
