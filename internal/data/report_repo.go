package data

import (
	"database/sql"
	"log/slog"
)

// RepoConfig holds configuration options for the report repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// ReportRepo provides database operations for report management.
type ReportRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewReportRepo creates a new ReportRepo instance with the given database connection and configuration.
func NewReportRepo(db *sql.DB, cfg RepoConfig) *ReportRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &ReportRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const reportColumns = `
  id,
  owner_id,
  status,
  target,
  progress,
  message,
  error,
  error_kind,
  metadata,
  estimated_seconds,
  started_at,
  deadline,
  created_at,
  updated_at
`
