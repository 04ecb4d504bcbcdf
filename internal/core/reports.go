package core

import (
	"github.com/reportable/reportgen/internal/domain/model"
)

// CreateReportRequest is re-exported for HTTP handlers to avoid direct
// coupling to the model package.
type CreateReportRequest = model.CreateReportRequest

// ReportStatus is re-exported for HTTP handlers to avoid direct coupling to
// the model package.
type ReportStatus = model.ReportStatus
