package data

import (
	apperrors "github.com/reportable/reportgen/internal/errors"
)

// Shared sentinel errors for data-layer repositories. Typed as AppErrors so
// callers can branch either by identity (errors.Is) or by kind
// (apperrors.IsNotFound and friends).
var (
	// Report repository sentinels.
	ErrReportNotFound      error = apperrors.NotFound("report not found")
	ErrReportNotArchivable error = apperrors.Conflict("report cannot be archived (must be in completed status)")
	ErrReportNotRestorable error = apperrors.Conflict("report cannot be restored (must be in archived status)")

	// Content repository sentinels.
	ErrContentNotFound error = apperrors.NotFound("report content not found")
)
