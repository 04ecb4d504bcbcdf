package model

// ReportListOptions groups parameters for listing an owner's reports.
type ReportListOptions struct {
	Status          *ReportStatus // Optional filter by status
	IncludeArchived bool          // Include archived reports in the result
	Limit           int           // Pagination limit
	Offset          int           // Pagination offset
}

// BulkDeleteOptions groups parameters for the owner-scoped bulk delete.
type BulkDeleteOptions struct {
	IncludeArchived bool // Also remove archived reports
}
