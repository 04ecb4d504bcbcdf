// Package mocks provides mock implementations for testing the reportgen system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockReportRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(rec, nil)
package mocks

// Generate mock for ReportRepository interface from internal/core package.
// This creates MockReportRepository with methods for all ReportRepository interface methods:
// Create, GetByID, List, Stats, ClaimNextQueued, UpdateProgress, Complete, Fail, Archive, Restore, Delete, BulkDelete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=report_repository_mock.go github.com/reportable/reportgen/internal/core ReportRepository

// Generate mock for PlaceholderStore interface from internal/core package.
// This creates MockPlaceholderStore with methods for all PlaceholderStore interface methods:
// Put, Get, ListByOwner, Delete, DeleteByOwner, PurgeExpired
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=placeholder_store_mock.go github.com/reportable/reportgen/internal/core PlaceholderStore

// Generate mock for AnalysisRunner interface from internal/core package.
// This creates MockAnalysisRunner with methods for all AnalysisRunner interface methods:
// Run
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=analysis_runner_mock.go github.com/reportable/reportgen/internal/core AnalysisRunner

// Generate mock for WatchdogRepository interface from internal/core package.
// This creates MockWatchdogRepository with methods for all WatchdogRepository interface methods:
// FailOverdueGenerating
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=watchdog_repository_mock.go github.com/reportable/reportgen/internal/core WatchdogRepository

// Generate mock for StatusFetcher interface from internal/core package.
// This creates MockStatusFetcher with methods for all StatusFetcher interface methods:
// FetchStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=status_fetcher_mock.go github.com/reportable/reportgen/internal/core StatusFetcher

// ContentRepository and CacheRepository mocks live in internal/core next to the
// content cache service; see the directives in core/cache_test.go.
