package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	redisadapter "github.com/reportable/reportgen/internal/adapters/redis"
	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/data"
	"github.com/reportable/reportgen/internal/devseed"
	"github.com/reportable/reportgen/internal/domain/model"
	apperrors "github.com/reportable/reportgen/internal/errors"
	"github.com/reportable/reportgen/internal/service"
)

// placeholderKeyPrefix must match the placeholder store's default prefix.
const placeholderKeyPrefix = "report:placeholder:"

type showReportOptions struct {
	ReportID string
	OwnerID  string
	RawJSON  bool
}

type watchReportOptions struct {
	ReportID string
	OwnerID  string
	Interval time.Duration
	Timeout  time.Duration
}

type placeholderListOptions struct {
	OwnerID string
}

type placeholderClearOptions struct {
	OwnerID string
	All     bool
	DryRun  bool
	Yes     bool
}

func runShowReport(cmdCtx *commandContext, args []string) error {
	opts, err := parseShowReportFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    true,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	rec, src, err := fetchReport(ctx, reportFetchOptions{
		DB:       db,
		Redis:    redisClient,
		Logger:   cmdCtx.Logger,
		OwnerID:  opts.OwnerID,
		ReportID: opts.ReportID,
	})
	if err != nil {
		return err
	}
	if rec == nil {
		if writeErr := writef(
			os.Stdout,
			"No report or placeholder found for %s (owner %s)\n",
			opts.ReportID,
			opts.OwnerID,
		); writeErr != nil {
			return fmt.Errorf("print empty report notice: %w", writeErr)
		}
		return nil
	}

	if opts.RawJSON {
		return printRawReport(rec, src)
	}
	return printReportDetails(rec, src)
}

type reportFetchOptions struct {
	DB       *sql.DB
	Redis    redis.UniversalClient
	Logger   *slog.Logger
	OwnerID  string
	ReportID string
}

type reportSource struct {
	Source         string
	PlaceholderTTL *time.Duration
}

func fetchReport(ctx context.Context, opts reportFetchOptions) (*model.Report, reportSource, error) {
	src := reportSource{}

	repo := data.NewReportRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	rec, err := repo.GetByID(ctx, opts.OwnerID, opts.ReportID)
	if err == nil {
		src.Source = "database"
		attachReportContent(ctx, opts, rec)
		return rec, src, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, src, fmt.Errorf("get report %s: %w", opts.ReportID, err)
	}

	// No durable row; the report may still be in flight as a placeholder.
	return fetchPlaceholderReport(ctx, opts, src)
}

func attachReportContent(ctx context.Context, opts reportFetchOptions, rec *model.Report) {
	if rec.Status != model.ReportStatusCompleted && rec.Status != model.ReportStatusArchived {
		return
	}
	content, err := data.NewContentRepo(opts.DB).GetByReportID(ctx, rec.ID)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to load report content", "id", rec.ID, "error", err)
		}
		return
	}
	rec.Content = content
}

func fetchPlaceholderReport(
	ctx context.Context,
	opts reportFetchOptions,
	src reportSource,
) (*model.Report, reportSource, error) {
	if opts.Redis == nil {
		return nil, src, nil
	}

	store := redisadapter.NewPlaceholderStore(opts.Redis, redisadapter.PlaceholderStoreConfig{})
	rec, err := store.Get(ctx, opts.OwnerID, opts.ReportID)
	if err != nil {
		if errors.Is(err, core.ErrPlaceholderNotFound) {
			return nil, src, nil
		}
		return nil, src, fmt.Errorf("get placeholder: %w", err)
	}

	src.Source = "placeholder"
	key := placeholderKeyPrefix + opts.OwnerID + ":" + opts.ReportID
	if ttl, ttlErr := opts.Redis.TTL(ctx, key).Result(); ttlErr == nil {
		src.PlaceholderTTL = &ttl
	}
	return rec, src, nil
}

func printRawReport(rec *model.Report, src reportSource) error {
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if printErr := writef(os.Stdout, "%s\n", payload); printErr != nil {
		return fmt.Errorf("print raw report: %w", printErr)
	}

	if src.PlaceholderTTL != nil {
		if printErr := writef(os.Stdout, "\nTTL remaining: %s\n", renderTTL(*src.PlaceholderTTL)); printErr != nil {
			return fmt.Errorf("print raw report ttl: %w", printErr)
		}
	}

	if printErr := writef(os.Stdout, "\nSource: %s\n", src.Source); printErr != nil {
		return fmt.Errorf("print raw report source: %w", printErr)
	}
	return nil
}

func printReportDetails(rec *model.Report, src reportSource) error {
	if err := writef(os.Stdout, "\nReport %s\n", rec.ID); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeReportRows(w, rec, src); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush report details: %w", err)
	}

	if len(rec.Content) > 0 {
		return printReportContent(rec.Content)
	}
	return nil
}

func writeReportRows(w *tabwriter.Writer, rec *model.Report, src reportSource) error {
	rows := []struct {
		label string
		value string
		skip  bool
	}{
		{label: "Owner", value: rec.OwnerID},
		{label: "Status", value: string(rec.Status)},
		{label: "Target", value: rec.Target},
		{label: "Progress", value: fmt.Sprintf("%d%%", rec.Progress)},
		{label: "Message", value: rec.Message, skip: rec.Message == ""},
		{label: "Error", value: renderReportError(rec), skip: rec.Error == nil},
		{label: "Estimate", value: fmt.Sprintf("%ds", rec.EstimatedSeconds)},
		{label: "Started", value: renderTime(rec.StartedAt), skip: rec.StartedAt == nil},
		{label: "Deadline", value: renderTime(rec.Deadline), skip: rec.Deadline == nil},
		{label: "Created", value: rec.CreatedAt.Format(time.RFC3339)},
		{label: "Updated", value: rec.UpdatedAt.Format(time.RFC3339)},
		{label: "Source", value: src.Source},
	}
	for _, row := range rows {
		if row.skip {
			continue
		}
		if err := writef(w, "%s\t%s\n", row.label, row.value); err != nil {
			return fmt.Errorf("write report row %q: %w", row.label, err)
		}
	}

	if src.PlaceholderTTL != nil {
		if err := writef(w, "Placeholder TTL\t%s\n", renderTTL(*src.PlaceholderTTL)); err != nil {
			return fmt.Errorf("write placeholder ttl row: %w", err)
		}
	}
	return nil
}

func renderReportError(rec *model.Report) string {
	if rec.Error == nil {
		return ""
	}
	if rec.ErrorKind == model.ErrorKindNone {
		return *rec.Error
	}
	return fmt.Sprintf("%s (%s)", *rec.Error, rec.ErrorKind)
}

func renderTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func printReportContent(content json.RawMessage) error {
	if err := writef(os.Stdout, "\nContent:\n"); err != nil {
		return fmt.Errorf("write content header: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, content, "", "  "); err != nil {
		// Not valid JSON; show it as stored.
		if rawErr := writef(os.Stdout, "%s\n", content); rawErr != nil {
			return fmt.Errorf("write raw content: %w", rawErr)
		}
		return nil
	}

	if err := writef(os.Stdout, "%s\n", buf.String()); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

func runWatchReport(cmdCtx *commandContext, args []string) error {
	opts, err := parseWatchReportFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, redisClient, err := connectInfra(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInfra(db, redisClient); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	reports, err := buildReportReader(db, redisClient, cmdCtx.Logger)
	if err != nil {
		return err
	}

	poller, err := service.NewStatusPoller(service.StatusPollerOptions{
		Fetcher:  reports,
		Interval: opts.Interval,
		Timeout:  opts.Timeout,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("create status poller: %w", err)
	}

	if headerErr := writef(
		os.Stdout,
		"Watching report %s (every %s, up to %s)\n",
		opts.ReportID,
		opts.Interval,
		opts.Timeout,
	); headerErr != nil {
		return fmt.Errorf("print watch header: %w", headerErr)
	}

	printer := &statusLinePrinter{}
	poll := poller.Start(ctx, opts.OwnerID, opts.ReportID, printer.observe)
	if waitErr := poll.Wait(); waitErr != nil {
		return waitErr
	}
	return printer.flushErr()
}

// buildReportReader wires the read side used for status fetches. Placeholders
// are attached when Redis is available so just-created reports resolve.
func buildReportReader(
	db *sql.DB,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) (*service.ReportService, error) {
	opts := service.ReportServiceOptions{
		Repo:            data.NewReportRepo(db, data.RepoConfig{Logger: logger}),
		DefaultEstimate: 2 * time.Minute,
		Logger:          logger,
	}
	if redisClient != nil {
		opts.Placeholders = redisadapter.NewPlaceholderStore(redisClient, redisadapter.PlaceholderStoreConfig{})
	}

	reports, err := service.NewReportService(opts)
	if err != nil {
		return nil, fmt.Errorf("create report service: %w", err)
	}
	return reports, nil
}

// statusLinePrinter prints one line per observed status change. It is only
// touched from the poll goroutine; flushErr is read after the poll finishes.
type statusLinePrinter struct {
	last     model.ReportStatusView
	seen     bool
	writeErr error
}

func (p *statusLinePrinter) observe(view model.ReportStatusView) {
	if p.seen && !statusViewChanged(p.last, view) {
		return
	}
	p.seen = true
	p.last = view

	line := fmt.Sprintf("%s  %-10s %3d%%", time.Now().Format("15:04:05"), view.Status, view.Progress)
	if view.Message != "" {
		line += "  " + view.Message
	}
	if view.Error != nil {
		line += fmt.Sprintf("  error=%q kind=%s", *view.Error, view.ErrorKind)
	}

	if err := writeln(os.Stdout, line); err != nil && p.writeErr == nil {
		p.writeErr = err
	}
}

func (p *statusLinePrinter) flushErr() error {
	if p.writeErr != nil {
		return fmt.Errorf("print status line: %w", p.writeErr)
	}
	return nil
}

func statusViewChanged(prev, next model.ReportStatusView) bool {
	if prev.Status != next.Status || prev.Progress != next.Progress || prev.Message != next.Message {
		return true
	}
	if prev.ErrorKind != next.ErrorKind {
		return true
	}
	return statusViewError(prev) != statusViewError(next)
}

func statusViewError(view model.ReportStatusView) string {
	if view.Error == nil {
		return ""
	}
	return *view.Error
}

func runListPlaceholders(cmdCtx *commandContext, args []string) error {
	opts, err := parsePlaceholderListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    false,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := placeholderPattern(opts.OwnerID)
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern)

	iter := redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	if headerErr := writef(os.Stdout, "\nReport Placeholders in Redis\n"); headerErr != nil {
		return fmt.Errorf("print placeholder header: %w", headerErr)
	}

	total, iterErr := writePlaceholderKeys(placeholderScanInput{
		Ctx:    ctx,
		Iter:   iter,
		Client: redisClient,
		Logger: cmdCtx.Logger,
	})
	if iterErr != nil {
		return iterErr
	}

	if total == 0 {
		if nonePrintErr := writeln(os.Stdout, "(no placeholders found)"); nonePrintErr != nil {
			return fmt.Errorf("print placeholder none: %w", nonePrintErr)
		}
		return nil
	}

	if totalPrintErr := writef(os.Stdout, "\nTotal placeholders: %d\n", total); totalPrintErr != nil {
		return fmt.Errorf("print placeholder total: %w", totalPrintErr)
	}
	return nil
}

func placeholderPattern(ownerID string) string {
	if ownerID == "" {
		return placeholderKeyPrefix + "*"
	}
	return placeholderKeyPrefix + ownerID + ":*"
}

type placeholderScanInput struct {
	Ctx    context.Context
	Iter   *redis.ScanIterator
	Client redis.UniversalClient
	Logger *slog.Logger
}

func writePlaceholderKeys(input placeholderScanInput) (int, error) {
	if input.Iter == nil {
		return 0, errors.New("redis scan: nil iterator")
	}

	printer := placeholderKeyPrinter{
		ctx:    input.Ctx,
		client: input.Client,
		logger: input.Logger,
	}

	total := 0
	for input.Iter.Next(input.Ctx) {
		key := input.Iter.Val()
		total++

		if err := printer.print(key); err != nil {
			return 0, err
		}
	}

	if err := input.Iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	return total, nil
}

type placeholderKeyPrinter struct {
	ctx    context.Context
	client redis.UniversalClient
	logger *slog.Logger
}

func (p *placeholderKeyPrinter) print(key string) error {
	if p == nil {
		return errors.New("placeholder printer: nil receiver")
	}

	summary := p.describe(key)

	ttl, ttlErr := p.client.TTL(p.ctx, key).Result()
	if ttlErr != nil {
		if p.logger != nil {
			p.logger.ErrorContext(p.ctx, "failed to fetch TTL", "key", key, "error", ttlErr)
		}
		if ttlPrintErr := writef(os.Stdout, "  %s%s (TTL: error: %v)\n", key, summary, ttlErr); ttlPrintErr != nil {
			return fmt.Errorf("print placeholder key ttl error: %w", ttlPrintErr)
		}
		return nil
	}

	if ttlPrintErr := writef(os.Stdout, "  %s%s (TTL: %s)\n", key, summary, renderTTL(ttl)); ttlPrintErr != nil {
		return fmt.Errorf("print placeholder key ttl: %w", ttlPrintErr)
	}
	return nil
}

// describe returns a short status summary for the stored placeholder, or an
// empty string when the record cannot be read.
func (p *placeholderKeyPrinter) describe(key string) string {
	raw, err := p.client.Get(p.ctx, key).Bytes()
	if err != nil {
		return ""
	}

	var rec model.Report
	if unmarshalErr := json.Unmarshal(raw, &rec); unmarshalErr != nil {
		return ""
	}
	return fmt.Sprintf("  [%s %d%% %s]", rec.Status, rec.Progress, rec.Target)
}

func runClearPlaceholders(cmdCtx *commandContext, args []string) error {
	opts, err := parsePlaceholderClearFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(placeholderClearConfirmOptions{opts}, "clear report placeholders"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    false,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	req := &placeholderDeleteRequest{
		Ctx:      ctx,
		Logger:   cmdCtx.Logger,
		Redis:    redisClient,
		Options:  opts,
		BatchCap: 1000,
	}
	stats, err := deletePlaceholderKeys(req)
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No report placeholders found in Redis"); writeErr != nil {
			return fmt.Errorf("print placeholder summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		return printPlaceholderDryRun(stats)
	}
	return printPlaceholderSummary(stats)
}

func printPlaceholderDryRun(stats placeholderDeleteStats) error {
	if err := writef(os.Stdout, "Dry-run: would delete %d/%d keys\n", stats.deleted, stats.total); err != nil {
		return fmt.Errorf("print placeholder dry run: %w", err)
	}
	return nil
}

func printPlaceholderSummary(stats placeholderDeleteStats) error {
	if err := writef(os.Stdout, "Processed %d placeholder keys\n", stats.total); err != nil {
		return fmt.Errorf("print placeholder processed: %w", err)
	}
	if err := writef(os.Stdout, "Deleted %d/%d keys\n", stats.deleted, stats.total); err != nil {
		return fmt.Errorf("print placeholder deleted: %w", err)
	}
	if stats.failures == 0 {
		return nil
	}

	if err := writef(os.Stdout, "Failed batches: %d\n", stats.failures); err != nil {
		return fmt.Errorf("print placeholder failures: %w", err)
	}
	return nil
}

type placeholderDeleteRequest struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Redis    redis.UniversalClient
	Options  placeholderClearOptions
	BatchCap int
}

type placeholderDeleteStats struct {
	total    int
	deleted  int64
	failures int
}

func deletePlaceholderKeys(req *placeholderDeleteRequest) (placeholderDeleteStats, error) {
	pattern := placeholderPattern(req.Options.OwnerID)

	batchCap := req.BatchCap
	if batchCap <= 0 {
		batchCap = 1000
	}

	if req.Logger != nil {
		req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)
	}

	stats := placeholderDeleteStats{}
	iter := req.Redis.Scan(req.Ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		stats.total++
		batch = append(batch, iter.Val())

		if len(batch) == batchCap {
			flushPlaceholderBatch(req, batch, &stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}

	flushPlaceholderBatch(req, batch, &stats)
	return stats, nil
}

func flushPlaceholderBatch(req *placeholderDeleteRequest, batch []string, stats *placeholderDeleteStats) {
	if len(batch) == 0 {
		return
	}
	if req.Options.DryRun {
		stats.deleted += int64(len(batch))
		if req.Logger != nil {
			req.Logger.Info("dry-run skipping placeholder delete", "count", len(batch))
		}
		return
	}
	n, delErr := req.Redis.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		if req.Logger != nil {
			req.Logger.Error("failed to delete placeholder keys", "count", len(batch), "error", delErr)
		}
		if err := writef(os.Stdout, "Failed to delete %d keys: %v\n", len(batch), delErr); err != nil &&
			req.Logger != nil {
			req.Logger.Error("stdout write for placeholder delete failure failed", "error", err)
		}
		return
	}
	stats.deleted += n
}

type placeholderClearConfirmOptions struct {
	opts placeholderClearOptions
}

func (c placeholderClearConfirmOptions) IsDryRun() bool { return c.opts.DryRun }
func (c placeholderClearConfirmOptions) IsYes() bool    { return c.opts.Yes }
func (c placeholderClearConfirmOptions) GetWarning() string {
	return "WARNING: this will remove in-flight report placeholders for every owner."
}

func (c placeholderClearConfirmOptions) GetTarget() string {
	if c.opts.All {
		return ""
	}
	return fmt.Sprintf("owner %q", c.opts.OwnerID)
}

func parseShowReportFlags(args []string) (showReportOptions, error) {
	fs := flag.NewFlagSet("show-report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts showReportOptions
	fs.StringVar(&opts.ReportID, "id", "", "Report ID to inspect (required)")
	fs.StringVar(&opts.OwnerID, "owner", devseed.DefaultOwnerID, "Owner the report belongs to")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw report record as JSON")

	if err := fs.Parse(args); err != nil {
		return showReportOptions{}, err
	}

	opts.ReportID = strings.TrimSpace(opts.ReportID)
	if opts.ReportID == "" {
		return showReportOptions{}, errors.New("--id is required")
	}
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	if opts.OwnerID == "" {
		return showReportOptions{}, errors.New("--owner is required")
	}

	return opts, nil
}

func parseWatchReportFlags(args []string) (watchReportOptions, error) {
	fs := flag.NewFlagSet("watch-report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts watchReportOptions
	fs.StringVar(&opts.ReportID, "id", "", "Report ID to watch (required)")
	fs.StringVar(&opts.OwnerID, "owner", devseed.DefaultOwnerID, "Owner the report belongs to")
	fs.DurationVar(&opts.Interval, "interval", 2*time.Second, "Delay between status fetches")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Give up after this long without a terminal status")

	if err := fs.Parse(args); err != nil {
		return watchReportOptions{}, err
	}

	opts.ReportID = strings.TrimSpace(opts.ReportID)
	if opts.ReportID == "" {
		return watchReportOptions{}, errors.New("--id is required")
	}
	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	if opts.OwnerID == "" {
		return watchReportOptions{}, errors.New("--owner is required")
	}
	if opts.Interval <= 0 {
		return watchReportOptions{}, errors.New("--interval must be greater than zero")
	}
	if opts.Timeout <= 0 {
		return watchReportOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parsePlaceholderListFlags(args []string) (placeholderListOptions, error) {
	fs := flag.NewFlagSet("list-placeholders", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts placeholderListOptions
	fs.StringVar(&opts.OwnerID, "owner", "", "Only list placeholders for this owner")

	if err := fs.Parse(args); err != nil {
		return placeholderListOptions{}, err
	}

	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	return opts, nil
}

func parsePlaceholderClearFlags(args []string) (placeholderClearOptions, error) {
	fs := flag.NewFlagSet("clear-placeholders", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts placeholderClearOptions
	fs.StringVar(&opts.OwnerID, "owner", "", "Owner whose placeholders to clear (required unless --all)")
	fs.BoolVar(&opts.All, "all", false, "Clear placeholders for all owners")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return placeholderClearOptions{}, err
	}

	opts.OwnerID = strings.TrimSpace(opts.OwnerID)
	if opts.OwnerID == "" && !opts.All {
		return placeholderClearOptions{}, errors.New("either --owner or --all is required")
	}
	if opts.OwnerID != "" && opts.All {
		return placeholderClearOptions{}, errors.New("--owner and --all are mutually exclusive")
	}

	return opts, nil
}
