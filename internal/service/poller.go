package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
	apperrors "github.com/reportable/reportgen/internal/errors"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// PollObserver receives each successfully fetched status view, including the
// final terminal one. Never invoked after Cancel.
type PollObserver func(view model.ReportStatusView)

// StatusPollerOptions configures NewStatusPoller.
type StatusPollerOptions struct {
	// Required: read port for status fetches.
	Fetcher core.StatusFetcher
	// Optional: interval between fetches; defaults to 2s.
	Interval time.Duration
	// Optional: wall-clock budget for one poll; defaults to 10m.
	Timeout time.Duration
	// Optional: structured logger; defaults to slog.Default().
	Logger *slog.Logger
}

// StatusPoller repeatedly fetches a report's status view at a fixed interval
// and feeds an observer until the status turns terminal, the poll times out,
// or the caller cancels. Each poll owns its timer; fetches are never
// pipelined, so a slow fetch delays the next tick instead of stacking.
type StatusPoller struct {
	fetcher  core.StatusFetcher
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// Seams for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStatusPoller validates dependencies and constructs a StatusPoller.
func NewStatusPoller(opts StatusPollerOptions) (*StatusPoller, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("status fetcher is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StatusPoller{
		fetcher:  opts.Fetcher,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "status_poller"),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// MustNewStatusPoller constructs a StatusPoller and panics on invalid options.
func MustNewStatusPoller(opts StatusPollerOptions) *StatusPoller {
	p, err := NewStatusPoller(opts)
	if err != nil {
		panic(fmt.Sprintf("status poller: %v", err)) //nolint:forbidigo // fail fast on wiring errors
	}
	return p
}

// Poll is the handle for one running poll.
type Poll struct {
	reportID string
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// Cancel stops the poll. Safe to call repeatedly and after the poll has
// already finished; no observer callback is made after it returns control to
// the poll loop.
func (p *Poll) Cancel() {
	p.cancel()
}

// Done exposes completion for select loops.
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the poll finishes and returns its terminal error: nil
// when a terminal status was observed, a timeout-kind error when the poll
// budget ran out, or the context error after cancellation.
func (p *Poll) Wait() error {
	<-p.done
	return p.err
}

// Start launches a poll for one report and returns its handle. The observer
// runs on the poll goroutine; slow observers delay subsequent fetches.
func (s *StatusPoller) Start(ctx context.Context, ownerID, reportID string, observer PollObserver) *Poll {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &Poll{reportID: reportID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer cancel()
		p.err = s.run(pollCtx, ownerID, reportID, observer)
		close(p.done)
	}()

	return p
}

func (s *StatusPoller) run(ctx context.Context, ownerID, reportID string, observer PollObserver) error {
	deadline := s.now().Add(s.timeout)
	fetches := 0

	for {
		if err := s.sleep(ctx, s.interval); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		view, err := s.fetcher.FetchStatus(ctx, ownerID, reportID)
		fetches++
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			// Transient by assumption; the next tick retries.
			s.logger.WarnContext(ctx, "status fetch failed",
				"report_id", reportID, "fetches", fetches, "error", err)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if observer != nil {
				observer(view)
			}
			if view.Status.Terminal() {
				s.logger.DebugContext(ctx, "poll finished",
					"report_id", reportID, "status", view.Status, "fetches", fetches)
				return nil
			}
		}

		if !s.now().Before(deadline) {
			// The report may still complete server-side; the caller gave up
			// watching, nothing more.
			return apperrors.Timeoutf(
				"report %s not terminal after %s; stopped polling", reportID, s.timeout)
		}
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
