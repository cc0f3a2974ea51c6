package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatusFetcher retrieves the current status report for a session. The HTTP
// Client implements it; tests substitute fakes.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, sessionID string) (StatusReport, error)
}

// FailureKind classifies terminal poll failures.
type FailureKind int

// Failure kinds reported through Observer.OnFailure.
const (
	// FailureTimeout means the attempt budget ran out before the session
	// reached a terminal status, or transport errors persisted past it.
	FailureTimeout FailureKind = iota
	// FailureProcessing means the backend reported the session as failed.
	FailureProcessing
)

// Observer receives poll lifecycle callbacks. Exactly one of OnSuccess or
// OnFailure fires per Start call; OnProgress may fire any number of times
// before that.
type Observer interface {
	OnProgress(message string)
	OnSuccess(report StatusReport)
	OnFailure(kind FailureKind, detail string)
}

// PollConfig tunes the polling loop. Zero values fall back to defaults that
// bound a full poll sequence to roughly five minutes.
type PollConfig struct {
	// PreDelay is the wait before the first status request.
	PreDelay time.Duration
	// InitialDelay is the wait between consecutive polls.
	InitialDelay time.Duration
	// MaxDelay caps the backoff applied on rate-limit responses.
	MaxDelay time.Duration
	// MaxAttempts bounds the number of poll cycles.
	MaxAttempts int
	// BackoffFactor multiplies the delay on each rate-limit response.
	BackoffFactor float64
}

func (c PollConfig) withDefaults() PollConfig {
	if c.PreDelay <= 0 {
		c.PreDelay = 2 * time.Second
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 60
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 1.5
	}
	return c
}

// Poller tracks asynchronous sessions until they reach a terminal state,
// shielding the caller from transient network failures and rate limiting.
type Poller struct {
	fetcher StatusFetcher
	cfg     PollConfig
}

// NewPoller builds a Poller around the given fetcher.
func NewPoller(fetcher StatusFetcher, cfg PollConfig) *Poller {
	return &Poller{fetcher: fetcher, cfg: cfg.withDefaults()}
}

// Start begins polling the session in a new goroutine. Each call owns an
// independent attempt counter and delay, so concurrent sessions do not
// interfere. Cancel ctx to stop early; cancellation reports no callback.
func (p *Poller) Start(ctx context.Context, sessionID string, obs Observer) {
	go p.Poll(ctx, sessionID, obs)
}

// Poll runs the polling loop synchronously until a terminal condition is
// reached or ctx is canceled. At most one status request is outstanding at
// any time; the next cycle is scheduled only after the current one resolves.
func (p *Poller) Poll(ctx context.Context, sessionID string, obs Observer) {
	delay := p.cfg.InitialDelay
	if !sleep(ctx, p.cfg.PreDelay) {
		return
	}
	for attempts := 1; ; attempts++ {
		report, err := p.fetcher.FetchStatus(ctx, sessionID)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrRateLimited):
			delay = time.Duration(float64(delay) * p.cfg.BackoffFactor)
			if delay > p.cfg.MaxDelay {
				delay = p.cfg.MaxDelay
			}
			obs.OnProgress(fmt.Sprintf("rate limited, waiting %gs", delay.Seconds()))
			if attempts >= p.cfg.MaxAttempts {
				obs.OnFailure(FailureTimeout, "processing timeout")
				return
			}
		case err != nil:
			if attempts >= p.cfg.MaxAttempts {
				obs.OnFailure(FailureTimeout, fmt.Sprintf("polling failed: %v", err))
				return
			}
			obs.OnProgress("connection error, retrying")
		case report.Status == "completed":
			obs.OnSuccess(report)
			return
		case report.Status == "error":
			detail := report.Error
			if detail == "" {
				detail = "Processing failed"
			}
			obs.OnFailure(FailureProcessing, detail)
			return
		default:
			obs.OnProgress(progressText(report))
			if attempts >= p.cfg.MaxAttempts {
				obs.OnFailure(FailureTimeout, "processing timeout")
				return
			}
		}
		if !sleep(ctx, delay) {
			return
		}
	}
}

func progressText(report StatusReport) string {
	if pr := report.Progress; pr != nil && pr.TotalStatements > 0 {
		return fmt.Sprintf("Processing: %d/%d statements", pr.ProcessedStatements, pr.TotalStatements)
	}
	return "Processing statements..."
}

// sleep waits for d or until ctx is done; it reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
