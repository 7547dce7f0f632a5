package pipeline

import (
	"context"
	"errors"
	"time"

	"timelens/internal/infra"
)

// PollerConfig tunes the backoff schedule and the wall clock. Sleep is
// injectable for tests; nil means the real clock.
type PollerConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	WallClock    time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
}

// PollOutcome is the terminal state of one poll: completed, failed or
// timed out. Timeout covers both the wall clock firing and the attempt
// budget running out; it is distinct from a provider-reported failure
// because the remote job may still finish later.
type PollOutcome struct {
	State     PollState
	OutputURL string
	Reason    string
	Attempts  int
}

// PollState enumerates poll terminal states.
type PollState string

const (
	PollCompleted PollState = "completed"
	PollFailed    PollState = "failed"
	PollTimeout   PollState = "timeout"
)

// Poller drives a pending submission to a terminal state with exponential
// backoff between status queries.
type Poller struct {
	cfg    PollerConfig
	logger *infra.Logger
}

// NewPoller applies defaults: 2s initial delay, x1.5 growth capped at 10s,
// 30s wall clock.
func NewPoller(cfg PollerConfig, logger *infra.Logger) *Poller {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1.5
	}
	if cfg.WallClock <= 0 {
		cfg.WallClock = 30 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Poller{cfg: cfg, logger: logger}
}

// Poll queries the handle until the provider reports a terminal status. The
// wall clock and the attempt budget are enforced independently; whichever
// trips first ends the poll as a timeout. A transient query error consumes
// an attempt and is retried on the same backoff schedule; it never fails the
// job by itself. Cancelling ctx stops the poll without leaking the timer.
func (p *Poller) Poll(ctx context.Context, checker StatusChecker, handle string, maxAttempts int) PollOutcome {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.WallClock)
	defer cancel()

	delay := p.cfg.InitialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sub, err := checker.CheckStatus(ctx, handle)
		switch {
		case err != nil:
			if ctxDone(ctx) {
				return PollOutcome{State: PollTimeout, Reason: "wall clock expired", Attempts: attempt}
			}
			p.logger.Debug().
				Err(err).
				Str("handle", handle).
				Int("attempt", attempt).
				Msg("pipeline: status query failed, will retry")
		case sub.Status == SubmissionCompleted:
			return PollOutcome{State: PollCompleted, OutputURL: sub.OutputURL, Attempts: attempt}
		case sub.Status == SubmissionFailed:
			return PollOutcome{State: PollFailed, Reason: sub.Err, Attempts: attempt}
		}

		if attempt == maxAttempts {
			break
		}
		if err := p.cfg.Sleep(ctx, delay); err != nil {
			return PollOutcome{State: PollTimeout, Reason: "wall clock expired", Attempts: attempt}
		}
		delay = time.Duration(float64(delay) * p.cfg.Multiplier)
		if delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}
	return PollOutcome{State: PollTimeout, Reason: "status polling attempts exhausted", Attempts: maxAttempts}
}

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

func ctxDone(ctx context.Context) bool {
	return ctx.Err() != nil && (errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled))
}
