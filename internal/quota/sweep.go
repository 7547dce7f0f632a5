package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"timelens/internal/infra"
)

// Sweeper proactively resets stale quota counters on a cron schedule so the
// store stays bounded. Lazy reset on read remains the source of truth; the
// sweep only trims storage.
type Sweeper struct {
	cron   *cron.Cron
	store  Store
	abuse  *AbuseDetector
	loc    *time.Location
	logger *infra.Logger
}

// NewSweeper schedules a sweep using a standard cron expression evaluated in
// the quota reset timezone.
func NewSweeper(store Store, abuse *AbuseDetector, schedule string, loc *time.Location, logger *infra.Logger) (*Sweeper, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Sweeper{
		cron:   cron.New(cron.WithLocation(loc)),
		store:  store,
		abuse:  abuse,
		loc:    loc,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("quota: schedule sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Start launches the cron scheduler in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().In(s.loc)
	boundary := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	touched, err := s.store.ResetExpired(ctx, boundary)
	if err != nil {
		s.logger.Error().Err(err).Msg("quota: sweep failed")
		return
	}
	if s.abuse != nil {
		s.abuse.Reset()
	}
	s.logger.Info().Int("records", touched).Time("boundary", boundary).Msg("quota: sweep completed")
}
