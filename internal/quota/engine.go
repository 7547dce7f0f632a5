package quota

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"timelens/internal/infra"
)

// Denial reason codes. Handlers translate these into localized messages.
const (
	ReasonCooldown    = "cooldown"
	ReasonDailyLimit  = "daily_limit"
	ReasonWeeklyLimit = "weekly_limit"
	ReasonCapacity    = "capacity"
)

// Decision is the structured outcome of an admission check. A denial is a
// normal return value, never an error; errors mean storage failed.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int
	RetryIn   time.Duration
}

// Config carries the engine tunables. The cooldown, limits and thresholds
// are deployment heuristics, so none of them are hard-coded.
type Config struct {
	CostPerGeneration int
	DailyLimit        int
	WeeklyLimit       int
	Cooldown          time.Duration
	ResetLocation     *time.Location
}

// Engine enforces per-user ceilings, the generation cooldown and the global
// capacity backstop. Read-modify-write cycles for one user are serialized by
// a striped mutex so concurrent requests cannot double-spend a quota.
type Engine struct {
	cfg    Config
	store  Store
	abuse  *AbuseDetector
	logger *infra.Logger
	now    func() time.Time
	locks  [64]sync.Mutex
}

// NewEngine wires the engine. The abuse detector may be nil when fan-out
// detection is not wanted.
func NewEngine(cfg Config, store Store, abuse *AbuseDetector, logger *infra.Logger) *Engine {
	if cfg.ResetLocation == nil {
		cfg.ResetLocation = time.UTC
	}
	if cfg.CostPerGeneration <= 0 {
		cfg.CostPerGeneration = 1
	}
	return &Engine{cfg: cfg, store: store, abuse: abuse, logger: logger, now: time.Now}
}

// CanGenerate decides whether the user may start a generation right now.
// Order of checks: cooldown, global capacity, daily ceiling, weekly ceiling.
func (e *Engine) CanGenerate(ctx context.Context, userID string) (Decision, error) {
	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: load record: %w", err)
	}
	rec, reset := e.applyLazyReset(rec)
	if reset {
		if err := e.store.Put(ctx, rec); err != nil {
			return Decision{}, fmt.Errorf("quota: persist reset: %w", err)
		}
	}

	now := e.now()
	if !rec.LastGeneration.IsZero() {
		if wait := rec.LastGeneration.Add(e.cfg.Cooldown).Sub(now); wait > 0 {
			return Decision{
				Allowed:   false,
				Reason:    ReasonCooldown,
				Remaining: e.remainingDaily(rec),
				RetryIn:   wait,
			}, nil
		}
	}

	capacity, err := e.store.RemainingCapacity(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: load capacity: %w", err)
	}
	if capacity < e.cfg.CostPerGeneration {
		e.logger.Warn().Str("user_id", userID).Int("capacity", capacity).Msg("quota: global capacity exhausted")
		return Decision{
			Allowed:   false,
			Reason:    ReasonCapacity,
			Remaining: e.remainingDaily(rec),
		}, nil
	}

	if remaining := e.remainingDaily(rec); remaining < e.cfg.CostPerGeneration {
		return Decision{Allowed: false, Reason: ReasonDailyLimit, Remaining: remaining}, nil
	}
	if e.cfg.WeeklyLimit > 0 {
		if remaining := e.cfg.WeeklyLimit - rec.WeeklyUsage; remaining < e.cfg.CostPerGeneration {
			return Decision{Allowed: false, Reason: ReasonWeeklyLimit, Remaining: remaining}, nil
		}
	}

	return Decision{Allowed: true, Remaining: e.remainingDaily(rec)}, nil
}

// RecordGeneration charges the user for one successful generation and draws
// from the global capacity pool.
func (e *Engine) RecordGeneration(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		cost = e.cfg.CostPerGeneration
	}
	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota: load record: %w", err)
	}
	rec, _ = e.applyLazyReset(rec)
	rec.DailyUsage += cost
	rec.WeeklyUsage += cost
	rec.TotalUsage += cost
	rec.LastGeneration = e.now()
	if err := e.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("quota: persist record: %w", err)
	}
	if err := e.store.ConsumeCapacity(ctx, cost); err != nil {
		return fmt.Errorf("quota: consume capacity: %w", err)
	}
	return nil
}

// IsRateLimited reports whether the user is inside the cooldown window.
func (e *Engine) IsRateLimited(ctx context.Context, userID string) bool {
	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return false
	}
	if rec.LastGeneration.IsZero() {
		return false
	}
	return e.now().Before(rec.LastGeneration.Add(e.cfg.Cooldown))
}

// CheckAbuse runs the advisory device/IP fan-out heuristic.
func (e *Engine) CheckAbuse(deviceID, ip string) AbuseReport {
	if e.abuse == nil {
		return AbuseReport{}
	}
	return e.abuse.Check(deviceID, ip)
}

// ObserveRequest feeds the abuse detector. Call it once per admission attempt.
func (e *Engine) ObserveRequest(deviceID, userID, ip string) {
	if e.abuse != nil {
		e.abuse.Observe(deviceID, userID, ip)
	}
}

// Usage returns a read-only view of the user's counters after lazy reset.
type Usage struct {
	DailyUsage     int
	DailyLimit     int
	WeeklyUsage    int
	WeeklyLimit    int
	TotalUsage     int
	Remaining      int
	LastGeneration time.Time
}

func (e *Engine) Usage(ctx context.Context, userID string) (Usage, error) {
	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("quota: load record: %w", err)
	}
	rec, _ = e.applyLazyReset(rec)
	return Usage{
		DailyUsage:     rec.DailyUsage,
		DailyLimit:     e.cfg.DailyLimit,
		WeeklyUsage:    rec.WeeklyUsage,
		WeeklyLimit:    e.cfg.WeeklyLimit,
		TotalUsage:     rec.TotalUsage,
		Remaining:      e.remainingDaily(rec),
		LastGeneration: rec.LastGeneration,
	}, nil
}

// applyLazyReset zeroes counters whose boundary has passed since the stored
// reset instant. The daily boundary is midnight in the configured timezone;
// the weekly boundary is Monday midnight.
func (e *Engine) applyLazyReset(rec Record) (Record, bool) {
	now := e.now().In(e.cfg.ResetLocation)
	changed := false

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.cfg.ResetLocation)
	if rec.LastDailyReset.Before(dayStart) {
		if rec.DailyUsage != 0 {
			changed = true
		}
		rec.DailyUsage = 0
		rec.LastDailyReset = now
	}

	weekday := int(now.Weekday())
	// time.Weekday starts on Sunday; shift so the week starts on Monday.
	offset := (weekday + 6) % 7
	weekStart := dayStart.AddDate(0, 0, -offset)
	if rec.LastWeeklyReset.Before(weekStart) {
		if rec.WeeklyUsage != 0 {
			changed = true
		}
		rec.WeeklyUsage = 0
		rec.LastWeeklyReset = now
	}

	return rec, changed
}

func (e *Engine) remainingDaily(rec Record) int {
	remaining := e.cfg.DailyLimit - rec.DailyUsage
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &e.locks[h.Sum32()%uint32(len(e.locks))]
}

// WithClock overrides the engine's time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}
