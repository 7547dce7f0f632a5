package pipeline

import (
	"context"
	"fmt"

	"timelens/internal/domain"
	"timelens/internal/flags"
	"timelens/internal/infra"
)

// Route pairs the two interchangeable backends for one capability.
type Route struct {
	New    Backend
	Legacy Backend
}

// Router selects a backend per capability and normalizes whatever it returns
// into a GenerationResult. When the capability's flag routes through the new
// backend and that call fails, the router falls back to legacy once for this
// request only; the flag itself is untouched. A legacy failure is terminal.
type Router struct {
	flags    *flags.Store
	routes   map[domain.Capability]Route
	checkers map[string]StatusChecker
	logger   *infra.Logger
}

// NewRouter validates that every routable capability has both backends.
func NewRouter(flagStore *flags.Store, routes map[domain.Capability]Route, logger *infra.Logger) (*Router, error) {
	checkers := map[string]StatusChecker{}
	for _, capability := range domain.Capabilities() {
		route, ok := routes[capability]
		if !ok {
			return nil, fmt.Errorf("pipeline: no route for capability %q", capability)
		}
		if route.New == nil || route.Legacy == nil {
			return nil, fmt.Errorf("pipeline: capability %q needs both backends", capability)
		}
		for _, backend := range []Backend{route.New, route.Legacy} {
			if checker, ok := backend.(StatusChecker); ok {
				checkers[backend.Name()] = checker
			}
		}
	}
	return &Router{flags: flagStore, routes: routes, checkers: checkers, logger: logger}, nil
}

// Dispatch hands the job to the selected backend and returns the normalized
// result, which may be non-terminal (pending/processing) for asynchronous
// backends.
func (r *Router) Dispatch(ctx context.Context, job domain.GenerationJob) domain.GenerationResult {
	route, ok := r.routes[job.Capability]
	if !ok {
		return domain.GenerationResult{
			RunID:  job.RunID,
			State:  domain.StateFailed,
			Reason: fmt.Sprintf("no route for capability %q", job.Capability),
		}
	}

	fallbackUsed := false
	backend := route.Legacy
	if r.flags.UseNewBackend(job.Capability) {
		sub, err := route.New.Submit(ctx, job)
		if err == nil && sub.Status != SubmissionFailed {
			return normalize(job, route.New.Name(), sub, false)
		}
		reason := sub.Err
		if err != nil {
			reason = err.Error()
		}
		r.logger.Warn().
			Str("run_id", job.RunID).
			Str("capability", string(job.Capability)).
			Str("backend", route.New.Name()).
			Str("reason", reason).
			Msg("pipeline: new backend failed, falling back to legacy")
		fallbackUsed = true
	}

	sub, err := backend.Submit(ctx, job)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("run_id", job.RunID).
			Str("backend", backend.Name()).
			Msg("pipeline: legacy backend failed")
		return domain.GenerationResult{
			RunID:        job.RunID,
			State:        domain.StateFailed,
			Backend:      backend.Name(),
			Reason:       err.Error(),
			FallbackUsed: fallbackUsed,
		}
	}
	return normalize(job, backend.Name(), sub, fallbackUsed)
}

// CheckerFor returns the status checker for a backend named in a pending
// result.
func (r *Router) CheckerFor(backendName string) (StatusChecker, bool) {
	checker, ok := r.checkers[backendName]
	return checker, ok
}

func normalize(job domain.GenerationJob, backendName string, sub Submission, fallbackUsed bool) domain.GenerationResult {
	result := domain.GenerationResult{
		RunID:        job.RunID,
		Backend:      backendName,
		Handle:       sub.Handle,
		FallbackUsed: fallbackUsed,
	}
	switch sub.Status {
	case SubmissionCompleted:
		result.State = domain.StateCompleted
		result.OutputURL = sub.OutputURL
	case SubmissionProcessing:
		result.State = domain.StateProcessing
	case SubmissionFailed:
		result.State = domain.StateFailed
		result.Reason = sub.Err
	default:
		result.State = domain.StatePending
	}
	return result
}
