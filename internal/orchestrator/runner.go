package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"timelens/internal/domain"
	"timelens/internal/infra"
	"timelens/internal/pipeline"
	"timelens/internal/preset"
	"timelens/internal/quota"
	"timelens/internal/source"
)

// Config carries the runner tunables. NewRunID is injectable for tests and
// defaults to a random UUID.
type Config struct {
	MaxPollAttempts int
	GenerationCost  int
	NewRunID        func() string
}

// Outcome is the structured result of one RunIfReady call. Business-rule
// denials live here as values; the error return is reserved for storage and
// programming faults.
type Outcome struct {
	Ran            bool
	SourceNotReady bool
	Unavailable    bool
	Denied         *quota.Decision
	Results        []domain.GenerationResult
}

// Runner executes the pending intent when its preconditions hold. It is
// single-flight: concurrent calls while a run is in progress are silent
// no-ops, and the caller that makes the system ready again (e.g. an upload
// finishing) is expected to call RunIfReady once more.
type Runner struct {
	slot     *Slot
	gate     *source.Gate
	resolver *preset.Resolver
	router   *pipeline.Router
	poller   *pipeline.Poller
	hook     *pipeline.Hook
	engine   *quota.Engine
	registry *Registry
	logger   *infra.Logger
	cfg      Config
}

// NewRunner wires the runner.
func NewRunner(slot *Slot, gate *source.Gate, resolver *preset.Resolver, router *pipeline.Router, poller *pipeline.Poller, hook *pipeline.Hook, engine *quota.Engine, registry *Registry, logger *infra.Logger, cfg Config) *Runner {
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 10
	}
	if cfg.GenerationCost <= 0 {
		cfg.GenerationCost = 1
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	return &Runner{
		slot:     slot,
		gate:     gate,
		resolver: resolver,
		router:   router,
		poller:   poller,
		hook:     hook,
		engine:   engine,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}
}

// RunIfReady consumes the pending intent and drives it to a terminal result.
// It is safe to call at any time: no pending intent or a run already in
// flight both return Ran=false. The intent is cleared after the attempt in
// every case except a missing source, which keeps it queued for a retry, and
// the busy flag is always released.
func (r *Runner) RunIfReady(ctx context.Context) (outcome Outcome, err error) {
	intent, token, ok := r.slot.BeginRun()
	if !ok {
		return Outcome{}, nil
	}
	clearIntent := true
	defer func() {
		r.slot.FinishRun(token, clearIntent)
	}()

	defs, err := r.resolveIntent(intent)
	if err != nil {
		if domain.IsConfigError(err) {
			r.logger.Error().
				Err(err).
				Str("kind", string(intent.Kind)).
				Msg("orchestrator: catalog misconfiguration, reporting unavailable")
			return Outcome{Ran: true, Unavailable: true}, nil
		}
		return Outcome{}, err
	}

	if requiresSource(defs) && !r.gate.Ready() {
		clearIntent = false
		return Outcome{Ran: true, SourceNotReady: true}, nil
	}

	decision, err := r.engine.CanGenerate(ctx, intent.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("orchestrator: quota check: %w", err)
	}
	if !decision.Allowed {
		return Outcome{Ran: true, Denied: &decision}, nil
	}

	results := make([]domain.GenerationResult, 0, len(defs))
	group := ""
	if intent.Kind == domain.IntentStory {
		group = intent.Theme
	}
	parentID := ""
	for _, def := range defs {
		job := r.buildJob(intent, def, group, parentID)
		if parentID == "" {
			parentID = job.RunID
		}

		result := r.execute(ctx, job)
		results = append(results, result)
		if result.State != domain.StateCompleted {
			// A story stops at the first beat that does not complete;
			// earlier beats keep their results.
			break
		}
	}
	return Outcome{Ran: true, Results: results}, nil
}

func (r *Runner) resolveIntent(intent domain.Intent) ([]preset.Definition, error) {
	switch intent.Kind {
	case domain.IntentPreset:
		def, err := r.resolver.Resolve(intent.PresetID, nil)
		if err != nil {
			return nil, err
		}
		return []preset.Definition{def}, nil
	case domain.IntentTimeMachine:
		def, err := r.resolver.ResolveOption(preset.GroupTimeMachine, intent.OptionKey)
		if err != nil {
			return nil, err
		}
		return []preset.Definition{def}, nil
	case domain.IntentRestore:
		def, err := r.resolver.ResolveOption(preset.GroupRestore, intent.OptionKey)
		if err != nil {
			return nil, err
		}
		return []preset.Definition{def}, nil
	case domain.IntentStory:
		return r.resolver.ResolveStory(intent.Theme)
	}
	return nil, fmt.Errorf("orchestrator: unknown intent kind %q", intent.Kind)
}

func (r *Runner) buildJob(intent domain.Intent, def preset.Definition, group, parentID string) domain.GenerationJob {
	job := domain.GenerationJob{
		RunID:          r.cfg.NewRunID(),
		UserID:         intent.UserID,
		Capability:     intent.Capability(),
		Mode:           def.Mode,
		PresetID:       def.ID,
		Prompt:         def.Prompt,
		NegativePrompt: def.NegativePrompt,
		Strength:       def.Strength,
		ModelHint:      def.ModelHint,
		ParentID:       parentID,
		Group:          group,
		OptionKey:      intent.OptionKey,
	}
	if def.RequiresSource {
		job.SourceURL = r.gate.URL()
	}
	return job
}

// execute drives one job through dispatch, polling and persistence. The
// returned result is always terminal.
func (r *Runner) execute(ctx context.Context, job domain.GenerationJob) domain.GenerationResult {
	result := r.router.Dispatch(ctx, job)
	r.registry.Put(job.UserID, result)

	if !result.State.Terminal() {
		result = r.await(ctx, job, result)
		r.registry.Put(job.UserID, result)
	}

	if result.State == domain.StateCompleted {
		r.hook.OnCompleted(ctx, job, result)
		if err := r.engine.RecordGeneration(ctx, job.UserID, r.cfg.GenerationCost); err != nil {
			r.logger.Error().
				Err(err).
				Str("run_id", job.RunID).
				Msg("orchestrator: recording quota usage failed")
		}
	}
	return result
}

func (r *Runner) await(ctx context.Context, job domain.GenerationJob, result domain.GenerationResult) domain.GenerationResult {
	checker, ok := r.router.CheckerFor(result.Backend)
	if !ok {
		result.State = domain.StateFailed
		result.Reason = fmt.Sprintf("backend %q returned a pending result but supports no status checks", result.Backend)
		return result
	}

	outcome := r.poller.Poll(ctx, checker, result.Handle, r.cfg.MaxPollAttempts)
	switch outcome.State {
	case pipeline.PollCompleted:
		result.State = domain.StateCompleted
		result.OutputURL = outcome.OutputURL
		result.Reason = ""
	case pipeline.PollFailed:
		result.State = domain.StateFailed
		result.Reason = outcome.Reason
	default:
		result.State = domain.StateTimeout
		result.Reason = outcome.Reason
	}
	return result
}

func requiresSource(defs []preset.Definition) bool {
	for _, def := range defs {
		if def.RequiresSource {
			return true
		}
	}
	return false
}
