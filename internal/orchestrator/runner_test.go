package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timelens/internal/domain"
	"timelens/internal/flags"
	"timelens/internal/infra"
	"timelens/internal/pipeline"
	"timelens/internal/preset"
	"timelens/internal/quota"
	"timelens/internal/source"
)

func nopLogger() *infra.Logger {
	l := zerolog.Nop()
	return &l
}

type fakeBackend struct {
	mu    sync.Mutex
	name  string
	sub   pipeline.Submission
	err   error
	calls int
	jobs  []domain.GenerationJob
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Submit(_ context.Context, job domain.GenerationJob) (pipeline.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.jobs = append(f.jobs, job)
	return f.sub, f.err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSaver struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSaver) SaveResult(context.Context, domain.GenerationJob, domain.GenerationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type harness struct {
	slot     *Slot
	gate     *source.Gate
	registry *Registry
	runner   *Runner
	legacy   *fakeBackend
	saver    *fakeSaver
	engine   *quota.Engine
}

func newHarness(t *testing.T, legacy pipeline.Backend) *harness {
	t.Helper()
	catalog, err := preset.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	resolver := preset.NewResolver(catalog)

	flagStore, err := flags.NewStore(flags.StaticSource(nil))
	if err != nil {
		t.Fatalf("flag store: %v", err)
	}

	if legacy == nil {
		legacy = &fakeBackend{
			name: "stability",
			sub:  pipeline.Submission{Status: pipeline.SubmissionCompleted, OutputURL: "https://cdn/out.png"},
		}
	}
	newB := &fakeBackend{name: "replicate", err: errors.New("unused")}
	routes := map[domain.Capability]pipeline.Route{}
	for _, c := range domain.Capabilities() {
		routes[c] = pipeline.Route{New: newB, Legacy: legacy}
	}
	router, err := pipeline.NewRouter(flagStore, routes, nopLogger())
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	poller := pipeline.NewPoller(pipeline.PollerConfig{
		Sleep: func(context.Context, time.Duration) error { return nil },
	}, nopLogger())

	saver := &fakeSaver{}
	hook := pipeline.NewHook(saver, nopLogger())

	engine := quota.NewEngine(quota.Config{
		CostPerGeneration: 1,
		DailyLimit:        20,
		WeeklyLimit:       80,
		Cooldown:          0,
		ResetLocation:     time.UTC,
	}, quota.NewMemoryStore(1000), nil, nopLogger())

	slot := NewSlot()
	gate := source.NewGate()
	registry := NewRegistry()
	seq := 0
	runner := NewRunner(slot, gate, resolver, router, poller, hook, engine, registry, nopLogger(), Config{
		MaxPollAttempts: 5,
		GenerationCost:  1,
		NewRunID: func() string {
			seq++
			return fmt.Sprintf("run-%d", seq)
		},
	})
	h := &harness{slot: slot, gate: gate, registry: registry, runner: runner, saver: saver, engine: engine}
	if fb, ok := legacy.(*fakeBackend); ok {
		h.legacy = fb
	}
	return h
}

func TestRunnerNoIntentIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if outcome.Ran {
		t.Fatal("no intent should not run")
	}
}

func TestRunnerBlobSourceKeepsIntent(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Set("blob:abc")
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if !outcome.Ran || !outcome.SourceNotReady {
		t.Fatalf("outcome = %+v, want source-not-ready", outcome)
	}
	if _, ok := h.slot.Pending(); !ok {
		t.Fatal("intent must stay queued when the source is not ready")
	}
	if h.legacy.callCount() != 0 {
		t.Fatal("nothing should be dispatched")
	}
}

func TestRunnerSecureSourceClearsIntentOnSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if !outcome.Ran || len(outcome.Results) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Results[0].State != domain.StateCompleted {
		t.Fatalf("state = %q", outcome.Results[0].State)
	}
	if _, ok := h.slot.Pending(); ok {
		t.Fatal("intent should be cleared after the attempt")
	}
	if h.saver.calls != 1 {
		t.Fatalf("saves = %d, want 1", h.saver.calls)
	}
	if job := h.legacy.jobs[0]; job.SourceURL != "https://cdn.example.com/x.jpg" {
		t.Fatalf("source url = %q", job.SourceURL)
	}
}

func TestRunnerClearsIntentOnDispatchFailure(t *testing.T) {
	legacy := &fakeBackend{name: "stability", err: errors.New("legacy down")}
	h := newHarness(t, legacy)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if len(outcome.Results) != 1 || outcome.Results[0].State != domain.StateFailed {
		t.Fatalf("outcome = %+v, want one failed result", outcome)
	}
	if _, ok := h.slot.Pending(); ok {
		t.Fatal("intent must be cleared even when dispatch fails")
	}
	if h.saver.calls != 0 {
		t.Fatal("failed results are not persisted")
	}
}

func TestRunnerOverwriteLeavesOnlySecondIntent(t *testing.T) {
	h := newHarness(t, nil)
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film"})
	h.slot.Set(domain.Intent{Kind: domain.IntentTimeMachine, OptionKey: "1970s"})

	pending, ok := h.slot.Pending()
	if !ok {
		t.Fatal("expected a pending intent")
	}
	if pending.Kind != domain.IntentTimeMachine || pending.OptionKey != "1970s" {
		t.Fatalf("pending = %+v, want the second intent", pending)
	}
}

func TestRunnerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	legacy := &blockingBackend{release: release, started: started}
	h := newHarness(t, legacy)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film", UserID: "u-1"})

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := h.runner.RunIfReady(context.Background())
		done <- outcome
	}()
	<-started

	// The slot is busy; a second call must be a silent no-op.
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-watercolor", UserID: "u-1"})
	second, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("second RunIfReady: %v", err)
	}
	if second.Ran {
		t.Fatal("re-entrant call must not run")
	}

	close(release)
	first := <-done
	if !first.Ran {
		t.Fatal("first call should have run")
	}
	if legacy.count() != 1 {
		t.Fatalf("dispatches = %d, want 1", legacy.count())
	}

	// The intent set while busy survives the first run's cleanup.
	if pending, ok := h.slot.Pending(); !ok || pending.PresetID != "style-watercolor" {
		t.Fatalf("pending = %+v, want the intent set during the run", pending)
	}
}

func TestRunnerUnknownPresetReportsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "no-such-preset", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if !outcome.Ran || !outcome.Unavailable {
		t.Fatalf("outcome = %+v, want unavailable", outcome)
	}
	if _, ok := h.slot.Pending(); ok {
		t.Fatal("a misconfigured intent is not worth keeping")
	}
}

func TestRunnerTextToImageNeedsNoSource(t *testing.T) {
	h := newHarness(t, nil)
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "dream-postcard", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if outcome.SourceNotReady {
		t.Fatal("text-to-image preset must not demand a source")
	}
	if len(outcome.Results) != 1 || outcome.Results[0].State != domain.StateCompleted {
		t.Fatalf("outcome = %+v", outcome)
	}
	if job := h.legacy.jobs[0]; job.SourceURL != "" {
		t.Fatalf("source url = %q, want empty", job.SourceURL)
	}
}

func TestRunnerStoryChainsBeats(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentStory, Theme: "childhood", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if len(outcome.Results) != 3 {
		t.Fatalf("beats = %d, want 3", len(outcome.Results))
	}
	jobs := h.legacy.jobs
	if jobs[0].ParentID != "" {
		t.Fatalf("first beat parent = %q, want empty", jobs[0].ParentID)
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].ParentID != jobs[0].RunID {
			t.Fatalf("beat %d parent = %q, want %q", i, jobs[i].ParentID, jobs[0].RunID)
		}
		if jobs[i].Group != "childhood" {
			t.Fatalf("beat %d group = %q", i, jobs[i].Group)
		}
	}
}

func TestRunnerStoryStopsAtFirstFailure(t *testing.T) {
	legacy := &fakeBackend{name: "stability", err: errors.New("legacy down")}
	h := newHarness(t, legacy)
	h.gate.Set("https://cdn.example.com/x.jpg")
	h.slot.Set(domain.Intent{Kind: domain.IntentStory, Theme: "childhood", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if len(outcome.Results) != 1 {
		t.Fatalf("results = %d, want chain stopped after the first beat", len(outcome.Results))
	}
	if outcome.Results[0].State != domain.StateFailed {
		t.Fatalf("state = %q", outcome.Results[0].State)
	}
}

func TestRunnerQuotaDenial(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Set("https://cdn.example.com/x.jpg")

	// Exhaust the daily allowance.
	for i := 0; i < 20; i++ {
		if err := h.engine.RecordGeneration(context.Background(), "u-1", 1); err != nil {
			t.Fatalf("RecordGeneration: %v", err)
		}
	}
	h.slot.Set(domain.Intent{Kind: domain.IntentPreset, PresetID: "style-vintage-film", UserID: "u-1"})

	outcome, err := h.runner.RunIfReady(context.Background())
	if err != nil {
		t.Fatalf("RunIfReady: %v", err)
	}
	if outcome.Denied == nil {
		t.Fatalf("outcome = %+v, want quota denial", outcome)
	}
	if outcome.Denied.Allowed {
		t.Fatal("denial must carry Allowed=false")
	}
	if h.legacy.callCount() != 0 {
		t.Fatal("denied runs must not dispatch")
	}
}

func TestRegistryForwardOnly(t *testing.T) {
	registry := NewRegistry()
	registry.Put("u-1", domain.GenerationResult{RunID: "run-1", State: domain.StateCompleted})

	if registry.Put("u-1", domain.GenerationResult{RunID: "run-1", State: domain.StateProcessing}) {
		t.Fatal("terminal state must not be resurrected")
	}
	result, ok := registry.Get("run-1")
	if !ok || result.State != domain.StateCompleted {
		t.Fatalf("result = %+v", result)
	}
	if owner, ok := registry.Owner("run-1"); !ok || owner != "u-1" {
		t.Fatalf("owner = %q", owner)
	}
}

type blockingBackend struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingBackend) Name() string { return "stability" }

func (b *blockingBackend) Submit(context.Context, domain.GenerationJob) (pipeline.Submission, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.once.Do(func() { close(b.started) })
	<-b.release
	return pipeline.Submission{Status: pipeline.SubmissionCompleted, OutputURL: "https://cdn/out.png"}, nil
}

func (b *blockingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
