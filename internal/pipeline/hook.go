package pipeline

import (
	"context"

	"timelens/internal/domain"
	"timelens/internal/infra"
)

// Saver durably records a completed generation.
type Saver interface {
	SaveResult(ctx context.Context, job domain.GenerationJob, result domain.GenerationResult) error
}

// Hook reports completed jobs to the persistence collaborator. It is
// best-effort: a save failure is logged and the already-obtained result is
// still reported to the user, never retracted.
type Hook struct {
	saver  Saver
	logger *infra.Logger
}

// NewHook wires the hook. A nil saver turns OnCompleted into a logged no-op.
func NewHook(saver Saver, logger *infra.Logger) *Hook {
	return &Hook{saver: saver, logger: logger}
}

// OnCompleted persists the output asset reference.
func (h *Hook) OnCompleted(ctx context.Context, job domain.GenerationJob, result domain.GenerationResult) {
	if h.saver == nil {
		h.logger.Debug().Str("run_id", job.RunID).Msg("pipeline: no persistence configured, skipping save")
		return
	}
	if err := h.saver.SaveResult(ctx, job, result); err != nil {
		h.logger.Error().
			Err(err).
			Str("run_id", job.RunID).
			Str("output_url", result.OutputURL).
			Msg("pipeline: persisting result failed, result still reported")
		return
	}
	h.logger.Info().Str("run_id", job.RunID).Msg("pipeline: result persisted")
}
