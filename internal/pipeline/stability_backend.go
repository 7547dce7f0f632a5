package pipeline

import (
	"context"
	"fmt"

	"timelens/internal/domain"
	"timelens/internal/providers/stability"
)

// StabilityBackend adapts the synchronous Stability generation API to the
// Backend contract. It is the legacy side of every capability route and the
// fallback target when the new backend fails.
type StabilityBackend struct {
	client        *stability.Client
	defaultEngine string
}

// NewStabilityBackend wires the adapter.
func NewStabilityBackend(client *stability.Client, defaultEngine string) *StabilityBackend {
	return &StabilityBackend{client: client, defaultEngine: defaultEngine}
}

func (b *StabilityBackend) Name() string { return "stability" }

func (b *StabilityBackend) Submit(ctx context.Context, job domain.GenerationJob) (Submission, error) {
	req := stability.GenerateRequest{
		Engine:         b.defaultEngine,
		Prompt:         job.Prompt,
		NegativePrompt: job.NegativePrompt,
		RequestID:      job.RunID,
	}
	if job.Mode != domain.ModeTextToImage {
		req.InitImageURL = job.SourceURL
		req.ImageStrength = job.Strength
	}

	result, err := b.client.Generate(ctx, req)
	if err != nil {
		return Submission{}, fmt.Errorf("generate: %w", err)
	}
	return Submission{Status: SubmissionCompleted, OutputURL: result.OutputURL}, nil
}

var _ Backend = (*StabilityBackend)(nil)
