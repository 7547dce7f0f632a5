package pipeline

import (
	"context"
	"fmt"

	"timelens/internal/domain"
	"timelens/internal/providers/replicate"
)

// ReplicateBackend adapts the asynchronous Replicate prediction API to the
// Backend contract. It is the "new" side of every capability route.
type ReplicateBackend struct {
	client       *replicate.Client
	defaultModel string
}

// NewReplicateBackend wires the adapter. defaultModel is used when a preset
// carries no model hint.
func NewReplicateBackend(client *replicate.Client, defaultModel string) *ReplicateBackend {
	return &ReplicateBackend{client: client, defaultModel: defaultModel}
}

func (b *ReplicateBackend) Name() string { return "replicate" }

func (b *ReplicateBackend) Submit(ctx context.Context, job domain.GenerationJob) (Submission, error) {
	model := job.ModelHint
	if model == "" {
		model = b.defaultModel
	}
	input := replicate.Input{
		Prompt:         job.Prompt,
		NegativePrompt: job.NegativePrompt,
	}
	if job.Mode != domain.ModeTextToImage {
		input.Image = job.SourceURL
		input.PromptStrength = job.Strength
	}

	prediction, err := b.client.CreatePrediction(ctx, replicate.PredictionRequest{Model: model, Input: input})
	if err != nil {
		return Submission{}, fmt.Errorf("submit prediction: %w", err)
	}
	return fromPrediction(prediction), nil
}

func (b *ReplicateBackend) CheckStatus(ctx context.Context, handle string) (Submission, error) {
	prediction, err := b.client.GetPrediction(ctx, handle)
	if err != nil {
		return Submission{}, fmt.Errorf("check prediction: %w", err)
	}
	return fromPrediction(prediction), nil
}

func fromPrediction(p *replicate.Prediction) Submission {
	sub := Submission{Handle: p.ID}
	switch p.Status {
	case replicate.StatusSucceeded:
		sub.Status = SubmissionCompleted
		if len(p.Output) > 0 {
			sub.OutputURL = p.Output[0]
		}
	case replicate.StatusProcessing:
		sub.Status = SubmissionProcessing
	case replicate.StatusFailed, replicate.StatusCanceled:
		sub.Status = SubmissionFailed
		sub.Err = p.Error
		if sub.Err == "" {
			sub.Err = "prediction " + p.Status
		}
	default:
		sub.Status = SubmissionPending
	}
	return sub
}

var (
	_ Backend       = (*ReplicateBackend)(nil)
	_ StatusChecker = (*ReplicateBackend)(nil)
)
