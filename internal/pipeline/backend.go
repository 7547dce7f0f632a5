package pipeline

import (
	"context"

	"timelens/internal/domain"
)

// SubmissionStatus is the normalized status of one backend call.
type SubmissionStatus string

const (
	SubmissionCompleted  SubmissionStatus = "completed"
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionProcessing SubmissionStatus = "processing"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Submission is the normalized outcome of one backend call, regardless of
// which provider produced it. Completed submissions carry the output URL;
// pending/processing ones carry the provider handle; failed ones carry the
// provider's error text.
type Submission struct {
	Status    SubmissionStatus
	Handle    string
	OutputURL string
	Err       string
}

// Backend dispatches a job to one concrete provider.
type Backend interface {
	Name() string
	Submit(ctx context.Context, job domain.GenerationJob) (Submission, error)
}

// StatusChecker is implemented by backends whose submissions complete
// asynchronously. The handle comes from the original Submission.
type StatusChecker interface {
	CheckStatus(ctx context.Context, handle string) (Submission, error)
}
