package domain

// ResultState is the lifecycle position of a generation run. Transitions only
// move forward; a terminal state is never resurrected.
type ResultState string

const (
	StatePending    ResultState = "pending"
	StateProcessing ResultState = "processing"
	StateCompleted  ResultState = "completed"
	StateFailed     ResultState = "failed"
	StateTimeout    ResultState = "timeout"
)

// Terminal reports whether no further transition is possible.
func (s ResultState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout:
		return true
	}
	return false
}

// CanTransition reports whether moving to next obeys the forward-only
// lifecycle pending -> processing -> completed | failed | timeout.
func (s ResultState) CanTransition(next ResultState) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatePending:
		return next == StateProcessing || next.Terminal()
	case StateProcessing:
		return next.Terminal()
	}
	return false
}

// GenerationResult is the observable outcome of one run. Pending and
// processing results carry the provider handle; completed carries the output
// asset URL; failed and timeout carry a reason. Timeout is deliberately
// distinct from failed: the remote job may still finish out-of-band.
type GenerationResult struct {
	RunID        string
	State        ResultState
	Backend      string
	Handle       string
	OutputURL    string
	Reason       string
	FallbackUsed bool
}
