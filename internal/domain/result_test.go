package domain

import "testing"

func TestResultStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from ResultState
		to   ResultState
		want bool
	}{
		{"pending to processing", StatePending, StateProcessing, true},
		{"pending to completed", StatePending, StateCompleted, true},
		{"pending to failed", StatePending, StateFailed, true},
		{"pending to timeout", StatePending, StateTimeout, true},
		{"processing to completed", StateProcessing, StateCompleted, true},
		{"processing to timeout", StateProcessing, StateTimeout, true},
		{"processing back to pending", StateProcessing, StatePending, false},
		{"completed is terminal", StateCompleted, StateProcessing, false},
		{"failed is terminal", StateFailed, StateCompleted, false},
		{"timeout is terminal", StateTimeout, StateCompleted, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	if _, ok := ParseCapability("time_machine"); !ok {
		t.Fatalf("time_machine should parse")
	}
	if _, ok := ParseCapability("hologram"); ok {
		t.Fatalf("unknown capability should be rejected")
	}
}

func TestIntentCapability(t *testing.T) {
	tests := []struct {
		kind IntentKind
		want Capability
	}{
		{IntentPreset, CapabilityPreset},
		{IntentTimeMachine, CapabilityTimeMachine},
		{IntentRestore, CapabilityRestore},
		{IntentStory, CapabilityStory},
	}
	for _, tc := range tests {
		if got := (Intent{Kind: tc.kind}).Capability(); got != tc.want {
			t.Fatalf("Capability(%s) = %s, want %s", tc.kind, got, tc.want)
		}
	}
}
