package domain

// IntentKind enumerates the user request variants the orchestrator accepts.
type IntentKind string

const (
	IntentPreset      IntentKind = "preset"
	IntentTimeMachine IntentKind = "time_machine"
	IntentRestore     IntentKind = "restore"
	IntentStory       IntentKind = "story"
)

// Intent is a single queued user request awaiting execution. Depending on
// Kind exactly one of PresetID, OptionKey or Theme carries the payload.
type Intent struct {
	Kind      IntentKind
	PresetID  string
	OptionKey string
	Theme     string
	UserID    string
	DeviceID  string
}

// Capability returns the transformation family the intent routes through.
func (i Intent) Capability() Capability {
	switch i.Kind {
	case IntentTimeMachine:
		return CapabilityTimeMachine
	case IntentRestore:
		return CapabilityRestore
	case IntentStory:
		return CapabilityStory
	default:
		return CapabilityPreset
	}
}
