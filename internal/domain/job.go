package domain

// Capability enumerates the transformation families. Each family is routed
// independently between the new and legacy backends.
type Capability string

const (
	CapabilityPreset      Capability = "preset"
	CapabilityTimeMachine Capability = "time_machine"
	CapabilityRestore     Capability = "restore"
	CapabilityStory       Capability = "story"
)

// Capabilities lists every routable family in stable order.
func Capabilities() []Capability {
	return []Capability{CapabilityPreset, CapabilityTimeMachine, CapabilityRestore, CapabilityStory}
}

// ParseCapability rejects unknown capability keys.
func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityPreset, CapabilityTimeMachine, CapabilityRestore, CapabilityStory:
		return Capability(s), true
	}
	return "", false
}

// GenerationMode describes how a backend should treat the job inputs.
type GenerationMode string

const (
	ModeImageToImage GenerationMode = "image_to_image"
	ModeTextToImage  GenerationMode = "text_to_image"
	ModeRestore      GenerationMode = "restore"
	ModeStory        GenerationMode = "story"
)

// GenerationJob is a fully resolved, dispatch-ready unit of work. It is
// immutable once handed to the router. RunID is the idempotency and tracing
// key shared by dispatch, polling and persistence.
type GenerationJob struct {
	RunID          string
	UserID         string
	Capability     Capability
	Mode           GenerationMode
	PresetID       string
	Prompt         string
	NegativePrompt string
	Strength       float64
	ModelHint      string
	SourceURL      string
	ParentID       string
	Group          string
	OptionKey      string
	Params         map[string]string
}
