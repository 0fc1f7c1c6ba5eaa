package model

// SamplerState represents the lifecycle state of a Sampler.
type SamplerState string

const (
	SamplerStateIdle    SamplerState = "IDLE"
	SamplerStateRunning SamplerState = "RUNNING"
	SamplerStateStopped SamplerState = "STOPPED"
)

// String returns the string representation of the sampler state.
func (s SamplerState) String() string {
	return string(s)
}

// IsTerminal returns true if the sampler can no longer change state.
func (s SamplerState) IsTerminal() bool {
	return s == SamplerStateStopped
}

// ValidSamplerTransitions defines the allowed state transitions for a Sampler.
// Idle may go straight to Stopped when Stop is called before Start.
var ValidSamplerTransitions = map[SamplerState][]SamplerState{
	SamplerStateIdle:    {SamplerStateRunning, SamplerStateStopped},
	SamplerStateRunning: {SamplerStateStopped},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s SamplerState) CanTransitionTo(next SamplerState) bool {
	for _, allowed := range ValidSamplerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
