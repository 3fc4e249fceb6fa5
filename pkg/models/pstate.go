package models

import "fmt"

// PState represents the power state of a compute node
type PState string

const (
	PStateComputing        PState = "computing"          // Node has at least one job allocated
	PStateIdle             PState = "idle"               // Node awake, no jobs
	PStateSwitchingToSleep PState = "switching_to_sleep" // Sleep requested, waiting for ack
	PStateSleeping         PState = "sleeping"           // Node in low-power sleep
	PStateWakingFromSleep  PState = "waking_from_sleep"  // Wake requested, waiting for ack
	PStatePoweringOff      PState = "powering_off"       // Power-off requested, waiting for ack
	PStatePoweredOff       PState = "powered_off"        // Node fully powered down
	PStatePoweringOn       PState = "powering_on"        // Power-on requested, waiting for ack
)

// validPStateTransitions maps from-state to allowed to-states
var validPStateTransitions = map[PState]map[PState]bool{
	PStateComputing: {
		PStateIdle: true, // Computing → Idle (last job removed)
	},
	PStateIdle: {
		PStateComputing:        true, // Idle → Computing (job placed)
		PStateSwitchingToSleep: true, // Idle → SwitchingToSleep (sleep requested)
		PStatePoweringOff:      true, // Idle → PoweringOff (power-off requested)
	},
	PStateSwitchingToSleep: {
		PStateSleeping: true, // SwitchingToSleep → Sleeping (ack)
	},
	PStateSleeping: {
		PStateWakingFromSleep: true, // Sleeping → WakingFromSleep (wake requested)
		PStatePoweringOff:     true, // Sleeping → PoweringOff (power-off requested)
	},
	PStateWakingFromSleep: {
		PStateIdle: true, // WakingFromSleep → Idle (ack)
	},
	PStatePoweringOff: {
		PStatePoweredOff: true, // PoweringOff → PoweredOff (ack)
	},
	PStatePoweredOff: {
		PStatePoweringOn: true, // PoweredOff → PoweringOn (power-on requested)
	},
	PStatePoweringOn: {
		PStateIdle: true, // PoweringOn → Idle (ack)
	},
}

// ValidateTransition checks if a power-state transition is legal
func ValidateTransition(from, to PState) error {
	allowed, exists := validPStateTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// pendingTargets maps each pending-acknowledgment state to the state the
// engine reports once the hardware transition completes.
var pendingTargets = map[PState]PState{
	PStateSwitchingToSleep: PStateSleeping,
	PStateWakingFromSleep:  PStateIdle,
	PStatePoweringOff:      PStatePoweredOff,
	PStatePoweringOn:       PStateIdle,
}

// IsPending returns true if the state is a pending-acknowledgment state
func IsPending(state PState) bool {
	_, ok := pendingTargets[state]
	return ok
}

// PendingTarget returns the state a pending transition resolves to.
// ok is false when the state is not a pending state.
func PendingTarget(state PState) (target PState, ok bool) {
	target, ok = pendingTargets[state]
	return target, ok
}

// IsAvailable returns true if the node can accept jobs in this state
func IsAvailable(state PState) bool {
	return state == PStateComputing || state == PStateIdle
}

// AllPStates lists every node power state in snapshot-column order
func AllPStates() []PState {
	return []PState{
		PStateComputing,
		PStateIdle,
		PStateSleeping,
		PStatePoweredOff,
		PStateSwitchingToSleep,
		PStateWakingFromSleep,
		PStatePoweringOn,
		PStatePoweringOff,
	}
}
