package domain

import "time"

// SupervisorPhase is the process-wide control state consulted by the gate
// before any trade is admitted.
type SupervisorPhase string

const (
	PhaseObserving SupervisorPhase = "OBSERVING"
	PhaseHalted    SupervisorPhase = "HALTED"
)

// Supervisor is the fail-safe state machine. HALTED is terminal until an
// explicit external Reset: favorable resolutions never un-halt the engine.
type Supervisor struct {
	phase    SupervisorPhase
	reason   string
	haltedAt *time.Time
}

// NewSupervisor starts in OBSERVING.
func NewSupervisor() *Supervisor {
	return &Supervisor{phase: PhaseObserving}
}

// Phase returns the current control state.
func (s *Supervisor) Phase() SupervisorPhase {
	return s.phase
}

// Halted reports whether trade admission is stopped.
func (s *Supervisor) Halted() bool {
	return s.phase == PhaseHalted
}

// Reason returns the halt reason, empty while observing.
func (s *Supervisor) Reason() string {
	return s.reason
}

// HaltedAt returns when the halt happened, nil while observing.
func (s *Supervisor) HaltedAt() *time.Time {
	return s.haltedAt
}

// Halt transitions OBSERVING → HALTED with the given reason. Calling it
// while already halted keeps the original reason and timestamp.
func (s *Supervisor) Halt(reason string, now time.Time) bool {
	if s.phase == PhaseHalted {
		return false
	}
	s.phase = PhaseHalted
	s.reason = reason
	t := now
	s.haltedAt = &t
	return true
}

// Reset is the explicit external restart that leaves HALTED.
func (s *Supervisor) Reset() {
	s.phase = PhaseObserving
	s.reason = ""
	s.haltedAt = nil
}
