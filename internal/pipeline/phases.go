package pipeline

import "fmt"

// Phase tracks where a conversion run currently is.
type Phase string

const (
	PhasePending    Phase = "Pending"
	PhaseParsing    Phase = "Parsing"
	PhaseValidating Phase = "Validating"
	PhaseAborted    Phase = "Aborted"
	PhaseConverting Phase = "Converting"
	PhaseGenerating Phase = "Generating"
	PhaseDone       Phase = "Done"
	PhaseFailed     Phase = "Failed"
)

// allowedTransitions maps each phase to the phases it may advance to.
// Failed is reachable from anywhere and handled separately.
var allowedTransitions = map[Phase][]Phase{
	PhasePending:    {PhaseParsing},
	PhaseParsing:    {PhaseValidating},
	PhaseValidating: {PhaseAborted, PhaseConverting},
	PhaseConverting: {PhaseGenerating},
	PhaseGenerating: {PhaseDone},
}

// IsTerminal returns true if the phase is terminal. A terminal run
// never transitions again.
func IsTerminal(p Phase) bool {
	return p == PhaseDone || p == PhaseAborted || p == PhaseFailed
}

// transitionTo advances the run to the next phase, enforcing the legal
// ordering. Failed is always reachable from a non-terminal phase.
func (r *Result) transitionTo(next Phase) error {
	if next == PhaseFailed {
		if IsTerminal(r.Phase) {
			return fmt.Errorf("cannot transition to %s from terminal phase %s", next, r.Phase)
		}
		r.Phase = PhaseFailed
		return nil
	}
	for _, p := range allowedTransitions[r.Phase] {
		if p == next {
			r.Phase = next
			return nil
		}
	}
	return fmt.Errorf("cannot transition to %s from phase %s", next, r.Phase)
}

// fail marks the run failed and returns err unchanged so callers can
// fail-and-return in one line.
func (r *Result) fail(err error) error {
	_ = r.transitionTo(PhaseFailed)
	return err
}
