package leave

import "github.com/warp/leave-engine/generic"

// transitions is the whole state machine. Nothing re-enters pending;
// rejected and cancelled have no outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled, StatusHold},
	StatusHold:     {StatusApproved, StatusRejected},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// CheckTransition returns an InvalidTransitionError when the edge is not allowed.
func CheckTransition(id string, from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &generic.InvalidTransitionError{ID: id, From: string(from), To: string(to)}
}
