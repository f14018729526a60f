package cockpit

import (
	"fmt"
	"strings"

	"cloneexec/internal/ordermsg"
)

// State is the lifecycle position of a reviewed signal.
type State int

const (
	StateUnknown State = iota
	StateProposed
	StateApproved
	StateSubmitted
	StateCompleted
	StateRejected
)

// OpenStates lists the states that still need work, in the order they are
// checked each tick.
var OpenStates = []State{StateProposed, StateApproved, StateSubmitted}

var stateStatus = map[State]ordermsg.Status{
	StateProposed:  ordermsg.StatusSignaled,
	StateApproved:  ordermsg.StatusManualAuthorized,
	StateSubmitted: ordermsg.StatusPlaced,
	StateCompleted: ordermsg.StatusFilled,
	StateRejected:  ordermsg.StatusRejected,
}

func (s State) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateApproved:
		return "approved"
	case StateSubmitted:
		return "submitted"
	case StateCompleted:
		return "completed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Status is the order status the cockpit stores for s.
func (s State) Status() ordermsg.Status {
	return stateStatus[s]
}

// StateOf maps a cockpit orderStatus back to a State.
func StateOf(status string) State {
	status = strings.ToUpper(strings.TrimSpace(status))
	for st, wire := range stateStatus {
		if string(wire) == status {
			return st
		}
	}
	return StateUnknown
}

// Signal is one proposed trade on the review queue.
type Signal struct {
	ID      string
	CloneID string
	State   State
	Order   ordermsg.Order
}

// APIError carries GraphQL application errors returned with HTTP 200.
type APIError struct {
	Operation string
	Messages  []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("cockpit %s failed", e.Operation)
	}
	return fmt.Sprintf("cockpit %s failed: %s", e.Operation, strings.Join(e.Messages, "; "))
}
