package agent

import (
	"context"
	"errors"

	"cloneexec/internal/pkg/fault"
)

// Outcome tells the scheduler what to do with a finished tick.
type Outcome int

const (
	// OutcomeOK means the tick finished, with or without acting.
	OutcomeOK Outcome = iota
	// OutcomeRetry asks for the same tick to run again shortly.
	OutcomeRetry
	// OutcomeFail means the tick cannot succeed without operator action.
	OutcomeFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetry:
		return "retry"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Classify maps a tick error onto an Outcome. Rejected orders are handled
// where they happen, so one reaching here is treated as done.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case fault.IsFatal(err):
		return OutcomeFail
	case errors.Is(err, fault.ErrExecutionRejected):
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeFail
	default:
		return OutcomeRetry
	}
}
