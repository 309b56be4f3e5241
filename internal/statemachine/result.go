package statemachine

import (
	"musicpipe/internal/domain"
	"musicpipe/internal/telegram"
)

// Outcome tells the machine what to persist after a handler ran
type Outcome int

const (
	// OutcomeSkipped means the event did not apply; nothing is written
	OutcomeSkipped Outcome = iota
	// OutcomeCompleted moves to Next and keeps the stored context
	OutcomeCompleted
	// OutcomeTransitioned moves to Next and replaces the context
	OutcomeTransitioned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	case OutcomeTransitioned:
		return "transitioned"
	default:
		return "unknown"
	}
}

// Result is the decision a handler made for one event
type Result struct {
	Outcome Outcome
	Next    domain.StateName
	Context domain.StateContext
	Sent    *telegram.Outbound
}

// Skipped leaves the user in current
func Skipped(current domain.StateName) Result {
	return Result{Outcome: OutcomeSkipped, Next: current}
}

// Completed records that a reply was sent and the user moves to next
func Completed(next domain.StateName, sent *telegram.Outbound) Result {
	return Result{Outcome: OutcomeCompleted, Next: next, Sent: sent}
}

// Transitioned moves the user to next with a fresh context
func Transitioned(next domain.StateName, ctx domain.StateContext, sent *telegram.Outbound) Result {
	return Result{Outcome: OutcomeTransitioned, Next: next, Context: ctx, Sent: sent}
}
