// Package publish runs the publish pipeline: validate a package directory,
// bundle and upload it, check the fee, ask for confirmation, register the
// package on chain and verify the registration.
//
// The pipeline is a linear state machine. Every transition is reported to an
// optional Observer and logged. Failed, Cancelled, ConfirmationPending and
// Done are terminal.
package publish

import "time"

// State is a pipeline state.
type State string

const (
	Validating                 State = "Validating"
	Archiving                  State = "Archiving"
	Uploading                  State = "Uploading"
	FeeCheck                   State = "FeeCheck"
	AwaitingUserConfirmation   State = "AwaitingUserConfirmation"
	Submitting                 State = "Submitting"
	AwaitingLedgerConfirmation State = "AwaitingLedgerConfirmation"
	Verifying                  State = "Verifying"
	Done                       State = "Done"

	Failed              State = "Failed"
	Cancelled           State = "Cancelled"
	ConfirmationPending State = "ConfirmationPending"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case Done, Failed, Cancelled, ConfirmationPending:
		return true
	}
	return false
}

// order is the happy path.
var order = []State{
	Validating,
	Archiving,
	Uploading,
	FeeCheck,
	AwaitingUserConfirmation,
	Submitting,
	AwaitingLedgerConfirmation,
	Verifying,
	Done,
}

// next returns the state that follows s on the happy path.
func next(s State) State {
	for i, st := range order[:len(order)-1] {
		if st == s {
			return order[i+1]
		}
	}
	return Failed
}

// Transition is one state change, delivered to observers.
type Transition struct {
	Pipeline string
	From     State
	To       State
	At       time.Time
	Message  string
	Err      error
}

// Observer receives every transition of a run, in order, on the calling
// goroutine.
type Observer func(Transition)
