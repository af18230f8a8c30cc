package submission

import "fmt"

// State is a step of the submission state machine. The happy path runs
// through the states in declaration order; Failed is reachable from every
// state before Confirmed.
type State int

const (
	Idle State = iota
	BalanceChecked
	FeePriced
	BudgetEstimated
	Assembled
	Signed
	Broadcast
	Confirmed
	Failed
)

var stateNames = [...]string{
	Idle:            "Idle",
	BalanceChecked:  "BalanceChecked",
	FeePriced:       "FeePriced",
	BudgetEstimated: "BudgetEstimated",
	Assembled:       "Assembled",
	Signed:          "Signed",
	Broadcast:       "Broadcast",
	Confirmed:       "Confirmed",
	Failed:          "Failed",
}

// stepNames name the work done to enter a state. They label errors and
// tracing spans.
var stepNames = [...]string{
	Idle:            "input validation",
	BalanceChecked:  "balance check",
	FeePriced:       "fee pricing",
	BudgetEstimated: "budget estimation",
	Assembled:       "assembly",
	Signed:          "signing",
	Broadcast:       "broadcast",
	Confirmed:       "confirmation",
	Failed:          "failure",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) step() string {
	if s < 0 || int(s) >= len(stepNames) {
		return s.String()
	}
	return stepNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed
}

// StateObserver is notified of every state transition of a submission.
type StateObserver func(from, to State)
