package checkout

// State is a checkout orchestrator state.
type State string

const (
	StateIdle            State = "idle"
	StateOrderCreating   State = "order_creating"
	StateSessionCreating State = "session_creating"
	StateAwaitingPayment State = "awaiting_payment"
	StateVerifying       State = "verifying"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
	StateTimedOut        State = "timed_out"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the attempt has ended.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut:
		return true
	}
	return false
}
