package booking

import (
	"errors"
	"fmt"
)

var ErrAttemptTransition = errors.New("booking: illegal attempt transition")

// AttemptState tracks one booking request through the orchestrator.
type AttemptState string

const (
	AttemptValidating      AttemptState = "validating"
	AttemptPricingComputed AttemptState = "pricing_computed"
	AttemptAwaitingPayment AttemptState = "awaiting_payment"
	AttemptPaid            AttemptState = "paid"
	AttemptPersisted       AttemptState = "persisted"
	AttemptRejected        AttemptState = "rejected"
	AttemptPaymentFailed   AttemptState = "payment_failed"
)

func (s AttemptState) Terminal() bool {
	switch s {
	case AttemptPersisted, AttemptRejected, AttemptPaymentFailed:
		return true
	}
	return false
}

var attemptEdges = map[AttemptState][]AttemptState{
	AttemptValidating:      {AttemptPricingComputed, AttemptRejected},
	AttemptPricingComputed: {AttemptAwaitingPayment, AttemptRejected},
	AttemptAwaitingPayment: {AttemptPaid, AttemptPaymentFailed, AttemptRejected},
	// Paid can still be rejected when the final re-check loses the race.
	AttemptPaid: {AttemptPersisted, AttemptRejected, AttemptPaymentFailed},
}

// Attempt is the in-memory state machine of one orchestrator run. It is
// never persisted; only the terminal success produces a Booking.
type Attempt struct {
	ID      string
	State   AttemptState
	Reason  string
	History []AttemptState
}

func NewAttempt(id string) *Attempt {
	return &Attempt{ID: id, State: AttemptValidating, History: []AttemptState{AttemptValidating}}
}

func (a *Attempt) Advance(next AttemptState) error {
	for _, allowed := range attemptEdges[a.State] {
		if allowed == next {
			a.State = next
			a.History = append(a.History, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrAttemptTransition, a.State, next)
}

// Fail moves to a terminal failure state and keeps the reason. A terminal
// attempt keeps its first verdict. When state is not reachable from the
// current one the attempt is rejected instead; both cases report
// ErrAttemptTransition.
func (a *Attempt) Fail(state AttemptState, reason string) error {
	if a.State.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrAttemptTransition, a.State)
	}
	err := a.Advance(state)
	if err != nil {
		// every live state may be rejected
		a.State = AttemptRejected
		a.History = append(a.History, AttemptRejected)
	}
	a.Reason = reason
	return err
}
