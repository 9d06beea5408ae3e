package verify

import (
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// State is a transaction's verification state.
type State string

const (
	StateNew               State = "new"
	StateVerifying         State = "verifying"
	StateAdjusting         State = "adjusting"
	StateAwaitingAdjustAck State = "awaiting-adjust-ack"
	StateConfirming        State = "confirming"
	StateRejecting         State = "rejecting"
	StateReferred          State = "referred"
	StateCompleted         State = "completed"
	StateRejected          State = "rejected"
	StateCancelled         State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateCancelled
}

// transitions lists the cashier-driven moves. Server-driven terminal moves
// (completed, rejected, cancelled) are allowed from any non-terminal state.
var transitions = map[State][]State{
	StateNew:               {StateVerifying, StateRejecting, StateReferred},
	StateVerifying:         {StateVerifying, StateConfirming, StateAdjusting, StateRejecting, StateReferred},
	StateAdjusting:         {StateVerifying, StateAdjusting, StateAwaitingAdjustAck, StateRejecting, StateReferred},
	StateAwaitingAdjustAck: {StateConfirming},
	StateRejecting:         {StateVerifying, StateRejecting},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to.Terminal() {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OpKind is the kind of in-flight operation.
type OpKind string

const (
	OpVerify   OpKind = "verify"
	OpAdjust   OpKind = "adjust"
	OpConfirm  OpKind = "confirm"
	OpReject   OpKind = "reject"
	OpReferral OpKind = "referral"
)

// PendingOperation is the single-flight lock of one transaction.
type PendingOperation struct {
	TransactionID string
	Kind          OpKind
	StartedAt     time.Time
}

// Transaction is what the engine knows about one transaction.
type Transaction struct {
	ID        string
	PlayerID  string
	Player    protocol.Player
	Requested protocol.Minor
	// Observed is the amount the cashier saw in the bank, or the adjusted
	// amount once an adjustment was sent.
	Observed protocol.Minor
	// Minimum is the minimum deposit in force when the amount was checked.
	Minimum protocol.Minor
	Payment protocol.PaymentDetails
	State   State
	// RejectOnly is set when the observed amount is below the minimum:
	// confirmation is unreachable for this verification.
	RejectOnly bool
	// Adjusted is set once the service acknowledged an adjustment.
	Adjusted  bool
	UpdatedAt time.Time
}

// PlayerName returns the player's display name.
func (t Transaction) PlayerName() string {
	return t.Player.DisplayName(t.PlayerID)
}
