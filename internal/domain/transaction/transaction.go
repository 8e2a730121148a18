package transaction

import (
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes peer tips from withdrawals to external addresses
type Kind string

const (
	KindTip      Kind = "TIP"
	KindWithdraw Kind = "WITHDRAW"
)

// State is the position of a transaction in its lifecycle:
// CREATED -> VALIDATED -> SUBMITTED -> CONFIRMED | REJECTED | UNCONFIRMED
type State string

const (
	StateCreated     State = "CREATED"
	StateValidated   State = "VALIDATED"
	StateSubmitted   State = "SUBMITTED"
	StateConfirmed   State = "CONFIRMED"
	StateRejected    State = "REJECTED"
	StateUnconfirmed State = "UNCONFIRMED"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected || s == StateUnconfirmed
}

var ErrInvalidTransition = errors.New("invalid transaction state transition")

// Origin identifies the platform event that requested a transaction
type Origin struct {
	EventID   string `json:"event_id"`
	EventKind string `json:"event_kind"`
	Author    string `json:"author"`
}

// Transaction is a transfer from a custodial wallet to another wallet or an external address
type Transaction struct {
	ID               uint64     `json:"id"`
	Kind             Kind       `json:"kind"`
	SenderID         uint64     `json:"sender_id"`
	SenderIdentity   string     `json:"sender_identity"`
	ReceiverID       uint64     `json:"receiver_id,omitempty"`
	ReceiverIdentity string     `json:"receiver_identity,omitempty"`
	Destination      string     `json:"destination"`
	Amount           int64      `json:"amount"` // micro-units
	Fee              int64      `json:"fee"`    // micro-units
	Note             string     `json:"note,omitempty"`
	Anonymous        bool       `json:"anonymous,omitempty"`
	CloseAccount     bool       `json:"close_account,omitempty"`
	ChainTxID        string     `json:"chain_tx_id,omitempty"`
	State            State      `json:"state"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	Origin           Origin     `json:"origin"`
	CreatedAt        time.Time  `json:"created_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedRound   uint64     `json:"confirmed_round,omitempty"`
}

// New creates a transaction in the CREATED state
func New(kind Kind, senderID uint64, senderIdentity string, amount int64, note string, origin Origin) *Transaction {
	return &Transaction{
		Kind:           kind,
		SenderID:       senderID,
		SenderIdentity: senderIdentity,
		Amount:         amount,
		Note:           note,
		State:          StateCreated,
		Origin:         origin,
		CreatedAt:      time.Now().UTC(),
	}
}

func (t *Transaction) transition(from, to State) error {
	if t.State != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, t.State)
	}
	t.State = to
	return nil
}

// MarkValidated records that every business rule passed
func (t *Transaction) MarkValidated() error {
	return t.transition(StateCreated, StateValidated)
}

// MarkSubmitted records the chain accepting the signed transaction
func (t *Transaction) MarkSubmitted(chainTxID string, at time.Time) error {
	if chainTxID == "" {
		return errors.New("chain transaction id cannot be empty")
	}
	if err := t.transition(StateValidated, StateSubmitted); err != nil {
		return err
	}
	t.ChainTxID = chainTxID
	at = at.UTC()
	t.SubmittedAt = &at
	return nil
}

// MarkConfirmed records inclusion in a block
func (t *Transaction) MarkConfirmed(round uint64, at time.Time) error {
	if err := t.transition(StateSubmitted, StateConfirmed); err != nil {
		return err
	}
	t.ConfirmedRound = round
	at = at.UTC()
	t.ConfirmedAt = &at
	return nil
}

// MarkRejected records a chain-side rejection after submission
func (t *Transaction) MarkRejected(reason string) error {
	if err := t.transition(StateSubmitted, StateRejected); err != nil {
		return err
	}
	t.FailureReason = reason
	return nil
}

// MarkUnconfirmed gives up on tracking a submitted transaction
func (t *Transaction) MarkUnconfirmed() error {
	if err := t.transition(StateSubmitted, StateUnconfirmed); err != nil {
		return err
	}
	t.FailureReason = "confirmation not observed"
	return nil
}

// Total is the amount leaving the sender's wallet
func (t *Transaction) Total() int64 {
	return t.Amount + t.Fee
}
