package chain

import "errors"

// ErrLedgerUnavailable wraps every transport-level failure talking to the node.
// Callers treat it as retryable.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// ErrInvalidAddress is returned for destinations the chain cannot decode
var ErrInvalidAddress = errors.New("invalid chain address")

// StatusKind is the confirmation state of a submitted transaction
type StatusKind int

const (
	StatusPending StatusKind = iota
	StatusConfirmed
	StatusRejected
)

func (k StatusKind) String() string {
	switch k {
	case StatusConfirmed:
		return "confirmed"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Status is what the node reports for a chain transaction id
type Status struct {
	Kind   StatusKind
	Round  uint64 // set when confirmed
	Reason string // set when rejected
}

// Transfer is a payment to sign and submit. Amount and Fee are micro-units.
type Transfer struct {
	FromAddress  string
	SealedKey    []byte
	To           string
	Amount       int64
	Fee          int64
	Note         string
	CloseAccount bool // send the remaining balance to To and close the sender
}
