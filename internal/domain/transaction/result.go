package transaction

// RejectionReason names the business rule a request failed
type RejectionReason string

const (
	ReasonZeroAmount               RejectionReason = "ZERO_AMOUNT"
	ReasonInsufficientFunds        RejectionReason = "INSUFFICIENT_FUNDS"
	ReasonBelowFirstContactMinimum RejectionReason = "BELOW_FIRST_CONTACT_MINIMUM"
)

// Rejection describes why a request never reached the chain. Amounts are micro-units.
type Rejection struct {
	Reason    RejectionReason
	Amount    int64 // what was asked for
	Required  int64 // what the rule needed
	Available int64 // what the wallet holds
}

// Result is the outcome of preparing a transaction: exactly one field is set
type Result struct {
	Submitted *Transaction
	Rejection *Rejection
}

// Submitted wraps a transaction that was handed to the chain
func Submitted(tx *Transaction) Result {
	return Result{Submitted: tx}
}

// Rejected wraps a business rule failure
func Rejected(r Rejection) Result {
	return Result{Rejection: &r}
}

// IsRejected reports whether the request failed a business rule
func (r Result) IsRejected() bool {
	return r.Rejection != nil
}
