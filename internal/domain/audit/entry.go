package audit

import (
	"time"
)

// Outcome records how the pipeline disposed of an event
type Outcome string

const (
	OutcomeReceived  Outcome = "RECEIVED"
	OutcomeExecuted  Outcome = "EXECUTED"  // command ran; transfers were submitted
	OutcomeRejected  Outcome = "REJECTED"  // parse error or business rule failure, user was told
	OutcomeRetrying  Outcome = "RETRYING"  // ledger unavailable, re-queued
	OutcomeFailed    Outcome = "FAILED"    // unexpected error, generic reply sent
	OutcomeAbandoned Outcome = "ABANDONED" // retries exhausted, sent to the dead letter topic
)

// Entry is one processed command in the audit log
type Entry struct {
	CommandID     uint64     `json:"command_id" bson:"command_id"`
	EventID       string     `json:"event_id" bson:"event_id"`
	EventKind     string     `json:"event_kind" bson:"event_kind"`
	Author        string     `json:"author" bson:"author"`
	Body          string     `json:"body" bson:"body"`
	CorrelationID string     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Outcome       Outcome    `json:"outcome" bson:"outcome"`
	Detail        string     `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}
