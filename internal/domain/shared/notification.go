package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidNotificationKind = errors.New("invalid notification kind")
	ErrEmptyNotificationBody   = errors.New("notification body cannot be empty")
)

// Notification defines the Kafka message asking the platform bridge to post text
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	Kind          NotificationKind `json:"kind"`
	EventID       string           `json:"event_id,omitempty"`   // set for replies
	EventKind     string           `json:"event_kind,omitempty"` // comment or message, set for replies
	Recipient     string           `json:"recipient"`
	Subject       string           `json:"subject,omitempty"`
	Body          string           `json:"body"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Validate checks the fields the bridge needs to deliver the notification
func (n *Notification) Validate() error {
	switch n.Kind {
	case NotificationReply:
		if n.EventID == "" {
			return errors.New("reply notification requires an event id")
		}
	case NotificationDirect:
		if n.Recipient == "" {
			return errors.New("direct notification requires a recipient")
		}
	default:
		return ErrInvalidNotificationKind
	}
	if n.Body == "" {
		return ErrEmptyNotificationBody
	}
	return nil
}
