package outbox

import (
	"encoding/json"
	"time"

	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/google/uuid"
)

// Message stores an outbound notification until it is published to the platform bridge
type Message struct {
	ID             int64               `json:"id"`
	NotificationID uuid.UUID           `json:"notification_id"`
	Recipient      string              `json:"recipient"`
	Payload        json.RawMessage     `json:"payload"`
	Status         shared.OutboxStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAttemptAt  *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(n *shared.Notification) (*Message, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}

	return &Message{
		NotificationID: n.ID,
		Recipient:      n.Recipient,
		Payload:        payload,
		Status:         shared.OutboxStatusPending,
		Attempts:       0,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetNotification extracts the notification from the payload
func (m *Message) GetNotification() (*shared.Notification, error) {
	var n shared.Notification
	if err := json.Unmarshal(m.Payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
