package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		n := &shared.Notification{
			ID:        uuid.New(),
			Kind:      shared.NotificationDirect,
			Recipient: "bob",
			Subject:   "Tip received",
			Body:      "You received 5 units",
			Timestamp: time.Now().Add(-time.Minute),
		}

		beforeCreation := time.Now()
		msg, err := NewMessage(n)
		afterCreation := time.Now()

		require.NoError(t, err)
		require.NotNil(t, msg)

		assert.Equal(t, n.ID, msg.NotificationID)
		assert.Equal(t, "bob", msg.Recipient)
		assert.Equal(t, shared.OutboxStatusPending, msg.Status)
		assert.Equal(t, 0, msg.Attempts)
		assert.Nil(t, msg.LastAttemptAt)
		assert.WithinDuration(t, beforeCreation, msg.CreatedAt, afterCreation.Sub(beforeCreation)+time.Millisecond)

		var decoded shared.Notification
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, n.Body, decoded.Body)
	})

	t.Run("InvalidNotification", func(t *testing.T) {
		msg, err := NewMessage(&shared.Notification{Kind: shared.NotificationDirect, Recipient: "bob"})
		assert.ErrorIs(t, err, shared.ErrEmptyNotificationBody)
		assert.Nil(t, msg)
	})
}

func TestMessage_StatusTransitions(t *testing.T) {
	t.Run("IncrementAttempts", func(t *testing.T) {
		initialTime := time.Now().Add(-time.Hour)
		msg := &Message{Attempts: 1, LastAttemptAt: &initialTime}

		msg.IncrementAttempts()

		assert.Equal(t, 2, msg.Attempts)
		require.NotNil(t, msg.LastAttemptAt)
		assert.True(t, msg.LastAttemptAt.After(initialTime))
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsProcessed()
		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsFailed()
		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})
}

func TestMessage_GetNotification(t *testing.T) {
	t.Run("SuccessfulDecode", func(t *testing.T) {
		original := &shared.Notification{
			ID:        uuid.New(),
			Kind:      shared.NotificationReply,
			EventID:   "t1_abc",
			EventKind: "comment",
			Recipient: "alice",
			Body:      "Withdrawal confirmed",
			Timestamp: time.Now().Truncate(time.Millisecond),
		}
		payload, err := json.Marshal(original)
		require.NoError(t, err)

		decoded, err := (&Message{Payload: payload}).GetNotification()
		require.NoError(t, err)
		assert.Equal(t, original.ID, decoded.ID)
		assert.Equal(t, original.Kind, decoded.Kind)
		assert.Equal(t, original.EventID, decoded.EventID)
		assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		_, err := (&Message{Payload: json.RawMessage(`{"id":`)}).GetNotification()
		assert.Error(t, err)
	})
}
