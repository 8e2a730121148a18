package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestNotificationProducer_Publish(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	topic := "test-notifications"
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &NotificationProducer{
			logger: logger,
			writer: mockWriter,
			topic:  topic,
		}

		value := &shared.Notification{
			ID:        uuid.New(),
			Kind:      shared.NotificationDirect,
			Recipient: "bob",
			Subject:   "Tip received",
			Body:      "You received 1 unit",
			Timestamp: time.Now().UTC(),
		}
		expectedJSONValue, _ := json.Marshal(value)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			return string(msg.Key) == "bob" && string(msg.Value) == string(expectedJSONValue)
		})).Return(nil).Once()

		err := producer.Publish(ctx, "bob", value)
		require.NoError(t, err)
		mockWriter.AssertExpectations(t)
	})

	t.Run("PublishReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &NotificationProducer{
			logger: logger,
			writer: mockWriter,
			topic:  topic,
		}

		writerError := errors.New("kafka write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.Publish(ctx, "alice", map[string]string{"body": "hi"})
		require.Error(t, err)
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})

	t.Run("UnmarshalableValue", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &NotificationProducer{logger: logger, writer: mockWriter, topic: topic}

		err := producer.Publish(ctx, "alice", make(chan int))
		require.Error(t, err)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestNotificationProducer_Close(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	topic := "test-notifications-close"

	t.Run("SuccessfulClose", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &NotificationProducer{
			logger: logger,
			writer: mockWriter,
			topic:  topic,
		}
		mockWriter.On("Close").Return(nil).Once()

		err := producer.Close()
		require.NoError(t, err)
		mockWriter.AssertExpectations(t)
	})

	t.Run("CloseReturnsErrorOnWriterCloseError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &NotificationProducer{
			logger: logger,
			writer: mockWriter,
			topic:  topic,
		}
		closeError := errors.New("kafka close error")
		mockWriter.On("Close").Return(closeError).Once()

		err := producer.Close()
		require.Error(t, err)
		assert.True(t, errors.Is(err, closeError) || strings.Contains(err.Error(), closeError.Error()))
		mockWriter.AssertExpectations(t)
	})
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, splitBrokers("k1:9092,k2:9092"))
}

// Verify interface implementation
var _ KafkaWriter = (*MockKafkaWriter)(nil)
var _ MessagePublisher = (*NotificationProducer)(nil)
var _ DeadLetterPublisher = (*DLQProducer)(nil)
