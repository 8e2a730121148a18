package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/custodial-tipbot/internal/config"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/segmentio/kafka-go"
)

// KafkaReader wraps kafka.Reader methods for testing
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventSource implements event.Source over a consumer group. Offsets are only
// committed through MarkConsumed so a crash mid-cycle replays the uncommitted events.
type KafkaEventSource struct {
	reader       KafkaReader
	logger       *slog.Logger
	topic        string
	batchSize    int
	fetchTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]kafka.Message
	poison   []kafka.Message
}

func NewKafkaEventSource(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaEventSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     splitBrokers(cfg.Brokers),
		Topic:       cfg.EventsTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})
	return newKafkaEventSource(logger, reader, cfg)
}

func newKafkaEventSource(logger *slog.Logger, reader KafkaReader, cfg *config.KafkaConfig) *KafkaEventSource {
	return &KafkaEventSource{
		reader:       reader,
		logger:       logger,
		topic:        cfg.EventsTopic,
		batchSize:    cfg.FetchBatchSize,
		fetchTimeout: cfg.FetchTimeout,
		inFlight:     make(map[string]kafka.Message),
	}
}

// FetchNewEvents returns up to FetchBatchSize events, waiting at most FetchTimeout
// for them. An empty slice with a nil error means nothing arrived.
func (s *KafkaEventSource) FetchNewEvents(ctx context.Context) ([]event.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var events []event.Event
	for len(events) < s.batchSize {
		msg, err := s.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			s.logger.Error("Failed to fetch message from Kafka",
				"topic", s.topic,
				"error", err,
			)
			if len(events) > 0 {
				break
			}
			return nil, fmt.Errorf("failed to fetch events: %w", err)
		}

		s.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		ev, err := event.Decode(msg.Value)
		if err != nil {
			s.logger.Error("Skipping undecodable event",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			s.mu.Lock()
			s.poison = append(s.poison, msg)
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.inFlight[ev.EventID()] = msg
		s.mu.Unlock()
		events = append(events, ev)
	}
	return events, nil
}

// MarkConsumed commits the offsets of the given events along with any undecodable
// messages seen since the last commit
func (s *KafkaEventSource) MarkConsumed(ctx context.Context, events []event.Event) error {
	s.mu.Lock()
	msgs := make([]kafka.Message, 0, len(events)+len(s.poison))
	msgs = append(msgs, s.poison...)
	for _, ev := range events {
		if msg, ok := s.inFlight[ev.EventID()]; ok {
			msgs = append(msgs, msg)
			delete(s.inFlight, ev.EventID())
		}
	}
	s.poison = nil
	s.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
		s.logger.Error("Failed to commit consumed events",
			"topic", s.topic,
			"count", len(msgs),
			"error", err,
		)
		return fmt.Errorf("failed to commit %d messages: %w", len(msgs), err)
	}
	s.logger.Debug("Events committed successfully", "topic", s.topic, "count", len(msgs))
	return nil
}

func (s *KafkaEventSource) Close() error {
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
