package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodial-tipbot/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the command audit collection in MongoDB
	AuditCollectionName = "command_audit"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique command id index and the lookup indexes
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "command_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

// Create stores a new audit entry.
// Returns ErrDuplicateEntry if an entry with the same command ID exists.
func (r *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return audit.ErrDuplicateEntry{CommandID: entry.CommandID}
		}
		r.logger.Error("Failed to create audit entry",
			"command_id", entry.CommandID,
			"error", err)
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// GetByCommandID retrieves an audit entry by its command ID.
// Returns ErrEntryNotFound if no entry exists.
func (r *AuditRepository) GetByCommandID(ctx context.Context, commandID uint64) (*audit.Entry, error) {
	entry, err := r.findOne(ctx, bson.M{"command_id": commandID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, audit.ErrEntryNotFound{CommandID: commandID}
		}
		r.logger.Error("Failed to get audit entry",
			"command_id", commandID,
			"error", err)
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// GetByEventID returns the entry recorded for a platform event, or nil if the event
// was never audited
func (r *AuditRepository) GetByEventID(ctx context.Context, eventID string) (*audit.Entry, error) {
	if eventID == "" {
		return nil, errors.New("event id cannot be empty")
	}

	entry, err := r.findOne(ctx, bson.M{"event_id": eventID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get audit entry by event id",
			"event_id", eventID,
			"error", err)
		return nil, fmt.Errorf("failed to get audit entry by event id: %w", err)
	}
	return entry, nil
}

func (r *AuditRepository) findOne(ctx context.Context, filter bson.M) (*audit.Entry, error) {
	var entry audit.Entry
	if err := r.db.Collection(AuditCollectionName).FindOne(ctx, filter).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByAuthor retrieves paginated entries for an author, newest first
func (r *AuditRepository) GetByAuthor(ctx context.Context, author string, limit, offset int) ([]*audit.Entry, error) {
	entries, err := r.find(ctx, bson.M{"author": author}, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get audit entries",
			"author", author,
			"error", err)
		return nil, err
	}
	return entries, nil
}

// CountByAuthor counts the total number of audit entries for an author
func (r *AuditRepository) CountByAuthor(ctx context.Context, author string) (int64, error) {
	collection := r.db.Collection(AuditCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"author": author})
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"author", author,
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// UpdateOutcome records how the command finished and stamps processed_at.
// Returns ErrEntryNotFound if the entry doesn't exist.
func (r *AuditRepository) UpdateOutcome(ctx context.Context, commandID uint64, outcome audit.Outcome, detail string) error {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"command_id": commandID}
	update := bson.M{
		"$set": bson.M{
			"outcome":      outcome,
			"detail":       detail,
			"processed_at": time.Now().UTC(),
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update audit outcome",
			"command_id", commandID,
			"outcome", string(outcome),
			"error", err)
		return fmt.Errorf("failed to update audit outcome: %w", err)
	}

	if result.MatchedCount == 0 {
		return audit.ErrEntryNotFound{CommandID: commandID}
	}

	return nil
}

// GetByTimeRange retrieves paginated entries created within the window, newest first
func (r *AuditRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*audit.Entry, error) {
	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	entries, err := r.find(ctx, filter, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get audit entries by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, err
	}
	return entries, nil
}

func (r *AuditRepository) find(ctx context.Context, filter bson.M, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*audit.Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}

var _ audit.Repository = (*AuditRepository)(nil)
