package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const auditNamespace = "test." + AuditCollectionName

func newMockTest(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock).DatabaseName("test"))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func entryDoc(commandID int64, eventID, author string, outcome audit.Outcome) bson.D {
	return bson.D{
		{Key: "command_id", Value: commandID},
		{Key: "event_id", Value: eventID},
		{Key: "event_kind", Value: "message"},
		{Key: "author", Value: author},
		{Key: "body", Value: "tip 1 bob"},
		{Key: "outcome", Value: string(outcome)},
		{Key: "created_at", Value: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
}

func TestNewAuditRepository(t *testing.T) {
	mt := newMockTest(t)
	mt.Run("constructs", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		assert.NotNil(t, repo)
	})
}

func TestAuditRepository_Create(t *testing.T) {
	mt := newMockTest(t)
	entry := &audit.Entry{
		CommandID: 7,
		EventID:   "t4_m1",
		EventKind: "message",
		Author:    "alice",
		Body:      "tip 1 bob",
		Outcome:   audit.OutcomeReceived,
		CreatedAt: time.Now().UTC(),
	}

	mt.Run("successful creation", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.Create(context.Background(), entry))
	})

	mt.Run("duplicate entry", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Create(context.Background(), entry)
		assert.ErrorIs(mt, err, audit.ErrDuplicateEntry{CommandID: 7})
	})

	mt.Run("database error", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
		}))

		err := repo.Create(context.Background(), entry)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to create audit entry")
	})
}

func TestAuditRepository_GetByCommandID(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("entry found", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch,
			entryDoc(7, "t4_m1", "alice", audit.OutcomeExecuted)))

		entry, err := repo.GetByCommandID(context.Background(), 7)
		require.NoError(mt, err)
		assert.Equal(mt, uint64(7), entry.CommandID)
		assert.Equal(mt, "alice", entry.Author)
		assert.Equal(mt, audit.OutcomeExecuted, entry.Outcome)
	})

	mt.Run("entry not found", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch))

		entry, err := repo.GetByCommandID(context.Background(), 9)
		assert.ErrorIs(mt, err, audit.ErrEntryNotFound{CommandID: 9})
		assert.Nil(mt, entry)
	})
}

func TestAuditRepository_GetByEventID(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("entry found", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch,
			entryDoc(3, "t1_c1", "bob", audit.OutcomeRetrying)))

		entry, err := repo.GetByEventID(context.Background(), "t1_c1")
		require.NoError(mt, err)
		require.NotNil(mt, entry)
		assert.Equal(mt, uint64(3), entry.CommandID)
	})

	mt.Run("never audited", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch))

		entry, err := repo.GetByEventID(context.Background(), "t1_new")
		require.NoError(mt, err)
		assert.Nil(mt, entry)
	})

	mt.Run("empty event id", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		_, err := repo.GetByEventID(context.Background(), "")
		assert.Error(mt, err)
	})
}

func TestAuditRepository_GetByAuthor(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("returns page", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		first := mtest.CreateCursorResponse(1, auditNamespace, mtest.FirstBatch,
			entryDoc(2, "t4_m2", "alice", audit.OutcomeRejected))
		second := mtest.CreateCursorResponse(0, auditNamespace, mtest.NextBatch,
			entryDoc(1, "t4_m1", "alice", audit.OutcomeExecuted))
		mt.AddMockResponses(first, second)

		entries, err := repo.GetByAuthor(context.Background(), "alice", 10, 0)
		require.NoError(mt, err)
		require.Len(mt, entries, 2)
		assert.Equal(mt, uint64(2), entries[0].CommandID)
		assert.Equal(mt, audit.OutcomeRejected, entries[0].Outcome)
	})

	mt.Run("no entries", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch))

		entries, err := repo.GetByAuthor(context.Background(), "nobody", 10, 0)
		require.NoError(mt, err)
		assert.Empty(mt, entries)
	})
}

func TestAuditRepository_CountByAuthor(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("counts", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(4)}}))

		n, err := repo.CountByAuthor(context.Background(), "alice")
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), n)
	})
}

func TestAuditRepository_UpdateOutcome(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("successful update", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.UpdateOutcome(context.Background(), 7, audit.OutcomeExecuted, "tip 1")
		require.NoError(mt, err)
	})

	mt.Run("entry not found", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.UpdateOutcome(context.Background(), 8, audit.OutcomeFailed, "boom")
		assert.ErrorIs(mt, err, audit.ErrEntryNotFound{CommandID: 8})
	})
}

func TestAuditRepository_GetByTimeRange(t *testing.T) {
	mt := newMockTest(t)

	mt.Run("returns entries in window", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, auditNamespace, mtest.FirstBatch,
			entryDoc(5, "t4_m5", "carol", audit.OutcomeAbandoned)))

		end := time.Now()
		entries, err := repo.GetByTimeRange(context.Background(), end.Add(-24*time.Hour), end, 50, 0)
		require.NoError(mt, err)
		require.Len(mt, entries, 1)
		assert.Equal(mt, "carol", entries[0].Author)
	})

	mt.Run("query error", func(mt *mtest.T) {
		repo := NewAuditRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 96, Message: "sort exceeded memory"}))

		_, err := repo.GetByTimeRange(context.Background(), time.Time{}, time.Now(), 50, 0)
		assert.Error(mt, err)
	})
}
