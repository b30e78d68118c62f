// Package mongo provides the MongoDB implementation of the audit archive.
// Archived audit documents are write-once; the archive is the compliance
// record of every entity transition after the owning row has moved on.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/finrecon/settlement-service/internal/domain/audit"
)

const (
	// HistoryCollectionName is the name of the audit history collection
	HistoryCollectionName = "audit_history"
	// LogCollectionName is the name of the audit log collection
	LogCollectionName = "audit_logs"
)

// historyDocument is the persisted form of one audit history entry
type historyDocument struct {
	EntityType string             `bson:"entity_type"`
	EntityID   uuid.UUID          `bson:"entity_id"`
	Entry      audit.HistoryEntry `bson:"entry"`
	ArchivedAt time.Time          `bson:"archived_at"`
}

type logDocument struct {
	EntityType string         `bson:"entity_type"`
	EntityID   uuid.UUID      `bson:"entity_id"`
	Entry      audit.LogEntry `bson:"entry"`
	ArchivedAt time.Time      `bson:"archived_at"`
}

// AuditRepository implements the audit.Archive interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit archive
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Archive {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// AppendHistory archives history entries for an entity. Entries already
// archived under the same (entity, entry ID) pair are left untouched, so
// re-archiving after a partial failure is safe.
func (r *AuditRepository) AppendHistory(ctx context.Context, entityType string, entityID uuid.UUID, entries []audit.HistoryEntry) error {
	collection := r.db.Collection(HistoryCollectionName)
	now := time.Now().UTC()

	for _, entry := range entries {
		filter := bson.M{
			"entity_type": entityType,
			"entity_id":   entityID,
			"entry.id":    entry.ID,
		}
		update := bson.M{
			"$setOnInsert": historyDocument{
				EntityType: entityType,
				EntityID:   entityID,
				Entry:      entry,
				ArchivedAt: now,
			},
		}

		_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			r.logger.Error("Failed to archive audit history entry",
				"entity_type", entityType,
				"entity_id", entityID.String(),
				"entry_id", entry.ID,
				"error", err)
			return fmt.Errorf("failed to archive audit history entry: %w", err)
		}
	}

	return nil
}

// AppendLogs archives operational log entries for an entity with the same
// idempotency guarantee as AppendHistory
func (r *AuditRepository) AppendLogs(ctx context.Context, entityType string, entityID uuid.UUID, entries []audit.LogEntry) error {
	collection := r.db.Collection(LogCollectionName)
	now := time.Now().UTC()

	for _, entry := range entries {
		filter := bson.M{
			"entity_type": entityType,
			"entity_id":   entityID,
			"entry.id":    entry.ID,
		}
		update := bson.M{
			"$setOnInsert": logDocument{
				EntityType: entityType,
				EntityID:   entityID,
				Entry:      entry,
				ArchivedAt: now,
			},
		}

		_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			r.logger.Error("Failed to archive audit log entry",
				"entity_type", entityType,
				"entity_id", entityID.String(),
				"entry_id", entry.ID,
				"error", err)
			return fmt.Errorf("failed to archive audit log entry: %w", err)
		}
	}

	return nil
}

// HistoryForEntity retrieves paginated archived history for an entity in
// canonical audit order
func (r *AuditRepository) HistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]audit.HistoryEntry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"entity_type": entityType, "entity_id": entityID}
	opts := options.Find().
		SetSort(bson.D{{Key: "entry.timestamp", Value: 1}, {Key: "entry.id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived audit history",
			"entity_type", entityType,
			"entity_id", entityID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived audit history: %w", err)
	}
	defer cursor.Close(ctx)

	var documents []historyDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode archived audit history: %w", err)
	}

	if len(documents) == 0 && offset == 0 {
		return nil, audit.ErrEntityNotArchived{EntityType: entityType, EntityID: entityID}
	}

	entries := make([]audit.HistoryEntry, 0, len(documents))
	for _, doc := range documents {
		entries = append(entries, doc.Entry)
	}
	return entries, nil
}

// LogsForEntity retrieves paginated archived operational logs for an entity
func (r *AuditRepository) LogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]audit.LogEntry, error) {
	collection := r.db.Collection(LogCollectionName)

	filter := bson.M{"entity_type": entityType, "entity_id": entityID}
	opts := options.Find().
		SetSort(bson.D{{Key: "entry.timestamp", Value: 1}, {Key: "entry.id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived audit logs",
			"entity_type", entityType,
			"entity_id", entityID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var documents []logDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode archived audit logs: %w", err)
	}

	if len(documents) == 0 && offset == 0 {
		return nil, audit.ErrEntityNotArchived{EntityType: entityType, EntityID: entityID}
	}

	entries := make([]audit.LogEntry, 0, len(documents))
	for _, doc := range documents {
		entries = append(entries, doc.Entry)
	}
	return entries, nil
}
