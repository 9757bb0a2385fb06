package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

// MongoAuditSink persists structured failure records. Sink errors are
// logged, never propagated: auditing must not take down the request path.
type MongoAuditSink struct {
	collection *mongo.Collection
	logger     zerolog.Logger
}

// NewMongoAuditSink creates an audit sink writing to audit_events.
func NewMongoAuditSink(db *mongo.Database, logger zerolog.Logger) ports.AuditSink {
	return &MongoAuditSink{
		collection: db.Collection("audit_events"),
		logger:     logger,
	}
}

// Record stores one audit record, stamping it if the caller did not.
func (s *MongoAuditSink) Record(ctx context.Context, record *domain.AuditRecord) error {
	if record.At.IsZero() {
		record.At = time.Now()
	}
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("kind", record.Kind).Msg("Failed to write audit record")
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
