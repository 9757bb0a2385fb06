package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/ports"
)

// MongoShopRepository implements ShopRepository using MongoDB.
type MongoShopRepository struct {
	shopsCollection    *mongo.Collection
	webhooksCollection *mongo.Collection
}

// NewMongoShopRepository creates a new MongoDB repository.
func NewMongoShopRepository(db *mongo.Database) ports.ShopRepository {
	return &MongoShopRepository{
		shopsCollection:    db.Collection("shops"),
		webhooksCollection: db.Collection("webhook_events"),
	}
}

// FindByDomain retrieves a shop by domain, nil when absent.
func (r *MongoShopRepository) FindByDomain(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var shop domain.Shop
	err := r.shopsCollection.FindOne(ctx, bson.M{"domain": shopDomain}).Decode(&shop)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// Upsert creates or replaces the shop record keyed by domain.
func (r *MongoShopRepository) Upsert(ctx context.Context, shop *domain.Shop) error {
	if shop.InstalledAt.IsZero() {
		shop.InstalledAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"domain": shop.Domain}
	update := bson.M{"$set": shop}

	if _, err := r.shopsCollection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// MarkUninstalled flags the shop inactive and stamps the uninstall time.
// The record itself is retained for audit purposes.
func (r *MongoShopRepository) MarkUninstalled(ctx context.Context, shopDomain string) error {
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"active":         false,
		"access_token":   "",
		"uninstalled_at": now,
	}}

	if _, err := r.shopsCollection.UpdateOne(ctx, bson.M{"domain": shopDomain}, update); err != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	return nil
}

// LogWebhook records a verified webhook delivery.
func (r *MongoShopRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}
	if _, err := r.webhooksCollection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}
