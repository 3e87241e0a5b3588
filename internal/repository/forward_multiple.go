package repository

import (
	"context"
	"fmt"
	"time"

	"qtbridge/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type forwardMultipleRepository struct {
	collection *mongo.Collection
}

// NewForwardMultipleRepository 创建合并转发句柄仓储实例
func NewForwardMultipleRepository(db *mongo.Database) ForwardMultipleRepository {
	return &forwardMultipleRepository{
		collection: db.Collection("forward_multiple"),
	}
}

// Create 登记一个资源句柄
func (r *forwardMultipleRepository) Create(ctx context.Context, record *models.ForwardMultiple) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to create forward multiple record: %w", err)
	}
	return nil
}

// GetByUUID 按 UUID 查句柄
func (r *forwardMultipleRepository) GetByUUID(ctx context.Context, uuid string) (*models.ForwardMultiple, error) {
	var record models.ForwardMultiple
	err := r.collection.FindOne(ctx, bson.M{"uuid": uuid}).Decode(&record)
	if err != nil {
		return nil, mapNotFound(err, "failed to query forward multiple record")
	}
	return &record, nil
}

// EnsureIndexes 确保索引存在
func (r *forwardMultipleRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uuid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes for forward_multiple: %w", err)
	}
	return nil
}
