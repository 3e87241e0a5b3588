package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qtbridge/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type pairRepository struct {
	collection *mongo.Collection
}

// NewPairRepository 创建配对仓储实例
func NewPairRepository(db *mongo.Database) PairRepository {
	return &pairRepository{
		collection: db.Collection("forward_pairs"),
	}
}

// Create 创建配对
func (r *pairRepository) Create(ctx context.Context, pair *models.ForwardPair) error {
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = time.Now()
	}
	result, err := r.collection.InsertOne(ctx, pair)
	if err != nil {
		return fmt.Errorf("failed to create forward pair: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		pair.ID = oid
	}
	return nil
}

// Delete 删除配对
func (r *pairRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete forward pair: %w", err)
	}
	return nil
}

// UpdateFlags 更新行为开关
func (r *pairRepository) UpdateFlags(ctx context.Context, id primitive.ObjectID, flags int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"flags": flags}},
	)
	if err != nil {
		return fmt.Errorf("failed to update pair flags: %w", err)
	}
	return nil
}

// ListByInstance 列出某实例的所有配对
func (r *pairRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*models.ForwardPair, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"instance_id": instanceID})
	if err != nil {
		return nil, fmt.Errorf("failed to query forward pairs: %w", err)
	}
	defer cursor.Close(ctx)

	var pairs []*models.ForwardPair
	if err := cursor.All(ctx, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode forward pairs: %w", err)
	}
	return pairs, nil
}

// EnsureIndexes 确保索引存在
func (r *pairRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// 一个 QQ 会话在一个实例里最多绑一个配对
		{
			Keys: bson.D{
				{Key: "instance_id", Value: 1},
				{Key: "qq_room_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		// API key 查询
		{
			Keys:    bson.D{{Key: "api_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// Telegram 侧查询
		{
			Keys: bson.D{
				{Key: "instance_id", Value: 1},
				{Key: "tg_chat_id", Value: 1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes for forward_pairs: %w", err)
	}
	return nil
}

func mapNotFound(err error, wrap string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", wrap, err)
}
