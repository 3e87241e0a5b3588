package repository

import (
	"context"
	"fmt"
	"time"

	"qtbridge/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepository struct {
	collection *mongo.Collection
}

// NewMessageRepository 创建消息账本仓储实例
func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		collection: db.Collection("messages"),
	}
}

// Create 追加一条账本记录
func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to create message record: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// FindByQQTuple 按 QQ 侧完整身份查最早一条匹配记录
func (r *messageRepository) FindByQQTuple(ctx context.Context, instanceID int64, qqRoomID int64, qqSenderID int64, seq int64, rand int64, pktnum int64, msgTime int64) (*models.Message, error) {
	filter := bson.M{
		"instance_id":  instanceID,
		"qq_room_id":   qqRoomID,
		"qq_sender_id": qqSenderID,
		"seq":          seq,
		"rand":         rand,
		"pktnum":       pktnum,
		"time":         msgTime,
	}
	var msg models.Message
	err := r.collection.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		return nil, mapNotFound(err, "failed to query message by tuple")
	}
	return &msg, nil
}

// FindByQQSeq 只按会话和 seq 查
func (r *messageRepository) FindByQQSeq(ctx context.Context, instanceID int64, qqRoomID int64, seq int64) (*models.Message, error) {
	filter := bson.M{
		"instance_id": instanceID,
		"qq_room_id":  qqRoomID,
		"seq":         seq,
	}
	var msg models.Message
	err := r.collection.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		return nil, mapNotFound(err, "failed to query message by seq")
	}
	return &msg, nil
}

// FindByTGMessage 按 Telegram 侧身份查
func (r *messageRepository) FindByTGMessage(ctx context.Context, instanceID int64, tgChatID int64, tgMsgID int) (*models.Message, error) {
	filter := bson.M{
		"instance_id": instanceID,
		"tg_chat_id":  tgChatID,
		"tg_msg_id":   tgMsgID,
	}
	var msg models.Message
	err := r.collection.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		return nil, mapNotFound(err, "failed to query message by tg id")
	}
	return &msg, nil
}

// UpdateTGInfo 补写 Telegram 侧信息
func (r *messageRepository) UpdateTGInfo(ctx context.Context, id primitive.ObjectID, tgMsgID int, text string, fileID string) error {
	update := bson.M{"tg_msg_id": tgMsgID}
	if text != "" {
		update["tg_message_text"] = text
	}
	if fileID != "" {
		update["tg_file_id"] = fileID
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("failed to update message tg info: %w", err)
	}
	return nil
}

// UpdateQQInfo 改写 QQ 侧身份
func (r *messageRepository) UpdateQQInfo(ctx context.Context, id primitive.ObjectID, seq int64, rand int64, msgTime int64, brief string) error {
	update := bson.M{
		"seq":   seq,
		"rand":  rand,
		"time":  msgTime,
		"brief": brief,
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("failed to update message qq info: %w", err)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// QQ 侧查询（去重探针、撤回、回复解析）
		{
			Keys: bson.D{
				{Key: "instance_id", Value: 1},
				{Key: "qq_room_id", Value: 1},
				{Key: "seq", Value: 1},
			},
		},
		// Telegram 侧查询
		{
			Keys: bson.D{
				{Key: "instance_id", Value: 1},
				{Key: "tg_chat_id", Value: 1},
				{Key: "tg_msg_id", Value: 1},
			},
		},
		// 账本只保留 30 天
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 3600),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes for messages: %w", err)
	}
	return nil
}
