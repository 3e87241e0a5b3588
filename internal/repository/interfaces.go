package repository

import (
	"context"
	"errors"

	"qtbridge/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound 查询无结果
var ErrNotFound = errors.New("record not found")

// PairRepository 转发配对数据访问接口
type PairRepository interface {
	// Create 创建配对
	Create(ctx context.Context, pair *models.ForwardPair) error

	// Delete 删除配对
	Delete(ctx context.Context, id primitive.ObjectID) error

	// UpdateFlags 更新行为开关
	UpdateFlags(ctx context.Context, id primitive.ObjectID, flags int64) error

	// ListByInstance 列出某实例的所有配对
	ListByInstance(ctx context.Context, instanceID int64) ([]*models.ForwardPair, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// MessageRepository 消息账本数据访问接口
type MessageRepository interface {
	// Create 追加一条账本记录
	Create(ctx context.Context, msg *models.Message) error

	// FindByQQTuple 按 QQ 侧身份查最早一条匹配记录
	// 同时是私聊去重探针：探到即说明这条消息已经处理过
	FindByQQTuple(ctx context.Context, instanceID int64, qqRoomID int64, qqSenderID int64, seq int64, rand int64, pktnum int64, time int64) (*models.Message, error)

	// FindByQQSeq 只按会话和 seq 查（撤回、回复解析用）
	FindByQQSeq(ctx context.Context, instanceID int64, qqRoomID int64, seq int64) (*models.Message, error)

	// FindByTGMessage 按 Telegram 侧身份查
	FindByTGMessage(ctx context.Context, instanceID int64, tgChatID int64, tgMsgID int) (*models.Message, error)

	// UpdateTGInfo 补写 Telegram 侧信息
	UpdateTGInfo(ctx context.Context, id primitive.ObjectID, tgMsgID int, text string, fileID string) error

	// UpdateQQInfo 改写 QQ 侧身份，编辑重发后镜像换了 seq 但账本行不换
	UpdateQQInfo(ctx context.Context, id primitive.ObjectID, seq int64, rand int64, msgTime int64, brief string) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// ForwardMultipleRepository 合并转发资源句柄数据访问接口
type ForwardMultipleRepository interface {
	// Create 登记一个资源句柄
	Create(ctx context.Context, record *models.ForwardMultiple) error

	// GetByUUID 按 UUID 查句柄
	GetByUUID(ctx context.Context, uuid string) (*models.ForwardMultiple, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
