package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ForwardPair 转发配对：一个 QQ 会话和一个 Telegram 会话的双向绑定
// QQRoomID 是带符号的 room key：正数好友 QQ 号，负数群号相反数
type ForwardPair struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	InstanceID int64              `bson:"instance_id"` // 所属实例
	QQRoomID   int64              `bson:"qq_room_id"`  // 带符号 room key
	TGChatID   int64              `bson:"tg_chat_id"`  // Telegram 会话 ID
	Flags      int64              `bson:"flags"`       // 行为开关位掩码
	APIKey     string             `bson:"api_key"`     // HTTP 查询凭证 (UUID)
	CreatedAt  time.Time          `bson:"created_at"`
}
