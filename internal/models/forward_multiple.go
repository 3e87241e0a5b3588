package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ForwardMultiple 合并转发资源句柄
// UUID 由我们签发并放进链接卡片，查看器用它换回平台资源 ID
type ForwardMultiple struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UUID       string             `bson:"uuid"`
	FromPairID primitive.ObjectID `bson:"from_pair_id"`
	ResID      string             `bson:"res_id"`
	FileName   string             `bson:"file_name,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}
