package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SystemNick 系统合成消息在账本里的发送者昵称
const SystemNick = "系统"

// Message 消息身份账本：一条记录关联一条 QQ 消息和它在 Telegram 侧的镜像
// QQ 侧身份是 (seq, rand, pktnum, time) 四元组，Telegram 侧是 (chat_id, msg_id)
// 记录以追加为主，只有后续命令需要补远端 ID 时才更新
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	InstanceID int64              `bson:"instance_id"`

	// QQ 侧身份
	QQRoomID   int64  `bson:"qq_room_id"`  // 带符号 room key
	QQSenderID int64  `bson:"qq_sender_id"`
	Seq        int64  `bson:"seq"`
	Rand       int64  `bson:"rand"`
	Pktnum     int64  `bson:"pktnum"`
	Time       int64  `bson:"time"`
	Brief      string `bson:"brief,omitempty"` // 纯文本摘要
	Nick       string `bson:"nick,omitempty"`  // 发送者显示名

	// Telegram 侧身份
	TGChatID      int64  `bson:"tg_chat_id"`
	TGMsgID       int    `bson:"tg_msg_id"`
	TGSenderID    int64  `bson:"tg_sender_id,omitempty"`
	TGMessageText string `bson:"tg_message_text,omitempty"`
	TGFileID      string `bson:"tg_file_id,omitempty"`

	RichHeaderUsed bool      `bson:"rich_header_used,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}
