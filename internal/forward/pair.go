package forward

import (
	"context"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
)

// Pair 一个在线的转发配对：持久记录加上已解析的 QQ 会话句柄
type Pair struct {
	DBID       primitive.ObjectID
	InstanceID int64
	QQ         qq.Chat
	TGChatID   int64
	APIKey     string

	flags atomic.Int64
	repo  repository.PairRepository
}

func newPair(record *models.ForwardPair, chat qq.Chat, repo repository.PairRepository) *Pair {
	p := &Pair{
		DBID:       record.ID,
		InstanceID: record.InstanceID,
		QQ:         chat,
		TGChatID:   record.TGChatID,
		APIKey:     record.APIKey,
		repo:       repo,
	}
	p.flags.Store(record.Flags)
	return p
}

// QQRoomID 带符号 room key
func (p *Pair) QQRoomID() int64 { return p.QQ.RoomID() }

// Flags 当前配对级开关
func (p *Pair) Flags() int64 { return p.flags.Load() }

// SetFlags 更新开关并持久化
func (p *Pair) SetFlags(ctx context.Context, flags int64) error {
	if err := p.repo.UpdateFlags(ctx, p.DBID, flags); err != nil {
		return err
	}
	p.flags.Store(flags)
	return nil
}

// HasFlag 配对级与实例级合并后检查某个开关
func (p *Pair) HasFlag(instanceFlags int64, flag int64) bool {
	return (p.flags.Load()|instanceFlags)&flag != 0
}
