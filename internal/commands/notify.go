package commands

import (
	"context"
	"sync"
	"time"

	"qtbridge/internal/logger"
	"qtbridge/internal/telegram"
)

// OperatorNotifier 运维者通知出口
// 转发引擎出错时给运维者的私聊发一条告警，限频每分钟一条，
// 多余的告警只进日志
type OperatorNotifier struct {
	tg      *telegram.Bot
	ownerID int64

	mu       sync.Mutex
	lastSent time.Time
}

// NewOperatorNotifier 创建限频通知器
func NewOperatorNotifier(tg *telegram.Bot, ownerID int64) *OperatorNotifier {
	return &OperatorNotifier{tg: tg, ownerID: ownerID}
}

// Notify 发送告警，触发限频时静默丢弃（日志仍然有完整记录）
func (n *OperatorNotifier) Notify(ctx context.Context, text string) {
	if n.ownerID == 0 {
		return
	}

	n.mu.Lock()
	if time.Since(n.lastSent) < time.Minute {
		n.mu.Unlock()
		return
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	if _, err := n.tg.SendText(ctx, n.ownerID, "⚠️ "+text, nil); err != nil {
		logger.L().Warnf("Failed to notify operator: %v", err)
	}
}
