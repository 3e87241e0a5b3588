package commands

import (
	"context"
	"fmt"
	"time"

	botModels "github.com/go-telegram/bot/models"

	"qtbridge/internal/forward"
	"qtbridge/internal/qq"
	"qtbridge/internal/telegram"
)

// AliveCheckController 存活检查
// 只响应运维者私聊里的 "似了吗" 或 /alive，回报 QQ 侧在线状态和配对数
type AliveCheckController struct {
	client    qq.Client
	tg        *telegram.Bot
	pairs     *forward.Pairs
	startedAt time.Time
}

// NewAliveCheckController 创建处理器并订阅 Telegram 消息
func NewAliveCheckController(client qq.Client, tg *telegram.Bot, pairs *forward.Pairs) *AliveCheckController {
	a := &AliveCheckController{
		client:    client,
		tg:        tg,
		pairs:     pairs,
		startedAt: time.Now(),
	}
	tg.AddMessageHandler(a.onTGMessage)
	return a
}

func (a *AliveCheckController) onTGMessage(ctx context.Context, msg *botModels.Message) (bool, error) {
	if msg.From == nil || msg.From.ID != a.tg.OwnerID() {
		return false, nil
	}
	if msg.Chat.Type != "private" {
		return false, nil
	}
	if msg.Text != "似了吗" && msg.Text != "/alive" {
		return false, nil
	}

	online, err := a.client.IsOnline(ctx)
	status := "在线"
	if err != nil {
		status = fmt.Sprintf("状态未知 (%v)", err)
	} else if !online {
		status = "离线"
	}

	text := fmt.Sprintf("没似\nQQ (%d): %s\n配对: %d 个\n已运行: %s",
		a.client.Uin(), status, len(a.pairs.All()),
		time.Since(a.startedAt).Round(time.Second))
	_, err = a.tg.SendText(ctx, msg.Chat.ID, text, nil)
	return true, err
}
