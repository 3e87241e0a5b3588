package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	botModels "github.com/go-telegram/bot/models"

	"qtbridge/internal/logger"
	"qtbridge/internal/qq"
	"qtbridge/internal/telegram"
)

// 平台申请审批
// 好友申请和入群邀请都带着一个不透明的审批凭证，这里把它们编号后
// 转到运维者私聊，运维者回复 /approve <编号> 或 /deny <编号> 裁决。
// 凭证只在内存里保存，重启后未裁决的申请要等平台重推。

type pendingRequest struct {
	summary string
	approve qq.Approver
}

// RequestsController 申请审批处理器
type RequestsController struct {
	tg *telegram.Bot

	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pendingRequest
}

// NewRequestsController 创建处理器并订阅两侧事件
func NewRequestsController(client qq.Client, tg *telegram.Bot) *RequestsController {
	r := &RequestsController{
		tg:      tg,
		pending: make(map[int64]*pendingRequest),
	}
	client.AddFriendRequestHandler(r.onFriendRequest)
	client.AddGroupInviteHandler(r.onGroupInvite)
	tg.AddMessageHandler(r.onTGMessage)
	return r
}

func (r *RequestsController) register(summary string, approve qq.Approver) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.pending[r.nextID] = &pendingRequest{summary: summary, approve: approve}
	return r.nextID
}

func (r *RequestsController) onFriendRequest(ctx context.Context, e *qq.FriendRequestEvent) (bool, error) {
	summary := fmt.Sprintf("好友申请：%s (%d)", e.Nickname, e.UserID)
	if e.Comment != "" {
		summary += "\n留言: " + e.Comment
	}
	r.announce(ctx, summary, e.Approve)
	return true, nil
}

func (r *RequestsController) onGroupInvite(ctx context.Context, e *qq.GroupInviteEvent) (bool, error) {
	summary := fmt.Sprintf("邀请入群：%s (%d)\n邀请人: %s (%d)", e.GroupName, e.GroupID, e.Nickname, e.UserID)
	r.announce(ctx, summary, e.Approve)
	return true, nil
}

func (r *RequestsController) announce(ctx context.Context, summary string, approve qq.Approver) {
	id := r.register(summary, approve)
	logger.L().Infof("Pending request #%d: %s", id, strings.ReplaceAll(summary, "\n", " "))
	if r.tg.OwnerID() == 0 {
		return
	}
	text := fmt.Sprintf("%s\n\n回复 /approve %d 同意，/deny %d 拒绝", summary, id, id)
	if _, err := r.tg.SendText(ctx, r.tg.OwnerID(), text, nil); err != nil {
		logger.L().Warnf("Failed to notify operator of request #%d: %v", id, err)
	}
}

func (r *RequestsController) onTGMessage(ctx context.Context, msg *botModels.Message) (bool, error) {
	if msg.From == nil || msg.From.ID != r.tg.OwnerID() {
		return false, nil
	}
	if msg.Chat.Type != "private" {
		return false, nil
	}
	reply, ok := r.decide(ctx, msg.Text)
	if !ok {
		return false, nil
	}
	_, err := r.tg.SendText(ctx, msg.Chat.ID, reply, nil)
	return true, err
}

// decide 解析并执行裁决命令，不是裁决命令时 ok 为 false
func (r *RequestsController) decide(ctx context.Context, text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", false
	}
	var yes bool
	switch fields[0] {
	case "/approve":
		yes = true
	case "/deny":
		yes = false
	default:
		return "", false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", false
	}

	r.mu.Lock()
	req, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Sprintf("找不到待处理的申请 #%d", id), true
	}

	if !req.approve(ctx, yes) {
		return fmt.Sprintf("裁决下发失败，申请 #%d 可能已经过期", id), true
	}
	if yes {
		return fmt.Sprintf("已同意 #%d", id), true
	}
	return fmt.Sprintf("已拒绝 #%d", id), true
}
