package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	botModels "github.com/go-telegram/bot/models"

	"qtbridge/internal/forward"
	"qtbridge/internal/logger"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
	"qtbridge/internal/telegram"
)

// 斜杠动作指令
// "/摸" 或 "/$pat" 这样的消息被改写成一句动作描述（"A 摸了摸 B"），
// 同时发到两侧，并以系统身份登记账本，保证后续回复还能解析。

// gestureRegex 第 2/3 组是动作动词，第 5 组是可选后缀
var gestureRegex = regexp.MustCompile(`(^/([^\w\s$¥]\S*)|^/[$¥](\w\S*))( (\S*))?`)

// HugController 斜杠动作指令处理器
type HugController struct {
	instanceID    int64
	instanceFlags int64
	client        qq.Client
	tg            *telegram.Bot
	pairs         *forward.Pairs
	msgRepo       repository.MessageRepository
}

// NewHugController 创建处理器并订阅两侧消息
func NewHugController(instanceID int64, instanceFlags int64, client qq.Client, tg *telegram.Bot, pairs *forward.Pairs, msgRepo repository.MessageRepository) *HugController {
	h := &HugController{
		instanceID:    instanceID,
		instanceFlags: instanceFlags,
		client:        client,
		tg:            tg,
		pairs:         pairs,
		msgRepo:       msgRepo,
	}
	client.AddMessageHandler(h.onQQMessage)
	tg.AddMessageHandler(h.onTGMessage)
	return h
}

// parseGesture 解析动作指令，返回动词和后缀
func parseGesture(text string) (verb string, suffix string, ok bool) {
	m := gestureRegex.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	verb = m[2]
	if verb == "" {
		verb = m[3]
	}
	if verb == "" {
		return "", "", false
	}
	return verb, m[5], true
}

func (h *HugController) onQQMessage(ctx context.Context, event *qq.MessageEvent) (bool, error) {
	pair := h.pairs.FindByQQChat(event.Chat)
	if pair == nil || pair.HasFlag(h.instanceFlags, forward.FlagDisableSlashCommand) {
		return false, nil
	}

	if len(event.Elements) == 0 {
		return false, nil
	}
	first, isText := event.Elements[0].(*qq.TextElement)
	if !isText {
		return false, nil
	}
	verb, suffix, ok := parseGesture(first.Text)
	if !ok {
		return false, nil
	}

	actor := event.From.Name
	target := h.resolveQQTarget(ctx, event)

	return true, h.mirror(ctx, pair, fmt.Sprintf("%s %s %s%s", actor, verb, target, suffix))
}

// resolveQQTarget 动作对象：@ 的成员优先，其次回复的原发送者，否则是自己
func (h *HugController) resolveQQTarget(ctx context.Context, event *qq.MessageEvent) string {
	for _, elem := range event.Elements {
		at, ok := elem.(*qq.AtElement)
		if !ok || at.All {
			continue
		}
		if group, isGroup := event.Chat.(qq.Group); isGroup {
			if member, err := group.PickMember(ctx, at.QQ); err == nil {
				if info, err := member.Renew(ctx); err == nil {
					return info.DisplayName()
				}
			}
		}
		if at.Text != "" {
			return at.Text
		}
		return fmt.Sprintf("%d", at.QQ)
	}

	if event.ReplyTo != nil {
		row, err := h.msgRepo.FindByQQSeq(ctx, h.instanceID, event.ChatID(), event.ReplyTo.Seq)
		if err == nil && row.Nick != "" {
			return row.Nick
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.L().Warnf("Gesture target lookup failed: %v", err)
		}
	}
	return "自己"
}

func (h *HugController) onTGMessage(ctx context.Context, msg *botModels.Message) (bool, error) {
	if msg.From == nil || msg.From.ID == h.tg.ID() {
		return false, nil
	}
	pair := h.pairs.FindByTGChatID(msg.Chat.ID)
	if pair == nil || pair.HasFlag(h.instanceFlags, forward.FlagDisableSlashCommand) {
		return false, nil
	}

	verb, suffix, ok := parseGesture(msg.Text)
	if !ok {
		return false, nil
	}

	actor := msg.From.FirstName
	if msg.From.LastName != "" {
		actor += " " + msg.From.LastName
	}
	target := h.resolveTGTarget(ctx, msg)

	return true, h.mirror(ctx, pair, fmt.Sprintf("%s %s %s%s", actor, verb, target, suffix))
}

// resolveTGTarget 文本提及优先，其次回复的原发送者（跨平台经账本解析），否则是自己
func (h *HugController) resolveTGTarget(ctx context.Context, msg *botModels.Message) string {
	for _, entity := range msg.Entities {
		if entity.Type == botModels.MessageEntityTypeTextMention && entity.User != nil {
			name := entity.User.FirstName
			if entity.User.LastName != "" {
				name += " " + entity.User.LastName
			}
			return name
		}
	}

	if msg.ReplyToMessage != nil {
		row, err := h.msgRepo.FindByTGMessage(ctx, h.instanceID, msg.Chat.ID, msg.ReplyToMessage.ID)
		if err == nil && row.Nick != "" {
			return row.Nick
		}
		// 镜像消息之外的回复退回到 Telegram 自己的发送者信息
		if msg.ReplyToMessage.From != nil {
			name := msg.ReplyToMessage.From.FirstName
			if msg.ReplyToMessage.From.LastName != "" {
				name += " " + msg.ReplyToMessage.From.LastName
			}
			return name
		}
	}
	return "自己"
}

// mirror 把动作描述同时发到两侧并登记系统账本行
func (h *HugController) mirror(ctx context.Context, pair *forward.Pair, sentence string) error {
	ret, err := pair.QQ.SendMessage(ctx, []qq.Element{qq.Text(sentence)}, nil)
	if err != nil {
		return fmt.Errorf("failed to send gesture to QQ: %w", err)
	}

	tgMsg, err := h.tg.SendText(ctx, pair.TGChatID, sentence, nil)
	if err != nil {
		return fmt.Errorf("failed to send gesture to Telegram: %w", err)
	}

	row := &models.Message{
		InstanceID: h.instanceID,
		QQRoomID:   pair.QQRoomID(),
		QQSenderID: h.client.Uin(),
		Seq:        ret.Seq,
		Rand:       ret.Rand,
		Time:       ret.Time,
		Brief:      sentence,
		Nick:       models.SystemNick,
		TGChatID:   pair.TGChatID,
		TGMsgID:    tgMsg.ID,
		TGSenderID: h.tg.ID(),
		CreatedAt:  time.Now(),
	}
	if err := h.msgRepo.Create(ctx, row); err != nil {
		logger.L().Errorf("Failed to record gesture ledger row: %v", err)
	}
	return nil
}
