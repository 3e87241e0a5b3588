package forward

import (
	"context"
	"errors"
	"fmt"
	"time"

	botModels "github.com/go-telegram/bot/models"
	log "github.com/sirupsen/logrus"

	"qtbridge/internal/logger"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
	"qtbridge/internal/telegram"
)

// Notifier 运维者通知出口，由上层注入
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// SearchSink 搜索索引出口。尽力而为：失败只记日志，不影响转发
type SearchSink interface {
	Index(ctx context.Context, msg *models.Message) error
}

// Controller 关联引擎
// 订阅两侧的事件流，按配对路由消息并维护消息身份账本。
// 转发失败记日志并通知运维者，事件视为已消费，不再下传。
type Controller struct {
	instanceID    int64
	instanceFlags int64
	client        qq.Client
	tg            TGBot
	pairs         *Pairs
	service       *Service
	msgRepo       repository.MessageRepository
	notifier      Notifier
	searchSink    SearchSink
	entry         *log.Entry
}

// NewController 创建关联引擎并订阅两侧事件
func NewController(instanceID int64, instanceFlags int64, client qq.Client, tg TGBot, pairs *Pairs, service *Service, msgRepo repository.MessageRepository, notifier Notifier, searchSink SearchSink) *Controller {
	c := &Controller{
		instanceID:    instanceID,
		instanceFlags: instanceFlags,
		client:        client,
		tg:            tg,
		pairs:         pairs,
		service:       service,
		msgRepo:       msgRepo,
		notifier:      notifier,
		searchSink:    searchSink,
		entry:         logger.With("forward", instanceID),
	}

	client.AddMessageHandler(c.onQQMessage)
	client.AddGroupMemberIncreaseHandler(c.onQQMemberIncrease)
	client.AddMessageRecallHandler(c.onQQRecall)
	client.AddPokeHandler(c.onQQPoke)

	tg.AddMessageHandler(c.onTGMessage)
	tg.AddEditedMessageHandler(c.onTGEdited)

	return c
}

func (c *Controller) notify(ctx context.Context, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.entry.Error(text)
	if c.notifier != nil {
		c.notifier.Notify(ctx, text)
	}
}

// onQQMessage QQ → Telegram 主通路
func (c *Controller) onQQMessage(ctx context.Context, event *qq.MessageEvent) (bool, error) {
	pair := c.pairs.FindByQQRoomID(event.ChatID())
	if pair == nil {
		return false, nil
	}
	if pair.HasFlag(c.instanceFlags, FlagDisableQ2TG) {
		return true, nil
	}

	// 私聊双实例去重：账本里已有同身份记录说明别的实例处理过了
	if event.DM() {
		_, err := c.msgRepo.FindByQQTuple(ctx, c.instanceID, event.ChatID(), event.From.ID,
			event.Seq, event.Rand, event.Pktnum, event.Time)
		if err == nil {
			c.entry.Debugf("Skipping duplicate DM seq=%d", event.Seq)
			return true, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			c.entry.Warnf("Dedup probe failed: %v", err)
		}
	}

	richHeader := pair.HasFlag(c.instanceFlags, FlagRichHeader)
	sent, richUsed, err := c.service.ForwardQQMessage(ctx, pair, event, richHeader)
	if err != nil {
		// 已经送达的部分照常入账，否则这些镜像既撤不回也回复不了
		c.notify(ctx, "转发 QQ 消息失败 (room=%d seq=%d): %v", event.ChatID(), event.Seq, err)
	}

	nick := event.From.Name
	if event.Anon != nil {
		nick = event.Anon.Name
	}
	for _, msg := range sent {
		row := &models.Message{
			InstanceID:     c.instanceID,
			QQRoomID:       event.ChatID(),
			QQSenderID:     event.From.ID,
			Seq:            event.Seq,
			Rand:           event.Rand,
			Pktnum:         event.Pktnum,
			Time:           event.Time,
			Brief:          event.Brief,
			Nick:           nick,
			TGChatID:       pair.TGChatID,
			TGMsgID:        msg.ID,
			TGMessageText:  msg.Text,
			RichHeaderUsed: richUsed,
			CreatedAt:      time.Now(),
		}
		if err := c.msgRepo.Create(ctx, row); err != nil {
			c.entry.Errorf("Failed to record ledger row: %v", err)
			continue
		}
		c.index(ctx, row)
	}
	return true, nil
}

func (c *Controller) index(ctx context.Context, row *models.Message) {
	if c.searchSink == nil {
		return
	}
	if err := c.searchSink.Index(ctx, row); err != nil {
		c.entry.Warnf("Search sink rejected message: %v", err)
	}
}

// onQQMemberIncrease 入群播报
func (c *Controller) onQQMemberIncrease(ctx context.Context, event *qq.GroupMemberIncreaseEvent) (bool, error) {
	pair := c.pairs.FindByQQRoomID(event.Group.RoomID())
	if pair == nil {
		return false, nil
	}
	if pair.HasFlag(c.instanceFlags, FlagDisableJoinNotice) {
		return true, nil
	}

	name := event.Nickname
	if name == "" {
		name = fmt.Sprintf("%d", event.UserID)
	}
	_, err := c.tg.SendText(ctx, pair.TGChatID, fmt.Sprintf("%s 加入了群聊", name), nil)
	if err != nil {
		c.entry.Warnf("Failed to send join notice: %v", err)
	}
	return true, nil
}

// onQQRecall 撤回传播：删掉 Telegram 侧的镜像消息
func (c *Controller) onQQRecall(ctx context.Context, event *qq.MessageRecallEvent) (bool, error) {
	pair := c.pairs.FindByQQRoomID(event.Chat.RoomID())
	if pair == nil {
		return false, nil
	}

	row, err := c.msgRepo.FindByQQSeq(ctx, c.instanceID, event.Chat.RoomID(), event.Seq)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.entry.Warnf("Recall lookup failed: %v", err)
		}
		return true, nil
	}
	if !c.tg.DeleteMessage(ctx, row.TGChatID, row.TGMsgID) {
		c.entry.Warnf("Failed to delete mirrored message %d in chat %d", row.TGMsgID, row.TGChatID)
	}
	return true, nil
}

// onQQPoke 戳一戳播报
func (c *Controller) onQQPoke(ctx context.Context, event *qq.PokeEvent) (bool, error) {
	pair := c.pairs.FindByQQRoomID(event.ChatID())
	if pair == nil {
		return false, nil
	}
	if pair.HasFlag(c.instanceFlags, FlagDisablePoke) {
		return true, nil
	}

	action := event.Action
	if action == "" {
		action = "戳了戳"
	}
	from := c.pokeName(ctx, event.Chat, event.FromID)
	target := c.pokeName(ctx, event.Chat, event.TargetID)
	if event.FromID == event.TargetID {
		target = "自己"
	}

	text := fmt.Sprintf("%s %s %s%s", from, action, target, event.Suffix)
	opts := &telegram.SendOptions{
		Entities: []botModels.MessageEntity{{
			Type:   botModels.MessageEntityTypeItalic,
			Offset: 0,
			Length: utf16Len(text),
		}},
	}
	if _, err := c.tg.SendText(ctx, pair.TGChatID, text, opts); err != nil {
		c.entry.Warnf("Failed to send poke notice: %v", err)
	}
	return true, nil
}

// pokeName 戳一戳参与者的显示名：自己是"我"，其他人查资料
func (c *Controller) pokeName(ctx context.Context, chat qq.Chat, uin int64) string {
	if uin == c.client.Uin() {
		return "我"
	}
	if group, ok := chat.(qq.Group); ok {
		if member, err := group.PickMember(ctx, uin); err == nil {
			if info, err := member.Renew(ctx); err == nil {
				return info.DisplayName()
			}
		}
	} else if friend, ok := chat.(qq.Friend); ok && friend.Uin() == uin {
		return friend.DisplayName()
	}
	return fmt.Sprintf("%d", uin)
}

// onTGMessage Telegram → QQ 主通路
func (c *Controller) onTGMessage(ctx context.Context, msg *botModels.Message) (bool, error) {
	if msg.From != nil && msg.From.ID == c.tg.ID() {
		return false, nil
	}
	pair := c.pairs.FindByTGChatID(msg.Chat.ID)
	if pair == nil {
		return false, nil
	}
	if msg.From != nil && msg.From.IsBot && pair.HasFlag(c.instanceFlags, FlagNoForwardOtherBot) {
		return true, nil
	}
	if pair.HasFlag(c.instanceFlags, FlagDisableTG2Q) {
		return true, nil
	}

	ret, brief, err := c.service.ForwardTGMessage(ctx, pair, msg)
	if err != nil {
		c.notify(ctx, "转发 Telegram 消息失败 (chat=%d msg=%d): %v", msg.Chat.ID, msg.ID, err)
		return true, nil
	}
	if ret == nil {
		// 没有可转发的内容
		return true, nil
	}

	row := &models.Message{
		InstanceID:    c.instanceID,
		QQRoomID:      pair.QQRoomID(),
		QQSenderID:    c.client.Uin(),
		Seq:           ret.Seq,
		Rand:          ret.Rand,
		Time:          ret.Time,
		Brief:         brief,
		Nick:          tgSenderName(msg),
		TGChatID:      msg.Chat.ID,
		TGMsgID:       msg.ID,
		TGMessageText: msg.Text,
		CreatedAt:     time.Now(),
	}
	if msg.From != nil {
		row.TGSenderID = msg.From.ID
	}
	if err := c.msgRepo.Create(ctx, row); err != nil {
		c.entry.Errorf("Failed to record ledger row: %v", err)
	} else {
		c.index(ctx, row)
	}
	return true, nil
}

// onTGEdited 编辑传播：撤掉旧镜像再按新内容重发
func (c *Controller) onTGEdited(ctx context.Context, msg *botModels.Message) (bool, error) {
	pair := c.pairs.FindByTGChatID(msg.Chat.ID)
	if pair == nil {
		return false, nil
	}
	if pair.HasFlag(c.instanceFlags, FlagDisableTG2Q) {
		return true, nil
	}

	row, err := c.msgRepo.FindByTGMessage(ctx, c.instanceID, msg.Chat.ID, msg.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.entry.Warnf("Edit lookup failed: %v", err)
		}
		row = nil
	}
	if row != nil && row.Seq != 0 {
		if !pair.QQ.RecallMessage(ctx, row.Seq, row.Rand, row.Pktnum) {
			c.entry.Warnf("Failed to recall old mirror seq=%d before resending edit", row.Seq)
		}
	}

	ret, brief, err := c.service.ForwardTGMessage(ctx, pair, msg)
	if err != nil {
		c.notify(ctx, "重发编辑消息失败 (chat=%d msg=%d): %v", msg.Chat.ID, msg.ID, err)
		return true, nil
	}
	if ret == nil {
		return true, nil
	}

	// 同一条 TG 消息始终只占一行账本：就地换上新镜像的身份，
	// 下一次编辑才能找到并撤掉这一次发出的镜像
	if row != nil {
		if err := c.msgRepo.UpdateQQInfo(ctx, row.ID, ret.Seq, ret.Rand, ret.Time, brief); err != nil {
			c.entry.Errorf("Failed to update ledger row for edit: %v", err)
		}
		if err := c.msgRepo.UpdateTGInfo(ctx, row.ID, msg.ID, msg.Text, ""); err != nil {
			c.entry.Errorf("Failed to update ledger row for edit: %v", err)
		}
		return true, nil
	}

	// 原始消息没入过账（比如转发当时失败了），按新行登记
	newRow := &models.Message{
		InstanceID:    c.instanceID,
		QQRoomID:      pair.QQRoomID(),
		QQSenderID:    c.client.Uin(),
		Seq:           ret.Seq,
		Rand:          ret.Rand,
		Time:          ret.Time,
		Brief:         brief,
		Nick:          tgSenderName(msg),
		TGChatID:      msg.Chat.ID,
		TGMsgID:       msg.ID,
		TGMessageText: msg.Text,
		CreatedAt:     time.Now(),
	}
	if msg.From != nil {
		newRow.TGSenderID = msg.From.ID
	}
	if err := c.msgRepo.Create(ctx, newRow); err != nil {
		c.entry.Errorf("Failed to record ledger row: %v", err)
	}
	return true, nil
}
