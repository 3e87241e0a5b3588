package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	botModels "github.com/go-telegram/bot/models"

	"qtbridge/internal/forward"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
	"qtbridge/internal/telegram"
)

// Telegram 会话内命令
// 都以回复一条镜像消息为基础：/info 查身份，/poke 戳回去，
// /mute 禁言（要求 Bot 在 QQ 侧有管理权限），/recall 双侧撤回。

var durationRegex = regexp.MustCompile(`^(\d+)([dhm])$`)

// parseMuteDuration 把 "1d" / "12h" / "30m" 解析成秒数
func parseMuteDuration(s string) (int64, error) {
	m := durationRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, expected forms like 1d, 12h, 30m", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, err
	}
	switch m[2] {
	case "d":
		return n * 86400, nil
	case "h":
		return n * 3600, nil
	default:
		return n * 60, nil
	}
}

// InChatCommandsService 会话内命令处理器
type InChatCommandsService struct {
	instanceID  int64
	client      qq.Client
	tg          *telegram.Bot
	botUsername string
	pairs       *forward.Pairs
	msgRepo     repository.MessageRepository
}

// NewInChatCommandsService 创建处理器并订阅 Telegram 消息
func NewInChatCommandsService(instanceID int64, client qq.Client, tg *telegram.Bot, pairs *forward.Pairs, msgRepo repository.MessageRepository) *InChatCommandsService {
	s := &InChatCommandsService{
		instanceID:  instanceID,
		client:      client,
		tg:          tg,
		botUsername: tg.Username(),
		pairs:       pairs,
		msgRepo:     msgRepo,
	}
	tg.AddMessageHandler(s.onTGMessage)
	return s
}

// command 取第一个词；@ 别的 bot 的命令不归我们管
func (s *InChatCommandsService) command(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, rest, _ := strings.Cut(text, " ")
	cmd, mention, _ := strings.Cut(cmd, "@")
	if mention != "" && mention != s.botUsername {
		return "", ""
	}
	return cmd, strings.TrimSpace(rest)
}

func (s *InChatCommandsService) onTGMessage(ctx context.Context, msg *botModels.Message) (bool, error) {
	if msg.From == nil || msg.From.ID == s.tg.ID() {
		return false, nil
	}
	pair := s.pairs.FindByTGChatID(msg.Chat.ID)
	if pair == nil {
		return false, nil
	}

	cmd, arg := s.command(msg.Text)
	switch cmd {
	case "/info":
		return true, s.handleInfo(ctx, pair, msg)
	case "/poke":
		return true, s.handlePoke(ctx, pair, msg)
	case "/mute":
		return true, s.handleMute(ctx, pair, msg, arg)
	case "/recall":
		return true, s.handleRecall(ctx, pair, msg)
	}
	return false, nil
}

func (s *InChatCommandsService) reply(ctx context.Context, msg *botModels.Message, text string) error {
	_, err := s.tg.SendText(ctx, msg.Chat.ID, text, &telegram.SendOptions{ReplyTo: msg.ID})
	return err
}

// repliedRow 取被回复消息的账本行
func (s *InChatCommandsService) repliedRow(ctx context.Context, pair *forward.Pair, msg *botModels.Message) (*models.Message, error) {
	if msg.ReplyToMessage == nil {
		return nil, errors.New("该命令需要回复一条消息使用")
	}
	row, err := s.msgRepo.FindByTGMessage(ctx, s.instanceID, pair.TGChatID, msg.ReplyToMessage.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("找不到这条消息的转发记录")
		}
		return nil, err
	}
	return row, nil
}

// handleInfo 展示配对与被回复消息的身份信息
func (s *InChatCommandsService) handleInfo(ctx context.Context, pair *forward.Pair, msg *botModels.Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "实例: %d\nQQ room: %d\nTG chat: %d\nFlags: %d",
		s.instanceID, pair.QQRoomID(), pair.TGChatID, pair.Flags())

	if msg.ReplyToMessage != nil {
		row, err := s.repliedRow(ctx, pair, msg)
		if err != nil {
			return s.reply(ctx, msg, err.Error())
		}
		fmt.Fprintf(&b, "\n\n发送者: %s (%d)\nseq: %d rand: %d\n时间: %s",
			row.Nick, row.QQSenderID, row.Seq, row.Rand,
			time.Unix(row.Time, 0).Format("2006-01-02 15:04:05"))
		if row.Brief != "" {
			fmt.Fprintf(&b, "\n内容: %s", row.Brief)
		}
	}
	return s.reply(ctx, msg, b.String())
}

// handlePoke 戳被回复消息的原发送者
func (s *InChatCommandsService) handlePoke(ctx context.Context, pair *forward.Pair, msg *botModels.Message) error {
	row, err := s.repliedRow(ctx, pair, msg)
	if err != nil {
		return s.reply(ctx, msg, err.Error())
	}

	switch chat := pair.QQ.(type) {
	case qq.Group:
		err = chat.PokeMember(ctx, row.QQSenderID)
	case qq.Friend:
		err = chat.Poke(ctx, row.QQSenderID == s.client.Uin())
	default:
		err = errors.New("当前会话不支持戳一戳")
	}
	if err != nil {
		return s.reply(ctx, msg, fmt.Sprintf("戳一戳失败: %v", err))
	}
	return nil
}

// handleMute 禁言被回复消息的原发送者，需要 Bot 在 QQ 侧是管理员
func (s *InChatCommandsService) handleMute(ctx context.Context, pair *forward.Pair, msg *botModels.Message, arg string) error {
	group, isGroup := pair.QQ.(qq.Group)
	if !isGroup {
		return s.reply(ctx, msg, "只有群聊可以禁言")
	}
	if !group.IsAdmin() && !group.IsOwner() {
		return s.reply(ctx, msg, "我在 QQ 群里没有管理权限")
	}

	row, err := s.repliedRow(ctx, pair, msg)
	if err != nil {
		return s.reply(ctx, msg, err.Error())
	}

	duration := int64(600)
	if arg != "" {
		duration, err = parseMuteDuration(arg)
		if err != nil {
			return s.reply(ctx, msg, "时长格式不对，支持 1d / 12h / 30m")
		}
	}

	if err := group.MuteMember(ctx, row.QQSenderID, duration); err != nil {
		return s.reply(ctx, msg, fmt.Sprintf("禁言失败: %v", err))
	}
	return s.reply(ctx, msg, fmt.Sprintf("已禁言 %s %s", row.Nick, arg))
}

// handleRecall 双侧撤回被回复的消息
func (s *InChatCommandsService) handleRecall(ctx context.Context, pair *forward.Pair, msg *botModels.Message) error {
	row, err := s.repliedRow(ctx, pair, msg)
	if err != nil {
		return s.reply(ctx, msg, err.Error())
	}

	if row.Seq != 0 && !pair.QQ.RecallMessage(ctx, row.Seq, row.Rand, row.Pktnum) {
		return s.reply(ctx, msg, "QQ 侧撤回失败")
	}
	s.tg.DeleteMessage(ctx, row.TGChatID, row.TGMsgID)
	s.tg.DeleteMessage(ctx, msg.Chat.ID, msg.ID)
	return nil
}
