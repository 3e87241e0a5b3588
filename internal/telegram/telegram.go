package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"qtbridge/internal/logger"
)

// Telegram 侧适配层
// go-telegram/bot 的薄封装：统一的发送入口加上三条有序 handler 链
// （新消息 / 编辑 / 成员状态），短路约定与 QQ 侧一致。

// Config Telegram Bot 配置
type Config struct {
	Token   string // Bot Token
	OwnerID int64  // 运维者用户 ID
	Debug   bool   // 是否开启调试模式
}

// Handler 签名：handled 为 true 表示更新已被消费，链上后续 handler 不再执行
type (
	MessageHandler      func(ctx context.Context, msg *botModels.Message) (bool, error)
	MyChatMemberHandler func(ctx context.Context, upd *botModels.ChatMemberUpdated) (bool, error)
)

type handlerChain[E any] struct {
	mu         sync.RWMutex
	dispatchMu sync.Mutex
	nextID     int
	ids        []int
	handlers   []func(ctx context.Context, e E) (bool, error)
}

func (c *handlerChain[E]) add(fn func(ctx context.Context, e E) (bool, error)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.ids = append(c.ids, c.nextID)
	c.handlers = append(c.handlers, fn)
	return c.nextID
}

func (c *handlerChain[E]) remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return
		}
	}
}

func (c *handlerChain[E]) dispatch(ctx context.Context, e E) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.RLock()
	handlers := make([]func(ctx context.Context, e E) (bool, error), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, fn := range handlers {
		handled, err := fn(ctx, e)
		if err != nil {
			logger.L().Errorf("Telegram handler failed: %v", err)
		}
		if handled {
			return
		}
	}
}

// Bot Telegram Bot 服务
type Bot struct {
	bot     *bot.Bot
	me      *botModels.User
	ownerID int64

	message      handlerChain[*botModels.Message]
	edited       handlerChain[*botModels.Message]
	myChatMember handlerChain[*botModels.ChatMemberUpdated]
}

// New 创建 Telegram Bot 实例
func New(ctx context.Context, cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}

	telegramBot := &Bot{ownerID: cfg.OwnerID}

	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.onUpdate),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	telegramBot.me = me

	logger.L().Infof("Telegram bot initialized as @%s", me.Username)
	return telegramBot, nil
}

// Start 启动 Bot（阻塞式，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) {
	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
}

// ID Bot 自身的用户 ID
func (b *Bot) ID() int64 { return b.me.ID }

// Username Bot 的用户名
func (b *Bot) Username() string { return b.me.Username }

// OwnerID 运维者用户 ID
func (b *Bot) OwnerID() int64 { return b.ownerID }

func (b *Bot) AddMessageHandler(fn MessageHandler) int { return b.message.add(fn) }
func (b *Bot) RemoveMessageHandler(id int)             { b.message.remove(id) }

func (b *Bot) AddEditedMessageHandler(fn MessageHandler) int { return b.edited.add(fn) }
func (b *Bot) RemoveEditedMessageHandler(id int)             { b.edited.remove(id) }

func (b *Bot) AddMyChatMemberHandler(fn MyChatMemberHandler) int { return b.myChatMember.add(fn) }
func (b *Bot) RemoveMyChatMemberHandler(id int)                  { b.myChatMember.remove(id) }

// onUpdate 所有更新的统一入口，按类型分发到对应链
func (b *Bot) onUpdate(ctx context.Context, _ *bot.Bot, update *botModels.Update) {
	switch {
	case update.Message != nil:
		b.message.dispatch(ctx, update.Message)
	case update.EditedMessage != nil:
		b.edited.dispatch(ctx, update.EditedMessage)
	case update.MyChatMember != nil:
		b.myChatMember.dispatch(ctx, update.MyChatMember)
	}
}
