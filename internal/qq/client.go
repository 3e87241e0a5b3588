package qq

import (
	"context"
	"sync"

	"qtbridge/internal/logger"
)

// Client 统一的多后端客户端抽象
// 两个后端驱动（持久会话 / 网关 RPC）各自实现一份，上层只依赖这个接口
type Client interface {
	// ID 实例在数据库内的 ID（多账号路由键）
	ID() int64

	// Uin 平台分配的账号
	Uin() int64

	// Nickname 平台昵称
	Nickname() string

	IsOnline(ctx context.Context) (bool, error)

	// GetChat 按带符号 room key 解析会话：正数好友，负数群
	GetChat(ctx context.Context, roomID int64) (Chat, error)

	// PickFriend / PickGroup 构造实体句柄，可能发起一次网络请求刷新资料，
	// 必须允许推测性调用
	PickFriend(ctx context.Context, uin int64) (Friend, error)
	PickGroup(ctx context.Context, gid int64) (Group, error)

	GetFriendsWithCluster(ctx context.Context) ([]*FriendCluster, error)
	GetGroupList(ctx context.Context) ([]Group, error)

	// CreateSpoilerImage 生成 Spoiler 图片的消息表示
	// 默认实现是警告文本 + 内联图片，后端可以换成平台原生折叠卡片
	CreateSpoilerImage(ctx context.Context, image *ImageElement, nickname string, title string) ([]Element, error)

	EventSource
}

// RKeyRefresher 可选能力：给过期的多媒体 CDN 链接重签密钥
// 只有持久会话后端支持，调用方按类型断言探测
type RKeyRefresher interface {
	RefreshImageRKey(ctx context.Context, url string) (string, error)
}

// EventSource 规范事件订阅接口
// 每种事件一条有序 handler 链，按注册顺序执行；
// 任何一种事件的 handler 返回 handled=true 都会短路本次分发的后续 handler
type EventSource interface {
	AddMessageHandler(fn MessageHandler) int
	RemoveMessageHandler(id int)
	AddGroupMemberIncreaseHandler(fn GroupMemberIncreaseHandler) int
	RemoveGroupMemberIncreaseHandler(id int)
	AddGroupMemberDecreaseHandler(fn GroupMemberDecreaseHandler) int
	RemoveGroupMemberDecreaseHandler(id int)
	AddFriendIncreaseHandler(fn FriendIncreaseHandler) int
	RemoveFriendIncreaseHandler(id int)
	AddMessageRecallHandler(fn MessageRecallHandler) int
	RemoveMessageRecallHandler(id int)
	AddPokeHandler(fn PokeHandler) int
	RemovePokeHandler(id int)
	AddFriendRequestHandler(fn FriendRequestHandler) int
	RemoveFriendRequestHandler(id int)
	AddGroupInviteHandler(fn GroupInviteHandler) int
	RemoveGroupInviteHandler(id int)
}

// Handler 签名：handled 为 true 表示事件已被消费，链上后续 handler 不再执行
type (
	MessageHandler             func(ctx context.Context, e *MessageEvent) (bool, error)
	GroupMemberIncreaseHandler func(ctx context.Context, e *GroupMemberIncreaseEvent) (bool, error)
	GroupMemberDecreaseHandler func(ctx context.Context, e *GroupMemberDecreaseEvent) (bool, error)
	FriendIncreaseHandler      func(ctx context.Context, e *FriendIncreaseEvent) (bool, error)
	MessageRecallHandler       func(ctx context.Context, e *MessageRecallEvent) (bool, error)
	PokeHandler                func(ctx context.Context, e *PokeEvent) (bool, error)
	FriendRequestHandler       func(ctx context.Context, e *FriendRequestEvent) (bool, error)
	GroupInviteHandler         func(ctx context.Context, e *GroupInviteEvent) (bool, error)
)

// handlerChain 一种事件的有序 handler 链
// dispatchMu 串行化同一条链的分发；不同链（不同事件种类）互不影响
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

// dispatch 按注册顺序执行链上的 handler
// handler 报错时记日志并继续；handled=true 时短路后续 handler
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
			logger.L().Errorf("Event handler failed: %v", err)
		}
		if handled {
			return
		}
	}
}

// Handlers 把 EventSource 的公共实现提供给各个适配器内嵌
type Handlers struct {
	message             handlerChain[*MessageEvent]
	groupMemberIncrease handlerChain[*GroupMemberIncreaseEvent]
	groupMemberDecrease handlerChain[*GroupMemberDecreaseEvent]
	friendIncrease      handlerChain[*FriendIncreaseEvent]
	messageRecall       handlerChain[*MessageRecallEvent]
	poke                handlerChain[*PokeEvent]
	friendRequest       handlerChain[*FriendRequestEvent]
	groupInvite         handlerChain[*GroupInviteEvent]
}

func (h *Handlers) AddMessageHandler(fn MessageHandler) int { return h.message.add(fn) }
func (h *Handlers) RemoveMessageHandler(id int)             { h.message.remove(id) }

func (h *Handlers) AddGroupMemberIncreaseHandler(fn GroupMemberIncreaseHandler) int {
	return h.groupMemberIncrease.add(fn)
}
func (h *Handlers) RemoveGroupMemberIncreaseHandler(id int) { h.groupMemberIncrease.remove(id) }

func (h *Handlers) AddGroupMemberDecreaseHandler(fn GroupMemberDecreaseHandler) int {
	return h.groupMemberDecrease.add(fn)
}
func (h *Handlers) RemoveGroupMemberDecreaseHandler(id int) { h.groupMemberDecrease.remove(id) }

func (h *Handlers) AddFriendIncreaseHandler(fn FriendIncreaseHandler) int {
	return h.friendIncrease.add(fn)
}
func (h *Handlers) RemoveFriendIncreaseHandler(id int) { h.friendIncrease.remove(id) }

func (h *Handlers) AddMessageRecallHandler(fn MessageRecallHandler) int {
	return h.messageRecall.add(fn)
}
func (h *Handlers) RemoveMessageRecallHandler(id int) { h.messageRecall.remove(id) }

func (h *Handlers) AddPokeHandler(fn PokeHandler) int { return h.poke.add(fn) }
func (h *Handlers) RemovePokeHandler(id int)          { h.poke.remove(id) }

func (h *Handlers) AddFriendRequestHandler(fn FriendRequestHandler) int {
	return h.friendRequest.add(fn)
}
func (h *Handlers) RemoveFriendRequestHandler(id int) { h.friendRequest.remove(id) }

func (h *Handlers) AddGroupInviteHandler(fn GroupInviteHandler) int {
	return h.groupInvite.add(fn)
}
func (h *Handlers) RemoveGroupInviteHandler(id int) { h.groupInvite.remove(id) }

// 分发入口，由适配器在翻译出规范事件后调用
func (h *Handlers) DispatchMessage(ctx context.Context, e *MessageEvent) { h.message.dispatch(ctx, e) }
func (h *Handlers) DispatchGroupMemberIncrease(ctx context.Context, e *GroupMemberIncreaseEvent) {
	h.groupMemberIncrease.dispatch(ctx, e)
}
func (h *Handlers) DispatchGroupMemberDecrease(ctx context.Context, e *GroupMemberDecreaseEvent) {
	h.groupMemberDecrease.dispatch(ctx, e)
}
func (h *Handlers) DispatchFriendIncrease(ctx context.Context, e *FriendIncreaseEvent) {
	h.friendIncrease.dispatch(ctx, e)
}
func (h *Handlers) DispatchMessageRecall(ctx context.Context, e *MessageRecallEvent) {
	h.messageRecall.dispatch(ctx, e)
}
func (h *Handlers) DispatchPoke(ctx context.Context, e *PokeEvent) { h.poke.dispatch(ctx, e) }
func (h *Handlers) DispatchFriendRequest(ctx context.Context, e *FriendRequestEvent) {
	h.friendRequest.dispatch(ctx, e)
}
func (h *Handlers) DispatchGroupInvite(ctx context.Context, e *GroupInviteEvent) {
	h.groupInvite.dispatch(ctx, e)
}

// ResolveChat 实现带符号 room key 的解析约定，供各适配器的 GetChat 复用
func ResolveChat(ctx context.Context, c Client, roomID int64) (Chat, error) {
	if roomID > 0 {
		return c.PickFriend(ctx, roomID)
	}
	if roomID < 0 {
		return c.PickGroup(ctx, -roomID)
	}
	return nil, ErrNotFound
}
