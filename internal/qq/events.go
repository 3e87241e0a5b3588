package qq

import "context"

// 规范事件集
// 适配器把后端原生通知逐一翻译成这里的事件类型，上层只消费这一套。

// Sender 消息发送者描述
type Sender struct {
	ID       int64
	Name     string // card 优先，其次 nickname
	Nickname string
	Card     string
}

// Anonymous 匿名发送者标记
type Anonymous struct {
	Name string
}

// MessageEvent 新消息事件
type MessageEvent struct {
	Chat     Chat
	From     Sender
	Elements []Element
	Seq      int64
	Rand     int64
	Pktnum   int64
	Time     int64
	Brief    string
	ReplyTo  *ReplyTarget
	Anon     *Anonymous
	// MessageID 平台原生消息标识，仅用于按 ID 回查
	MessageID string
	AtMe      bool
	AtAll     bool
}

// DM 是否为私聊消息
func (e *MessageEvent) DM() bool { return e.Chat.DM() }

// ChatID 所属会话的带符号 room key
func (e *MessageEvent) ChatID() int64 { return e.Chat.RoomID() }

// Reply 在来源会话里回复本条消息
func (e *MessageEvent) Reply(ctx context.Context, content []Element, quote bool) (*MessageRet, error) {
	var source *ReplyTarget
	if quote {
		source = &ReplyTarget{
			FromID:   e.From.ID,
			Time:     e.Time,
			Seq:      e.Seq,
			Rand:     e.Rand,
			Elements: e.Elements,
		}
	}
	return e.Chat.SendMessage(ctx, content, source)
}

// GroupMemberIncreaseEvent 群成员增加
type GroupMemberIncreaseEvent struct {
	Group    Group
	UserID   int64
	Nickname string
}

// GroupMemberDecreaseEvent 群成员减少
type GroupMemberDecreaseEvent struct {
	Group      Group
	UserID     int64
	OperatorID int64
	// Dismiss 为 true 表示整个群被解散
	Dismiss bool
}

// FriendIncreaseEvent 新增好友
type FriendIncreaseEvent struct {
	Friend Friend
}

// MessageRecallEvent 消息撤回
type MessageRecallEvent struct {
	Chat Chat
	Seq  int64
	Rand int64
	Time int64
}

// PokeEvent 戳一戳
type PokeEvent struct {
	Chat     Chat
	FromID   int64
	TargetID int64
	Action   string
	Suffix   string
}

// DM 是否发生在私聊会话
func (e *PokeEvent) DM() bool { return e.Chat.DM() }

// ChatID 所属会话的带符号 room key
func (e *PokeEvent) ChatID() int64 { return e.Chat.RoomID() }

// Approver 审批能力，绑定后端签发的不透明 flag
// flag 是后端的能力凭证，不要解析它的内部结构
type Approver func(ctx context.Context, yes bool) bool

// FriendRequestEvent 好友申请
type FriendRequestEvent struct {
	UserID   int64
	Nickname string
	Comment  string
	Flag     string
	Time     int64
	Approve  Approver
}

// GroupInviteEvent 邀请入群
type GroupInviteEvent struct {
	GroupID   int64
	GroupName string
	UserID    int64
	Nickname  string
	Role      string
	Flag      string
	Time      int64
	Approve   Approver
}
