package qq

import (
	"context"
	"errors"
)

// ErrNotFound 后端拒绝解析给定的会话/成员 ID
var ErrNotFound = errors.New("chat not found")

// Chat 一个可收发消息的会话（好友或群）
//
// 每个 Chat 唯一对应一个带符号的 room key：
// 正数是好友 QQ 号，负数是群号的相反数。ledger 和配对表全部用这个约定。
type Chat interface {
	// RoomID 返回带符号的 room key
	RoomID() int64

	// DM 是否为私聊会话
	DM() bool

	// SendMessage 发送一条消息，source 非空时作为引用回复
	SendMessage(ctx context.Context, content []Element, source *ReplyTarget) (*MessageRet, error)

	// RecallMessage 撤回消息，返回是否成功
	RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool

	// GetForwardMessages 拉取合并转发内容
	GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*ForwardMessage, error)

	// GetFileURL 把文件 ID 换成可下载的 URL（某些后端会先下载并返回本地路径）
	GetFileURL(ctx context.Context, fileID string) (string, error)
}

// Friend 好友会话
type Friend interface {
	Chat

	Uin() int64
	Nickname() string
	Remark() string

	// DisplayName 备注优先，其次昵称
	DisplayName() string

	// Poke 戳一戳。self 为 true 时戳自己
	Poke(ctx context.Context, self bool) error
}

// Group 群会话
type Group interface {
	Chat

	GID() int64
	Name() string
	IsOwner() bool
	IsAdmin() bool

	// PickMember 构造群成员句柄，可安全地推测性调用
	PickMember(ctx context.Context, uin int64) (GroupMember, error)

	PokeMember(ctx context.Context, uin int64) error

	// MuteMember 禁言，duration 单位秒
	MuteMember(ctx context.Context, uin int64, duration int64) error

	// SetCard 设置群名片，返回是否成功
	SetCard(ctx context.Context, uin int64, card string) bool

	// UploadFile 上传群文件，file 为本地路径
	UploadFile(ctx context.Context, file string, name string) error
}

// GroupMember 群成员（限定在某个群内的用户，可独立刷新）
type GroupMember interface {
	Uin() int64

	// Renew 拉取最新的成员资料
	Renew(ctx context.Context) (*GroupMemberInfo, error)
}

// GroupMemberInfo 群成员资料
type GroupMemberInfo struct {
	Card         string
	Nickname     string
	Sex          string
	Age          int
	JoinTime     int64
	LastSentTime int64
	Role         string // owner / admin / member
	Title        string
}

// DisplayName 群名片优先，其次昵称
func (i *GroupMemberInfo) DisplayName() string {
	if i.Card != "" {
		return i.Card
	}
	return i.Nickname
}

// FriendCluster 带分组的好友列表项
type FriendCluster struct {
	Name    string
	Friends []Friend
}
