package oicq

import (
	"context"

	"qtbridge/internal/qq"
)

// 持久会话驱动契约
// 协议栈本身由外部 SDK 提供，这里只定义适配层依赖的最小接口。
// 内容模型直接复用规范元素；事件和实体资料用驱动自己的原生载荷，
// 由适配层逐一翻译。

// LoginOptions 登录参数
// 两个验证回调由上层提供：设备锁验证返回短信验证码，滑块验证返回 ticket
type LoginOptions struct {
	Uin      int64
	Password string
	// Platform 登录协议（1=安卓手机 2=平板 3=手表 ...）
	Platform int

	OnVerifyDevice func(phone string) (string, error)
	OnVerifySlider func(url string) (string, error)
}

// NativeMessage 驱动原生消息载荷
type NativeMessage struct {
	// GroupID 为 0 表示私聊
	GroupID    int64
	UserID     int64
	Nickname   string
	Card       string
	Elements   []qq.Element
	Seq        int64
	Rand       int64
	Pktnum     int64
	Time       int64
	MessageID  string
	ReplyTo    *qq.ReplyTarget
	Anonymous  string
	AtMe       bool
	AtAll      bool
}

// NativeNotice 驱动原生通知载荷
type NativeNotice struct {
	// Type: group_increase / group_decrease / friend_increase /
	// group_recall / friend_recall / poke / dismiss
	Type       string
	GroupID    int64
	UserID     int64
	OperatorID int64
	TargetID   int64
	Seq        int64
	Rand       int64
	Time       int64
	Action     string
	Suffix     string
}

// NativeRequest 驱动原生申请载荷
type NativeRequest struct {
	// Type: friend / group_invite
	Type      string
	UserID    int64
	Nickname  string
	GroupID   int64
	GroupName string
	Role      string
	Comment   string
	Flag      string
	Time      int64
}

// FriendInfo 好友资料
type FriendInfo struct {
	Uin      int64
	Nickname string
	Remark   string
	Category string
}

// GroupInfo 群资料
type GroupInfo struct {
	GID     int64
	Name    string
	IsOwner bool
	IsAdmin bool
}

// MemberInfo 群成员资料
type MemberInfo struct {
	Uin          int64
	Card         string
	Nickname     string
	Sex          string
	Age          int
	JoinTime     int64
	LastSentTime int64
	Role         string
	Title        string
}

// ForwardItem 合并转发包里的一条消息
type ForwardItem struct {
	UserID   int64
	Nickname string
	Time     int64
	Elements []qq.Element
}

// RKeys 多媒体 CDN 的签名密钥对
type RKeys struct {
	// Private 私聊图片密钥（appid 1406）
	Private string
	// Group 群图片密钥（appid 1407）
	Group string
}

// Driver 持久会话协议驱动
// 实现方负责协议细节；适配层不解析任何原生凭证（flag、ticket、rkey 都不透明）
type Driver interface {
	Login(ctx context.Context, opts LoginOptions) error
	Logout(ctx context.Context) error
	Online() bool
	Uin() int64
	Nickname() string

	// 事件挂接。每个 tap 只应安装一次，由适配层保证
	OnMessage(fn func(m *NativeMessage))
	OnNotice(fn func(n *NativeNotice))
	OnRequest(fn func(r *NativeRequest))
	OnOffline(fn func(reason string))

	GetFriendInfo(ctx context.Context, uin int64) (*FriendInfo, error)
	GetGroupInfo(ctx context.Context, gid int64) (*GroupInfo, error)
	GetMemberInfo(ctx context.Context, gid int64, uin int64) (*MemberInfo, error)
	GetFriendList(ctx context.Context) ([]*FriendInfo, error)
	GetGroupList(ctx context.Context) ([]*GroupInfo, error)

	SendPrivateMessage(ctx context.Context, uin int64, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error)
	SendGroupMessage(ctx context.Context, gid int64, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error)
	RecallPrivateMessage(ctx context.Context, uin int64, seq int64, rand int64, pktnum int64) error
	RecallGroupMessage(ctx context.Context, gid int64, seq int64) error
	GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error)
	GetFileURL(ctx context.Context, roomID int64, fileID string) (string, error)

	PokeFriend(ctx context.Context, uin int64, self bool) error
	PokeMember(ctx context.Context, gid int64, uin int64) error
	MuteMember(ctx context.Context, gid int64, uin int64, duration int64) error
	SetMemberCard(ctx context.Context, gid int64, uin int64, card string) error
	UploadGroupFile(ctx context.Context, gid int64, file string, name string) error

	ApproveFriendRequest(ctx context.Context, flag string, yes bool) error
	ApproveGroupInvite(ctx context.Context, flag string, yes bool) error

	// UploadForwardBundle 打包一组消息为合并转发，返回资源 ID
	UploadForwardBundle(ctx context.Context, items []*ForwardItem) (string, error)

	// FetchRKeys 查询当前有效的多媒体签名密钥
	FetchRKeys(ctx context.Context) (*RKeys, error)
}
