package oicq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"qtbridge/internal/logger"
	"qtbridge/internal/qq"
)

// 持久会话后端
// 驱动维持长连接并主动推事件；适配层负责登录态机、一次性事件挂接、
// 以及把原生载荷翻译成规范事件。

// State 会话状态
type State int32

const (
	StateConnecting State = iota
	StateOnline
	StateOffline
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// CreateParams 创建持久会话客户端的参数
type CreateParams struct {
	ID     int64
	Driver Driver
	Login  LoginOptions
}

// Client 持久会话客户端，实现 qq.Client
type Client struct {
	qq.Handlers

	id    int64
	drv   Driver
	login LoginOptions
	entry *log.Entry

	state atomic.Int32

	// taps 只安装一次，重连不重复挂接
	tapsOnce sync.Once

	rkeyMu    sync.Mutex
	rkeys     *RKeys
	rkeysTime time.Time
}

var _ qq.Client = (*Client)(nil)

// Create 登录并完成事件挂接。登录失败（含验证回调失败）视为创建失败。
func Create(ctx context.Context, params CreateParams) (*Client, error) {
	c := &Client{
		id:    params.ID,
		drv:   params.Driver,
		login: params.Login,
		entry: logger.With("oicq", params.ID),
	}
	c.state.Store(int32(StateConnecting))

	c.installTaps()

	if err := c.drv.Login(ctx, params.Login); err != nil {
		c.state.Store(int32(StateOffline))
		return nil, fmt.Errorf("login failed: %w", err)
	}
	c.state.Store(int32(StateOnline))
	c.entry.Infof("Session online as %d (%s)", c.drv.Uin(), c.drv.Nickname())
	return c, nil
}

// State 当前会话状态
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) ID() int64        { return c.id }
func (c *Client) Uin() int64       { return c.drv.Uin() }
func (c *Client) Nickname() string { return c.drv.Nickname() }

// IsOnline 本地状态即权威，不发网络请求
func (c *Client) IsOnline(ctx context.Context) (bool, error) {
	return c.State() == StateOnline && c.drv.Online(), nil
}

func (c *Client) installTaps() {
	c.tapsOnce.Do(func() {
		c.drv.OnMessage(c.onMessage)
		c.drv.OnNotice(c.onNotice)
		c.drv.OnRequest(c.onRequest)
		c.drv.OnOffline(c.onOffline)
	})
}

// reconnectBase 首次重连前的等待，测试里会调小
var reconnectBase = 5 * time.Second

// onOffline 掉线后进入重连循环，指数退避封顶 5 分钟
func (c *Client) onOffline(reason string) {
	c.state.Store(int32(StateOffline))
	c.entry.Warnf("Session offline: %s", reason)

	go func() {
		c.state.Store(int32(StateReconnecting))
		backoff := reconnectBase
		for {
			time.Sleep(backoff)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := c.drv.Login(ctx, c.login)
			cancel()
			if err == nil {
				c.state.Store(int32(StateOnline))
				c.entry.Info("Session restored")
				return
			}
			c.entry.Warnf("Reconnect failed: %v", err)
			backoff *= 2
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
		}
	}()
}

func (c *Client) onMessage(m *NativeMessage) {
	ctx := context.Background()

	var chat qq.Chat
	var err error
	if m.GroupID != 0 {
		chat, err = c.PickGroup(ctx, m.GroupID)
	} else {
		chat, err = c.PickFriend(ctx, m.UserID)
	}
	if err != nil {
		c.entry.Warnf("Failed to resolve chat for message seq=%d: %v", m.Seq, err)
		return
	}

	name := m.Card
	if name == "" {
		name = m.Nickname
	}
	event := &qq.MessageEvent{
		Chat: chat,
		From: qq.Sender{
			ID:       m.UserID,
			Name:     name,
			Nickname: m.Nickname,
			Card:     m.Card,
		},
		Elements:  m.Elements,
		Seq:       m.Seq,
		Rand:      m.Rand,
		Pktnum:    m.Pktnum,
		Time:      m.Time,
		Brief:     qq.BriefOf(m.Elements),
		ReplyTo:   m.ReplyTo,
		MessageID: m.MessageID,
		AtMe:      m.AtMe,
		AtAll:     m.AtAll,
	}
	if m.Anonymous != "" {
		event.Anon = &qq.Anonymous{Name: m.Anonymous}
	}
	c.DispatchMessage(ctx, event)
}

func (c *Client) onNotice(n *NativeNotice) {
	ctx := context.Background()

	switch n.Type {
	case "group_increase":
		group, err := c.PickGroup(ctx, n.GroupID)
		if err != nil {
			return
		}
		nickname := ""
		if member, err := group.PickMember(ctx, n.UserID); err == nil {
			if info, err := member.Renew(ctx); err == nil {
				nickname = info.DisplayName()
			}
		}
		c.DispatchGroupMemberIncrease(ctx, &qq.GroupMemberIncreaseEvent{
			Group:    group,
			UserID:   n.UserID,
			Nickname: nickname,
		})

	case "group_decrease", "dismiss":
		group, err := c.PickGroup(ctx, n.GroupID)
		if err != nil {
			return
		}
		c.DispatchGroupMemberDecrease(ctx, &qq.GroupMemberDecreaseEvent{
			Group:      group,
			UserID:     n.UserID,
			OperatorID: n.OperatorID,
			Dismiss:    n.Type == "dismiss",
		})

	case "friend_increase":
		friend, err := c.PickFriend(ctx, n.UserID)
		if err != nil {
			return
		}
		c.DispatchFriendIncrease(ctx, &qq.FriendIncreaseEvent{Friend: friend})

	case "group_recall":
		chat, err := c.GetChat(ctx, -n.GroupID)
		if err != nil {
			return
		}
		c.DispatchMessageRecall(ctx, &qq.MessageRecallEvent{
			Chat: chat,
			Seq:  n.Seq,
			Rand: n.Rand,
			Time: n.Time,
		})

	case "friend_recall":
		chat, err := c.GetChat(ctx, n.UserID)
		if err != nil {
			return
		}
		c.DispatchMessageRecall(ctx, &qq.MessageRecallEvent{
			Chat: chat,
			Seq:  n.Seq,
			Rand: n.Rand,
			Time: n.Time,
		})

	case "poke":
		roomID := n.UserID
		if n.GroupID != 0 {
			roomID = -n.GroupID
		}
		chat, err := c.GetChat(ctx, roomID)
		if err != nil {
			return
		}
		action := n.Action
		if action == "" {
			action = "戳了戳"
		}
		c.DispatchPoke(ctx, &qq.PokeEvent{
			Chat:     chat,
			FromID:   n.OperatorID,
			TargetID: n.TargetID,
			Action:   action,
			Suffix:   n.Suffix,
		})
	}
}

func (c *Client) onRequest(r *NativeRequest) {
	ctx := context.Background()

	switch r.Type {
	case "friend":
		flag := r.Flag
		c.DispatchFriendRequest(ctx, &qq.FriendRequestEvent{
			UserID:   r.UserID,
			Nickname: r.Nickname,
			Comment:  r.Comment,
			Flag:     flag,
			Time:     r.Time,
			Approve: func(ctx context.Context, yes bool) bool {
				if err := c.drv.ApproveFriendRequest(ctx, flag, yes); err != nil {
					c.entry.Warnf("Failed to handle friend request %s: %v", flag, err)
					return false
				}
				return true
			},
		})

	case "group_invite":
		flag := r.Flag
		c.DispatchGroupInvite(ctx, &qq.GroupInviteEvent{
			GroupID:   r.GroupID,
			GroupName: r.GroupName,
			UserID:    r.UserID,
			Nickname:  r.Nickname,
			Role:      r.Role,
			Flag:      flag,
			Time:      r.Time,
			Approve: func(ctx context.Context, yes bool) bool {
				if err := c.drv.ApproveGroupInvite(ctx, flag, yes); err != nil {
					c.entry.Warnf("Failed to handle group invite %s: %v", flag, err)
					return false
				}
				return true
			},
		})
	}
}

// GetChat 正数好友，负数群
func (c *Client) GetChat(ctx context.Context, roomID int64) (qq.Chat, error) {
	return qq.ResolveChat(ctx, c, roomID)
}

// PickFriend 构造好友句柄并刷新资料
func (c *Client) PickFriend(ctx context.Context, uin int64) (qq.Friend, error) {
	info, err := c.drv.GetFriendInfo(ctx, uin)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d", qq.ErrNotFound, uin)
	}
	return &friend{client: c, info: info}, nil
}

// PickGroup 构造群句柄并刷新资料
func (c *Client) PickGroup(ctx context.Context, gid int64) (qq.Group, error) {
	info, err := c.drv.GetGroupInfo(ctx, gid)
	if err != nil {
		return nil, fmt.Errorf("%w: group %d", qq.ErrNotFound, gid)
	}
	return &group{client: c, info: info}, nil
}

// GetFriendsWithCluster 按驱动返回的分组名聚合好友
func (c *Client) GetFriendsWithCluster(ctx context.Context) ([]*qq.FriendCluster, error) {
	friends, err := c.drv.GetFriendList(ctx)
	if err != nil {
		return nil, err
	}
	var order []string
	byName := make(map[string]*qq.FriendCluster)
	for _, info := range friends {
		name := info.Category
		if name == "" {
			name = "我的好友"
		}
		cluster, ok := byName[name]
		if !ok {
			cluster = &qq.FriendCluster{Name: name}
			byName[name] = cluster
			order = append(order, name)
		}
		cluster.Friends = append(cluster.Friends, &friend{client: c, info: info})
	}
	clusters := make([]*qq.FriendCluster, 0, len(order))
	for _, name := range order {
		clusters = append(clusters, byName[name])
	}
	return clusters, nil
}

// GetGroupList 拉取已加入的群列表
func (c *Client) GetGroupList(ctx context.Context) ([]qq.Group, error) {
	infos, err := c.drv.GetGroupList(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]qq.Group, 0, len(infos))
	for _, info := range infos {
		groups = append(groups, &group{client: c, info: info})
	}
	return groups, nil
}
