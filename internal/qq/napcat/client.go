package napcat

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"qtbridge/internal/logger"
	"qtbridge/internal/qq"
)

// 网关 RPC 后端
// 协议是单条 WebSocket 连接上的双向 JSON 帧：出站请求带 echo 关联令牌，
// 入站分带 echo 的响应和不带 echo 的事件推送。所有实体操作都翻译成
// 对应的 action 调用。

const apiTimeout = 30 * time.Second

// CreateParams 创建网关客户端的参数
type CreateParams struct {
	// ID 实例 ID，用作多账号路由键
	ID int64
	// WSURL 网关 WebSocket 地址
	WSURL string
	// OnDisconnect 连接断开时的回调，可为 nil
	OnDisconnect func(err error)
}

type apiResult struct {
	data json.RawMessage
	err  error
}

// Client 网关 RPC 客户端，实现 qq.Client
type Client struct {
	qq.Handlers

	id           int64
	conn         *websocket.Conn
	onDisconnect func(error)
	entry        *log.Entry

	// ready 自检完成后关闭，推送处理要等它：
	// readLoop 先于 refreshSelf 启动，uin 在自检前还没写入
	ready chan struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan apiResult

	uin      int64
	nickname string
}

var _ qq.Client = (*Client)(nil)

// Create 建立连接并完成自检。自检失败视为创建失败，连接会被关掉。
func Create(ctx context.Context, params CreateParams) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, params.WSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway: %w", err)
	}

	c := &Client{
		id:           params.ID,
		conn:         conn,
		onDisconnect: params.OnDisconnect,
		entry:        logger.With("napcat", params.ID),
		ready:        make(chan struct{}),
		pending:      make(map[string]chan apiResult),
	}

	go c.readLoop()

	if err := c.refreshSelf(ctx); err != nil {
		conn.Close()
		close(c.ready)
		return nil, fmt.Errorf("failed to fetch login info: %w", err)
	}
	close(c.ready)

	c.entry.Infof("Gateway client online as %d (%s)", c.uin, c.nickname)
	return c, nil
}

// Close 关闭底层连接
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) ID() int64        { return c.id }
func (c *Client) Uin() int64       { return c.uin }
func (c *Client) Nickname() string { return c.nickname }

func (c *Client) refreshSelf(ctx context.Context) error {
	var data loginInfoData
	if err := c.callAPI(ctx, "get_login_info", nil, &data); err != nil {
		return err
	}
	c.uin = data.UserID
	c.nickname = data.Nickname
	return nil
}

// IsOnline 查询网关侧的登录状态
func (c *Client) IsOnline(ctx context.Context) (bool, error) {
	var data statusData
	if err := c.callAPI(ctx, "get_status", nil, &data); err != nil {
		return false, err
	}
	return data.Online, nil
}

// newEcho 毫秒时间戳 + 6 位随机数，同一连接内足够唯一
func newEcho() string {
	return fmt.Sprintf("%d%06d", time.Now().UnixMilli(), 100000+rand.IntN(900000))
}

// callAPI 发送一个请求帧并等待对应的响应帧
// out 为 nil 时丢弃响应数据
func (c *Client) callAPI(ctx context.Context, action string, params any, out any) error {
	echo := newEcho()
	ch := make(chan apiResult, 1)

	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}()

	req := apiRequest{Action: action, Params: params, Echo: echo}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	timer := time.NewTimer(apiTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", action, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s timed out", action)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop 唯一的连接读取方
// 推送帧在独立 goroutine 里处理：handler 内部还会发起 API 调用，
// 响应必须由本循环送达，同步处理会自锁。
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failPending(err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.entry.Warnf("Failed to decode gateway frame: %v", err)
			continue
		}

		if frame.Echo != "" {
			c.deliver(&frame)
			continue
		}
		if frame.PostType == "" {
			continue
		}
		go c.handlePush(&frame, data)
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for echo, ch := range c.pending {
		ch <- apiResult{err: fmt.Errorf("gateway connection lost: %w", err)}
		delete(c.pending, echo)
	}
}

// deliver 把响应帧路由给等待中的调用方；过期 echo 直接丢弃
func (c *Client) deliver(frame *inboundFrame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[frame.Echo]
	if ok {
		delete(c.pending, frame.Echo)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.entry.Debugf("Dropping stale response echo=%s", frame.Echo)
		return
	}

	if frame.Status == "failed" || (frame.RetCode != 0 && frame.RetCode != 1) {
		ch <- apiResult{err: fmt.Errorf("gateway rejected request: retcode=%d %s", frame.RetCode, frame.Message)}
		return
	}
	ch <- apiResult{data: frame.Data}
}

// handlePush 按 (post_type, notice_type/request_type, sub_type) 分类推送帧
func (c *Client) handlePush(frame *inboundFrame, raw []byte) {
	<-c.ready
	ctx := context.Background()

	switch frame.PostType {
	case "message":
		var push messagePush
		if err := json.Unmarshal(raw, &push); err != nil {
			c.entry.Warnf("Failed to decode message push: %v", err)
			return
		}
		c.handleMessage(ctx, &push)

	case "notice":
		var push noticePush
		if err := json.Unmarshal(raw, &push); err != nil {
			c.entry.Warnf("Failed to decode notice push: %v", err)
			return
		}
		c.handleNotice(ctx, &push)

	case "request":
		var push requestPush
		if err := json.Unmarshal(raw, &push); err != nil {
			c.entry.Warnf("Failed to decode request push: %v", err)
			return
		}
		c.handleRequest(ctx, &push)
	}
}

func (c *Client) handleMessage(ctx context.Context, push *messagePush) {
	if push.UserID == c.uin && push.MessageType == "private" {
		// 自己发给自己的回显
		return
	}

	var chat qq.Chat
	var err error
	if push.MessageType == "group" {
		chat, err = c.PickGroup(ctx, push.GroupID)
	} else {
		chat, err = c.PickFriend(ctx, push.UserID)
	}
	if err != nil {
		c.entry.Warnf("Failed to resolve chat for message %d: %v", push.MessageID, err)
		return
	}

	segs, replyID, hasReply := extractReply(push.Message)
	elems, err := segmentsToElements(segs)
	if err != nil {
		c.entry.Warnf("Failed to translate message %d: %v", push.MessageID, err)
		return
	}

	name := push.Sender.Card
	if name == "" {
		name = push.Sender.Nickname
	}

	event := &qq.MessageEvent{
		Chat: chat,
		From: qq.Sender{
			ID:       push.UserID,
			Name:     name,
			Nickname: push.Sender.Nickname,
			Card:     push.Sender.Card,
		},
		Elements:  elems,
		Seq:       push.MessageID,
		Time:      push.Time,
		Brief:     qq.BriefOf(elems),
		MessageID: fmt.Sprintf("%d", push.MessageID),
	}

	for _, elem := range elems {
		if at, ok := elem.(*qq.AtElement); ok {
			if at.All {
				event.AtAll = true
			} else if at.QQ == c.uin {
				event.AtMe = true
			}
		}
	}

	if hasReply {
		if target, err := c.fetchReplyTarget(ctx, replyID); err != nil {
			c.entry.Warnf("Failed to resolve reply target %d: %v", replyID, err)
		} else {
			event.ReplyTo = target
		}
	}

	c.DispatchMessage(ctx, event)
}

// fetchReplyTarget 按消息 ID 回查被引用的消息
func (c *Client) fetchReplyTarget(ctx context.Context, messageID int64) (*qq.ReplyTarget, error) {
	var data getMsgData
	if err := c.callAPI(ctx, "get_msg", map[string]any{"message_id": messageID}, &data); err != nil {
		return nil, err
	}
	segs, _, _ := extractReply(data.Message)
	elems, err := segmentsToElements(segs)
	if err != nil {
		return nil, err
	}
	return &qq.ReplyTarget{
		FromID:   data.Sender.UserID,
		Time:     data.Time,
		Seq:      data.MessageID,
		Elements: elems,
	}, nil
}

func (c *Client) handleNotice(ctx context.Context, push *noticePush) {
	switch push.NoticeType {
	case "group_increase":
		group, err := c.PickGroup(ctx, push.GroupID)
		if err != nil {
			c.entry.Warnf("Failed to resolve group %d: %v", push.GroupID, err)
			return
		}
		nickname := ""
		if member, err := group.PickMember(ctx, push.UserID); err == nil {
			if info, err := member.Renew(ctx); err == nil {
				nickname = info.DisplayName()
			}
		}
		c.DispatchGroupMemberIncrease(ctx, &qq.GroupMemberIncreaseEvent{
			Group:    group,
			UserID:   push.UserID,
			Nickname: nickname,
		})

	case "group_decrease":
		group, err := c.PickGroup(ctx, push.GroupID)
		if err != nil {
			c.entry.Warnf("Failed to resolve group %d: %v", push.GroupID, err)
			return
		}
		c.DispatchGroupMemberDecrease(ctx, &qq.GroupMemberDecreaseEvent{
			Group:      group,
			UserID:     push.UserID,
			OperatorID: push.OperatorID,
			Dismiss:    push.SubType == "disband",
		})

	case "friend_add":
		friend, err := c.PickFriend(ctx, push.UserID)
		if err != nil {
			c.entry.Warnf("Failed to resolve new friend %d: %v", push.UserID, err)
			return
		}
		c.DispatchFriendIncrease(ctx, &qq.FriendIncreaseEvent{Friend: friend})

	case "group_recall":
		chat, err := c.GetChat(ctx, -push.GroupID)
		if err != nil {
			return
		}
		c.DispatchMessageRecall(ctx, &qq.MessageRecallEvent{
			Chat: chat,
			Seq:  push.MessageID,
			Time: push.Time,
		})

	case "friend_recall":
		chat, err := c.GetChat(ctx, push.UserID)
		if err != nil {
			return
		}
		c.DispatchMessageRecall(ctx, &qq.MessageRecallEvent{
			Chat: chat,
			Seq:  push.MessageID,
			Time: push.Time,
		})

	case "notify":
		if push.SubType != "poke" {
			return
		}
		roomID := push.UserID
		if push.GroupID != 0 {
			roomID = -push.GroupID
		}
		chat, err := c.GetChat(ctx, roomID)
		if err != nil {
			return
		}
		c.DispatchPoke(ctx, &qq.PokeEvent{
			Chat:     chat,
			FromID:   push.UserID,
			TargetID: push.TargetID,
			Action:   "戳了戳",
		})
	}
}

func (c *Client) handleRequest(ctx context.Context, push *requestPush) {
	switch push.RequestType {
	case "friend":
		c.dispatchFriendRequest(ctx, push)
	case "group":
		if push.SubType == "invite" {
			c.dispatchGroupInvite(ctx, push)
		}
	}
}

// GetChat 正数好友，负数群
func (c *Client) GetChat(ctx context.Context, roomID int64) (qq.Chat, error) {
	return qq.ResolveChat(ctx, c, roomID)
}

// PickFriend 构造好友句柄并刷新一次资料
func (c *Client) PickFriend(ctx context.Context, uin int64) (qq.Friend, error) {
	f := newFriend(c, uin)
	if err := f.Renew(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// PickGroup 构造群句柄并刷新一次资料
func (c *Client) PickGroup(ctx context.Context, gid int64) (qq.Group, error) {
	g := newGroup(c, gid)
	if err := g.Renew(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// GetFriendsWithCluster 按分组拉取好友列表
func (c *Client) GetFriendsWithCluster(ctx context.Context) ([]*qq.FriendCluster, error) {
	var data []friendCategoryData
	if err := c.callAPI(ctx, "get_friends_with_category", nil, &data); err != nil {
		return nil, err
	}
	clusters := make([]*qq.FriendCluster, 0, len(data))
	for _, cat := range data {
		name := cat.CategoryName
		if name == "" {
			// 上游接口的历史拼写
			name = cat.CategroyName
		}
		cluster := &qq.FriendCluster{Name: name}
		for _, buddy := range cat.BuddyList {
			cluster.Friends = append(cluster.Friends, existingFriend(c, buddy.Uin.Int64(), buddy.Nick, buddy.Remark))
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

// GetGroupList 拉取已加入的群列表
func (c *Client) GetGroupList(ctx context.Context) ([]qq.Group, error) {
	var data []groupInfoData
	if err := c.callAPI(ctx, "get_group_list", nil, &data); err != nil {
		return nil, err
	}
	groups := make([]qq.Group, 0, len(data))
	for _, info := range data {
		groups = append(groups, existingGroup(c, info.GroupID, info.GroupName))
	}
	return groups, nil
}

// CreateSpoilerImage 网关协议没有折叠卡片，用默认的警告文本表示
func (c *Client) CreateSpoilerImage(ctx context.Context, image *qq.ImageElement, nickname string, title string) ([]qq.Element, error) {
	return qq.DefaultSpoilerImage(image, title), nil
}
