package napcat

import (
	"context"
	"fmt"
	"strconv"

	"qtbridge/internal/qq"
)

// 实体句柄
// Friend/Group 都是轻量句柄，资料按需 Renew；发送走同一条路径：
// 翻译成消息段（必要时落盘临时文件）、拼上引用段、调对应 action。

// sendSegments 私聊/群聊共用的发送路径
// 临时文件在返回前无条件清理，网关在响应前已读取完毕
func sendSegments(ctx context.Context, c *Client, action string, target map[string]any, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	tmp := &tempFiles{}
	defer tmp.Cleanup()

	segments, err := elementsToSegments(content, tmp)
	if err != nil {
		return nil, err
	}
	if source != nil {
		// 引用段必须在消息段序列最前面
		reply := outSegment{Type: "reply", Data: map[string]any{"id": strconv.FormatInt(source.Seq, 10)}}
		segments = append([]outSegment{reply}, segments...)
	}

	params := map[string]any{"message": segments}
	for k, v := range target {
		params[k] = v
	}

	var data sendMsgData
	if err := c.callAPI(ctx, action, params, &data); err != nil {
		return nil, err
	}
	return &qq.MessageRet{
		MessageID: strconv.FormatInt(data.MessageID, 10),
		Seq:       data.MessageID,
	}, nil
}

func recallMessage(ctx context.Context, c *Client, seq int64) bool {
	if err := c.callAPI(ctx, "delete_msg", map[string]any{"message_id": seq}, nil); err != nil {
		c.entry.Warnf("Failed to recall message %d: %v", seq, err)
		return false
	}
	return true
}

func getForwardMessages(ctx context.Context, c *Client, resID string) ([]*qq.ForwardMessage, error) {
	var data forwardMsgData
	if err := c.callAPI(ctx, "get_forward_msg", map[string]any{"message_id": resID}, &data); err != nil {
		return nil, err
	}
	messages := make([]*qq.ForwardMessage, 0, len(data.Messages))
	for _, item := range data.Messages {
		segs, _, _ := extractReply(item.Content)
		elems, err := segmentsToElements(segs)
		if err != nil {
			c.entry.Warnf("Skipping untranslatable forwarded message: %v", err)
			continue
		}
		messages = append(messages, &qq.ForwardMessage{
			GroupID:  item.GroupID,
			UserID:   item.Sender.UserID,
			Nickname: item.Sender.Nickname,
			Time:     item.Time,
			Seq:      item.MessageID,
			Brief:    qq.BriefOf(elems),
			Elements: elems,
		})
	}
	return messages, nil
}

func getFileURL(ctx context.Context, c *Client, fileID string) (string, error) {
	var data getFileData
	if err := c.callAPI(ctx, "get_file", map[string]any{"file_id": fileID}, &data); err != nil {
		return "", err
	}
	return data.File, nil
}

// friend 好友会话句柄
type friend struct {
	client   *Client
	uin      int64
	nickname string
	remark   string
}

var _ qq.Friend = (*friend)(nil)

func newFriend(c *Client, uin int64) *friend {
	return &friend{client: c, uin: uin}
}

// existingFriend 从列表查询结果构造，资料已就绪不再回查
func existingFriend(c *Client, uin int64, nickname string, remark string) *friend {
	return &friend{client: c, uin: uin, nickname: nickname, remark: remark}
}

// Renew 刷新好友资料，拒绝解析不存在的账号
func (f *friend) Renew(ctx context.Context) error {
	var data strangerInfoData
	err := f.client.callAPI(ctx, "get_stranger_info", map[string]any{"user_id": f.uin}, &data)
	if err != nil {
		return fmt.Errorf("%w: user %d", qq.ErrNotFound, f.uin)
	}
	f.nickname = data.Nickname
	f.remark = data.Remark
	return nil
}

func (f *friend) RoomID() int64    { return f.uin }
func (f *friend) DM() bool         { return true }
func (f *friend) Uin() int64       { return f.uin }
func (f *friend) Nickname() string { return f.nickname }
func (f *friend) Remark() string   { return f.remark }

func (f *friend) DisplayName() string {
	if f.remark != "" {
		return f.remark
	}
	return f.nickname
}

func (f *friend) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	return sendSegments(ctx, f.client, "send_private_msg", map[string]any{"user_id": f.uin}, content, source)
}

func (f *friend) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	return recallMessage(ctx, f.client, seq)
}

func (f *friend) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	return getForwardMessages(ctx, f.client, resID)
}

func (f *friend) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return getFileURL(ctx, f.client, fileID)
}

func (f *friend) Poke(ctx context.Context, self bool) error {
	target := f.uin
	if self {
		target = f.client.uin
	}
	return f.client.callAPI(ctx, "friend_poke", map[string]any{"user_id": target}, nil)
}

// group 群会话句柄
type group struct {
	client  *Client
	gid     int64
	name    string
	isOwner bool
	isAdmin bool
}

var _ qq.Group = (*group)(nil)

func newGroup(c *Client, gid int64) *group {
	return &group{client: c, gid: gid}
}

func existingGroup(c *Client, gid int64, name string) *group {
	return &group{client: c, gid: gid, name: name}
}

// Renew 刷新群资料和自己在群里的角色
func (g *group) Renew(ctx context.Context) error {
	var data groupInfoData
	err := g.client.callAPI(ctx, "get_group_info", map[string]any{"group_id": g.gid}, &data)
	if err != nil {
		return fmt.Errorf("%w: group %d", qq.ErrNotFound, g.gid)
	}
	g.name = data.GroupName

	var self memberInfoData
	err = g.client.callAPI(ctx, "get_group_member_info", map[string]any{
		"group_id": g.gid,
		"user_id":  g.client.uin,
	}, &self)
	if err == nil {
		g.isOwner = self.Role == "owner"
		g.isAdmin = self.Role == "owner" || self.Role == "admin"
	}
	return nil
}

func (g *group) RoomID() int64 { return -g.gid }
func (g *group) DM() bool      { return false }
func (g *group) GID() int64    { return g.gid }
func (g *group) Name() string  { return g.name }
func (g *group) IsOwner() bool { return g.isOwner }
func (g *group) IsAdmin() bool { return g.isAdmin }

func (g *group) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	return sendSegments(ctx, g.client, "send_group_msg", map[string]any{"group_id": g.gid}, content, source)
}

func (g *group) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	return recallMessage(ctx, g.client, seq)
}

func (g *group) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	return getForwardMessages(ctx, g.client, resID)
}

func (g *group) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return getFileURL(ctx, g.client, fileID)
}

func (g *group) PickMember(ctx context.Context, uin int64) (qq.GroupMember, error) {
	return &groupMember{client: g.client, gid: g.gid, uin: uin}, nil
}

func (g *group) PokeMember(ctx context.Context, uin int64) error {
	return g.client.callAPI(ctx, "group_poke", map[string]any{"group_id": g.gid, "user_id": uin}, nil)
}

func (g *group) MuteMember(ctx context.Context, uin int64, duration int64) error {
	return g.client.callAPI(ctx, "set_group_ban", map[string]any{
		"group_id": g.gid,
		"user_id":  uin,
		"duration": duration,
	}, nil)
}

func (g *group) SetCard(ctx context.Context, uin int64, card string) bool {
	err := g.client.callAPI(ctx, "set_group_card", map[string]any{
		"group_id": g.gid,
		"user_id":  uin,
		"card":     card,
	}, nil)
	if err != nil {
		g.client.entry.Warnf("Failed to set card for %d in group %d: %v", uin, g.gid, err)
		return false
	}
	return true
}

func (g *group) UploadFile(ctx context.Context, file string, name string) error {
	return g.client.callAPI(ctx, "upload_group_file", map[string]any{
		"group_id": g.gid,
		"file":     file,
		"name":     name,
	}, nil)
}

// groupMember 群成员句柄
type groupMember struct {
	client *Client
	gid    int64
	uin    int64
}

var _ qq.GroupMember = (*groupMember)(nil)

func (m *groupMember) Uin() int64 { return m.uin }

func (m *groupMember) Renew(ctx context.Context) (*qq.GroupMemberInfo, error) {
	var data memberInfoData
	err := m.client.callAPI(ctx, "get_group_member_info", map[string]any{
		"group_id": m.gid,
		"user_id":  m.uin,
		"no_cache": true,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("%w: member %d of group %d", qq.ErrNotFound, m.uin, m.gid)
	}
	return &qq.GroupMemberInfo{
		Card:         data.Card,
		Nickname:     data.Nickname,
		Sex:          data.Sex,
		Age:          data.Age,
		JoinTime:     data.JoinTime,
		LastSentTime: data.LastSentTime,
		Role:         data.Role,
		Title:        data.Title,
	}, nil
}
