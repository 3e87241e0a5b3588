package oicq

import (
	"context"

	"qtbridge/internal/qq"
)

// 实体句柄，全部薄封装到驱动的对应操作

type friend struct {
	client *Client
	info   *FriendInfo
}

var _ qq.Friend = (*friend)(nil)

func (f *friend) RoomID() int64    { return f.info.Uin }
func (f *friend) DM() bool         { return true }
func (f *friend) Uin() int64       { return f.info.Uin }
func (f *friend) Nickname() string { return f.info.Nickname }
func (f *friend) Remark() string   { return f.info.Remark }

func (f *friend) DisplayName() string {
	if f.info.Remark != "" {
		return f.info.Remark
	}
	return f.info.Nickname
}

func (f *friend) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	return f.client.drv.SendPrivateMessage(ctx, f.info.Uin, content, source)
}

// RecallMessage 私聊撤回需要 pktnum 参与定位
func (f *friend) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	if err := f.client.drv.RecallPrivateMessage(ctx, f.info.Uin, seq, rand, timeOrPktnum); err != nil {
		f.client.entry.Warnf("Failed to recall private message seq=%d: %v", seq, err)
		return false
	}
	return true
}

func (f *friend) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	return f.client.getForwardMessages(ctx, resID, fileName)
}

func (f *friend) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return f.client.drv.GetFileURL(ctx, f.info.Uin, fileID)
}

func (f *friend) Poke(ctx context.Context, self bool) error {
	return f.client.drv.PokeFriend(ctx, f.info.Uin, self)
}

type group struct {
	client *Client
	info   *GroupInfo
}

var _ qq.Group = (*group)(nil)

func (g *group) RoomID() int64 { return -g.info.GID }
func (g *group) DM() bool      { return false }
func (g *group) GID() int64    { return g.info.GID }
func (g *group) Name() string  { return g.info.Name }
func (g *group) IsOwner() bool { return g.info.IsOwner }
func (g *group) IsAdmin() bool { return g.info.IsAdmin }

func (g *group) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	return g.client.drv.SendGroupMessage(ctx, g.info.GID, content, source)
}

// RecallMessage 群聊撤回只需要 seq
func (g *group) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	if err := g.client.drv.RecallGroupMessage(ctx, g.info.GID, seq); err != nil {
		g.client.entry.Warnf("Failed to recall group message seq=%d: %v", seq, err)
		return false
	}
	return true
}

func (g *group) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	return g.client.getForwardMessages(ctx, resID, fileName)
}

func (g *group) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return g.client.drv.GetFileURL(ctx, -g.info.GID, fileID)
}

func (g *group) PickMember(ctx context.Context, uin int64) (qq.GroupMember, error) {
	return &groupMember{client: g.client, gid: g.info.GID, uin: uin}, nil
}

func (g *group) PokeMember(ctx context.Context, uin int64) error {
	return g.client.drv.PokeMember(ctx, g.info.GID, uin)
}

func (g *group) MuteMember(ctx context.Context, uin int64, duration int64) error {
	return g.client.drv.MuteMember(ctx, g.info.GID, uin, duration)
}

func (g *group) SetCard(ctx context.Context, uin int64, card string) bool {
	if err := g.client.drv.SetMemberCard(ctx, g.info.GID, uin, card); err != nil {
		g.client.entry.Warnf("Failed to set card for %d in group %d: %v", uin, g.info.GID, err)
		return false
	}
	return true
}

func (g *group) UploadFile(ctx context.Context, file string, name string) error {
	return g.client.drv.UploadGroupFile(ctx, g.info.GID, file, name)
}

type groupMember struct {
	client *Client
	gid    int64
	uin    int64
}

var _ qq.GroupMember = (*groupMember)(nil)

func (m *groupMember) Uin() int64 { return m.uin }

func (m *groupMember) Renew(ctx context.Context) (*qq.GroupMemberInfo, error) {
	info, err := m.client.drv.GetMemberInfo(ctx, m.gid, m.uin)
	if err != nil {
		return nil, err
	}
	return &qq.GroupMemberInfo{
		Card:         info.Card,
		Nickname:     info.Nickname,
		Sex:          info.Sex,
		Age:          info.Age,
		JoinTime:     info.JoinTime,
		LastSentTime: info.LastSentTime,
		Role:         info.Role,
		Title:        info.Title,
	}, nil
}
