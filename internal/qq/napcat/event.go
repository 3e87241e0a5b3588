package napcat

import (
	"context"

	"qtbridge/internal/qq"
)

// 审批类事件的构造
// flag 是网关签发的不透明凭证，原样回传给审批接口

func (c *Client) dispatchFriendRequest(ctx context.Context, push *requestPush) {
	nickname := ""
	var info strangerInfoData
	if err := c.callAPI(ctx, "get_stranger_info", map[string]any{"user_id": push.UserID}, &info); err == nil {
		nickname = info.Nickname
	}

	flag := push.Flag
	event := &qq.FriendRequestEvent{
		UserID:   push.UserID,
		Nickname: nickname,
		Comment:  push.Comment,
		Flag:     flag,
		Time:     push.Time,
		Approve: func(ctx context.Context, yes bool) bool {
			err := c.callAPI(ctx, "set_friend_add_request", map[string]any{
				"flag":    flag,
				"approve": yes,
			}, nil)
			if err != nil {
				c.entry.Warnf("Failed to handle friend request %s: %v", flag, err)
				return false
			}
			return true
		},
	}
	c.DispatchFriendRequest(ctx, event)
}

func (c *Client) dispatchGroupInvite(ctx context.Context, push *requestPush) {
	groupName := ""
	var ginfo groupInfoData
	if err := c.callAPI(ctx, "get_group_info", map[string]any{"group_id": push.GroupID}, &ginfo); err == nil {
		groupName = ginfo.GroupName
	}

	nickname := ""
	role := ""
	var minfo memberInfoData
	err := c.callAPI(ctx, "get_group_member_info", map[string]any{
		"group_id": push.GroupID,
		"user_id":  push.UserID,
	}, &minfo)
	if err == nil {
		nickname = minfo.Nickname
		role = minfo.Role
	} else {
		var sinfo strangerInfoData
		if err := c.callAPI(ctx, "get_stranger_info", map[string]any{"user_id": push.UserID}, &sinfo); err == nil {
			nickname = sinfo.Nickname
		}
	}

	flag := push.Flag
	event := &qq.GroupInviteEvent{
		GroupID:   push.GroupID,
		GroupName: groupName,
		UserID:    push.UserID,
		Nickname:  nickname,
		Role:      role,
		Flag:      flag,
		Time:      push.Time,
		Approve: func(ctx context.Context, yes bool) bool {
			err := c.callAPI(ctx, "set_group_add_request", map[string]any{
				"flag":     flag,
				"sub_type": "invite",
				"approve":  yes,
			}, nil)
			if err != nil {
				c.entry.Warnf("Failed to handle group invite %s: %v", flag, err)
				return false
			}
			return true
		},
	}
	c.DispatchGroupInvite(ctx, event)
}
