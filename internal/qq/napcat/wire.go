package napcat

import (
	"encoding/json"
	"strconv"
	"strings"
)

// 网关协议帧
// 出站每个请求带一个 echo 关联令牌；入站分两类：带 echo 的响应帧和
// 不带 echo 的推送帧，推送帧由 (post_type, notice_type/request_type, sub_type)
// 三元组区分。

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
	Echo   string `json:"echo"`
}

type inboundFrame struct {
	Echo        string          `json:"echo,omitempty"`
	Status      string          `json:"status,omitempty"`
	RetCode     int             `json:"retcode,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Message     string          `json:"message,omitempty"`
	PostType    string          `json:"post_type,omitempty"`
	NoticeType  string          `json:"notice_type,omitempty"`
	RequestType string          `json:"request_type,omitempty"`
	SubType     string          `json:"sub_type,omitempty"`
}

// flexID 网关里有的 ID 字段是数字有的是字符串（比如 at 的 "all"），统一收成字符串
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

func (f flexID) Int64() int64 {
	v, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (f flexID) String() string { return string(f) }

// segment 入站消息段
type segment struct {
	Type string      `json:"type"`
	Data segmentData `json:"data"`
}

type segmentData struct {
	Text     string `json:"text,omitempty"`
	ID       flexID `json:"id,omitempty"`
	QQ       flexID `json:"qq,omitempty"`
	File     string `json:"file,omitempty"`
	URL      string `json:"url,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	Result   flexID `json:"result,omitempty"`
	Content  string `json:"content,omitempty"`
	Data     string `json:"data,omitempty"`
}

// outSegment 出站消息段，data 的字段集合因类型而异
type outSegment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type wireSender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

type messagePush struct {
	MessageType string     `json:"message_type"` // private / group
	MessageID   int64      `json:"message_id"`
	UserID      int64      `json:"user_id"`
	GroupID     int64      `json:"group_id"`
	Time        int64      `json:"time"`
	RawMessage  string     `json:"raw_message"`
	Sender      wireSender `json:"sender"`
	Message     []segment  `json:"message"`
}

type noticePush struct {
	NoticeType string `json:"notice_type"`
	SubType    string `json:"sub_type"`
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
	OperatorID int64  `json:"operator_id"`
	SenderID   int64  `json:"sender_id"`
	TargetID   int64  `json:"target_id"`
	MessageID  int64  `json:"message_id"`
	Time       int64  `json:"time"`
}

type requestPush struct {
	RequestType string `json:"request_type"`
	SubType     string `json:"sub_type"`
	UserID      int64  `json:"user_id"`
	GroupID     int64  `json:"group_id"`
	Comment     string `json:"comment"`
	Flag        string `json:"flag"`
	Time        int64  `json:"time"`
}

// API 响应体

type loginInfoData struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

type statusData struct {
	Online bool `json:"online"`
}

type strangerInfoData struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
	Sex      string `json:"sex"`
	Age      int    `json:"age"`
}

type groupInfoData struct {
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
}

type memberInfoData struct {
	UserID       int64  `json:"user_id"`
	Nickname     string `json:"nickname"`
	Card         string `json:"card"`
	Sex          string `json:"sex"`
	Age          int    `json:"age"`
	JoinTime     int64  `json:"join_time"`
	LastSentTime int64  `json:"last_sent_time"`
	Role         string `json:"role"`
	Title        string `json:"title"`
}

type sendMsgData struct {
	MessageID int64 `json:"message_id"`
}

type getMsgData struct {
	MessageID   int64      `json:"message_id"`
	MessageType string     `json:"message_type"`
	Time        int64      `json:"time"`
	Sender      wireSender `json:"sender"`
	Message     []segment  `json:"message"`
}

type getFileData struct {
	File string `json:"file"`
}

type friendCategoryData struct {
	CategoryName string `json:"categoryName"`
	// 上游接口存在拼写错误的兼容字段
	CategroyName string             `json:"categroyName"`
	BuddyList    []friendBuddyEntry `json:"buddyList"`
}

type friendBuddyEntry struct {
	Uin    flexID `json:"uin"`
	Nick   string `json:"nick"`
	Remark string `json:"remark"`
}

type forwardMsgData struct {
	Messages []forwardMsgItem `json:"messages"`
}

type forwardMsgItem struct {
	MessageType string     `json:"message_type"`
	MessageID   int64      `json:"message_id"`
	GroupID     int64      `json:"group_id"`
	Time        int64      `json:"time"`
	RawMessage  string     `json:"raw_message"`
	Sender      wireSender `json:"sender"`
	Content     []segment  `json:"content"`
}
