package qq

// 消息元素（富文本内容模型）
// 每种元素对应一个具体类型，适配器负责与各自平台的原生表示互转。

// Element 是所有消息元素的公共接口
type Element interface {
	// ElementType 返回元素类型标识（用于日志和 brief 生成）
	ElementType() string
}

// TextElement 纯文本
type TextElement struct {
	Text string
}

func (TextElement) ElementType() string { return "text" }

// ImageElement 图片
// File 为本地路径或 URL；Data 为内联字节（发送前需要落盘的后端会自行处理）
type ImageElement struct {
	File string
	URL  string
	Data []byte
}

func (ImageElement) ElementType() string { return "image" }

// RecordElement 语音
type RecordElement struct {
	File string
	URL  string
	Data []byte
}

func (RecordElement) ElementType() string { return "record" }

// VideoElement 视频
type VideoElement struct {
	File string
	URL  string
	Data []byte
}

func (VideoElement) ElementType() string { return "video" }

// AtElement @某人
// All 为 true 表示 @全体成员
type AtElement struct {
	QQ   int64
	Text string
	All  bool
}

func (AtElement) ElementType() string { return "at" }

// FaceElement 平台内置表情
type FaceElement struct {
	ID   int32
	Text string
}

func (FaceElement) ElementType() string { return "face" }

// DiceElement 骰子
type DiceElement struct {
	Value int
}

func (DiceElement) ElementType() string { return "dice" }

// RPSElement 猜拳
type RPSElement struct {
	Value int
}

func (RPSElement) ElementType() string { return "rps" }

// FileElement 群文件/私聊文件
type FileElement struct {
	FileID string
	Name   string
	Size   int64
}

func (FileElement) ElementType() string { return "file" }

// JSONElement 平台 JSON 卡片
type JSONElement struct {
	Data string
}

func (JSONElement) ElementType() string { return "json" }

// MarkdownElement 平台 Markdown 卡片
type MarkdownElement struct {
	Content string
}

func (MarkdownElement) ElementType() string { return "markdown" }

// XMLElement 平台 XML 卡片（合并转发查看器等）
type XMLElement struct {
	ID   int
	Data string
}

func (XMLElement) ElementType() string { return "xml" }

// ForwardElement 合并转发
// 内容模型是递归的：每条子消息的元素里还可以再嵌套 ForwardElement
type ForwardElement struct {
	ResID    string
	Messages []*ForwardMessage
}

func (ForwardElement) ElementType() string { return "forward" }

// ForwardMessage 合并转发中的一条子消息
type ForwardMessage struct {
	GroupID  int64
	UserID   int64
	Nickname string
	Time     int64
	Seq      int64
	Brief    string
	Elements []Element
}

// ReplyTarget 引用回复目标
type ReplyTarget struct {
	FromID   int64
	Time     int64
	Seq      int64
	Rand     int64
	Elements []Element
}

// MessageRet 发送结果
type MessageRet struct {
	MessageID string
	Seq       int64
	Rand      int64
	Time      int64
}

// BriefOf 生成消息元素序列的纯文本摘要
func BriefOf(elems []Element) string {
	brief := ""
	for _, elem := range elems {
		switch e := elem.(type) {
		case *TextElement:
			brief += e.Text
		case *AtElement:
			if e.Text != "" {
				brief += e.Text
			} else {
				brief += "[@]"
			}
		case *ImageElement:
			brief += "[图片]"
		case *RecordElement:
			brief += "[语音]"
		case *VideoElement:
			brief += "[视频]"
		case *FaceElement:
			brief += "[表情]"
		case *DiceElement:
			brief += "[骰子]"
		case *RPSElement:
			brief += "[猜拳]"
		case *FileElement:
			brief += "[文件]"
		case *ForwardElement:
			brief += "[合并转发]"
		default:
			brief += "[" + elem.ElementType() + "]"
		}
	}
	return brief
}

// Text 构造一个文本元素，省去到处写取址字面量
func Text(s string) *TextElement { return &TextElement{Text: s} }

// DefaultSpoilerImage 默认的 Spoiler 图片表示：警告文本 + 原图内联
// 支持平台原生折叠卡片的后端会覆盖这个实现
func DefaultSpoilerImage(image *ImageElement, title string) []Element {
	res := []Element{
		Text("[Spoiler 图片]"),
		image,
	}
	if title != "" {
		res = append(res, Text(title))
	}
	return res
}
