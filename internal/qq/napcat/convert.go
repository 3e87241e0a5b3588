package napcat

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"qtbridge/internal/logger"
	"qtbridge/internal/qq"
)

// 消息内容的双向转码
// 入站：网关消息段 → 规范元素；reply 段在进转码之前就被摘走单独处理，
// 永远不会出现在这里。出站：规范元素 → 网关消息段；网关只认文件路径和
// URL，内联字节必须先落盘成临时文件，由调用方保证发送结束后清理。

// ErrUnsupportedElement 不支持的消息元素，转码立即失败而不是静默丢内容
var ErrUnsupportedElement = errors.New("unsupported message element")

var schemeRegex = regexp.MustCompile(`^(https?|file)://`)

// tempFiles 一次发送范围内产生的临时文件集合
// 无论发送成功与否都必须调用 Cleanup
type tempFiles struct {
	paths []string
}

func (t *tempFiles) Write(data []byte) (string, error) {
	f, err := os.CreateTemp("", "qtbridge-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	t.paths = append(t.paths, f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

func (t *tempFiles) Cleanup() {
	for _, path := range t.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.L().Warnf("Failed to remove temp file %s: %v", path, err)
		}
	}
	t.paths = nil
}

// elementToSegment 规范元素 → 网关消息段
// 媒体类元素的内联字节会写进 tmp 并替换成 file:// URL
func elementToSegment(elem qq.Element, tmp *tempFiles) (outSegment, error) {
	switch e := elem.(type) {
	case *qq.TextElement:
		return outSegment{Type: "text", Data: map[string]any{"text": e.Text}}, nil
	case *qq.AtElement:
		target := strconv.FormatInt(e.QQ, 10)
		if e.All {
			target = "all"
		}
		return outSegment{Type: "at", Data: map[string]any{"qq": target}}, nil
	case *qq.FaceElement:
		return outSegment{Type: "face", Data: map[string]any{"id": e.ID}}, nil
	case *qq.DiceElement:
		return outSegment{Type: "dice", Data: map[string]any{"result": e.Value}}, nil
	case *qq.RPSElement:
		return outSegment{Type: "rps", Data: map[string]any{"result": e.Value}}, nil
	case *qq.ImageElement:
		return mediaSegment("image", e.File, e.URL, e.Data, tmp)
	case *qq.RecordElement:
		return mediaSegment("record", e.File, e.URL, e.Data, tmp)
	case *qq.VideoElement:
		return mediaSegment("video", e.File, e.URL, e.Data, tmp)
	case *qq.JSONElement:
		return outSegment{Type: "json", Data: map[string]any{"data": e.Data}}, nil
	default:
		return outSegment{}, fmt.Errorf("%w: %s", ErrUnsupportedElement, elem.ElementType())
	}
}

func mediaSegment(kind string, file string, url string, data []byte, tmp *tempFiles) (outSegment, error) {
	if file == "" {
		file = url
	}
	if len(data) > 0 {
		path, err := tmp.Write(data)
		if err != nil {
			return outSegment{}, err
		}
		file = path
	}
	if file == "" {
		return outSegment{}, fmt.Errorf("%s element has no payload", kind)
	}
	// 网关只接受 URL 或 file:// 路径
	if !schemeRegex.MatchString(file) {
		file = "file://" + file
	}
	return outSegment{
		Type: kind,
		Data: map[string]any{
			"file":    file,
			"summary": "qtbridge " + kind,
			"name":    kind,
		},
	}, nil
}

// elementsToSegments 转整条消息，任何一个元素失败都放弃整条
func elementsToSegments(elems []qq.Element, tmp *tempFiles) ([]outSegment, error) {
	segments := make([]outSegment, 0, len(elems))
	for _, elem := range elems {
		seg, err := elementToSegment(elem, tmp)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// segmentToElement 网关消息段 → 规范元素
// forward 段保持惰性：只携带资源 ID，内容等到真正查看时再拉取展开
func segmentToElement(seg segment) (qq.Element, error) {
	switch seg.Type {
	case "text":
		return &qq.TextElement{Text: seg.Data.Text}, nil
	case "face":
		return &qq.FaceElement{ID: int32(seg.Data.ID.Int64())}, nil
	case "mface":
		// 商城表情按图片处理
		return &qq.ImageElement{File: seg.Data.URL, URL: seg.Data.URL}, nil
	case "at":
		if seg.Data.QQ.String() == "all" || seg.Data.QQ.Int64() == 0 {
			return &qq.AtElement{All: true, Text: seg.Data.Text}, nil
		}
		return &qq.AtElement{QQ: seg.Data.QQ.Int64(), Text: seg.Data.Text}, nil
	case "image":
		return &qq.ImageElement{File: seg.Data.File, URL: seg.Data.URL}, nil
	case "record":
		return &qq.RecordElement{File: seg.Data.File, URL: seg.Data.URL}, nil
	case "video":
		// URL 可以直接拿到，file 字段保持一致便于回放
		return &qq.VideoElement{File: seg.Data.URL, URL: seg.Data.URL}, nil
	case "file":
		return &qq.FileElement{FileID: seg.Data.FileID, Name: seg.Data.File, Size: seg.Data.FileSize}, nil
	case "json":
		return &qq.JSONElement{Data: seg.Data.Data}, nil
	case "markdown":
		return &qq.MarkdownElement{Content: seg.Data.Content}, nil
	case "dice":
		return &qq.DiceElement{Value: int(seg.Data.Result.Int64())}, nil
	case "rps":
		return &qq.RPSElement{Value: int(seg.Data.Result.Int64())}, nil
	case "forward":
		return &qq.ForwardElement{ResID: seg.Data.ID.String()}, nil
	case "reply":
		return nil, fmt.Errorf("reply segment should have been extracted before translation")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedElement, seg.Type)
	}
}

// segmentsToElements 转整条消息，失败即整条失败
func segmentsToElements(segs []segment) ([]qq.Element, error) {
	elems := make([]qq.Element, 0, len(segs))
	for _, seg := range segs {
		elem, err := segmentToElement(seg)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

// extractReply 从消息段里摘出 reply 段，返回剩余段和被引用的消息 ID
// reply 不是内容元素，单独走 get_msg 回查后挂到事件的 ReplyTo 上
func extractReply(segs []segment) ([]segment, int64, bool) {
	for i, seg := range segs {
		if seg.Type == "reply" {
			rest := make([]segment, 0, len(segs)-1)
			rest = append(rest, segs[:i]...)
			rest = append(rest, segs[i+1:]...)
			return rest, seg.Data.ID.Int64(), true
		}
	}
	return segs, 0, false
}
