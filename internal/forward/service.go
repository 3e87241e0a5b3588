package forward

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	botModels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"qtbridge/internal/logger"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
	"qtbridge/internal/telegram"
)

// TGBot Telegram 侧的能力面，*telegram.Bot 是全量实现
type TGBot interface {
	ID() int64
	AddMessageHandler(fn telegram.MessageHandler) int
	AddEditedMessageHandler(fn telegram.MessageHandler) int
	SendText(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*botModels.Message, error)
	SendPhoto(ctx context.Context, chatID int64, media *telegram.InputMedia, caption string, opts *telegram.SendOptions) (*botModels.Message, error)
	SendVoice(ctx context.Context, chatID int64, media *telegram.InputMedia, caption string, opts *telegram.SendOptions) (*botModels.Message, error)
	SendVideo(ctx context.Context, chatID int64, media *telegram.InputMedia, caption string, opts *telegram.SendOptions) (*botModels.Message, error)
	SendDocument(ctx context.Context, chatID int64, media *telegram.InputMedia, caption string, opts *telegram.SendOptions) (*botModels.Message, error)
	GetFileURL(ctx context.Context, fileID string) (string, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) bool
}

var _ TGBot = (*telegram.Bot)(nil)

// Service 双向转码
// 把一侧的消息内容翻译成另一侧的发送计划并执行，回复关系通过账本解析
type Service struct {
	instanceID int64
	client     qq.Client
	tg         TGBot
	msgRepo    repository.MessageRepository
	fwdRepo    repository.ForwardMultipleRepository
	webBaseURL string
}

// NewService 创建转码服务
func NewService(instanceID int64, client qq.Client, tg TGBot, msgRepo repository.MessageRepository, fwdRepo repository.ForwardMultipleRepository, webBaseURL string) *Service {
	return &Service{
		instanceID: instanceID,
		client:     client,
		tg:         tg,
		msgRepo:    msgRepo,
		fwdRepo:    fwdRepo,
		webBaseURL: webBaseURL,
	}
}

// utf16Len Telegram 实体偏移按 UTF-16 编码单元计
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// headerEntity 发送者名的实体：富头部用资料链接，否则加粗
func (s *Service) headerEntity(nick string, pair *Pair, senderID int64, richHeader bool) botModels.MessageEntity {
	entity := botModels.MessageEntity{
		Offset: 0,
		Length: utf16Len(nick),
	}
	if richHeader && s.webBaseURL != "" {
		entity.Type = botModels.MessageEntityTypeTextLink
		entity.URL = fmt.Sprintf("%s/richHeader/%s/%d", s.webBaseURL, pair.APIKey, senderID)
	} else {
		entity.Type = botModels.MessageEntityTypeBold
	}
	return entity
}

// freshURL 发送前给可能过期的多媒体 CDN 链接重签密钥
// 后端不支持重签或重签失败时原样返回
func (s *Service) freshURL(ctx context.Context, url string) string {
	refresher, ok := s.client.(qq.RKeyRefresher)
	if !ok || url == "" {
		return url
	}
	fresh, err := refresher.RefreshImageRKey(ctx, url)
	if err != nil {
		logger.L().Warnf("Failed to refresh media rkey: %v", err)
		return url
	}
	return fresh
}

// resolveQQReply 把 QQ 侧的引用回复换成 Telegram 侧的消息 ID
func (s *Service) resolveQQReply(ctx context.Context, pair *Pair, replyTo *qq.ReplyTarget) int {
	if replyTo == nil {
		return 0
	}
	row, err := s.msgRepo.FindByQQSeq(ctx, s.instanceID, pair.QQRoomID(), replyTo.Seq)
	if err != nil {
		return 0
	}
	return row.TGMsgID
}

// ForwardQQMessage 把一条 QQ 消息送达 Telegram 侧
// 一条 QQ 消息可能落成多条 Telegram 消息（文本 + 每个媒体各一条）。
// 中途失败时返回错误的同时也返回已经送达的部分，调用方照常入账
func (s *Service) ForwardQQMessage(ctx context.Context, pair *Pair, event *qq.MessageEvent, richHeader bool) ([]*botModels.Message, bool, error) {
	nick := event.From.Name
	if event.Anon != nil {
		nick = event.Anon.Name
	}
	header := nick + ": "
	headerEnt := s.headerEntity(nick, pair, event.From.ID, richHeader)
	richUsed := headerEnt.Type == botModels.MessageEntityTypeTextLink

	opts := &telegram.SendOptions{
		ReplyTo:  s.resolveQQReply(ctx, pair, event.ReplyTo),
		Entities: []botModels.MessageEntity{headerEnt},
	}

	var text strings.Builder
	var media []mediaPlan
	for _, elem := range event.Elements {
		switch e := elem.(type) {
		case *qq.TextElement:
			text.WriteString(e.Text)
		case *qq.AtElement:
			if e.Text != "" {
				text.WriteString(e.Text)
			} else if e.All {
				text.WriteString("@全体成员")
			} else {
				text.WriteString(fmt.Sprintf("@%d", e.QQ))
			}
		case *qq.FaceElement:
			if e.Text != "" {
				text.WriteString("[" + e.Text + "]")
			} else {
				text.WriteString("[表情]")
			}
		case *qq.DiceElement:
			text.WriteString(fmt.Sprintf("[骰子: %d]", e.Value))
		case *qq.RPSElement:
			text.WriteString(fmt.Sprintf("[猜拳: %d]", e.Value))
		case *qq.ImageElement:
			media = append(media, mediaPlan{kind: "photo", url: s.freshURL(ctx, e.URL), file: e.File})
		case *qq.RecordElement:
			media = append(media, mediaPlan{kind: "voice", url: s.freshURL(ctx, e.URL), file: e.File})
		case *qq.VideoElement:
			media = append(media, mediaPlan{kind: "video", url: s.freshURL(ctx, e.URL), file: e.File})
		case *qq.FileElement:
			url, err := pair.QQ.GetFileURL(ctx, e.FileID)
			if err != nil {
				return nil, false, fmt.Errorf("failed to resolve file %s: %w", e.FileID, err)
			}
			media = append(media, mediaPlan{kind: "document", url: url, name: e.Name})
		case *qq.ForwardElement:
			link, err := s.registerBundle(ctx, pair, e.ResID)
			if err != nil {
				return nil, false, err
			}
			text.WriteString("[合并转发]\n" + link)
		case *qq.JSONElement:
			text.WriteString("[卡片消息]")
		case *qq.MarkdownElement:
			text.WriteString(e.Content)
		default:
			return nil, false, fmt.Errorf("cannot forward element %s", elem.ElementType())
		}
	}

	var sent []*botModels.Message
	body := header + text.String()

	if len(media) == 0 {
		msg, err := s.tg.SendText(ctx, pair.TGChatID, body, opts)
		if err != nil {
			return nil, false, fmt.Errorf("failed to send text: %w", err)
		}
		return []*botModels.Message{msg}, richUsed, nil
	}

	// 第一份媒体带完整说明，其余媒体只带发送者名
	for i, m := range media {
		caption := header
		captionOpts := &telegram.SendOptions{
			Entities: []botModels.MessageEntity{headerEnt},
		}
		if i == 0 {
			caption = body
			captionOpts.ReplyTo = opts.ReplyTo
		}
		msg, err := s.sendMedia(ctx, pair.TGChatID, m, caption, captionOpts)
		if err != nil {
			return sent, richUsed, err
		}
		sent = append(sent, msg)
	}
	return sent, richUsed, nil
}

type mediaPlan struct {
	kind string // photo / voice / video / document
	url  string
	file string
	name string
}

func (m mediaPlan) input() *telegram.InputMedia {
	url := m.url
	if url == "" {
		url = m.file
	}
	return &telegram.InputMedia{URL: url, FileName: m.name}
}

func (s *Service) sendMedia(ctx context.Context, chatID int64, m mediaPlan, caption string, opts *telegram.SendOptions) (*botModels.Message, error) {
	var msg *botModels.Message
	var err error
	switch m.kind {
	case "photo":
		msg, err = s.tg.SendPhoto(ctx, chatID, m.input(), caption, opts)
	case "voice":
		msg, err = s.tg.SendVoice(ctx, chatID, m.input(), caption, opts)
	case "video":
		msg, err = s.tg.SendVideo(ctx, chatID, m.input(), caption, opts)
	default:
		msg, err = s.tg.SendDocument(ctx, chatID, m.input(), caption, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", m.kind, err)
	}
	return msg, nil
}

// registerBundle 给合并转发签发查看凭证，返回查看链接
func (s *Service) registerBundle(ctx context.Context, pair *Pair, resID string) (string, error) {
	id := uuid.New().String()
	err := s.fwdRepo.Create(ctx, &models.ForwardMultiple{
		UUID:       id,
		FromPairID: pair.DBID,
		ResID:      resID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to register forward bundle: %w", err)
	}
	if s.webBaseURL == "" {
		return id, nil
	}
	return fmt.Sprintf("%s/forwardMultiple/%s", s.webBaseURL, id), nil
}

// ForwardTGMessage 把一条 Telegram 消息送达 QQ 侧
func (s *Service) ForwardTGMessage(ctx context.Context, pair *Pair, msg *botModels.Message) (*qq.MessageRet, string, error) {
	elements, err := s.tgToElements(ctx, msg)
	if err != nil {
		return nil, "", err
	}
	if len(elements) == 0 {
		return nil, "", nil
	}

	nick := tgSenderName(msg)
	content := append([]qq.Element{qq.Text(nick + ": ")}, elements...)
	source := s.resolveTGReply(ctx, pair, msg)

	ret, err := pair.QQ.SendMessage(ctx, content, source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send to QQ: %w", err)
	}
	return ret, qq.BriefOf(content), nil
}

// tgToElements 翻译 Telegram 消息内容
func (s *Service) tgToElements(ctx context.Context, msg *botModels.Message) ([]qq.Element, error) {
	var elements []qq.Element

	appendMedia := func(fileID string, build func(url string) qq.Element) error {
		url, err := s.tg.GetFileURL(ctx, fileID)
		if err != nil {
			return err
		}
		elements = append(elements, build(url))
		return nil
	}

	switch {
	case len(msg.Photo) > 0:
		// 取最大尺寸
		photo := msg.Photo[len(msg.Photo)-1]
		if msg.HasMediaSpoiler {
			url, err := s.tg.GetFileURL(ctx, photo.FileID)
			if err != nil {
				return nil, err
			}
			spoiler, err := s.client.CreateSpoilerImage(ctx, &qq.ImageElement{File: url, URL: url}, tgSenderName(msg), msg.Caption)
			if err != nil {
				return nil, err
			}
			return spoiler, nil
		}
		if err := appendMedia(photo.FileID, func(url string) qq.Element {
			return &qq.ImageElement{File: url, URL: url}
		}); err != nil {
			return nil, err
		}
	case msg.Sticker != nil:
		if msg.Sticker.IsAnimated || msg.Sticker.IsVideo {
			elements = append(elements, qq.Text("[动态贴纸]"))
		} else if err := appendMedia(msg.Sticker.FileID, func(url string) qq.Element {
			return &qq.ImageElement{File: url, URL: url}
		}); err != nil {
			return nil, err
		}
	case msg.Voice != nil:
		if err := appendMedia(msg.Voice.FileID, func(url string) qq.Element {
			return &qq.RecordElement{File: url, URL: url}
		}); err != nil {
			return nil, err
		}
	case msg.Video != nil:
		if err := appendMedia(msg.Video.FileID, func(url string) qq.Element {
			return &qq.VideoElement{File: url, URL: url}
		}); err != nil {
			return nil, err
		}
	case msg.Animation != nil:
		if err := appendMedia(msg.Animation.FileID, func(url string) qq.Element {
			return &qq.ImageElement{File: url, URL: url}
		}); err != nil {
			return nil, err
		}
	case msg.Document != nil:
		// 文件不透传内容，给出文件名和下载链接
		url, err := s.tg.GetFileURL(ctx, msg.Document.FileID)
		if err != nil {
			return nil, err
		}
		elements = append(elements, qq.Text(fmt.Sprintf("[文件] %s\n%s", msg.Document.FileName, url)))
	}

	if msg.Text != "" {
		elements = append(elements, qq.Text(msg.Text))
	}
	if msg.Caption != "" {
		elements = append(elements, qq.Text(msg.Caption))
	}
	return elements, nil
}

// resolveTGReply 把 Telegram 侧的引用回复换成 QQ 侧的消息身份
func (s *Service) resolveTGReply(ctx context.Context, pair *Pair, msg *botModels.Message) *qq.ReplyTarget {
	if msg.ReplyToMessage == nil {
		return nil
	}
	row, err := s.msgRepo.FindByTGMessage(ctx, s.instanceID, pair.TGChatID, msg.ReplyToMessage.ID)
	if err != nil {
		return nil
	}
	return &qq.ReplyTarget{
		FromID:   row.QQSenderID,
		Time:     row.Time,
		Seq:      row.Seq,
		Rand:     row.Rand,
		Elements: []qq.Element{qq.Text(row.Brief)},
	}
}

// tgSenderName 发送者显示名
func tgSenderName(msg *botModels.Message) string {
	if msg.From == nil {
		return "匿名"
	}
	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}
	return name
}
