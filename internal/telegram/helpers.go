package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// 发送 / 编辑 / 删除 / 文件 的统一封装

// SendOptions 发送附加参数
type SendOptions struct {
	// ReplyTo 引用回复的消息 ID，0 表示不引用
	ReplyTo int
	// Entities 文本实体（text_mention 等），非空时优先于 ParseMode
	Entities []botModels.MessageEntity
	// ParseMode 为空表示纯文本
	ParseMode botModels.ParseMode
	// Spoiler 媒体是否加遮罩
	Spoiler bool
}

func (o *SendOptions) replyParams() *botModels.ReplyParameters {
	if o == nil || o.ReplyTo == 0 {
		return nil
	}
	return &botModels.ReplyParameters{MessageID: o.ReplyTo}
}

// InputMedia 待发送的媒体载荷：URL/file_id 或内联字节二选一
type InputMedia struct {
	URL      string
	Data     []byte
	FileName string
}

func (m *InputMedia) inputFile() botModels.InputFile {
	if len(m.Data) > 0 {
		name := m.FileName
		if name == "" {
			name = "file"
		}
		return &botModels.InputFileUpload{Filename: name, Data: bytes.NewReader(m.Data)}
	}
	return &botModels.InputFileString{Data: m.URL}
}

// SendText 发送文本消息
func (b *Bot) SendText(ctx context.Context, chatID int64, text string, opts *SendOptions) (*botModels.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            text,
		ReplyParameters: opts.replyParams(),
	}
	if opts != nil {
		params.Entities = opts.Entities
		if len(opts.Entities) == 0 {
			params.ParseMode = opts.ParseMode
		}
	}
	return b.bot.SendMessage(ctx, params)
}

// SendPhoto 发送图片
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, media *InputMedia, caption string, opts *SendOptions) (*botModels.Message, error) {
	params := &bot.SendPhotoParams{
		ChatID:          chatID,
		Photo:           media.inputFile(),
		Caption:         caption,
		ReplyParameters: opts.replyParams(),
	}
	if opts != nil {
		params.CaptionEntities = opts.Entities
		params.HasSpoiler = opts.Spoiler
	}
	return b.bot.SendPhoto(ctx, params)
}

// SendVoice 发送语音
func (b *Bot) SendVoice(ctx context.Context, chatID int64, media *InputMedia, caption string, opts *SendOptions) (*botModels.Message, error) {
	params := &bot.SendVoiceParams{
		ChatID:          chatID,
		Voice:           media.inputFile(),
		Caption:         caption,
		ReplyParameters: opts.replyParams(),
	}
	if opts != nil {
		params.CaptionEntities = opts.Entities
	}
	return b.bot.SendVoice(ctx, params)
}

// SendVideo 发送视频
func (b *Bot) SendVideo(ctx context.Context, chatID int64, media *InputMedia, caption string, opts *SendOptions) (*botModels.Message, error) {
	params := &bot.SendVideoParams{
		ChatID:          chatID,
		Video:           media.inputFile(),
		Caption:         caption,
		ReplyParameters: opts.replyParams(),
	}
	if opts != nil {
		params.CaptionEntities = opts.Entities
		params.HasSpoiler = opts.Spoiler
	}
	return b.bot.SendVideo(ctx, params)
}

// SendDocument 发送文件
func (b *Bot) SendDocument(ctx context.Context, chatID int64, media *InputMedia, caption string, opts *SendOptions) (*botModels.Message, error) {
	params := &bot.SendDocumentParams{
		ChatID:          chatID,
		Document:        media.inputFile(),
		Caption:         caption,
		ReplyParameters: opts.replyParams(),
	}
	if opts != nil {
		params.CaptionEntities = opts.Entities
	}
	return b.bot.SendDocument(ctx, params)
}

// DeleteMessage 删除消息，返回是否成功
func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	ok, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	return err == nil && ok
}

// GetFileURL 把 file_id 换成可下载的 URL
func (b *Bot) GetFileURL(ctx context.Context, fileID string) (string, error) {
	file, err := b.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return b.bot.FileDownloadLink(file), nil
}

