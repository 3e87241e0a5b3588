package oicq

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"qtbridge/internal/qq"
)

// 合并转发与多媒体签名
// 持久会话后端可以自己打包转发资源，也能查询 CDN 的 rkey 重签过期链接。

const rkeyTTL = 30 * time.Minute

// MakeForwardMsgSelf 把一组内容打包成以自己为发送者的合并转发，返回资源 ID 和条数
func (c *Client) MakeForwardMsgSelf(ctx context.Context, contents [][]qq.Element) (string, int, error) {
	now := time.Now().Unix()
	items := make([]*ForwardItem, 0, len(contents))
	for _, content := range contents {
		items = append(items, &ForwardItem{
			UserID:   c.drv.Uin(),
			Nickname: c.drv.Nickname(),
			Time:     now,
			Elements: content,
		})
	}
	resID, err := c.drv.UploadForwardBundle(ctx, items)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload forward bundle: %w", err)
	}
	return resID, len(items), nil
}

// CreateSpoilerImage 用平台的折叠卡片包住图片，点开才能看到内容
// 卡片本体是合并转发查看器的 XML，resid 指向刚打包的单图资源
func (c *Client) CreateSpoilerImage(ctx context.Context, image *qq.ImageElement, nickname string, title string) ([]qq.Element, error) {
	content := []qq.Element{image}
	if title != "" {
		content = append(content, qq.Text(title))
	}
	resID, count, err := c.MakeForwardMsgSelf(ctx, [][]qq.Element{content})
	if err != nil {
		// 打包失败退回默认表示
		c.entry.Warnf("Failed to build spoiler card, falling back: %v", err)
		return qq.DefaultSpoilerImage(image, title), nil
	}

	summary := fmt.Sprintf("查看%d条转发消息", count)
	if nickname == "" {
		nickname = c.drv.Nickname()
	}
	xml := fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<msg brief="[Spoiler 图片]" m_fileName="%s" action="viewMultiMsg" tSum="%d" flag="3" m_resid="%s" serviceID="35" m_fileSize="0">`+
			`<item layout="1"><title color="#000000" size="34">Spoiler 图片</title>`+
			`<title color="#777777" size="26">%s: [图片]</title>`+
			`<hr/><summary color="#808080" size="26">%s</summary></item>`+
			`<source name="Spoiler 图片"/></msg>`,
		resID, count, resID, xmlEscape(nickname), summary,
	)
	return []qq.Element{&qq.XMLElement{ID: 35, Data: xml}}, nil
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// getForwardMessages 拉取合并转发内容，回传前重签其中过期的多媒体链接
// 资源里的图片链接带的是打包当时的 rkey，晚于签发期查看必须重签
func (c *Client) getForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	messages, err := c.drv.GetForwardMessages(ctx, resID, fileName)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		for _, elem := range msg.Elements {
			img, ok := elem.(*qq.ImageElement)
			if !ok || img.URL == "" {
				continue
			}
			fresh, err := c.RefreshImageRKey(ctx, img.URL)
			if err != nil {
				c.entry.Warnf("Failed to refresh rkey for bundle image: %v", err)
				continue
			}
			img.URL = fresh
		}
	}
	return messages, nil
}

// RefreshImageRKey 给过期的多媒体 CDN 链接换上当前有效的 rkey
// 只处理新式多媒体域名；群图和私聊图的 appid 不同，密钥也不同
func (c *Client) RefreshImageRKey(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, nil
	}
	if !strings.HasSuffix(u.Host, "multimedia.nt.qq.com.cn") {
		return rawURL, nil
	}

	rkeys, err := c.currentRKeys(ctx)
	if err != nil {
		return "", err
	}

	q := u.Query()
	var rkey string
	switch q.Get("appid") {
	case "1406":
		rkey = rkeys.Private
	case "1407":
		rkey = rkeys.Group
	default:
		return rawURL, nil
	}
	q.Set("rkey", strings.TrimPrefix(rkey, "&rkey="))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// currentRKeys 惰性缓存的密钥对，过期重新查询
func (c *Client) currentRKeys(ctx context.Context) (*RKeys, error) {
	c.rkeyMu.Lock()
	defer c.rkeyMu.Unlock()

	if c.rkeys != nil && time.Since(c.rkeysTime) < rkeyTTL {
		return c.rkeys, nil
	}
	rkeys, err := c.drv.FetchRKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rkeys: %w", err)
	}
	c.rkeys = rkeys
	c.rkeysTime = time.Now()
	return rkeys, nil
}
