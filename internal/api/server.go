package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"qtbridge/internal/forward"
	"qtbridge/internal/logger"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
)

// HTTP 查询面
// 两个端点都只暴露数据契约（JSON），页面渲染不在这里做：
//   GET /richHeader/:apiKey/:userId   富头部的成员资料
//   GET /forwardMultiple/:uuid        合并转发内容

// maxBundleDepth 嵌套合并转发的展开深度上限
const maxBundleDepth = 3

// Server HTTP 查询服务
type Server struct {
	pairs   *forward.Pairs
	fwdRepo repository.ForwardMultipleRepository
	cache   *forward.BundleCache
	engine  *gin.Engine
}

// NewServer 创建服务并注册路由
func NewServer(pairs *forward.Pairs, fwdRepo repository.ForwardMultipleRepository, cache *forward.BundleCache) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		pairs:   pairs,
		fwdRepo: fwdRepo,
		cache:   cache,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/richHeader/:apiKey/:userId", s.richHeader)
	s.engine.GET("/forwardMultiple/:uuid", s.forwardMultiple)
	return s
}

// Run 阻塞式启动
func (s *Server) Run(addr string) error {
	logger.L().Infof("API server listening on %s", addr)
	return s.engine.Run(addr)
}

// richHeader 按 API key 定位配对，再查成员资料
func (s *Server) richHeader(c *gin.Context) {
	pair := s.pairs.FindByAPIKey(c.Param("apiKey"))
	if pair == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pair not found"})
		return
	}

	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ctx := c.Request.Context()
	switch chat := pair.QQ.(type) {
	case qq.Group:
		member, err := chat.PickMember(ctx, userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		info, err := member.Renew(ctx)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"userId":   userID,
			"name":     info.DisplayName(),
			"nickname": info.Nickname,
			"card":     info.Card,
			"role":     info.Role,
			"title":    info.Title,
			"joinTime": info.JoinTime,
		})
	case qq.Friend:
		c.JSON(http.StatusOK, gin.H{
			"userId":   chat.Uin(),
			"name":     chat.DisplayName(),
			"nickname": chat.Nickname(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unsupported chat kind"})
	}
}

// forwardMultiple 展开合并转发，结果缓存 15 分钟
func (s *Server) forwardMultiple(c *gin.Context) {
	uuid := c.Param("uuid")
	ctx := c.Request.Context()

	messages, ok := s.cache.Get(uuid)
	if !ok {
		record, err := s.fwdRepo.GetByUUID(ctx, uuid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "bundle not found"})
				return
			}
			logger.L().Errorf("Bundle lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}

		pair := s.findPairByID(record.FromPairID)
		if pair == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "pair not found"})
			return
		}

		messages, err = pair.QQ.GetForwardMessages(ctx, record.ResID, record.FileName)
		if err != nil {
			logger.L().Errorf("Failed to expand bundle %s: %v", uuid, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch bundle"})
			return
		}
		s.expandNested(ctx, pair.QQ, messages, 1)
		s.cache.Set(uuid, messages)
	}

	c.JSON(http.StatusOK, gin.H{"messages": renderMessages(messages)})
}

func (s *Server) findPairByID(id primitive.ObjectID) *forward.Pair {
	for _, pair := range s.pairs.All() {
		if pair.DBID == id {
			return pair
		}
	}
	return nil
}

// expandNested 就地展开嵌套的合并转发，超过深度上限的保持惰性
func (s *Server) expandNested(ctx context.Context, chat qq.Chat, messages []*qq.ForwardMessage, depth int) {
	if depth >= maxBundleDepth {
		return
	}
	for _, msg := range messages {
		for _, elem := range msg.Elements {
			fwd, ok := elem.(*qq.ForwardElement)
			if !ok || fwd.ResID == "" || len(fwd.Messages) > 0 {
				continue
			}
			nested, err := chat.GetForwardMessages(ctx, fwd.ResID, "")
			if err != nil {
				logger.L().Warnf("Failed to expand nested bundle %s: %v", fwd.ResID, err)
				continue
			}
			fwd.Messages = nested
			s.expandNested(ctx, chat, nested, depth+1)
		}
	}
}

func renderMessages(messages []*qq.ForwardMessage) []gin.H {
	out := make([]gin.H, 0, len(messages))
	for _, msg := range messages {
		out = append(out, gin.H{
			"username": msg.Nickname,
			"userId":   msg.UserID,
			"time":     msg.Time,
			"brief":    msg.Brief,
			"content":  renderElements(msg.Elements),
		})
	}
	return out
}

func renderElements(elems []qq.Element) []gin.H {
	out := make([]gin.H, 0, len(elems))
	for _, elem := range elems {
		item := gin.H{"type": elem.ElementType()}
		switch e := elem.(type) {
		case *qq.TextElement:
			item["text"] = e.Text
		case *qq.ImageElement:
			item["url"] = e.URL
		case *qq.RecordElement:
			item["url"] = e.URL
		case *qq.VideoElement:
			item["url"] = e.URL
		case *qq.AtElement:
			item["text"] = e.Text
			item["qq"] = e.QQ
		case *qq.FaceElement:
			item["id"] = e.ID
		case *qq.FileElement:
			item["name"] = e.Name
			item["size"] = e.Size
		case *qq.ForwardElement:
			item["resId"] = e.ResID
			if len(e.Messages) > 0 {
				item["messages"] = renderMessages(e.Messages)
			}
		}
		out = append(out, item)
	}
	return out
}
