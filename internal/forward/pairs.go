package forward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"qtbridge/internal/logger"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
)

// Pairs 配对注册表
// 启动时从存储整表加载；之后所有增删都先落库再改内存索引。
// 一个 QQ 会话在一个实例里最多绑一个配对，查找都按首个匹配返回。
type Pairs struct {
	instanceID int64
	repo       repository.PairRepository

	mu    sync.RWMutex
	pairs []*Pair
}

// LoadPairs 从存储加载某实例的全部配对
// 解析失败的配对跳过并告警，不影响其余配对上线
func LoadPairs(ctx context.Context, instanceID int64, client qq.Client, repo repository.PairRepository) (*Pairs, error) {
	records, err := repo.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load forward pairs: %w", err)
	}

	p := &Pairs{instanceID: instanceID, repo: repo}
	for _, record := range records {
		chat, err := client.GetChat(ctx, record.QQRoomID)
		if err != nil {
			logger.L().Warnf("Skipping pair %s: failed to resolve QQ room %d: %v",
				record.ID.Hex(), record.QQRoomID, err)
			continue
		}
		p.pairs = append(p.pairs, newPair(record, chat, repo))
	}
	logger.L().Infof("Loaded %d forward pairs for instance %d", len(p.pairs), instanceID)
	return p, nil
}

// Add 创建并登记一个新配对，API key 随配对签发
func (p *Pairs) Add(ctx context.Context, chat qq.Chat, tgChatID int64, flags int64) (*Pair, error) {
	record := &models.ForwardPair{
		InstanceID: p.instanceID,
		QQRoomID:   chat.RoomID(),
		TGChatID:   tgChatID,
		Flags:      flags,
		APIKey:     uuid.New().String(),
		CreatedAt:  time.Now(),
	}
	if err := p.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist pair: %w", err)
	}

	pair := newPair(record, chat, p.repo)
	p.mu.Lock()
	p.pairs = append(p.pairs, pair)
	p.mu.Unlock()
	return pair, nil
}

// Remove 先摘索引再删库，删库失败时回滚索引
func (p *Pairs) Remove(ctx context.Context, pair *Pair) error {
	p.mu.Lock()
	for i, existing := range p.pairs {
		if existing == pair {
			p.pairs = append(p.pairs[:i], p.pairs[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if err := p.repo.Delete(ctx, pair.DBID); err != nil {
		p.mu.Lock()
		p.pairs = append(p.pairs, pair)
		p.mu.Unlock()
		return fmt.Errorf("failed to delete pair: %w", err)
	}
	return nil
}

func (p *Pairs) find(match func(*Pair) bool) *Pair {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pair := range p.pairs {
		if match(pair) {
			return pair
		}
	}
	return nil
}

// FindByQQChat 按 QQ 会话句柄查找
func (p *Pairs) FindByQQChat(chat qq.Chat) *Pair {
	return p.FindByQQRoomID(chat.RoomID())
}

// FindByQQRoomID 按带符号 room key 查找
func (p *Pairs) FindByQQRoomID(roomID int64) *Pair {
	return p.find(func(pair *Pair) bool { return pair.QQRoomID() == roomID })
}

// FindByTGChatID 按 Telegram 会话 ID 查找
func (p *Pairs) FindByTGChatID(chatID int64) *Pair {
	return p.find(func(pair *Pair) bool { return pair.TGChatID == chatID })
}

// FindByAPIKey 按 HTTP 查询凭证查找
func (p *Pairs) FindByAPIKey(apiKey string) *Pair {
	return p.find(func(pair *Pair) bool { return pair.APIKey == apiKey })
}

// All 当前所有在线配对的快照
func (p *Pairs) All() []*Pair {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Pair, len(p.pairs))
	copy(out, p.pairs)
	return out
}
