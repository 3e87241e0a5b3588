package qq

import (
	"context"
	"sync"
)

// Factory 实际创建并登录一个客户端
type Factory func(ctx context.Context) (Client, error)

// Registry 按逻辑 ID 缓存客户端创建
// 并发调用同一个 ID 只会发起一次登录，后来者共享同一个会话；
// 创建结果（包括失败）都会被缓存，与创建中的调用共享
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*registryEntry
}

type registryEntry struct {
	done   chan struct{}
	client Client
	err    error
}

// NewRegistry 创建一个空的客户端注册表
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*registryEntry),
	}
}

// Create 返回 ID 对应的客户端；不存在时用 factory 创建
// 等待期间 ctx 取消会立即返回，但共享的创建本身不会被取消
func (r *Registry) Create(ctx context.Context, id int64, factory Factory) (Client, error) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		entry = &registryEntry{done: make(chan struct{})}
		r.entries[id] = entry
	}
	r.mu.Unlock()

	if !ok {
		go func() {
			entry.client, entry.err = factory(context.Background())
			close(entry.done)
		}()
	}

	select {
	case <-entry.done:
		return entry.client, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get 返回已完成创建的客户端，不存在或尚未完成时返回 nil
func (r *Registry) Get(id int64) Client {
	r.mu.Lock()
	entry, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-entry.done:
		return entry.client
	default:
		return nil
	}
}

// Remove 从注册表中移除一个条目，便于失败后重建
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}
