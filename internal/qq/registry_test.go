package qq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubClient struct {
	Handlers
	id int64
}

func (c *stubClient) ID() int64        { return c.id }
func (c *stubClient) Uin() int64       { return 10000 + c.id }
func (c *stubClient) Nickname() string { return "stub" }

func (c *stubClient) IsOnline(ctx context.Context) (bool, error) { return true, nil }

func (c *stubClient) GetChat(ctx context.Context, roomID int64) (Chat, error) {
	return ResolveChat(ctx, c, roomID)
}

func (c *stubClient) PickFriend(ctx context.Context, uin int64) (Friend, error) {
	return &stubFriend{uin: uin}, nil
}

func (c *stubClient) PickGroup(ctx context.Context, gid int64) (Group, error) {
	return &stubGroup{gid: gid}, nil
}

func (c *stubClient) GetFriendsWithCluster(ctx context.Context) ([]*FriendCluster, error) {
	return nil, nil
}

func (c *stubClient) GetGroupList(ctx context.Context) ([]Group, error) { return nil, nil }

func (c *stubClient) CreateSpoilerImage(ctx context.Context, image *ImageElement, nickname string, title string) ([]Element, error) {
	return DefaultSpoilerImage(image, title), nil
}

type stubFriend struct {
	uin int64
}

func (f *stubFriend) RoomID() int64       { return f.uin }
func (f *stubFriend) DM() bool            { return true }
func (f *stubFriend) Uin() int64          { return f.uin }
func (f *stubFriend) Nickname() string    { return "friend" }
func (f *stubFriend) Remark() string      { return "" }
func (f *stubFriend) DisplayName() string { return "friend" }

func (f *stubFriend) SendMessage(ctx context.Context, content []Element, source *ReplyTarget) (*MessageRet, error) {
	return &MessageRet{Seq: 1}, nil
}

func (f *stubFriend) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	return true
}

func (f *stubFriend) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*ForwardMessage, error) {
	return nil, nil
}

func (f *stubFriend) GetFileURL(ctx context.Context, fileID string) (string, error) { return "", nil }
func (f *stubFriend) Poke(ctx context.Context, self bool) error                     { return nil }

type stubGroup struct {
	gid int64
}

func (g *stubGroup) RoomID() int64 { return -g.gid }
func (g *stubGroup) DM() bool      { return false }
func (g *stubGroup) GID() int64    { return g.gid }
func (g *stubGroup) Name() string  { return "group" }
func (g *stubGroup) IsOwner() bool { return false }
func (g *stubGroup) IsAdmin() bool { return false }

func (g *stubGroup) SendMessage(ctx context.Context, content []Element, source *ReplyTarget) (*MessageRet, error) {
	return &MessageRet{Seq: 1}, nil
}

func (g *stubGroup) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	return true
}

func (g *stubGroup) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*ForwardMessage, error) {
	return nil, nil
}

func (g *stubGroup) GetFileURL(ctx context.Context, fileID string) (string, error) { return "", nil }

func (g *stubGroup) PickMember(ctx context.Context, uin int64) (GroupMember, error) {
	return nil, ErrNotFound
}

func (g *stubGroup) PokeMember(ctx context.Context, uin int64) error { return nil }

func (g *stubGroup) MuteMember(ctx context.Context, uin int64, duration int64) error { return nil }

func (g *stubGroup) SetCard(ctx context.Context, uin int64, card string) bool { return true }

func (g *stubGroup) UploadFile(ctx context.Context, file string, name string) error { return nil }

func TestRegistryCreateIdempotent(t *testing.T) {
	r := NewRegistry()
	var calls atomic.Int32

	factory := func(ctx context.Context) (Client, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &stubClient{id: 7}, nil
	}

	var wg sync.WaitGroup
	clients := make([]Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Create(context.Background(), 7, factory)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected factory to run once, ran %d times", got)
	}
	for i := 1; i < len(clients); i++ {
		if clients[i] != clients[0] {
			t.Fatalf("expected all callers to share one client")
		}
	}
}

func TestRegistryCreateCachesError(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("login rejected")
	var calls atomic.Int32

	factory := func(ctx context.Context) (Client, error) {
		calls.Add(1)
		return nil, wantErr
	}

	for i := 0; i < 3; i++ {
		if _, err := r.Create(context.Background(), 1, factory); !errors.Is(err, wantErr) {
			t.Fatalf("expected cached error, got %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected factory to run once, ran %d times", got)
	}

	// 移除后可以重建
	r.Remove(1)
	if _, err := r.Create(context.Background(), 1, factory); !errors.Is(err, wantErr) {
		t.Fatalf("expected error after rebuild, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected factory to run twice after Remove, ran %d times", got)
	}
}

func TestRegistryCreateRespectsContext(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})

	factory := func(ctx context.Context) (Client, error) {
		<-release
		return &stubClient{id: 2}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Create(ctx, 2, factory); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// 创建本身不受取消影响，放行后其他调用方照常拿到客户端
	close(release)
	c, err := r.Create(context.Background(), 2, factory)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c == nil {
		t.Fatalf("expected client")
	}
}
