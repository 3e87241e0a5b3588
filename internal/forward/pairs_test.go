package forward

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"qtbridge/internal/models"
	"qtbridge/internal/qq"
)

// fakeChat 会话替身：发送按 baseSeq 递增签 seq，撤回留痕
type fakeChat struct {
	roomID  int64
	dm      bool
	baseSeq int64

	sends    int64
	recalled []int64
}

func (c *fakeChat) RoomID() int64 { return c.roomID }
func (c *fakeChat) DM() bool      { return c.dm }

func (c *fakeChat) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	c.sends++
	return &qq.MessageRet{Seq: c.baseSeq + c.sends, Time: 1700000000 + c.sends}, nil
}

func (c *fakeChat) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	c.recalled = append(c.recalled, seq)
	return true
}

func (c *fakeChat) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	return nil, nil
}

func (c *fakeChat) GetFileURL(ctx context.Context, fileID string) (string, error) {
	return "", nil
}

// fakePairRepo 内存版配对存储
type fakePairRepo struct {
	records   []*models.ForwardPair
	createErr error
	deleteErr error
	updateErr error
}

func (r *fakePairRepo) Create(ctx context.Context, pair *models.ForwardPair) error {
	if r.createErr != nil {
		return r.createErr
	}
	pair.ID = primitive.NewObjectID()
	r.records = append(r.records, pair)
	return nil
}

func (r *fakePairRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i, record := range r.records {
		if record.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakePairRepo) UpdateFlags(ctx context.Context, id primitive.ObjectID, flags int64) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for _, record := range r.records {
		if record.ID == id {
			record.Flags = flags
		}
	}
	return nil
}

func (r *fakePairRepo) ListByInstance(ctx context.Context, instanceID int64) ([]*models.ForwardPair, error) {
	var out []*models.ForwardPair
	for _, record := range r.records {
		if record.InstanceID == instanceID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakePairRepo) EnsureIndexes(ctx context.Context) error { return nil }

// fakeQQClient 只支撑会话解析的客户端替身
type fakeQQClient struct {
	qq.Handlers
	chats map[int64]qq.Chat
}

func (c *fakeQQClient) ID() int64        { return 1 }
func (c *fakeQQClient) Uin() int64       { return 10000 }
func (c *fakeQQClient) Nickname() string { return "bridge" }

func (c *fakeQQClient) IsOnline(ctx context.Context) (bool, error) { return true, nil }

func (c *fakeQQClient) GetChat(ctx context.Context, roomID int64) (qq.Chat, error) {
	chat, ok := c.chats[roomID]
	if !ok {
		return nil, qq.ErrNotFound
	}
	return chat, nil
}

func (c *fakeQQClient) PickFriend(ctx context.Context, uin int64) (qq.Friend, error) {
	return nil, qq.ErrNotFound
}

func (c *fakeQQClient) PickGroup(ctx context.Context, gid int64) (qq.Group, error) {
	return nil, qq.ErrNotFound
}

func (c *fakeQQClient) GetFriendsWithCluster(ctx context.Context) ([]*qq.FriendCluster, error) {
	return nil, nil
}

func (c *fakeQQClient) GetGroupList(ctx context.Context) ([]qq.Group, error) { return nil, nil }

func (c *fakeQQClient) CreateSpoilerImage(ctx context.Context, image *qq.ImageElement, nickname string, title string) ([]qq.Element, error) {
	return qq.DefaultSpoilerImage(image, title), nil
}

func TestLoadPairsSkipsUnresolvable(t *testing.T) {
	repo := &fakePairRepo{}
	for _, roomID := range []int64{20001, -100200, 30003} {
		repo.records = append(repo.records, &models.ForwardPair{
			ID:         primitive.NewObjectID(),
			InstanceID: 1,
			QQRoomID:   roomID,
			TGChatID:   roomID + 1,
		})
	}
	client := &fakeQQClient{chats: map[int64]qq.Chat{
		20001:   &fakeChat{roomID: 20001, dm: true},
		-100200: &fakeChat{roomID: -100200},
		// 30003 无法解析，应跳过
	}}

	pairs, err := LoadPairs(context.Background(), 1, client, repo)
	if err != nil {
		t.Fatalf("LoadPairs failed: %v", err)
	}
	if len(pairs.All()) != 2 {
		t.Fatalf("expected 2 pairs loaded, got %d", len(pairs.All()))
	}
	if pairs.FindByQQRoomID(30003) != nil {
		t.Fatalf("unresolvable pair should not be indexed")
	}
}

func TestAddIssuesAPIKey(t *testing.T) {
	repo := &fakePairRepo{}
	pairs := &Pairs{instanceID: 1, repo: repo}

	pair, err := pairs.Add(context.Background(), &fakeChat{roomID: -100200}, 777, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if pair.APIKey == "" {
		t.Fatalf("expected API key issued on creation")
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected record persisted")
	}
	if got := pairs.FindByAPIKey(pair.APIKey); got != pair {
		t.Fatalf("API key lookup mismatch")
	}
	if got := pairs.FindByTGChatID(777); got != pair {
		t.Fatalf("tg chat lookup mismatch")
	}
}

func TestAddPersistFailureNotIndexed(t *testing.T) {
	repo := &fakePairRepo{createErr: errors.New("duplicate key")}
	pairs := &Pairs{instanceID: 1, repo: repo}

	if _, err := pairs.Add(context.Background(), &fakeChat{roomID: -100200}, 777, 0); err == nil {
		t.Fatalf("expected persist error")
	}
	if len(pairs.All()) != 0 {
		t.Fatalf("failed pair must not enter the index")
	}
}

func TestRemoveRollsBackOnDeleteFailure(t *testing.T) {
	repo := &fakePairRepo{}
	pairs := &Pairs{instanceID: 1, repo: repo}
	pair, err := pairs.Add(context.Background(), &fakeChat{roomID: -100200}, 777, 0)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	repo.deleteErr = errors.New("connection reset")
	if err := pairs.Remove(context.Background(), pair); err == nil {
		t.Fatalf("expected delete error")
	}
	if pairs.FindByQQRoomID(-100200) != pair {
		t.Fatalf("pair should be restored after failed delete")
	}

	repo.deleteErr = nil
	if err := pairs.Remove(context.Background(), pair); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if pairs.FindByQQRoomID(-100200) != nil {
		t.Fatalf("pair should be gone")
	}
	if len(repo.records) != 0 {
		t.Fatalf("record should be deleted")
	}
}

func TestSetFlagsPersistsFirst(t *testing.T) {
	repo := &fakePairRepo{}
	pairs := &Pairs{instanceID: 1, repo: repo}
	pair, _ := pairs.Add(context.Background(), &fakeChat{roomID: 20001, dm: true}, 777, 0)

	repo.updateErr = errors.New("write concern failed")
	if err := pair.SetFlags(context.Background(), FlagDisableQ2TG); err == nil {
		t.Fatalf("expected persist error")
	}
	if pair.Flags() != 0 {
		t.Fatalf("flags must not change when persist fails")
	}

	repo.updateErr = nil
	if err := pair.SetFlags(context.Background(), FlagDisableQ2TG); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}
	if pair.Flags() != FlagDisableQ2TG {
		t.Fatalf("flags not applied")
	}
	if repo.records[0].Flags != FlagDisableQ2TG {
		t.Fatalf("flags not persisted")
	}
}

func TestHasFlagMergesInstanceFlags(t *testing.T) {
	repo := &fakePairRepo{}
	pairs := &Pairs{instanceID: 1, repo: repo}
	pair, _ := pairs.Add(context.Background(), &fakeChat{roomID: 20001, dm: true}, 777, FlagDisablePoke)

	if !pair.HasFlag(0, FlagDisablePoke) {
		t.Fatalf("pair-level flag not honored")
	}
	if pair.HasFlag(0, FlagDisableQ2TG) {
		t.Fatalf("unset flag reported as set")
	}
	// 实例级开关对所有配对生效
	if !pair.HasFlag(FlagDisableQ2TG, FlagDisableQ2TG) {
		t.Fatalf("instance-level flag not merged")
	}
}
