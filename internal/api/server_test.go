package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"qtbridge/internal/forward"
	"qtbridge/internal/models"
	"qtbridge/internal/qq"
	"qtbridge/internal/repository"
)

// fakeGroup 群会话替身，能按需返回成员资料和合并转发内容
type fakeGroup struct {
	gid     int64
	members map[int64]*qq.GroupMemberInfo
	bundles map[string][]*qq.ForwardMessage
	fetches int
}

func (g *fakeGroup) RoomID() int64 { return -g.gid }
func (g *fakeGroup) DM() bool      { return false }
func (g *fakeGroup) GID() int64    { return g.gid }
func (g *fakeGroup) Name() string  { return "group" }
func (g *fakeGroup) IsOwner() bool { return false }
func (g *fakeGroup) IsAdmin() bool { return false }

func (g *fakeGroup) SendMessage(ctx context.Context, content []qq.Element, source *qq.ReplyTarget) (*qq.MessageRet, error) {
	return &qq.MessageRet{Seq: 1}, nil
}

func (g *fakeGroup) RecallMessage(ctx context.Context, seq int64, rand int64, timeOrPktnum int64) bool {
	return true
}

func (g *fakeGroup) GetForwardMessages(ctx context.Context, resID string, fileName string) ([]*qq.ForwardMessage, error) {
	g.fetches++
	messages, ok := g.bundles[resID]
	if !ok {
		return nil, fmt.Errorf("no such resource %s", resID)
	}
	return messages, nil
}

func (g *fakeGroup) GetFileURL(ctx context.Context, fileID string) (string, error) { return "", nil }

func (g *fakeGroup) PickMember(ctx context.Context, uin int64) (qq.GroupMember, error) {
	return &fakeMember{group: g, uin: uin}, nil
}

func (g *fakeGroup) PokeMember(ctx context.Context, uin int64) error                   { return nil }
func (g *fakeGroup) MuteMember(ctx context.Context, uin int64, duration int64) error   { return nil }
func (g *fakeGroup) SetCard(ctx context.Context, uin int64, card string) bool          { return true }
func (g *fakeGroup) UploadFile(ctx context.Context, file string, name string) error    { return nil }

type fakeMember struct {
	group *fakeGroup
	uin   int64
}

func (m *fakeMember) Uin() int64 { return m.uin }

func (m *fakeMember) Renew(ctx context.Context) (*qq.GroupMemberInfo, error) {
	info, ok := m.group.members[m.uin]
	if !ok {
		return nil, qq.ErrNotFound
	}
	return info, nil
}

// fakeClient 只有 GetChat 有实现，加载配对时用
type fakeClient struct {
	qq.Handlers
	chats map[int64]qq.Chat
}

func (c *fakeClient) ID() int64                                    { return 1 }
func (c *fakeClient) Uin() int64                                   { return 10000 }
func (c *fakeClient) Nickname() string                             { return "bridge" }
func (c *fakeClient) IsOnline(ctx context.Context) (bool, error)   { return true, nil }

func (c *fakeClient) GetChat(ctx context.Context, roomID int64) (qq.Chat, error) {
	chat, ok := c.chats[roomID]
	if !ok {
		return nil, qq.ErrNotFound
	}
	return chat, nil
}

func (c *fakeClient) PickFriend(ctx context.Context, uin int64) (qq.Friend, error) {
	return nil, qq.ErrNotFound
}

func (c *fakeClient) PickGroup(ctx context.Context, gid int64) (qq.Group, error) {
	return nil, qq.ErrNotFound
}

func (c *fakeClient) GetFriendsWithCluster(ctx context.Context) ([]*qq.FriendCluster, error) {
	return nil, nil
}

func (c *fakeClient) GetGroupList(ctx context.Context) ([]qq.Group, error) { return nil, nil }

func (c *fakeClient) CreateSpoilerImage(ctx context.Context, image *qq.ImageElement, nickname string, title string) ([]qq.Element, error) {
	return qq.DefaultSpoilerImage(image, title), nil
}

// fakePairRepo / fakeFwdRepo 内存存储替身
type fakePairRepo struct {
	records []*models.ForwardPair
}

func (r *fakePairRepo) Create(ctx context.Context, pair *models.ForwardPair) error {
	pair.ID = primitive.NewObjectID()
	r.records = append(r.records, pair)
	return nil
}

func (r *fakePairRepo) Delete(ctx context.Context, id primitive.ObjectID) error { return nil }

func (r *fakePairRepo) UpdateFlags(ctx context.Context, id primitive.ObjectID, flags int64) error {
	return nil
}

func (r *fakePairRepo) ListByInstance(ctx context.Context, instanceID int64) ([]*models.ForwardPair, error) {
	return r.records, nil
}

func (r *fakePairRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeFwdRepo struct {
	records map[string]*models.ForwardMultiple
}

func (r *fakeFwdRepo) Create(ctx context.Context, record *models.ForwardMultiple) error {
	r.records[record.UUID] = record
	return nil
}

func (r *fakeFwdRepo) GetByUUID(ctx context.Context, uuid string) (*models.ForwardMultiple, error) {
	record, ok := r.records[uuid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return record, nil
}

func (r *fakeFwdRepo) EnsureIndexes(ctx context.Context) error { return nil }

func setupServer(t *testing.T, group *fakeGroup, fwdRepo *fakeFwdRepo) (*Server, *forward.Pair) {
	t.Helper()

	pairRepo := &fakePairRepo{}
	pairRepo.records = append(pairRepo.records, &models.ForwardPair{
		ID:         primitive.NewObjectID(),
		InstanceID: 1,
		QQRoomID:   -group.gid,
		TGChatID:   777,
		APIKey:     "KEY1",
	})
	client := &fakeClient{chats: map[int64]qq.Chat{-group.gid: group}}

	pairs, err := forward.LoadPairs(context.Background(), 1, client, pairRepo)
	require.NoError(t, err)
	require.Len(t, pairs.All(), 1)

	return NewServer(pairs, fwdRepo, forward.NewBundleCache(time.Minute)), pairs.All()[0]
}

func doRequest(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.engine.ServeHTTP(w, req)
	return w
}

func TestRichHeaderGroupMember(t *testing.T) {
	group := &fakeGroup{
		gid: 100200,
		members: map[int64]*qq.GroupMemberInfo{
			20001: {Card: "卡片", Nickname: "nick", Role: "admin", Title: "头衔", JoinTime: 1700000000},
		},
	}
	s, _ := setupServer(t, group, &fakeFwdRepo{records: map[string]*models.ForwardMultiple{}})

	w := doRequest(s, "/richHeader/KEY1/20001")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "卡片", body["name"])
	assert.Equal(t, "nick", body["nickname"])
	assert.Equal(t, "admin", body["role"])
}

func TestRichHeaderErrors(t *testing.T) {
	group := &fakeGroup{gid: 100200, members: map[int64]*qq.GroupMemberInfo{}}
	s, _ := setupServer(t, group, &fakeFwdRepo{records: map[string]*models.ForwardMultiple{}})

	assert.Equal(t, http.StatusNotFound, doRequest(s, "/richHeader/WRONG/20001").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(s, "/richHeader/KEY1/abc").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(s, "/richHeader/KEY1/20001").Code)
}

func TestForwardMultipleExpandsAndCaches(t *testing.T) {
	group := &fakeGroup{
		gid: 100200,
		bundles: map[string][]*qq.ForwardMessage{
			"RES_TOP": {{
				UserID:   20001,
				Nickname: "a",
				Brief:    "[合并转发]",
				Elements: []qq.Element{&qq.ForwardElement{ResID: "RES_NESTED"}},
			}},
			"RES_NESTED": {{
				UserID:   20002,
				Nickname: "b",
				Brief:    "hi",
				Elements: []qq.Element{qq.Text("hi")},
			}},
		},
	}
	fwdRepo := &fakeFwdRepo{records: map[string]*models.ForwardMultiple{}}
	s, pair := setupServer(t, group, fwdRepo)

	fwdRepo.records["u1"] = &models.ForwardMultiple{
		UUID:       "u1",
		FromPairID: pair.DBID,
		ResID:      "RES_TOP",
	}

	w := doRequest(s, "/forwardMultiple/u1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Messages []struct {
			Username string `json:"username"`
			Content  []struct {
				Type     string `json:"type"`
				ResID    string `json:"resId"`
				Messages []struct {
					Username string `json:"username"`
				} `json:"messages"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	require.Len(t, body.Messages[0].Content, 1)
	assert.Equal(t, "forward", body.Messages[0].Content[0].Type)
	// 嵌套资源已就地展开
	require.Len(t, body.Messages[0].Content[0].Messages, 1)
	assert.Equal(t, "b", body.Messages[0].Content[0].Messages[0].Username)

	fetches := group.fetches
	// 第二次请求走缓存，不再触发 RPC
	require.Equal(t, http.StatusOK, doRequest(s, "/forwardMultiple/u1").Code)
	assert.Equal(t, fetches, group.fetches)
}

func TestForwardMultipleDepthCap(t *testing.T) {
	// RES_1 套 RES_2 套 RES_3 套 RES_4：第三层之后保持惰性
	group := &fakeGroup{gid: 100200, bundles: map[string][]*qq.ForwardMessage{}}
	for i := 1; i <= 4; i++ {
		elements := []qq.Element{qq.Text("leaf")}
		if i < 4 {
			elements = []qq.Element{&qq.ForwardElement{ResID: fmt.Sprintf("RES_%d", i+1)}}
		}
		group.bundles[fmt.Sprintf("RES_%d", i)] = []*qq.ForwardMessage{{
			UserID: int64(i), Nickname: fmt.Sprintf("n%d", i), Elements: elements,
		}}
	}
	fwdRepo := &fakeFwdRepo{records: map[string]*models.ForwardMultiple{}}
	s, pair := setupServer(t, group, fwdRepo)
	fwdRepo.records["u1"] = &models.ForwardMultiple{UUID: "u1", FromPairID: pair.DBID, ResID: "RES_1"}

	require.Equal(t, http.StatusOK, doRequest(s, "/forwardMultiple/u1").Code)
	// RES_1 顶层 + RES_2、RES_3 展开；RES_4 超过深度上限
	assert.Equal(t, 3, group.fetches)
}

func TestForwardMultipleUnknownUUID(t *testing.T) {
	group := &fakeGroup{gid: 100200}
	s, _ := setupServer(t, group, &fakeFwdRepo{records: map[string]*models.ForwardMultiple{}})

	assert.Equal(t, http.StatusNotFound, doRequest(s, "/forwardMultiple/missing").Code)
}
