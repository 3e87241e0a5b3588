package napcat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"qtbridge/internal/qq"
)

// fakeGateway 內存网关：按 action 查表应答，支持主动推送
type fakeGateway struct {
	t        *testing.T
	upgrader websocket.Upgrader
	actions  map[string]any
	conns    chan *websocket.Conn

	// greeting 非空时在升级完成后立刻推送，模拟建连瞬间就到的事件
	greeting any

	mu   sync.Mutex
	seen []string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{
		t:     t,
		conns: make(chan *websocket.Conn, 1),
		actions: map[string]any{
			"get_login_info": loginInfoData{UserID: 10000, Nickname: "bridge"},
			"get_status":     statusData{Online: true},
		},
	}
	return g
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.t.Errorf("upgrade failed: %v", err)
		return
	}
	g.conns <- conn

	if g.greeting != nil {
		conn.WriteJSON(g.greeting)
	}

	for {
		var req apiRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		g.mu.Lock()
		g.seen = append(g.seen, req.Action)
		g.mu.Unlock()
		data, ok := g.actions[req.Action]
		if !ok {
			conn.WriteJSON(map[string]any{
				"echo":    req.Echo,
				"status":  "failed",
				"retcode": 1404,
				"message": "unknown action",
			})
			continue
		}
		raw, _ := json.Marshal(data)
		conn.WriteJSON(map[string]any{
			"echo":    req.Echo,
			"status":  "ok",
			"retcode": 0,
			"data":    json.RawMessage(raw),
		})
	}
}

func startGateway(t *testing.T) (*fakeGateway, string, func()) {
	g := newFakeGateway(t)
	srv := httptest.NewServer(http.HandlerFunc(g.serve))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return g, wsURL, srv.Close
}

func TestCreateFetchesLoginInfo(t *testing.T) {
	_, wsURL, stop := startGateway(t)
	defer stop()

	c, err := Create(context.Background(), CreateParams{ID: 1, WSURL: wsURL})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer c.Close()

	if c.Uin() != 10000 || c.Nickname() != "bridge" {
		t.Fatalf("unexpected self info: %d %q", c.Uin(), c.Nickname())
	}

	online, err := c.IsOnline(context.Background())
	if err != nil || !online {
		t.Fatalf("expected online, got %v %v", online, err)
	}
}

func TestCreateFailsWhenGatewayRejects(t *testing.T) {
	g, wsURL, stop := startGateway(t)
	defer stop()
	delete(g.actions, "get_login_info")

	if _, err := Create(context.Background(), CreateParams{ID: 1, WSURL: wsURL}); err == nil {
		t.Fatalf("expected creation to fail when self check is rejected")
	}
}

func TestCallAPIRejectsErrorStatus(t *testing.T) {
	_, wsURL, stop := startGateway(t)
	defer stop()

	c, err := Create(context.Background(), CreateParams{ID: 1, WSURL: wsURL})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer c.Close()

	err = c.callAPI(context.Background(), "no_such_action", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "retcode=1404") {
		t.Fatalf("expected gateway rejection, got %v", err)
	}
}

func TestMessagePushDispatch(t *testing.T) {
	g, wsURL, stop := startGateway(t)
	defer stop()
	g.actions["get_stranger_info"] = strangerInfoData{UserID: 20001, Nickname: "sender"}

	c, err := Create(context.Background(), CreateParams{ID: 1, WSURL: wsURL})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer c.Close()

	events := make(chan *qq.MessageEvent, 1)
	c.AddMessageHandler(func(ctx context.Context, e *qq.MessageEvent) (bool, error) {
		events <- e
		return true, nil
	})

	conn := <-g.conns
	push := map[string]any{
		"post_type":    "message",
		"message_type": "private",
		"message_id":   4242,
		"user_id":      20001,
		"time":         1700000000,
		"sender":       map[string]any{"user_id": 20001, "nickname": "sender"},
		"message": []map[string]any{
			{"type": "text", "data": map[string]any{"text": "hello"}},
		},
	}
	if err := conn.WriteJSON(push); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	select {
	case e := <-events:
		if e.Seq != 4242 || e.Rand != 0 || e.Pktnum != 0 {
			t.Fatalf("unexpected identity mapping: seq=%d rand=%d pktnum=%d", e.Seq, e.Rand, e.Pktnum)
		}
		if e.ChatID() != 20001 || !e.DM() {
			t.Fatalf("unexpected chat: %d", e.ChatID())
		}
		if e.Brief != "hello" {
			t.Fatalf("unexpected brief %q", e.Brief)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for message event")
	}
}

// 建连瞬间就到的推送要排在自检之后处理，不能在自身信息写入前读它
func TestEarlyPushWaitsForSelfCheck(t *testing.T) {
	g := newFakeGateway(t)
	g.actions["get_stranger_info"] = strangerInfoData{UserID: 20001, Nickname: "sender"}
	g.greeting = map[string]any{
		"post_type":    "message",
		"message_type": "private",
		"message_id":   1,
		"user_id":      20001,
		"time":         1700000000,
		"sender":       map[string]any{"user_id": 20001, "nickname": "sender"},
		"message": []map[string]any{
			{"type": "text", "data": map[string]any{"text": "early"}},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(g.serve))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	c, err := Create(context.Background(), CreateParams{ID: 1, WSURL: wsURL})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer c.Close()

	// 推送处理会为会话解析发起 get_stranger_info，必须晚于 get_login_info
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		seen := append([]string(nil), g.seen...)
		g.mu.Unlock()
		for i, action := range seen {
			if action != "get_stranger_info" {
				continue
			}
			for _, earlier := range seen[:i] {
				if earlier == "get_login_info" {
					return
				}
			}
			t.Fatalf("push handled before self check: %v", seen)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for push handling")
}

func TestOnDisconnectCallback(t *testing.T) {
	_, wsURL, stop := startGateway(t)

	disconnected := make(chan error, 1)
	c, err := Create(context.Background(), CreateParams{
		ID:    1,
		WSURL: wsURL,
		OnDisconnect: func(err error) {
			disconnected <- err
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer c.Close()

	stop()

	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected disconnect callback")
	}
}
