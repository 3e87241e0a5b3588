package qq

import (
	"context"
	"errors"
	"testing"
)

func TestHandlerChainOrderAndShortCircuit(t *testing.T) {
	h := &Handlers{}
	var order []int

	h.AddMessageHandler(func(ctx context.Context, e *MessageEvent) (bool, error) {
		order = append(order, 1)
		return false, nil
	})
	h.AddMessageHandler(func(ctx context.Context, e *MessageEvent) (bool, error) {
		order = append(order, 2)
		return true, nil
	})
	h.AddMessageHandler(func(ctx context.Context, e *MessageEvent) (bool, error) {
		order = append(order, 3)
		return false, nil
	})

	h.DispatchMessage(context.Background(), &MessageEvent{Chat: &stubFriend{uin: 1}})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers 1,2 to run in order, got %v", order)
	}
}

func TestHandlerChainErrorContinues(t *testing.T) {
	h := &Handlers{}
	var ran []int

	h.AddPokeHandler(func(ctx context.Context, e *PokeEvent) (bool, error) {
		ran = append(ran, 1)
		return false, errors.New("boom")
	})
	h.AddPokeHandler(func(ctx context.Context, e *PokeEvent) (bool, error) {
		ran = append(ran, 2)
		return false, nil
	})

	h.DispatchPoke(context.Background(), &PokeEvent{Chat: &stubFriend{uin: 1}})

	if len(ran) != 2 {
		t.Fatalf("expected error handler not to break the chain, ran %v", ran)
	}
}

func TestHandlerChainRemove(t *testing.T) {
	h := &Handlers{}
	var ran []int

	id := h.AddMessageHandler(func(ctx context.Context, e *MessageEvent) (bool, error) {
		ran = append(ran, 1)
		return false, nil
	})
	h.AddMessageHandler(func(ctx context.Context, e *MessageEvent) (bool, error) {
		ran = append(ran, 2)
		return false, nil
	})

	h.RemoveMessageHandler(id)
	h.DispatchMessage(context.Background(), &MessageEvent{Chat: &stubFriend{uin: 1}})

	if len(ran) != 1 || ran[0] != 2 {
		t.Fatalf("expected only handler 2 to run, got %v", ran)
	}
}

func TestResolveChatSignedRoomKey(t *testing.T) {
	c := &stubClient{id: 1}
	ctx := context.Background()

	chat, err := c.GetChat(ctx, 12345)
	if err != nil {
		t.Fatalf("GetChat(friend) failed: %v", err)
	}
	if !chat.DM() || chat.RoomID() != 12345 {
		t.Fatalf("expected friend chat with room 12345, got DM=%v room=%d", chat.DM(), chat.RoomID())
	}

	chat, err = c.GetChat(ctx, -100200)
	if err != nil {
		t.Fatalf("GetChat(group) failed: %v", err)
	}
	if chat.DM() || chat.RoomID() != -100200 {
		t.Fatalf("expected group chat with room -100200, got DM=%v room=%d", chat.DM(), chat.RoomID())
	}

	if _, err = c.GetChat(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for room 0, got %v", err)
	}
}

func TestMessageEventReplyQuote(t *testing.T) {
	event := &MessageEvent{
		Chat:     &stubFriend{uin: 9},
		From:     Sender{ID: 9, Name: "f"},
		Elements: []Element{Text("hi")},
		Seq:      77,
		Rand:     3,
		Time:     1700000000,
	}

	if _, err := event.Reply(context.Background(), []Element{Text("ok")}, true); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if !event.DM() || event.ChatID() != 9 {
		t.Fatalf("unexpected event identity: DM=%v chat=%d", event.DM(), event.ChatID())
	}
}

func TestBriefOf(t *testing.T) {
	brief := BriefOf([]Element{
		Text("hello "),
		&AtElement{QQ: 5, Text: "@someone"},
		&ImageElement{URL: "http://x/i.png"},
		&ForwardElement{ResID: "R"},
	})
	want := "hello @someone[图片][合并转发]"
	if brief != want {
		t.Fatalf("expected %q, got %q", want, brief)
	}
}
