package commands

import (
	"context"
	"strings"
	"testing"

	"qtbridge/internal/qq"
)

func newRequestsForTest() *RequestsController {
	return &RequestsController{pending: make(map[int64]*pendingRequest)}
}

func recordingApprover(result bool, got *[]bool) qq.Approver {
	return func(ctx context.Context, yes bool) bool {
		*got = append(*got, yes)
		return result
	}
}

func TestDecideApproveAndDeny(t *testing.T) {
	r := newRequestsForTest()
	var first, second []bool
	id1 := r.register("好友申请：a (1)", recordingApprover(true, &first))
	id2 := r.register("邀请入群：g (2)", recordingApprover(true, &second))

	reply, ok := r.decide(context.Background(), "/approve 1")
	if !ok || !strings.Contains(reply, "已同意") {
		t.Fatalf("unexpected approve reply %q ok=%v", reply, ok)
	}
	if len(first) != 1 || !first[0] {
		t.Fatalf("approver #%d not invoked with yes, got %v", id1, first)
	}

	reply, ok = r.decide(context.Background(), "/deny 2")
	if !ok || !strings.Contains(reply, "已拒绝") {
		t.Fatalf("unexpected deny reply %q ok=%v", reply, ok)
	}
	if len(second) != 1 || second[0] {
		t.Fatalf("approver #%d not invoked with no, got %v", id2, second)
	}
}

func TestDecideConsumesPendingEntry(t *testing.T) {
	r := newRequestsForTest()
	var calls []bool
	r.register("好友申请：a (1)", recordingApprover(true, &calls))

	if _, ok := r.decide(context.Background(), "/approve 1"); !ok {
		t.Fatalf("first decision should be handled")
	}
	reply, ok := r.decide(context.Background(), "/approve 1")
	if !ok || !strings.Contains(reply, "找不到") {
		t.Fatalf("repeated decision should report missing entry, got %q", reply)
	}
	if len(calls) != 1 {
		t.Fatalf("approver invoked %d times", len(calls))
	}
}

func TestDecideReportsExpiredCapability(t *testing.T) {
	r := newRequestsForTest()
	var calls []bool
	r.register("好友申请：a (1)", recordingApprover(false, &calls))

	reply, ok := r.decide(context.Background(), "/approve 1")
	if !ok || !strings.Contains(reply, "过期") {
		t.Fatalf("expected expiry report, got %q ok=%v", reply, ok)
	}
}

func TestDecideIgnoresOtherMessages(t *testing.T) {
	r := newRequestsForTest()
	var calls []bool
	r.register("好友申请：a (1)", recordingApprover(true, &calls))

	for _, text := range []string{"hello", "/approve", "/approve one", "/mute 1d", "/info"} {
		if _, ok := r.decide(context.Background(), text); ok {
			t.Fatalf("text %q should not be treated as a decision", text)
		}
	}
	if len(calls) != 0 {
		t.Fatalf("approver should not have been invoked")
	}
}
