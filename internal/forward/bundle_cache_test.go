package forward

import (
	"testing"
	"time"

	"qtbridge/internal/qq"
)

func TestBundleCacheExpiry(t *testing.T) {
	cache := NewBundleCache(20 * time.Millisecond)
	messages := []*qq.ForwardMessage{{Nickname: "a", Brief: "hi"}}

	cache.Set("u1", messages)
	got, ok := cache.Get("u1")
	if !ok || len(got) != 1 {
		t.Fatalf("expected cache hit")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := cache.Get("u1"); ok {
		t.Fatalf("expected entry expired")
	}
}

func TestBundleCacheMiss(t *testing.T) {
	cache := NewBundleCache(0)
	if _, ok := cache.Get("missing"); ok {
		t.Fatalf("expected miss for unknown uuid")
	}
}
