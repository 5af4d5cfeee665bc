package presence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-chess-server/internal/storage"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T) (*Tracker, *storage.Memory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := storage.NewMemoryRepository()
	return NewTracker(rdb, repo), repo, mr
}

func TestOnlineCountsConnections(t *testing.T) {
	ctx := context.Background()
	tr, _, mr := newTestTracker(t)

	if on, err := tr.IsOnline(ctx, "alice"); err != nil || on {
		t.Fatalf("unknown identity online: %v %v", on, err)
	}
	if err := tr.MarkOnline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	if err := tr.MarkOnline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	if err := tr.MarkOffline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	if on, _ := tr.IsOnline(ctx, "alice"); !on {
		t.Fatalf("alice should still be online with one connection")
	}
	if err := tr.MarkOffline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	if on, _ := tr.IsOnline(ctx, "alice"); on {
		t.Fatalf("alice should be offline")
	}
	if mr.HGet(defaultKey, "alice") != "" {
		t.Fatalf("field not removed from hash")
	}
	if err := tr.MarkOffline(ctx, "alice"); err != nil {
		t.Fatalf("extra MarkOffline: %v", err)
	}
}

func TestResetClearsCountsFromPreviousRun(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	repo := storage.NewMemoryRepository()
	repo.AddFriend("bob", "alice")

	first := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := NewTracker(first, repo).MarkOnline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	// the process dies without MarkOffline
	_ = first.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	tr := NewTracker(rdb, repo)
	if err := tr.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if on, err := tr.IsOnline(ctx, "alice"); err != nil || on {
		t.Fatalf("alice online after restart: %v %v", on, err)
	}
	if got, _ := tr.OnlineFriendsOf(ctx, "bob"); len(got) != 0 {
		t.Fatalf("stale friend reported online: %+v", got)
	}
	if mr.Exists(defaultKey) {
		t.Fatalf("presence hash survived reset")
	}
	if err := tr.Reset(ctx); err != nil {
		t.Fatalf("Reset on empty hash: %v", err)
	}
}

func TestOnlineFriendsOf(t *testing.T) {
	ctx := context.Background()
	tr, repo, _ := newTestTracker(t)
	repo.PutUser("bob", "Bob")
	repo.PutUser("carol", "Carol")
	repo.AddFriend("alice", "bob")
	repo.AddFriend("alice", "carol")

	if got, err := tr.OnlineFriendsOf(ctx, "alice"); err != nil || len(got) != 0 {
		t.Fatalf("expected no online friends: %v %v", got, err)
	}
	tr.MarkOnline(ctx, "carol")
	tr.MarkOnline(ctx, "dave")

	got, err := tr.OnlineFriendsOf(ctx, "alice")
	if err != nil {
		t.Fatalf("OnlineFriendsOf: %v", err)
	}
	if len(got) != 1 || got[0].Login != "carol" || got[0].Name != "Carol" {
		t.Fatalf("unexpected friends: %+v", got)
	}
	if got, _ := tr.OnlineFriendsOf(ctx, "nobody"); len(got) != 0 {
		t.Fatalf("friendless user got %+v", got)
	}
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	tr := NewTracker(rdb, nil, WithKey("test:presence"))
	tr.MarkOnline(ctx, "alice")
	if mr.HGet("test:presence", "alice") != "1" {
		t.Fatalf("custom key not used")
	}
	if err := tr.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
