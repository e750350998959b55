package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"majority-rules-service/internal/broadcast"
)

type stubChannel struct {
	mu       sync.Mutex
	received []any
	fail     bool
}

func (c *stubChannel) Send(_ context.Context, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection reset")
	}
	c.received = append(c.received, event)
	return nil
}

func (c *stubChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestBroadcastReachesEveryChannelInRoom(t *testing.T) {
	ctx := context.Background()
	registry := broadcast.NewRegistry()

	a, b := &stubChannel{}, &stubChannel{}
	other := &stubChannel{}
	registry.Connect("room-1", a)
	registry.Connect("room-1", b)
	registry.Connect("room-2", other)

	registry.Broadcast(ctx, "room-1", "hello")

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both room members to receive, got %d/%d", a.count(), b.count())
	}
	if other.count() != 0 {
		t.Fatalf("expected no cross-room delivery, got %d", other.count())
	}
}

func TestFailingChannelDoesNotAbortDelivery(t *testing.T) {
	ctx := context.Background()
	registry := broadcast.NewRegistry()

	broken := &stubChannel{fail: true}
	healthy := &stubChannel{}
	registry.Connect("room-1", broken)
	registry.Connect("room-1", healthy)

	registry.Broadcast(ctx, "room-1", "tick")

	if healthy.count() != 1 {
		t.Fatalf("expected delivery despite a broken sibling, got %d", healthy.count())
	}
	// A failing send must not evict the channel; only Disconnect does.
	if registry.RoomSize("room-1") != 2 {
		t.Fatalf("expected both channels still registered, got %d", registry.RoomSize("room-1"))
	}
}

func TestDisconnectDropsEmptyRooms(t *testing.T) {
	registry := broadcast.NewRegistry()
	ch := &stubChannel{}

	registry.Connect("room-1", ch)
	if registry.RoomSize("room-1") != 1 {
		t.Fatalf("expected one member, got %d", registry.RoomSize("room-1"))
	}

	registry.Disconnect("room-1", ch)
	if registry.RoomSize("room-1") != 0 {
		t.Fatalf("expected empty room dropped, got %d", registry.RoomSize("room-1"))
	}
	// Disconnecting from an unknown room is harmless.
	registry.Disconnect("room-unknown", ch)
}

func TestBroadcastToUnknownRoomIsNoOp(t *testing.T) {
	registry := broadcast.NewRegistry()
	registry.Broadcast(context.Background(), "nowhere", "anyone home?")
}

func TestConcurrentConnectBroadcastDisconnect(t *testing.T) {
	ctx := context.Background()
	registry := broadcast.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := &stubChannel{}
			registry.Connect("room-1", ch)
			registry.Broadcast(ctx, "room-1", "ping")
			registry.Disconnect("room-1", ch)
		}()
	}
	wg.Wait()

	if registry.RoomSize("room-1") != 0 {
		t.Fatalf("expected room drained, got %d", registry.RoomSize("room-1"))
	}
}
