package redis

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/matching"
)

func newTestCoordinatorStore(client *redis.Client, ttl time.Duration) *CoordinatorStore {
	matcher := matching.MustNewMatcher(matching.DefaultConfig())
	return NewCoordinatorStore(client, ttl, func(channel string) *app.Coordinator {
		return app.NewCoordinator(channel, matcher)
	})
}

// stalledRedis accepts connections and never answers.
func stalledRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestCoordinatorStoreSetsAndClearsKeys(t *testing.T) {
	mr := runMiniredis(t)
	client := newClient(mr)

	matcher := matching.MustNewMatcher(matching.DefaultConfig())
	store := NewCoordinatorStore(client, time.Minute, func(channel string) *app.Coordinator {
		return app.NewCoordinator(channel, matcher)
	})

	_ = store.GetOrCreate("general")
	if !mr.Exists("trivia:channel:general") {
		t.Fatalf("expected redis key to be set")
	}

	store.DeleteIfIdle("general")
	if mr.Exists("trivia:channel:general") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestCoordinatorStoreRefreshesMarker(t *testing.T) {
	mr := runMiniredis(t)
	store := newTestCoordinatorStore(newClient(mr), time.Minute)

	first := store.GetOrCreate("general")
	mr.FastForward(50 * time.Second)
	if again := store.GetOrCreate("general"); again != first {
		t.Fatalf("expected the same coordinator")
	}
	mr.FastForward(30 * time.Second)
	if !mr.Exists("trivia:channel:general") {
		t.Fatalf("expected the marker to be refreshed by the second call")
	}
}

func TestCoordinatorStoreStalledRedisDoesNotBlockLookups(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:                  stalledRedis(t),
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { client.Close() })
	store := newTestCoordinatorStore(client, time.Minute)

	done := make(chan *app.Coordinator, 1)
	go func() { done <- store.GetOrCreate("general") }()

	// The coordinator is visible while its marker write is still hanging.
	deadline := time.Now().Add(time.Second)
	for {
		began := time.Now()
		_, ok := store.Get("general")
		if took := time.Since(began); took > 50*time.Millisecond {
			t.Fatalf("lookup waited %v on redis", took)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("coordinator never registered")
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case c := <-done:
		if c == nil {
			t.Fatalf("expected a coordinator")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("marker write was not bounded")
	}
}
