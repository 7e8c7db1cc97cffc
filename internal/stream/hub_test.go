package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register(FeedTopic("viewer-1"))
	defer hub.Unregister(client)

	hub.Broadcast(FeedTopic("viewer-1"), []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubTopicsAreIsolated(t *testing.T) {
	hub := NewHub(nil)
	feed := hub.Register(FeedTopic("viewer-1"))
	defer hub.Unregister(feed)
	mod := hub.Register(ModerationTopic("viewer-1"))
	defer hub.Unregister(mod)

	hub.Broadcast(ModerationTopic("viewer-1"), []byte("changed"))

	select {
	case <-mod.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for moderation message")
	}
	select {
	case msg := <-feed.Send:
		t.Fatalf("feed topic got %q", msg)
	default:
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("feed:abc")
	if ch != "eventhub:feed:abc" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if topicFromChannel(ch) != "feed:abc" {
		t.Fatalf("unexpected topic")
	}
	if topicFromChannel("bad") != "" {
		t.Fatalf("expected empty topic")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("feed:viewer-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
	hub.Unregister(client)
	if hub.Subscribers("feed:viewer-2") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestListenDeliversInOrder(t *testing.T) {
	hub := NewHub(nil)

	var mu sync.Mutex
	var got []string
	stop := hub.Listen("moderation:viewer-1", func(msg []byte) {
		mu.Lock()
		got = append(got, string(msg))
		mu.Unlock()
	})

	for _, m := range []string{"a", "b", "c"} {
		hub.Broadcast("moderation:viewer-1", []byte(m))
	}
	stop()
	stop()

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected delivery order %v", got)
	}
	if hub.Subscribers("moderation:viewer-1") != 0 {
		t.Fatalf("expected listener removed")
	}
}

func TestHubRedisBroadcastAndSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	ws := hub.Register(FeedTopic("viewer-redis"))
	defer hub.Unregister(ws)

	hub.Broadcast(FeedTopic("viewer-redis"), []byte("ping"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for broadcast")
	}

	// another instance publishing straight to redis
	if err := client.Publish(context.Background(), "eventhub:feed:viewer-redis", "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case msg := <-ws.Send:
		if string(msg) != "pong" {
			t.Fatalf("unexpected message from redis")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for redis message")
	}
}

func TestHubRedisUnavailableFallsBackToLocal(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	defer hub.Close()
	node := hub.Register("feed:viewer-bad")
	defer hub.Unregister(node)

	hub.Broadcast("feed:viewer-bad", []byte("ping"))

	select {
	case msg := <-node.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery")
	}
}
