package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

// queryViewer stands in for the JWT middleware: the viewer is taken from
// the ?viewer= parameter.
func queryViewer(c *fiber.Ctx) string {
	return c.Query("viewer")
}

func startStreamApp(t *testing.T, hub *Hub) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, queryViewer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func waitForSubscriber(t *testing.T, hub *Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber on %s", topic)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil), queryViewer)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws?viewer=viewer-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersRejectsUnknownViewer(t *testing.T) {
	hub := NewHub(nil)
	addr := startStreamApp(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws", nil)
	if err == nil {
		t.Fatalf("expected handshake to fail without a viewer")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil)
	addr := startStreamApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws?viewer=viewer-1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, FeedTopic("viewer-1"))

	hub.Broadcast(FeedTopic("viewer-1"), []byte("hello"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message")
	}
}

func TestStreamHandlersUnregisterOnClose(t *testing.T) {
	hub := NewHub(nil)
	addr := startStreamApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws?viewer=viewer-3", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitForSubscriber(t, hub, FeedTopic("viewer-3"))

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(FeedTopic("viewer-3")) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was not unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(FeedTopic("viewer-3"), []byte("ping"))
}
