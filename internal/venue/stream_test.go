package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// createMockWSServer creates a test WebSocket server
func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

type updateCollector struct {
	mu      sync.Mutex
	updates [][]byte
}

func (c *updateCollector) push(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, b)
}

func (c *updateCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func (c *updateCollector) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) == 0 {
		return nil
	}
	return c.updates[len(c.updates)-1]
}

func waitCount(t *testing.T, c *updateCollector, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("collector stuck at %d updates, want %d", c.count(), n)
}

func TestStreamSource_SubscribeDeliversBookFrames(t *testing.T) {
	subscribed := make(chan []byte, 1)
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- msg

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"channel":"orderbook","data":{"bids":[["0.0000575","1000"]],"asks":[]}}`))
		// Frames on other channels must be skipped.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"trades","data":{"x":1}}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"channel":"orderbook","data":{"bids":[],"asks":[["0.00006","5"]]}}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	source := NewStreamSource(nil, httpToWS(server.URL))
	source.PingInterval = 0

	collector := &updateCollector{}
	handle, err := source.Subscribe(context.Background(), "PEG/USDT", collector.push)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer handle.Unsubscribe()

	select {
	case msg := <-subscribed:
		var req map[string]any
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Fatalf("bad subscribe frame: %v", err)
		}
		if req["op"] != "subscribe" || req["channel"] != "orderbook" || req["market_id"] != "PEG/USDT" {
			t.Errorf("subscribe frame = %v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the subscribe frame")
	}

	waitCount(t, collector, 2)
	if !strings.Contains(string(collector.last()), "0.00006") {
		t.Errorf("last update = %s", collector.last())
	}
}

func TestStreamSource_UnsubscribeStopsDelivery(t *testing.T) {
	serverDone := make(chan struct{})
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"channel":"orderbook","data":{"bids":[],"asks":[]}}`))
		<-serverDone
	})
	defer server.Close()
	defer close(serverDone)

	source := NewStreamSource(nil, httpToWS(server.URL))
	source.PingInterval = 0

	collector := &updateCollector{}
	handle, err := source.Subscribe(context.Background(), "PEG/USDT", collector.push)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitCount(t, collector, 1)

	// Unsubscribe must not hang and must be idempotent.
	done := make(chan struct{})
	go func() {
		handle.Unsubscribe()
		handle.Unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe did not return")
	}

	before := collector.count()
	time.Sleep(50 * time.Millisecond)
	if collector.count() != before {
		t.Error("updates delivered after Unsubscribe")
	}
}

func TestStreamSource_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	connects := 0
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		connects++
		n := connects
		mu.Unlock()

		conn.ReadMessage() // subscribe frame
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"channel":"orderbook","data":{"bids":[],"asks":[],"sequence":`+strconv.Itoa(n)+`}}`))
		if n == 1 {
			return // drop the first connection immediately
		}
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	source := NewStreamSource(nil, httpToWS(server.URL))
	source.PingInterval = 0

	collector := &updateCollector{}
	handle, err := source.Subscribe(context.Background(), "PEG/USDT", collector.push)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer handle.Unsubscribe()

	// One update per connection; two updates means a reconnect happened.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := connects
		mu.Unlock()
		if n >= 2 && collector.count() >= 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no reconnect: %d connects, %d updates", connects, collector.count())
}

func TestExtractBookPayload(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		forward bool
	}{
		{"orderbook envelope", `{"channel":"orderbook","data":{"bids":[]}}`, `{"bids":[]}`, true},
		{"other channel skipped", `{"channel":"trades","data":{}}`, "", false},
		{"ack skipped", `{"channel":"orderbook"}`, "", false},
		{"bare frame forwarded", `{"bids":[["1","2"]],"asks":[]}`, `{"bids":[["1","2"]],"asks":[]}`, true},
		{"non-json forwarded", `pong`, `pong`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractBookPayload([]byte(tt.in))
			if ok != tt.forward {
				t.Fatalf("forward = %v, want %v", ok, tt.forward)
			}
			if tt.forward && string(got) != tt.want {
				t.Errorf("payload = %s, want %s", got, tt.want)
			}
		})
	}
}
