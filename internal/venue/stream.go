package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dexterm/internal/book"
	"dexterm/internal/infra"
)

// StreamSource implements book.Source over the venue's websocket feed,
// delegating the one-shot snapshot to the REST client. Each Subscribe call
// runs one connection worker with reconnect backoff, a read deadline, and a
// ping loop; Unsubscribe tears the worker down.
type StreamSource struct {
	rest  *RestClient
	wsURL string

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func NewStreamSource(rest *RestClient, wsURL string) *StreamSource {
	return &StreamSource{
		rest:         rest,
		wsURL:        wsURL,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// FetchSnapshot satisfies book.Source.
func (s *StreamSource) FetchSnapshot(ctx context.Context, marketID string) ([]byte, error) {
	return s.rest.FetchSnapshot(ctx, marketID)
}

// Subscribe opens the live order-book subscription for one market. The
// returned handle is safe to release more than once.
func (s *StreamSource) Subscribe(ctx context.Context, marketID string, onUpdate func([]byte)) (book.Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		source:   s,
		marketID: marketID,
		onUpdate: onUpdate,
		cancel:   cancel,
	}
	sub.wg.Add(1)
	go sub.runLoop(ctx)
	return sub, nil
}

type subscription struct {
	source   *StreamSource
	marketID string
	onUpdate func([]byte)

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// Unsubscribe stops the worker and closes the connection. Idempotent.
func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		sub.close()
		sub.wg.Wait()
	})
}

func (sub *subscription) runLoop(ctx context.Context) {
	defer sub.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := sub.connect(ctx); err != nil {
			slog.Warn("Book stream connection failed",
				slog.String("market", sub.marketID), slog.Any("error", err), slog.Int("retry", retry))
			delay := infra.CalculateBackoff(retry)
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		sub.process(ctx)
	}
}

func (sub *subscription) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", userAgent)

	conn, _, err := dialer.DialContext(ctx, sub.source.wsURL, header)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	sub.conn = conn
	sub.mu.Unlock()

	subMsg, _ := json.Marshal(map[string]any{
		"op":        "subscribe",
		"channel":   "orderbook",
		"market_id": sub.marketID,
	})
	if err := sub.write(websocket.TextMessage, subMsg); err != nil {
		sub.close()
		return fmt.Errorf("subscribe send failed: %w", err)
	}

	if sub.source.PingInterval > 0 {
		go sub.pingLoop(ctx)
	}

	slog.Info("Book stream connected", slog.String("market", sub.marketID))
	return nil
}

func (sub *subscription) process(ctx context.Context) {
	for {
		sub.mu.RLock()
		c := sub.conn
		sub.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(sub.source.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Book stream read error", slog.String("market", sub.marketID), slog.Any("error", err))
			}
			sub.close()
			return
		}

		if payload, ok := extractBookPayload(msg); ok {
			sub.onUpdate(payload)
		}
	}
}

// extractBookPayload peels the stream envelope. Frames on other channels
// (acks, pongs) are skipped; frames without an envelope are forwarded whole
// and left to the normalizer's permissive parsing.
func extractBookPayload(msg []byte) ([]byte, bool) {
	var envelope struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil || envelope.Channel == "" {
		return msg, true
	}
	if envelope.Channel != "orderbook" {
		return nil, false
	}
	if len(envelope.Data) == 0 {
		return nil, false
	}
	return envelope.Data, true
}

func (sub *subscription) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(sub.source.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sub.mu.RLock()
			c := sub.conn
			sub.mu.RUnlock()
			if c == nil {
				return
			}
			if err := sub.write(websocket.PingMessage, nil); err != nil {
				slog.Warn("Book stream ping error", slog.String("market", sub.marketID), slog.Any("error", err))
				sub.close()
				return
			}
		}
	}
}

func (sub *subscription) write(msgType int, data []byte) error {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()

	sub.mu.RLock()
	c := sub.conn
	sub.mu.RUnlock()

	if c == nil {
		return fmt.Errorf("ws not connected")
	}
	return c.WriteMessage(msgType, data)
}

func (sub *subscription) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.conn != nil {
		sub.conn.Close()
		sub.conn = nil
	}
}
