package binance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures a reconnecting WebSocket stream.
type StreamConfig struct {
	// URL of the stream, e.g. "wss://stream.binance.com:9443/ws/dogefdusd@kline_15m".
	// When URLFunc is set it is called before every dial instead.
	URL     string
	URLFunc func(ctx context.Context) (string, error)

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// ReadTimeout drops a silent connection. Binance pings every 3 minutes;
	// defaults to 10 minutes.
	ReadTimeout time.Duration

	// Name tags log lines, e.g. "market" or "user".
	Name string
}

func (c *StreamConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Minute
	}
	if c.Name == "" {
		c.Name = "stream"
	}
}

// Stream reads raw JSON frames from a Binance WebSocket endpoint and hands
// them to a callback, reconnecting with exponential backoff.
type Stream struct {
	cfg StreamConfig

	// Optional hooks.
	OnConnect    func()
	OnDisconnect func(err error)
}

// NewStream creates a Stream.
func NewStream(cfg StreamConfig) *Stream {
	cfg.defaults()
	return &Stream{cfg: cfg}
}

// KlineStreamURL returns the single-stream URL for a symbol's klines.
func KlineStreamURL(base, symbol, interval string) string {
	if base == "" {
		base = DefaultStreamURL
	}
	return fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(base, "/"), strings.ToLower(symbol), interval)
}

// Run dials the stream and delivers every text frame to handle.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (s *Stream) Run(ctx context.Context, handle func(raw []byte)) error {
	delay := s.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := s.runOnce(ctx, handle)
		if err == nil {
			return nil
		}
		if connected {
			delay = s.cfg.ReconnectDelay
		}

		log.Printf("[binance:%s] disconnected (%v), reconnecting in %s...", s.cfg.Name, err, delay)
		if s.OnDisconnect != nil {
			s.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel. connected reports whether the dial succeeded.
func (s *Stream) runOnce(ctx context.Context, handle func([]byte)) (connected bool, err error) {
	target := s.cfg.URL
	if s.cfg.URLFunc != nil {
		if target, err = s.cfg.URLFunc(ctx); err != nil {
			return false, fmt.Errorf("resolve url: %w", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Printf("[binance:%s] connected", s.cfg.Name)
	if s.OnConnect != nil {
		s.OnConnect()
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// Closes the connection when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		handle(raw)
	}
}
