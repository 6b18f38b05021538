package execution

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
	"github.com/Shubhamshinde5080/DogeBOT/pkg/binance"
)

// BinanceConfig configures the live transport.
type BinanceConfig struct {
	Symbol    string
	TickSize  float64
	QtyStep   float64
	StreamURL string // user-data stream base, default binance.DefaultStreamURL

	// KeepAlive is the listen key refresh period. Defaults to 30 minutes.
	KeepAlive time.Duration
}

// BinanceTransport places LIMIT_MAKER orders on Binance spot and turns
// executionReport FILLED events into model.Fill values.
type BinanceTransport struct {
	client *binance.Client
	cfg    BinanceConfig
	tick   decimal.Decimal
	step   decimal.Decimal
	fills  chan model.Fill

	mu        sync.Mutex
	listenKey string

	// Optional hooks for health reporting.
	OnConnect    func()
	OnDisconnect func(err error)
}

// NewBinanceTransport creates a live transport.
func NewBinanceTransport(c *binance.Client, cfg BinanceConfig) *BinanceTransport {
	if cfg.StreamURL == "" {
		cfg.StreamURL = binance.DefaultStreamURL
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30 * time.Minute
	}
	return &BinanceTransport{
		client: c,
		cfg:    cfg,
		tick:   decimal.NewFromFloat(cfg.TickSize),
		step:   decimal.NewFromFloat(cfg.QtyStep),
		fills:  make(chan model.Fill, 64),
	}
}

// Submit places a LIMIT_MAKER order and returns its client order ID. The
// quantity is floored to the lot step.
func (b *BinanceTransport) Submit(ctx context.Context, side model.Side, price, qty float64) (string, error) {
	px := roundToTick(decimal.NewFromFloat(price), b.tick)
	q := decimal.NewFromFloat(qty)
	if b.step.IsPositive() {
		q = q.Div(b.step).Floor().Mul(b.step)
	}
	if !q.IsPositive() || !px.IsPositive() {
		return "", fmt.Errorf("binance: invalid order %s %s x %s", side, px, q)
	}

	resp, err := b.client.NewOrder(ctx, binance.OrderRequest{
		Symbol:   b.cfg.Symbol,
		Side:     string(side),
		Type:     binance.OrderTypeLimitMaker,
		Price:    px,
		Quantity: q,
	})
	if err != nil {
		if binance.IsWouldTake(err) {
			return "", fmt.Errorf("%w: %v", model.ErrWouldTake, err)
		}
		return "", err
	}
	return resp.ClientOrderID, nil
}

// Cancel cancels an order by client order ID.
func (b *BinanceTransport) Cancel(ctx context.Context, orderID string) error {
	return b.client.CancelOrder(ctx, b.cfg.Symbol, orderID)
}

// Fills returns the channel on which completed orders are delivered.
func (b *BinanceTransport) Fills() <-chan model.Fill {
	return b.fills
}

// RunUserStream follows the account's user-data stream until ctx is
// cancelled. A fresh listen key is created on every (re)connect and kept
// alive in the background.
func (b *BinanceTransport) RunUserStream(ctx context.Context) error {
	stream := binance.NewStream(binance.StreamConfig{
		Name: "user",
		URLFunc: func(ctx context.Context) (string, error) {
			key, err := b.client.NewListenKey(ctx)
			if err != nil {
				return "", err
			}
			b.mu.Lock()
			b.listenKey = key
			b.mu.Unlock()
			return strings.TrimRight(b.cfg.StreamURL, "/") + "/" + key, nil
		},
	})
	stream.OnConnect = b.OnConnect
	stream.OnDisconnect = b.OnDisconnect

	go b.keepAlive(ctx)

	return stream.Run(ctx, func(raw []byte) {
		f, ok := b.parseFill(raw)
		if !ok {
			return
		}
		select {
		case b.fills <- f:
		case <-ctx.Done():
		}
	})
}

func (b *BinanceTransport) parseFill(raw []byte) (model.Fill, bool) {
	rep, ok, err := binance.ParseUserEvent(raw)
	if err != nil {
		log.Printf("[binance] user event parse error: %v", err)
		return model.Fill{}, false
	}
	if !ok || !rep.Filled() || !strings.EqualFold(rep.Symbol, b.cfg.Symbol) {
		return model.Fill{}, false
	}
	t := rep.TradeTime
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return model.Fill{
		OrderID:  rep.ClientOrderID,
		Side:     model.Side(rep.Side),
		Price:    rep.AvgPrice().InexactFloat64(),
		Quantity: rep.CumQty.InexactFloat64(),
		Time:     t,
	}, true
}

func (b *BinanceTransport) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			key := b.listenKey
			b.mu.Unlock()
			if key != "" {
				closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				b.client.CloseListenKey(closeCtx, key)
				cancel()
			}
			return
		case <-ticker.C:
			b.mu.Lock()
			key := b.listenKey
			b.mu.Unlock()
			if key == "" {
				continue
			}
			if err := b.client.KeepAliveListenKey(ctx, key); err != nil {
				log.Printf("[binance] listen key keepalive failed: %v", err)
			}
		}
	}
}
