// Package execution submits maker-only orders to the exchange and records
// what happened.
//
// Gateway is the only component that talks to an OrderTransport. It rounds
// prices to the tick grid and resubmits a bounded number of times when the
// exchange rejects an order for taking liquidity.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shubhamshinde5080/DogeBOT/internal/logger"
	"github.com/Shubhamshinde5080/DogeBOT/internal/metrics"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// ErrRetriesExhausted is returned when every maker resubmission was rejected.
// It wraps the last model.ErrWouldTake rejection.
var ErrRetriesExhausted = errors.New("maker order retries exhausted")

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	TickSize   float64       // price increment; 0 disables rounding
	MaxRetries int           // resubmissions after a would-take rejection
	RetryDelay time.Duration // pause before each resubmission
}

// DefaultGatewayConfig returns the DOGE/FDUSD settings.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		TickSize:   0.00001,
		MaxRetries: 1,
		RetryDelay: 50 * time.Millisecond,
	}
}

// Gateway places LIMIT_MAKER orders through a transport.
type Gateway struct {
	transport  model.OrderTransport
	tick       decimal.Decimal
	maxRetries int
	retryDelay time.Duration

	metrics *metrics.Metrics // optional
	log     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a Gateway. m may be nil.
func NewGateway(t model.OrderTransport, cfg GatewayConfig, m *metrics.Metrics, log *slog.Logger) *Gateway {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		transport:  t,
		tick:       decimal.NewFromFloat(cfg.TickSize),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		metrics:    m,
		log:        log.With(slog.String("component", "gateway")),
		sleep:      sleepCtx,
	}
}

// RoundToTick rounds price to the nearest multiple of the tick size.
func (g *Gateway) RoundToTick(price float64) decimal.Decimal {
	return roundToTick(decimal.NewFromFloat(price), g.tick)
}

func roundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}

// PostLimitMaker submits a maker-only order at price rounded to the tick.
// When the exchange answers that the order would take, the price moves one
// tick away from the market (BUY down, SELL up) and the order is resubmitted
// after RetryDelay, at most MaxRetries times. Other errors are returned
// immediately.
func (g *Gateway) PostLimitMaker(ctx context.Context, side model.Side, price, qty float64) (model.Placement, error) {
	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.OrderLatency.Observe(time.Since(start).Seconds())
		}
	}()

	px := g.RoundToTick(price)
	for attempt := 0; ; attempt++ {
		id, err := g.transport.Submit(ctx, side, px.InexactFloat64(), qty)
		if err == nil {
			if g.metrics != nil {
				g.metrics.OrdersPlaced.WithLabelValues(string(side)).Inc()
			}
			return model.Placement{
				OrderID:  id,
				Side:     side,
				Price:    px.InexactFloat64(),
				Quantity: qty,
				Retries:  attempt,
			}, nil
		}

		if !errors.Is(err, model.ErrWouldTake) {
			g.fail("transport")
			g.log.Warn("order_error", append(logger.LogWithTrace(ctx),
				"side", side, "price", px.String(), "qty", qty, "error", err)...)
			return model.Placement{}, fmt.Errorf("submit %s %s x %g: %w", side, px, qty, err)
		}

		if attempt >= g.maxRetries {
			g.fail("exhausted")
			g.log.Warn("maker_retries_exhausted", append(logger.LogWithTrace(ctx),
				"side", side, "price", px.String(), "qty", qty, "attempts", attempt+1)...)
			return model.Placement{}, fmt.Errorf("%w: %s x %g after %d attempts: %w",
				ErrRetriesExhausted, side, qty, attempt+1, err)
		}

		g.fail("would_take")
		next := px.Sub(g.tick)
		if side == model.SideSell {
			next = px.Add(g.tick)
		}
		g.log.Info("maker_nudge", append(logger.LogWithTrace(ctx),
			"side", side, "from", px.String(), "to", next.String())...)
		px = next

		if g.metrics != nil {
			g.metrics.OrderRetries.Inc()
		}
		if err := g.sleep(ctx, g.retryDelay); err != nil {
			return model.Placement{}, err
		}
	}
}

// CancelOrder cancels a resting order. Failures are logged and reported as
// false, never returned.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) bool {
	if err := g.transport.Cancel(ctx, orderID); err != nil {
		g.log.Warn("cancel_failed", append(logger.LogWithTrace(ctx), "order_id", orderID, "error", err)...)
		if g.metrics != nil {
			g.metrics.Cancels.WithLabelValues("failed").Inc()
		}
		return false
	}
	if g.metrics != nil {
		g.metrics.Cancels.WithLabelValues("ok").Inc()
	}
	return true
}

func (g *Gateway) fail(reason string) {
	if g.metrics != nil {
		g.metrics.OrderFailures.WithLabelValues(reason).Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
