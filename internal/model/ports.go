package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the strategy pipeline from concrete transports
// (Binance REST/WS, paper simulation) and observability backends.

// OrderTransport submits and cancels maker orders on the exchange.
type OrderTransport interface {
	// Submit places a LIMIT_MAKER order and returns the exchange order ID.
	// A maker rejection must be reported as an error wrapping ErrWouldTake.
	Submit(ctx context.Context, side Side, price, quantity float64) (string, error)

	// Cancel cancels a resting order by ID.
	Cancel(ctx context.Context, orderID string) error
}

// CandleSource delivers kline events in arrival order.
type CandleSource interface {
	// Start streams events into out. Blocks until ctx is cancelled.
	Start(ctx context.Context, out chan<- KlineEvent) error
}

// FillSource delivers fill events for orders placed by this process.
type FillSource interface {
	// Fills returns the channel on which fills are delivered.
	Fills() <-chan Fill
}

// EventSink receives structured strategy events for delivery elsewhere
// (logs, Redis, notifications). Implementations must not block for long.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}
