package model

import (
	"encoding/json"
	"time"
)

// EventKind names a strategy event.
type EventKind string

const (
	EventCycleStart   EventKind = "cycle_start"
	EventBuyPlaced    EventKind = "buy_placed"
	EventSellPlaced   EventKind = "sell_placed"
	EventBuyFill      EventKind = "buy_fill"
	EventSellFill     EventKind = "sell_fill"
	EventTargetHit    EventKind = "target_hit"
	EventLiquidation  EventKind = "liquidation"
	EventDayReset     EventKind = "day_reset"
	EventOrderError   EventKind = "order_error"
	EventInvariant    EventKind = "invariant_violation"
	EventPaused       EventKind = "paused"
	EventResumed      EventKind = "resumed"
	EventCandleClosed EventKind = "candle_closed"
)

// Event is a structured record emitted by the strategy pipeline.
// Unused numeric fields are zero and omitted from JSON.
type Event struct {
	Kind        EventKind `json:"kind"`
	Symbol      string    `json:"symbol,omitempty"`
	Time        time.Time `json:"time"`
	Side        Side      `json:"side,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Quantity    float64   `json:"quantity,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	PnL         float64   `json:"pnl,omitempty"`
	RealizedPnL float64   `json:"realized_pnl,omitempty"`
	Target      float64   `json:"target,omitempty"`
	ATR         float64   `json:"atr,omitempty"`
	Message     string    `json:"message,omitempty"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// JSON returns the JSON-encoded event.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
