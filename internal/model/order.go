package model

import (
	"errors"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ErrWouldTake is returned by an OrderTransport when a maker-only order was
// rejected because it would immediately match and take liquidity.
var ErrWouldTake = errors.New("order would immediately match and take")

// Order is a transient submission request; it is not stored.
type Order struct {
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Fill is a completed execution reported by the order transport.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Time     time.Time `json:"time"`
}

// Placement describes an order accepted by the exchange. Price is the final
// submitted price after tick rounding and any maker nudges.
type Placement struct {
	OrderID  string  `json:"order_id"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Retries  int     `json:"retries"`
}
