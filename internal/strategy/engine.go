// Package strategy implements the grid entry rule and the ladder state
// machine that places rung buys, take-profit sells and the final
// liquidation.
//
// LadderEngine is not safe for concurrent use. It is owned by the ingestion
// loop goroutine; observers read copies obtained through Snapshot.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/logger"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

var (
	// ErrInvariant marks an operation that would break ladder bookkeeping.
	ErrInvariant = errors.New("ladder invariant violated")
	// ErrLadderNotFound is returned for a sell fill that matches no open ladder.
	ErrLadderNotFound = errors.New("no ladder matches sell fill")
)

// Params configures the ladder.
type Params struct {
	StepMultiplier float64 `yaml:"step_multiplier"` // step = multiplier × ATR
	Qty0           float64 `yaml:"qty0"`            // first rung quantity
	QtyIncrement   float64 `yaml:"qty_increment"`   // added per placed rung
	ProfitTarget   float64 `yaml:"profit_target"`   // realized PnL that ends the cycle
	FundsCap       float64 `yaml:"funds_cap"`       // max quote committed to filled ladders
}

// DefaultParams returns the reference ladder settings.
func DefaultParams() Params {
	return Params{
		StepMultiplier: 0.25,
		Qty0:           300,
		QtyIncrement:   50,
		ProfitTarget:   6,
		FundsCap:       1100,
	}
}

// Ladder is one filled buy awaiting its take-profit sell.
type Ladder struct {
	BuyPrice    float64 `json:"buy_price"`
	SellPrice   float64 `json:"sell_price"`
	Quantity    float64 `json:"quantity"`
	SellOrderID string  `json:"sell_order_id,omitempty"`
}

// State is a copy of the engine's strategy state.
type State struct {
	CycleActive     bool     `json:"cycle_active"`
	RealizedPnL     float64  `json:"realized_pnl"`
	Ladders         []Ladder `json:"ladders"`
	StepSize        float64  `json:"step_size"`
	NextBuyPrice    float64  `json:"next_buy_price"`
	NextBuyQuantity float64  `json:"next_buy_quantity"`
	PendingBuys     int      `json:"pending_buys"`
}

// OrderPlacer submits maker orders. execution.Gateway implements it.
type OrderPlacer interface {
	PostLimitMaker(ctx context.Context, side model.Side, price, qty float64) (model.Placement, error)
	CancelOrder(ctx context.Context, orderID string) bool
}

// LadderEngine drives one grid cycle at a time:
// IDLE → ACTIVE (StartCycle) → liquidation on profit target → IDLE.
type LadderEngine struct {
	symbol string
	params Params
	orders OrderPlacer
	sink   model.EventSink
	log    *slog.Logger
	now    func() time.Time

	state State

	pendingBuys  map[string]float64 // rung BUY order ID → submitted price
	sellOrders   map[string]Ladder  // take-profit SELL order ID → ladder
	liquidations map[string]struct{}
}

// NewLadderEngine creates an idle engine. A nil sink discards events and a
// nil logger falls back to slog.Default().
func NewLadderEngine(symbol string, p Params, orders OrderPlacer, sink model.EventSink, log *slog.Logger) *LadderEngine {
	if sink == nil {
		sink = model.EventSinkFunc(func(context.Context, model.Event) {})
	}
	if log == nil {
		log = slog.Default()
	}
	return &LadderEngine{
		symbol:       symbol,
		params:       p,
		orders:       orders,
		sink:         sink,
		log:          log.With(slog.String("component", "ladder")),
		now:          time.Now,
		pendingBuys:  make(map[string]float64),
		sellOrders:   make(map[string]Ladder),
		liquidations: make(map[string]struct{}),
	}
}

// Params returns the engine configuration.
func (e *LadderEngine) Params() Params { return e.params }

// Active reports whether a cycle is running.
func (e *LadderEngine) Active() bool { return e.state.CycleActive }

// RealizedPnL returns realized profit since the last cycle start or day reset.
func (e *LadderEngine) RealizedPnL() float64 { return e.state.RealizedPnL }

// StartCycle opens a new cycle anchored at price. The first rung sits one
// step below price, where step = StepMultiplier × atr.
func (e *LadderEngine) StartCycle(ctx context.Context, price, atr float64) error {
	if e.state.CycleActive {
		return fmt.Errorf("%w: start requested while cycle active", ErrInvariant)
	}
	if !(atr > 0) || math.IsInf(atr, 0) {
		return fmt.Errorf("%w: atr must be positive, got %v", ErrInvariant, atr)
	}
	step := e.params.StepMultiplier * atr
	if !(step > 0) {
		return fmt.Errorf("%w: step size must be positive, got %v", ErrInvariant, step)
	}

	e.state = State{
		CycleActive:     true,
		StepSize:        step,
		NextBuyPrice:    price - step,
		NextBuyQuantity: e.params.Qty0,
	}
	clear(e.pendingBuys)
	clear(e.sellOrders)

	e.log.Info("cycle_start", append(logger.LogWithTrace(ctx),
		"price", price, "atr", atr, "step", step, "next_buy", e.state.NextBuyPrice)...)
	e.emit(ctx, model.Event{Kind: model.EventCycleStart, Price: price, ATR: atr})
	return nil
}

// OnTick places the next rung BUY when price has reached it and the funds
// cap allows. At most one rung is placed per call. A failed submission
// leaves the rung unchanged so it is retried on the next tick.
func (e *LadderEngine) OnTick(ctx context.Context, price, atr float64) (bool, error) {
	if !e.state.CycleActive || price > e.state.NextBuyPrice {
		return false, nil
	}

	rungPrice, rungQty := e.state.NextBuyPrice, e.state.NextBuyQuantity
	if free := e.FundsFree(); free < rungPrice*rungQty {
		e.log.Debug("funds_cap_reached", "free", free, "needed", rungPrice*rungQty)
		return false, nil
	}

	pl, err := e.orders.PostLimitMaker(ctx, model.SideBuy, rungPrice, rungQty)
	if err != nil {
		e.emit(ctx, model.Event{Kind: model.EventOrderError, Side: model.SideBuy,
			Price: rungPrice, Quantity: rungQty, Message: err.Error()})
		return false, fmt.Errorf("place rung buy %.5f x %g: %w", rungPrice, rungQty, err)
	}

	e.pendingBuys[pl.OrderID] = pl.Price
	e.state.NextBuyPrice -= e.state.StepSize
	e.state.NextBuyQuantity += e.params.QtyIncrement

	e.log.Info("buy_placed", append(logger.LogWithTrace(ctx),
		"order_id", pl.OrderID, "price", pl.Price, "qty", rungQty, "tick", price, "atr", atr)...)
	e.emit(ctx, model.Event{Kind: model.EventBuyPlaced, Side: model.SideBuy,
		Price: pl.Price, Quantity: rungQty, OrderID: pl.OrderID})
	return true, nil
}

// HandleBuyFill records a filled rung as a ladder and places its take-profit
// SELL one step above the fill price. The ladder is kept even when the SELL
// cannot be placed; liquidation still covers it.
func (e *LadderEngine) HandleBuyFill(ctx context.Context, price, qty float64) error {
	if !e.state.CycleActive {
		return fmt.Errorf("%w: buy fill %.5f x %g while idle", ErrInvariant, price, qty)
	}

	l := Ladder{BuyPrice: price, SellPrice: price + e.state.StepSize, Quantity: qty}
	e.emit(ctx, model.Event{Kind: model.EventBuyFill, Side: model.SideBuy, Price: price, Quantity: qty})

	pl, err := e.orders.PostLimitMaker(ctx, model.SideSell, l.SellPrice, qty)
	if err == nil {
		l.SellOrderID = pl.OrderID
		e.sellOrders[pl.OrderID] = l
	}
	e.state.Ladders = append(e.state.Ladders, l)

	if err != nil {
		e.emit(ctx, model.Event{Kind: model.EventOrderError, Side: model.SideSell,
			Price: l.SellPrice, Quantity: qty, Message: err.Error()})
		return fmt.Errorf("place take-profit sell %.5f x %g: %w", l.SellPrice, qty, err)
	}

	e.log.Info("buy_fill", append(logger.LogWithTrace(ctx),
		"price", price, "qty", qty, "sell_order_id", pl.OrderID, "sell_price", pl.Price,
		"ladders", len(e.state.Ladders), "funds_free", e.FundsFree())...)
	e.emit(ctx, model.Event{Kind: model.EventSellPlaced, Side: model.SideSell,
		Price: pl.Price, Quantity: qty, OrderID: pl.OrderID})
	return nil
}

// HandleSellFill books the profit of a take-profit fill and removes every
// ladder with the same buy price and quantity. Take-profits of the removed
// duplicates that are still resting are cancelled. Reaching the profit target
// liquidates the remaining ladders at sellPrice and ends the cycle.
func (e *LadderEngine) HandleSellFill(ctx context.Context, sellPrice, buyPrice, qty float64) error {
	kept := e.state.Ladders[:0:0]
	matched := 0
	for _, l := range e.state.Ladders {
		if l.BuyPrice == buyPrice && l.Quantity == qty {
			matched++
			e.dropTakeProfit(ctx, l.SellOrderID)
			continue
		}
		kept = append(kept, l)
	}
	if matched == 0 {
		return fmt.Errorf("%w: buy=%.5f qty=%g", ErrLadderNotFound, buyPrice, qty)
	}

	pnl := (sellPrice - buyPrice) * qty
	e.state.RealizedPnL += pnl
	e.state.Ladders = kept

	e.log.Info("sell_fill", append(logger.LogWithTrace(ctx),
		"sell", sellPrice, "buy", buyPrice, "qty", qty, "pnl", pnl,
		"realized_pnl", e.state.RealizedPnL, "removed", matched)...)
	e.emit(ctx, model.Event{Kind: model.EventSellFill, Side: model.SideSell,
		Price: sellPrice, Quantity: qty, PnL: pnl})

	if e.state.RealizedPnL < e.params.ProfitTarget {
		return nil
	}

	e.log.Info("target_hit", append(logger.LogWithTrace(ctx),
		"realized_pnl", e.state.RealizedPnL, "target", e.params.ProfitTarget)...)
	e.emit(ctx, model.Event{Kind: model.EventTargetHit, Target: e.params.ProfitTarget})
	return e.Liquidate(ctx, sellPrice)
}

// Liquidate ends the active cycle. In-flight rung BUYs and remaining
// take-profit SELLs are cancelled, then one SELL at price is placed for every
// open ladder whose take-profit was cancelled. Ladders are cleared and the engine goes idle
// even if some SELLs fail; those failures are joined into the returned error.
// It is a no-op while idle.
func (e *LadderEngine) Liquidate(ctx context.Context, price float64) error {
	if !e.state.CycleActive {
		return nil
	}

	for id := range e.pendingBuys {
		e.orders.CancelOrder(ctx, id)
	}
	clear(e.pendingBuys)

	var errs []error
	for _, l := range e.state.Ladders {
		if l.SellOrderID != "" {
			delete(e.sellOrders, l.SellOrderID)
			if !e.orders.CancelOrder(ctx, l.SellOrderID) {
				// The take-profit may already be filled; selling again would
				// go short. Its late fill is acknowledged like a liquidation.
				e.liquidations[l.SellOrderID] = struct{}{}
				errs = append(errs, fmt.Errorf("liquidate ladder buy=%.5f qty=%g: cancel take-profit %s failed",
					l.BuyPrice, l.Quantity, l.SellOrderID))
				continue
			}
		}
		pl, err := e.orders.PostLimitMaker(ctx, model.SideSell, price, l.Quantity)
		if err != nil {
			errs = append(errs, fmt.Errorf("liquidate ladder buy=%.5f qty=%g: %w", l.BuyPrice, l.Quantity, err))
			continue
		}
		e.liquidations[pl.OrderID] = struct{}{}
	}

	closed := len(e.state.Ladders)
	e.state.CycleActive = false
	e.state.Ladders = nil
	e.state.StepSize = 0
	e.state.NextBuyPrice = 0
	e.state.NextBuyQuantity = 0

	e.log.Info("liquidation", append(logger.LogWithTrace(ctx),
		"price", price, "ladders", closed, "failed", len(errs), "realized_pnl", e.state.RealizedPnL)...)
	e.emit(ctx, model.Event{Kind: model.EventLiquidation, Price: price, Quantity: float64(closed)})
	return errors.Join(errs...)
}

// OnFill routes a transport fill by order ID: rung BUYs become ladders,
// take-profit SELLs book profit, liquidation SELLs are acknowledged. Fills
// for orders the engine did not place are rejected with ErrLadderNotFound.
func (e *LadderEngine) OnFill(ctx context.Context, f model.Fill) error {
	switch f.Side {
	case model.SideBuy:
		if _, ok := e.pendingBuys[f.OrderID]; !ok {
			return fmt.Errorf("%w: unknown buy order %s", ErrLadderNotFound, f.OrderID)
		}
		delete(e.pendingBuys, f.OrderID)
		return e.HandleBuyFill(ctx, f.Price, f.Quantity)

	case model.SideSell:
		if _, ok := e.liquidations[f.OrderID]; ok {
			delete(e.liquidations, f.OrderID)
			e.log.Info("liquidation_fill", "order_id", f.OrderID, "price", f.Price, "qty", f.Quantity)
			return nil
		}
		l, ok := e.sellOrders[f.OrderID]
		if !ok {
			return fmt.Errorf("%w: unknown sell order %s", ErrLadderNotFound, f.OrderID)
		}
		delete(e.sellOrders, f.OrderID)
		return e.HandleSellFill(ctx, f.Price, l.BuyPrice, l.Quantity)
	}
	return fmt.Errorf("fill %s: unknown side %q", f.OrderID, f.Side)
}

// dropTakeProfit forgets a removed ladder's take-profit and cancels it if it
// is still resting. A filled take-profit has already left sellOrders.
func (e *LadderEngine) dropTakeProfit(ctx context.Context, id string) {
	if _, ok := e.sellOrders[id]; !ok {
		return
	}
	delete(e.sellOrders, id)
	if !e.orders.CancelOrder(ctx, id) {
		e.log.Warn("duplicate_cancel_failed", append(logger.LogWithTrace(ctx), "order_id", id)...)
	}
}

// FundsFree is FundsCap minus the quote committed to filled ladders.
// Resting rung BUYs are not counted.
func (e *LadderEngine) FundsFree() float64 {
	used := 0.0
	for _, l := range e.state.Ladders {
		used += l.BuyPrice * l.Quantity
	}
	return e.params.FundsCap - used
}

// ResetDailyPnL zeroes realized PnL at a UTC day boundary. Ladders and the
// cycle are left untouched.
func (e *LadderEngine) ResetDailyPnL() {
	e.log.Info("day_reset", "previous_pnl", e.state.RealizedPnL)
	e.state.RealizedPnL = 0
}

// Snapshot returns a copy of the current state.
func (e *LadderEngine) Snapshot() State {
	s := e.state
	s.Ladders = append([]Ladder(nil), e.state.Ladders...)
	s.PendingBuys = len(e.pendingBuys)
	return s
}

func (e *LadderEngine) emit(ctx context.Context, ev model.Event) {
	ev.Symbol = e.symbol
	ev.Time = e.now()
	ev.RealizedPnL = e.state.RealizedPnL
	ev.TraceID = logger.TraceID(ctx)
	e.sink.Emit(ctx, ev)
}
