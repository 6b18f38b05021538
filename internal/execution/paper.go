package execution

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// restingOrder is a paper order waiting for the market to trade through it.
type restingOrder struct {
	id    string
	seq   int64
	side  model.Side
	price float64
	qty   float64
}

// PaperTransport simulates a maker-only venue without real exchange calls.
// Orders rest until a later candle trades through their price, and then fill
// completely at the order price.
//
// With strictMaker set, an order priced through the last close is rejected
// with model.ErrWouldTake, mirroring LIMIT_MAKER. Otherwise such orders rest
// and fill on the next candle that reaches them.
type PaperTransport struct {
	mu          sync.Mutex
	resting     map[string]*restingOrder
	fills       []model.Fill
	lastPrice   float64
	orderSeq    int64
	strictMaker bool
}

// NewPaperTransport creates an empty paper venue.
func NewPaperTransport(strictMaker bool) *PaperTransport {
	return &PaperTransport{
		resting:     make(map[string]*restingOrder),
		fills:       make([]model.Fill, 0, 256),
		strictMaker: strictMaker,
	}
}

// Submit rests a maker order and returns its ID.
func (p *PaperTransport) Submit(_ context.Context, side model.Side, price, qty float64) (string, error) {
	if price <= 0 || qty <= 0 {
		return "", fmt.Errorf("paper: invalid order %s %v x %v", side, price, qty)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.strictMaker && p.lastPrice > 0 {
		if (side == model.SideBuy && price >= p.lastPrice) || (side == model.SideSell && price <= p.lastPrice) {
			return "", fmt.Errorf("paper: %s %.5f against market %.5f: %w", side, price, p.lastPrice, model.ErrWouldTake)
		}
	}

	p.orderSeq++
	o := &restingOrder{
		id:    "paper-" + uuid.NewString(),
		seq:   p.orderSeq,
		side:  side,
		price: price,
		qty:   qty,
	}
	p.resting[o.id] = o

	log.Printf("[paper] rest %s %.5f x %g id=%s", side, price, qty, o.id)
	return o.id, nil
}

// Cancel removes a resting order.
func (p *PaperTransport) Cancel(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.resting[orderID]; !ok {
		return fmt.Errorf("paper: order %s not resting", orderID)
	}
	delete(p.resting, orderID)
	log.Printf("[paper] cancel id=%s", orderID)
	return nil
}

// OnCandle matches resting orders against a closed candle and returns the
// resulting fills in placement order. BUYs fill when the low reaches their
// price, SELLs when the high does. The candle's close becomes the reference
// price for strict maker checks.
func (p *PaperTransport) OnCandle(c model.Candle) []model.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	var hit []*restingOrder
	for _, o := range p.resting {
		if (o.side == model.SideBuy && c.Low <= o.price) || (o.side == model.SideSell && c.High >= o.price) {
			hit = append(hit, o)
		}
	}
	sort.Slice(hit, func(i, j int) bool { return hit[i].seq < hit[j].seq })

	out := make([]model.Fill, 0, len(hit))
	for _, o := range hit {
		delete(p.resting, o.id)
		f := model.Fill{OrderID: o.id, Side: o.side, Price: o.price, Quantity: o.qty, Time: c.EventTime()}
		p.fills = append(p.fills, f)
		out = append(out, f)
		log.Printf("[paper] fill %s %.5f x %g id=%s", o.side, o.price, o.qty, o.id)
	}
	p.lastPrice = c.Close
	return out
}

// SetMarket sets the reference price used by strict maker checks.
func (p *PaperTransport) SetMarket(price float64) {
	p.mu.Lock()
	p.lastPrice = price
	p.mu.Unlock()
}

// Resting returns the number of open paper orders.
func (p *PaperTransport) Resting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting)
}

// GetFills returns a snapshot of all fills.
func (p *PaperTransport) GetFills() []model.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
