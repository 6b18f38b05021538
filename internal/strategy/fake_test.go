package strategy

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/Shubhamshinde5080/DogeBOT/internal/logger"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

type placedOrder struct {
	ID    string
	Side  model.Side
	Price float64
	Qty   float64
}

// fakePlacer records submissions and hands out sequential order IDs.
type fakePlacer struct {
	seq       int
	placed    []placedOrder
	cancelled []string
	err       error           // returned by every PostLimitMaker while set
	stuck     map[string]bool // order IDs whose cancel reports failure
}

func (f *fakePlacer) PostLimitMaker(_ context.Context, side model.Side, price, qty float64) (model.Placement, error) {
	if f.err != nil {
		return model.Placement{}, f.err
	}
	f.seq++
	id := fmt.Sprintf("ord-%d", f.seq)
	f.placed = append(f.placed, placedOrder{ID: id, Side: side, Price: price, Qty: qty})
	return model.Placement{OrderID: id, Side: side, Price: price, Quantity: qty}, nil
}

func (f *fakePlacer) CancelOrder(_ context.Context, id string) bool {
	f.cancelled = append(f.cancelled, id)
	return !f.stuck[id]
}

func (f *fakePlacer) last() placedOrder { return f.placed[len(f.placed)-1] }

type recordingSink struct{ events []model.Event }

func (r *recordingSink) Emit(_ context.Context, ev model.Event) { r.events = append(r.events, ev) }

func (r *recordingSink) kinds() []model.EventKind {
	out := make([]model.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recordingSink) has(k model.EventKind) bool {
	for _, ev := range r.events {
		if ev.Kind == k {
			return true
		}
	}
	return false
}

func newTestEngine(p Params) (*LadderEngine, *fakePlacer, *recordingSink) {
	placer := &fakePlacer{}
	sink := &recordingSink{}
	return NewLadderEngine("DOGEFDUSD", p, placer, sink, logger.Discard()), placer, sink
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %.10f, want %.10f", label, got, want)
	}
}
