package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

type fakeBackend struct {
	err       error
	published [][]byte
	statuses  []map[string]interface{}
}

func (f *fakeBackend) Publish(_ context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	if channel != EventsChannel {
		panic("unexpected channel " + channel)
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBackend) HSet(_ context.Context, key string, fields map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, fields)
	return nil
}

func kindOf(t *testing.T, raw []byte) model.EventKind {
	t.Helper()
	var ev model.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	return ev.Kind
}

func drain(p *Publisher) {
	for {
		select {
		case o := <-p.queue:
			p.handle(context.Background(), o)
		default:
			return
		}
	}
}

func TestPublisherPublishesEvents(t *testing.T) {
	be := &fakeBackend{}
	p := NewPublisher(be, nil)
	published := 0
	p.OnPublish = func() { published++ }

	p.Emit(context.Background(), model.Event{Kind: model.EventBuyPlaced})
	p.Emit(context.Background(), model.Event{Kind: model.EventBuyFill})
	p.PublishStatus(map[string]interface{}{"cycle_active": "1"})
	drain(p)

	if len(be.published) != 2 || kindOf(t, be.published[1]) != model.EventBuyFill {
		t.Fatalf("published = %d", len(be.published))
	}
	if published != 2 {
		t.Errorf("OnPublish calls = %d", published)
	}
	if len(be.statuses) != 1 || be.statuses[0]["cycle_active"] != "1" {
		t.Errorf("statuses = %v", be.statuses)
	}
}

func TestPublisherHoldsWhileDownAndReplays(t *testing.T) {
	be := &fakeBackend{err: errFail}
	cb, clk := newTestBreaker(1)
	p := NewPublisher(be, cb)

	p.Emit(context.Background(), model.Event{Kind: model.EventCycleStart})
	p.Emit(context.Background(), model.Event{Kind: model.EventBuyPlaced})
	p.PublishStatus(map[string]interface{}{"v": 1})
	p.PublishStatus(map[string]interface{}{"v": 2})
	drain(p)

	if cb.CurrentState() != StateOpen {
		t.Fatalf("breaker = %v, want open", cb.CurrentState())
	}
	if p.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", p.Pending())
	}

	be.err = nil
	clk.advance(11 * time.Second)
	p.Emit(context.Background(), model.Event{Kind: model.EventBuyFill})
	drain(p)

	want := []model.EventKind{model.EventCycleStart, model.EventBuyPlaced, model.EventBuyFill}
	if len(be.published) != len(want) {
		t.Fatalf("published %d events, want %d", len(be.published), len(want))
	}
	for i, k := range want {
		if got := kindOf(t, be.published[i]); got != k {
			t.Errorf("event[%d] = %s, want %s", i, got, k)
		}
	}
	if len(be.statuses) != 1 || be.statuses[0]["v"] != 2 {
		t.Errorf("only the newest status should be replayed, got %v", be.statuses)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d after recovery", p.Pending())
	}
}

func TestPublisherDropsOldestHeld(t *testing.T) {
	be := &fakeBackend{err: errFail}
	p := NewPublisher(be, NewCircuitBreaker(1, time.Hour))
	p.maxPending = 2
	drops := 0
	p.OnDrop = func() { drops++ }

	for i := 0; i < 3; i++ {
		p.Emit(context.Background(), model.Event{Kind: model.EventBuyPlaced})
	}
	drain(p)

	if p.Pending() != 2 || drops != 1 {
		t.Errorf("pending=%d drops=%d, want 2 and 1", p.Pending(), drops)
	}
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	p := NewPublisher(&fakeBackend{}, nil)
	drops := 0
	p.OnDrop = func() { drops++ }
	for i := 0; i < defaultQueueSize+3; i++ {
		p.Emit(context.Background(), model.Event{Kind: model.EventBuyPlaced})
	}
	if drops != 3 {
		t.Errorf("drops = %d, want 3", drops)
	}
}
