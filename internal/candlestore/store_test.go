package candlestore

import (
	"testing"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func closed(i int, price float64) model.KlineEvent {
	return model.KlineEvent{
		Symbol: "DOGEFDUSD",
		Closed: true,
		Candle: model.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:     price, High: price, Low: price, Close: price,
		},
	}
}

func TestStore_AppendInOrder(t *testing.T) {
	s := New(10)
	for i := 0; i < 3; i++ {
		if !s.Append(closed(i, float64(i))) {
			t.Fatalf("append %d should succeed", i)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("expected len=3, got %d", s.Len())
	}
	last, ok := s.Latest()
	if !ok || last.Close != 2 {
		t.Fatalf("expected latest close=2, got %v ok=%v", last.Close, ok)
	}
}

func TestStore_IgnoresInFlight(t *testing.T) {
	s := New(10)
	ev := closed(0, 1)
	ev.Closed = false
	if s.Append(ev) {
		t.Fatal("in-flight candle must not be stored")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestStore_RejectsDuplicateAndOutOfOrder(t *testing.T) {
	s := New(10)
	s.Append(closed(5, 1))

	if s.Append(closed(5, 2)) {
		t.Error("duplicate open time must be rejected")
	}
	if s.Append(closed(4, 3)) {
		t.Error("older open time must be rejected")
	}
	if s.Len() != 1 {
		t.Fatalf("expected len=1, got %d", s.Len())
	}
	if last, _ := s.Latest(); last.Close != 1 {
		t.Errorf("stored candle was overwritten: close=%v", last.Close)
	}
}

func TestStore_BatchEviction(t *testing.T) {
	s := New(DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		s.Append(closed(i, float64(i)))
	}
	if s.Len() != DefaultCapacity {
		t.Fatalf("expected len=%d before overflow, got %d", DefaultCapacity, s.Len())
	}

	// The 501st candle triggers eviction down to the most recent 250.
	s.Append(closed(DefaultCapacity, float64(DefaultCapacity)))
	if s.Len() != 250 {
		t.Fatalf("expected len=250 after eviction, got %d", s.Len())
	}
	w := s.Window(250)
	if w[0].Close != 251 || w[249].Close != 500 {
		t.Errorf("unexpected retained range: first=%v last=%v", w[0].Close, w[249].Close)
	}
}

func TestStore_Window(t *testing.T) {
	s := New(10)
	for i := 0; i < 5; i++ {
		s.Append(closed(i, float64(i)))
	}

	w := s.Window(3)
	if len(w) != 3 || w[0].Close != 2 || w[2].Close != 4 {
		t.Fatalf("unexpected window: %+v", w)
	}
	if got := len(s.Window(50)); got != 5 {
		t.Errorf("oversized window should return all candles, got %d", got)
	}
	if s.Window(0) != nil {
		t.Error("zero window should be nil")
	}

	// Window must be a copy.
	w[0].Close = 99
	if again := s.Window(3); again[0].Close != 2 {
		t.Error("Window leaked internal storage")
	}
}
