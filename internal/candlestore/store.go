// Package candlestore keeps a bounded, time-ordered window of closed candles
// for the traded symbol.
package candlestore

import (
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// DefaultCapacity is the number of candles retained before a batch eviction.
const DefaultCapacity = 500

// Store is a bounded candle sequence. When it grows past capacity, the oldest
// half is evicted in one step instead of shifting on every append.
// Designed for single-goroutine usage; no locks needed.
type Store struct {
	capacity int
	keep     int
	candles  []model.Candle
}

// New creates a Store retaining at most capacity candles. On overflow the
// most recent capacity/2 candles are kept.
func New(capacity int) *Store {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		keep:     capacity / 2,
		candles:  make([]model.Candle, 0, capacity+1),
	}
}

// Append stores a closed candle. In-flight events and candles whose open time
// does not strictly advance past the latest stored candle are ignored.
// Returns true if the candle was stored.
func (s *Store) Append(ev model.KlineEvent) bool {
	if !ev.Closed {
		return false
	}
	if n := len(s.candles); n > 0 && !ev.OpenTime.After(s.candles[n-1].OpenTime) {
		return false
	}

	s.candles = append(s.candles, ev.Candle)
	if len(s.candles) > s.capacity {
		s.evict()
	}
	return true
}

// evict drops the oldest candles, retaining the most recent keep entries.
// The survivors are copied to the front so the backing array is reused.
func (s *Store) evict() {
	n := copy(s.candles, s.candles[len(s.candles)-s.keep:])
	s.candles = s.candles[:n]
}

// Window returns a copy of the most recent k candles in time order.
// If fewer than k are stored, all of them are returned.
func (s *Store) Window(k int) []model.Candle {
	if k <= 0 {
		return nil
	}
	if k > len(s.candles) {
		k = len(s.candles)
	}
	out := make([]model.Candle, k)
	copy(out, s.candles[len(s.candles)-k:])
	return out
}

// Latest returns the most recent candle.
func (s *Store) Latest() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Len returns the number of stored candles.
func (s *Store) Len() int { return len(s.candles) }

// Cap returns the eviction threshold.
func (s *Store) Cap() int { return s.capacity }
