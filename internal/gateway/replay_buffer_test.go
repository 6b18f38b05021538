package gateway

import (
	"strconv"
	"testing"
)

func pushN(rb *ReplayBuffer, n int) {
	for i := 1; i <= n; i++ {
		rb.Push(int64(i), []byte(strconv.Itoa(i)))
	}
}

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(100)
	pushN(rb, 10)

	got := rb.Since(7)
	if len(got) != 3 {
		t.Fatalf("Since(7): got %d entries, want 3", len(got))
	}
	if string(got[0]) != "8" || string(got[2]) != "10" {
		t.Errorf("Since(7) = %q", got)
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	pushN(rb, 8)

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}
	got := rb.Since(0)
	if len(got) != 5 || string(got[0]) != "4" || string(got[4]) != "8" {
		t.Errorf("Since(0) = %q, want 4..8", got)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	if got := NewReplayBuffer(10).Since(0); len(got) != 0 {
		t.Fatalf("empty buffer returned %d entries", len(got))
	}
}
