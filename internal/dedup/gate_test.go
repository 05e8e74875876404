package dedup

import (
	"sync"
	"testing"
)

func TestAdmitMonotonic(t *testing.T) {
	g := NewGate()
	g.Track("2330")

	// 100, 100, 99, 101 -> only 100 and 101 pass.
	cases := []struct {
		ts   int64
		want bool
	}{
		{100, true},
		{100, false},
		{99, false},
		{101, true},
	}

	for i, c := range cases {
		if got := g.Admit("2330", c.ts); got != c.want {
			t.Errorf("Tick %d (ts=%d): expected admit=%v, got %v", i, c.ts, c.want, got)
		}
	}
}

func TestAdmitUntrackedSymbol(t *testing.T) {
	g := NewGate()

	if g.Admit("2330", 100) {
		t.Error("Expected untracked symbol to be dropped")
	}
}

func TestForgetResetsState(t *testing.T) {
	g := NewGate()
	g.Track("2330")
	g.Admit("2330", 100)

	g.Forget("2330")
	if g.Tracked("2330") {
		t.Error("Expected symbol forgotten")
	}

	// Re-tracking starts a fresh timestamp history.
	g.Track("2330")
	if !g.Admit("2330", 50) {
		t.Error("Expected fresh entry to admit any timestamp")
	}
}

func TestTrackIsIdempotent(t *testing.T) {
	g := NewGate()
	g.Track("2330")
	g.Admit("2330", 100)

	// A second Track (e.g. a duplicate ack) must not reset last-seen.
	g.Track("2330")
	if g.Admit("2330", 100) {
		t.Error("Expected duplicate Track to preserve last-seen timestamp")
	}
}

func TestSymbolsAreIndependent(t *testing.T) {
	g := NewGate()
	g.Track("A")
	g.Track("B")

	if !g.Admit("A", 100) {
		t.Error("Expected first tick for A admitted")
	}
	if !g.Admit("B", 50) {
		t.Error("Expected first tick for B admitted regardless of A")
	}
}

func TestAdmitNeverRegressesUnderConcurrency(t *testing.T) {
	g := NewGate()
	g.Track("2330")

	var mu sync.Mutex
	var delivered []int64

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for ts := base; ts < base+100; ts++ {
				if g.Admit("2330", ts) {
					mu.Lock()
					delivered = append(delivered, ts)
					mu.Unlock()
				}
			}
		}(int64(i * 50))
	}
	wg.Wait()

	// Delivery order may interleave, but no admitted timestamp may repeat.
	seen := make(map[int64]bool)
	for _, ts := range delivered {
		if seen[ts] {
			t.Fatalf("Timestamp %d delivered twice", ts)
		}
		seen[ts] = true
	}
}
