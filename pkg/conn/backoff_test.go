package conn

import (
	"testing"
	"time"
)

func TestBackoffStartsNearMin(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 1.3, Jitter: 0}
	d := b.Next()
	if d != time.Second {
		t.Fatalf("first delay = %v, want %v (zero jitter)", d, time.Second)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 5 * time.Second, Factor: 2, Jitter: 0}
	var last time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		if d < last {
			t.Fatalf("delay decreased: %v then %v", last, d)
		}
		last = d
	}
	if last != 5*time.Second {
		t.Fatalf("final delay = %v, want capped at max 5s", last)
	}
}

func TestBackoffResetReturnsToMin(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 1.3, Jitter: 0}
	b.Next()
	b.Next()
	b.Next()
	b.Reset()
	if d := b.Next(); d != time.Second {
		t.Fatalf("delay after Reset = %v, want %v", d, time.Second)
	}
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 1, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := b.Next()
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-50%% of 1s", d)
		}
	}
}
