package persistence

import (
	"testing"
)

func newTestStore(t *testing.T, opts ...Option) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewBoltStore(dir, opts...)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCachedNodeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutCachedNode("/users/alice", map[string]interface{}{"name": "Alice"}); err != nil {
		t.Fatalf("PutCachedNode: %v", err)
	}
	got, ok, err := s.GetCachedNode("/users/alice")
	if err != nil {
		t.Fatalf("GetCachedNode: %v", err)
	}
	if !ok {
		t.Fatal("expected cached node to be found")
	}
	m, ok := got.(map[string]interface{})
	if !ok || m["name"] != "Alice" {
		t.Fatalf("got %#v", got)
	}

	if err := s.DeleteCachedNode("/users/alice"); err != nil {
		t.Fatalf("DeleteCachedNode: %v", err)
	}
	_, ok, err = s.GetCachedNode("/users/alice")
	if err != nil {
		t.Fatalf("GetCachedNode after delete: %v", err)
	}
	if ok {
		t.Fatal("expected node to be gone after delete")
	}
}

func TestWriteLogOrderingAndPurge(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []int64{3, 1, 2} {
		if err := s.PutWrite(WriteRecord{WriteID: id, Path: "/x"}); err != nil {
			t.Fatalf("PutWrite(%d): %v", id, err)
		}
	}
	writes, err := s.GetWrites()
	if err != nil {
		t.Fatalf("GetWrites: %v", err)
	}
	if len(writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(writes))
	}
	for i, want := range []int64{1, 2, 3} {
		if writes[i].WriteID != want {
			t.Fatalf("writes[%d].WriteID = %d, want %d", i, writes[i].WriteID, want)
		}
	}

	if err := s.DeleteWrite(2); err != nil {
		t.Fatalf("DeleteWrite: %v", err)
	}
	writes, _ = s.GetWrites()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes after purge, got %d", len(writes))
	}
}

func TestTrackedQueryEvictionUnderByteBudget(t *testing.T) {
	s := newTestStore(t, WithByteBudget(1024*1024)) // clamps to min 1 MiB

	for i := 0; i < 5; i++ {
		q := TrackedQuery{
			QueryKey: string(rune('a' + i)),
			Path:     "/q/" + string(rune('a'+i)),
			ByteSize: 500 * 1024, // 500 KiB each; 5 of them exceed the 1 MiB budget
		}
		if err := s.SetTrackedQuery(q); err != nil {
			t.Fatalf("SetTrackedQuery: %v", err)
		}
	}

	evicted, err := s.EvictLRU()
	if err != nil {
		t.Fatalf("EvictLRU: %v", err)
	}
	if len(evicted) == 0 {
		t.Fatal("expected at least one tracked query to be evicted over budget")
	}

	remaining, err := s.GetTrackedQueries()
	if err != nil {
		t.Fatalf("GetTrackedQueries: %v", err)
	}
	var total int
	for _, q := range remaining {
		total += q.ByteSize
	}
	if total > 1024*1024 {
		t.Fatalf("remaining usage %d exceeds budget", total)
	}
}

func TestByteBudgetClampedToRange(t *testing.T) {
	low := newTestStore(t, WithByteBudget(1))
	if low.byteBudget != minByteBudget {
		t.Fatalf("byteBudget = %d, want clamped to %d", low.byteBudget, minByteBudget)
	}
	high := newTestStore(t, WithByteBudget(1<<30))
	if high.byteBudget != maxByteBudget {
		t.Fatalf("byteBudget = %d, want clamped to %d", high.byteBudget, maxByteBudget)
	}
}

func TestTrackedQueryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(dir)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	if err := s.SetTrackedQuery(TrackedQuery{QueryKey: "q1", Path: "/p", ByteSize: 100}); err != nil {
		t.Fatalf("SetTrackedQuery: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewBoltStore(dir)
	if err != nil {
		t.Fatalf("reopen NewBoltStore: %v", err)
	}
	defer reopened.Close()

	queries, err := reopened.GetTrackedQueries()
	if err != nil {
		t.Fatalf("GetTrackedQueries: %v", err)
	}
	if len(queries) != 1 || queries[0].QueryKey != "q1" {
		t.Fatalf("got %#v, want one tracked query q1", queries)
	}
	if reopened.usage != 100 {
		t.Fatalf("usage after reopen = %d, want 100", reopened.usage)
	}
}
