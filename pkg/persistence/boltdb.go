package persistence

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCache          = []byte("cache")
	bucketWriteLog       = []byte("write_log")
	bucketTrackedQueries = []byte("tracked_queries")
)

const (
	defaultByteBudget = 10 * 1024 * 1024
	minByteBudget     = 1 * 1024 * 1024
	maxByteBudget     = 100 * 1024 * 1024
)

// BoltStore implements Store using a single bbolt file with one bucket per
// logical table, mirroring the teacher's bucket-per-concern layout.
type BoltStore struct {
	mu         sync.Mutex
	db         *bolt.DB
	byteBudget int
	usage      int
	recency    *lru.Cache[string, int] // query key -> recorded byte size, in LRU order
}

// Option configures a BoltStore at construction time.
type Option func(*BoltStore)

// WithByteBudget overrides the default 10 MiB eviction budget, clamped to
// [1 MiB, 100 MiB] per spec §4.5.
func WithByteBudget(bytes int) Option {
	return func(s *BoltStore) {
		switch {
		case bytes < minByteBudget:
			s.byteBudget = minByteBudget
		case bytes > maxByteBudget:
			s.byteBudget = maxByteBudget
		default:
			s.byteBudget = bytes
		}
	}
}

// NewBoltStore opens (or creates) the persistence file under dataDir and
// loads existing tracked-query usage into the LRU tracker.
func NewBoltStore(dataDir string, opts ...Option) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "rtdb-cache.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCache, bucketWriteLog, bucketTrackedQueries} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db, byteBudget: defaultByteBudget}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.New[string, int](1 << 20) // capacity bound is the byte budget, not entry count
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build tracked-query LRU: %w", err)
	}
	s.recency = cache

	if err := s.primeRecency(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// primeRecency loads existing tracked-query sizes into the LRU tracker so
// usage accounting survives a restart; it does not attempt to reconstruct
// true access order, since bbolt does not record it.
func (s *BoltStore) primeRecency() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrackedQueries)
		return b.ForEach(func(_, v []byte) error {
			var q TrackedQuery
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			s.recency.Add(q.QueryKey, q.ByteSize)
			s.usage += q.ByteSize
			return nil
		})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- server cache ---

func (s *BoltStore) PutCachedNode(path string, node interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("failed to encode cached node at %s: %w", path, err)
		}
		return tx.Bucket(bucketCache).Put([]byte(path), data)
	})
}

func (s *BoltStore) GetCachedNode(path string) (interface{}, bool, error) {
	var out interface{}
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCache).Get([]byte(path))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &out)
	})
	return out, found, err
}

func (s *BoltStore) DeleteCachedNode(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(path))
	})
}

// --- write log ---

func (s *BoltStore) PutWrite(rec WriteRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode write %d: %w", rec.WriteID, err)
		}
		return tx.Bucket(bucketWriteLog).Put(writeKey(rec.WriteID), data)
	})
}

func (s *BoltStore) GetWrites() ([]WriteRecord, error) {
	var out []WriteRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketWriteLog).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec WriteRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) DeleteWrite(writeID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWriteLog).Delete(writeKey(writeID))
	})
}

func writeKey(writeID int64) []byte {
	return []byte(fmt.Sprintf("%020d", writeID))
}

// --- tracked queries ---

func (s *BoltStore) SetTrackedQuery(q TrackedQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.recency.Get(q.QueryKey); ok {
		s.usage -= prev
	}
	s.usage += q.ByteSize
	s.recency.Add(q.QueryKey, q.ByteSize)

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to encode tracked query %s: %w", q.QueryKey, err)
		}
		return tx.Bucket(bucketTrackedQueries).Put([]byte(q.QueryKey), data)
	})
}

func (s *BoltStore) GetTrackedQueries() ([]TrackedQuery, error) {
	var out []TrackedQuery
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrackedQueries).ForEach(func(_, v []byte) error {
			var q TrackedQuery
			if err := json.Unmarshal(v, &q); err != nil {
				return err
			}
			out = append(out, q)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteTrackedQuery(queryKey string) error {
	s.mu.Lock()
	if prev, ok := s.recency.Get(queryKey); ok {
		s.usage -= prev
	}
	s.recency.Remove(queryKey)
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrackedQueries).Delete([]byte(queryKey))
	})
}

// Usage reports the current tracked-query byte usage.
func (s *BoltStore) Usage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// EvictLRU drops the least-recently-active tracked queries, and their
// cached server nodes, until usage falls back under the byte budget. It has
// no notion of an "active" query: eviction order is purely the LastActive
// recency recorded by SetTrackedQuery, so a path that is still listened to
// but has not been refreshed recently can be evicted.
func (s *BoltStore) EvictLRU() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for s.usage > s.byteBudget {
		key, size, ok := s.recency.RemoveOldest()
		if !ok {
			break
		}
		s.usage -= size
		evicted = append(evicted, key)

		err := s.db.Update(func(tx *bolt.Tx) error {
			var q TrackedQuery
			data := tx.Bucket(bucketTrackedQueries).Get([]byte(key))
			if data != nil {
				if err := json.Unmarshal(data, &q); err == nil {
					if err := tx.Bucket(bucketCache).Delete([]byte(q.Path)); err != nil {
						return err
					}
				}
			}
			return tx.Bucket(bucketTrackedQueries).Delete([]byte(key))
		})
		if err != nil {
			return evicted, fmt.Errorf("failed to evict tracked query %s: %w", key, err)
		}
	}
	return evicted, nil
}
