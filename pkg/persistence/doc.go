// Package persistence implements the engine's optional on-disk cache.
//
// Three bbolt buckets back the three logical tables described in §4.5 of the
// sync engine spec: server cache (path -> node snapshot), write log
// (write-id -> pending write record), and tracked queries (query key ->
// metadata, LRU-managed under a byte budget). A single store owns a single
// lock; every mutation happens inside one bbolt transaction.
package persistence
