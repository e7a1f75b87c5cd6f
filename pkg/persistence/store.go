package persistence

// WriteRecord is the persisted form of one outstanding write-queue entry.
type WriteRecord struct {
	WriteID  int64                  `json:"write_id"`
	Path     string                 `json:"path"`
	IsMerge  bool                   `json:"is_merge"`
	Node     interface{}            `json:"node,omitempty"`
	Children map[string]interface{} `json:"children,omitempty"`
}

// TrackedQuery is the persisted metadata for a query whose server cache is
// kept on disk and LRU-managed even when no listener is currently attached.
type TrackedQuery struct {
	QueryKey   string `json:"query_key"`
	Path       string `json:"path"`
	Params     string `json:"params"` // canonical encoding, for rehydrating model.Params
	ByteSize   int    `json:"byte_size"`
	LastActive int64  `json:"last_active"` // unix nanos, caller-supplied (no wall-clock inside the store)
}

// Store defines the on-disk persistence contract described in spec §4.5:
// a server cache, a write log, and tracked-query metadata, each mutated
// inside a single storage transaction.
type Store interface {
	// Server cache: path -> node snapshot (wire-encoded).
	PutCachedNode(path string, node interface{}) error
	GetCachedNode(path string) (interface{}, bool, error)
	DeleteCachedNode(path string) error

	// Write log: write-id -> pending write record. Write-id monotonicity
	// must survive restart; callers persist writes in the order they were
	// queued and purge them only once fully acked or reverted.
	PutWrite(rec WriteRecord) error
	GetWrites() ([]WriteRecord, error)
	DeleteWrite(writeID int64) error

	// Tracked queries: query-key -> metadata. SetTrackedQuery upserts and
	// reports byte usage to the LRU so eviction can run; EvictLRU drops the
	// least-recently-active tracked queries (and their cached nodes) until
	// total usage is back under the store's byte budget.
	SetTrackedQuery(q TrackedQuery) error
	GetTrackedQueries() ([]TrackedQuery, error)
	DeleteTrackedQuery(queryKey string) error
	EvictLRU() ([]string, error) // returns evicted query keys
	Usage() int                 // current tracked-query byte usage

	Close() error
}
