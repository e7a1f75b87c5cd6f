package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/firebase/rtdb-go/pkg/auth"
	"github.com/firebase/rtdb-go/pkg/conn"
	"github.com/firebase/rtdb-go/pkg/log"
	"github.com/firebase/rtdb-go/pkg/metrics"
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/persistence"
	"github.com/firebase/rtdb-go/pkg/runloop"
	"github.com/firebase/rtdb-go/pkg/synctree"
	"github.com/firebase/rtdb-go/pkg/writequeue"
)

// Client owns one run loop, one persistent connection, one write queue and
// transaction runner, and one sync tree. NewClient builds all of it but
// does not dial; call Connect to open the socket.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	rl     *runloop.RunLoop
	events *runloop.EventTarget
	conn   *conn.Connection
	queue  *writequeue.Queue
	runner *writequeue.Runner
	tree   *synctree.Tree
	store  persistence.Store
}

// delegateProxy breaks the construction cycle between *conn.Connection
// (which needs a conn.Delegate at construction) and *synctree.Tree (which
// needs the connection as its ListenSender): the connection is built
// against the proxy, and target is filled in once the tree exists.
type delegateProxy struct {
	target conn.Delegate
}

func (d *delegateProxy) OnConnected()                  { d.target.OnConnected() }
func (d *delegateProxy) OnDisconnected(reconnect bool)  { d.target.OnDisconnected(reconnect) }
func (d *delegateProxy) OnAuthRevoked(err error)        { d.target.OnAuthRevoked(err) }
func (d *delegateProxy) OnDataUpdate(p model.Path, data interface{}, tag uint64) {
	d.target.OnDataUpdate(p, data, tag)
}
func (d *delegateProxy) OnDataMerge(p model.Path, data interface{}, tag uint64) {
	d.target.OnDataMerge(p, data, tag)
}
func (d *delegateProxy) OnRangeMerge(p model.Path, startKey, endKey string, data interface{}, tag uint64) {
	d.target.OnRangeMerge(p, startKey, endKey, data, tag)
}

// NewClient assembles a Client for namespace cfg.Namespace. It does not
// connect; the connection dials lazily on the first Connect call, matching
// the reference-counted lazy-connect lifecycle of spec §3.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("rtdb: Namespace is required")
	}
	cfg = cfg.withDefaults()

	tp := auth.ResolveProvider(cfg.Credential)
	if tp == nil {
		return nil, fmt.Errorf("rtdb: Credential is required (set it, or set %s for the emulator)", auth.EmulatorHostEnv)
	}

	rl := runloop.NewRunLoop(cfg.TaskQueueSize)
	events := runloop.NewEventTarget(cfg.EventQueueSize)

	proxy := &delegateProxy{}
	connection := conn.NewConnection(conn.Config{
		Namespace:      cfg.Namespace,
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
		IdleTimeout:    cfg.IdleTimeout,
	}, rl, tp, proxy)

	queue := writequeue.NewQueue(connection)
	tree := synctree.NewTree(connection, queue, events)
	proxy.target = tree
	runner := writequeue.NewRunner(queue, tree)

	c := &Client{
		cfg:    cfg,
		logger: log.WithComponent("rtdb"),
		rl:     rl,
		events: events,
		conn:   connection,
		queue:  queue,
		runner: runner,
		tree:   tree,
		store:  cfg.Store,
	}

	if c.store != nil {
		tree.PersistHook = c.persistServerNode
		c.replayFromStore()
	}

	rl.Start()
	events.Start()
	return c, nil
}

// Connect opens the underlying connection. It is safe to call before any
// Ref operation. Ref operations do not dial on their own before the first
// Connect; after it, they reopen a socket that idle shutdown or a failure
// closed, through the connection's ensureConnected.
func (c *Client) Connect(ctx context.Context) {
	c.rl.Post(func() { c.conn.Connect(ctx) })
}

// GoOffline pauses the connection without auto-reconnect, per spec's
// INTERRUPTED state.
func (c *Client) GoOffline() {
	c.rl.Post(func() { c.conn.GoOffline() })
}

// GoOnline resumes a connection previously paused with GoOffline.
func (c *Client) GoOnline() {
	c.rl.Post(func() { c.conn.GoOnline() })
}

// Close tears the client down: the socket, the run loop, and the event
// target, in that order so no in-flight dispatch references a stopped
// run loop.
func (c *Client) Close() {
	c.runSync(func() { c.conn.Close() })
	c.rl.Stop()
	c.events.Stop()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error().Err(err).Msg("closing persistence store")
		}
	}
}

// Ref returns a reference to path, a slash-separated location in the
// database (e.g. "rooms/1/messages"). An empty path refers to the root.
func (c *Client) Ref(path string) (Ref, error) {
	p, err := model.NewPath(path)
	if err != nil {
		return Ref{}, fmt.Errorf("rtdb: invalid path %q: %w", path, err)
	}
	return Ref{client: c, path: p}, nil
}

// runSync posts fn to the run loop and blocks the caller until it has
// executed, for operations with no natural completion callback of their
// own (e.g. Close, or a listener registration whose only output is its
// side effect).
func (c *Client) runSync(fn func()) {
	done := make(chan struct{})
	c.rl.Post(func() {
		fn()
		close(done)
	})
	<-done
}

func (c *Client) persistServerNode(path model.Path, node model.Node) {
	key := path.String()
	if node.IsNull() {
		if err := c.store.DeleteCachedNode(key); err != nil {
			c.logger.Warn().Err(err).Str("path", key).Msg("evicting cached node")
		}
		if err := c.store.DeleteTrackedQuery(key); err != nil {
			c.logger.Warn().Err(err).Str("path", key).Msg("untracking cached node")
		}
		metrics.CacheBytesUsed.Set(float64(c.store.Usage()))
		return
	}

	wire := node.Wire()
	if err := c.store.PutCachedNode(key, wire); err != nil {
		c.logger.Warn().Err(err).Str("path", key).Msg("persisting cached node")
		return
	}
	c.trackCachedNode(key, wire)
}

// trackCachedNode registers path's on-disk size with the store's LRU
// tracker, per spec §4.5, then runs eviction so the byte budget never
// stays over for longer than one persist cycle. A syncPoint that keeps
// receiving server pushes keeps refreshing its recency here, so an
// actively listened path never ages into an eviction candidate; one that
// stops being touched (listener removed, data quiescent) falls behind and
// is the first dropped once some other path pushes usage over budget.
func (c *Client) trackCachedNode(key string, wire interface{}) {
	size := estimateWireBytes(wire)
	q := persistence.TrackedQuery{QueryKey: key, Path: key, ByteSize: size, LastActive: time.Now().UnixNano()}
	if err := c.store.SetTrackedQuery(q); err != nil {
		c.logger.Warn().Err(err).Str("path", key).Msg("tracking cached node")
		return
	}

	evicted, err := c.store.EvictLRU()
	if err != nil {
		c.logger.Warn().Err(err).Msg("evicting over-budget cache entries")
	}
	if len(evicted) > 0 {
		metrics.CacheEvictionsTotal.Add(float64(len(evicted)))
	}
	metrics.CacheBytesUsed.Set(float64(c.store.Usage()))
}

func estimateWireBytes(wire interface{}) int {
	data, err := json.Marshal(wire)
	if err != nil {
		return 0
	}
	return len(data)
}

// replayFromStore re-stages every pending write recorded before the last
// clean shutdown, in the order PutWrite originally saw them, and bumps the
// write-id counter so newly issued writes never collide with a restored
// one.
func (c *Client) replayFromStore() {
	writes, err := c.store.GetWrites()
	if err != nil {
		c.logger.Error().Err(err).Msg("loading persisted writes")
		return
	}
	for _, w := range writes {
		path, err := model.NewPath(w.Path)
		if err != nil {
			c.logger.Warn().Err(err).Str("path", w.Path).Msg("skipping persisted write with unparseable path")
			continue
		}
		c.queue.ObserveWriteID(w.WriteID)
		writeID := w.WriteID
		if w.IsMerge {
			children := make(map[model.Key]model.Node, len(w.Children))
			for k, v := range w.Children {
				children[model.Key(k)] = model.NodeFromWire(v)
			}
			c.queue.Update(writeID, path, children, c.replayCallback(writeID))
		} else {
			c.queue.Set(writeID, path, model.NodeFromWire(w.Node), c.replayCallback(writeID))
		}
	}
}

// trackPersistedWrite and trackPersistedMerge record a newly staged write
// so replayFromStore can restore it after a crash; clearPersistedWrite
// drops it once the write reaches a terminal outcome. All three are no-ops
// with no configured Store.
func (c *Client) trackPersistedWrite(writeID int64, path model.Path, node model.Node) {
	if c.store == nil {
		return
	}
	rec := persistence.WriteRecord{WriteID: writeID, Path: path.String(), Node: node.Wire()}
	if err := c.store.PutWrite(rec); err != nil {
		c.logger.Warn().Err(err).Int64("write_id", writeID).Msg("persisting write")
	}
}

func (c *Client) trackPersistedMerge(writeID int64, path model.Path, children map[model.Key]model.Node) {
	if c.store == nil {
		return
	}
	wire := make(map[string]interface{}, len(children))
	for k, v := range children {
		wire[string(k)] = v.Wire()
	}
	rec := persistence.WriteRecord{WriteID: writeID, Path: path.String(), IsMerge: true, Children: wire}
	if err := c.store.PutWrite(rec); err != nil {
		c.logger.Warn().Err(err).Int64("write_id", writeID).Msg("persisting merge")
	}
}

func (c *Client) clearPersistedWrite(writeID int64) {
	if c.store == nil {
		return
	}
	if err := c.store.DeleteWrite(writeID); err != nil {
		c.logger.Warn().Err(err).Int64("write_id", writeID).Msg("clearing persisted write")
	}
}

func (c *Client) replayCallback(writeID int64) writequeue.Callback {
	return func(o writequeue.Outcome, err error) {
		if c.store != nil {
			if delErr := c.store.DeleteWrite(writeID); delErr != nil {
				c.logger.Warn().Err(delErr).Int64("write_id", writeID).Msg("clearing persisted write")
			}
		}
	}
}
