package conn

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/rtdb-go/pkg/metrics"
	"github.com/firebase/rtdb-go/pkg/model"
)

// listenKey identifies a (path, query-params) tuple on the wire: the
// granularity listen consolidation operates at (spec §4.2 lives in
// pkg/synctree; this is just the wire identity Connection tracks so it
// can replay listens after a reconnect).
func listenKey(spec model.QuerySpec) string {
	params, _ := json.Marshal(wireQueryParams(spec))
	return spec.Path.String() + "|" + string(params)
}

// Listen registers a server listen for spec, carrying hash as the known
// local state's hash so the server can reply with a no-op if nothing
// changed. Returns the tag assigned to this listen, used to correlate
// server pushes back to a non-default query.
func (c *Connection) Listen(spec model.QuerySpec, hash string) uint64 {
	key := listenKey(spec)
	if existing, ok := c.listens[key]; ok {
		return existing.tag
	}
	c.listenSeq++
	c.nextTag++
	reg := listenRegistration{seq: c.listenSeq, spec: spec, tag: c.nextTag, hash: hash}
	c.listens[key] = reg
	metrics.ActiveListens.Set(float64(len(c.listens)))
	if c.State().IsOnline() {
		c.sendListen(reg)
	}
	c.resetIdleTimer()
	c.ensureConnected()
	return reg.tag
}

// Unlisten removes a previously registered listen. A spec not currently
// registered is a no-op, matching the idempotent-unlisten invariant.
func (c *Connection) Unlisten(spec model.QuerySpec) {
	key := listenKey(spec)
	if _, ok := c.listens[key]; !ok {
		return
	}
	delete(c.listens, key)
	metrics.ActiveListens.Set(float64(len(c.listens)))
	if c.State().IsOnline() {
		body := listenBody{P: spec.Path.String(), Q: wireQueryParams(spec)}
		c.sendRequest(ActionUnlisten, body, nil)
	}
}

func (c *Connection) sendListen(reg listenRegistration) {
	body := listenBody{
		P: reg.spec.Path.String(),
		Q: wireQueryParams(reg.spec),
		T: reg.tag,
		H: reg.hash,
	}
	c.sendRequest(ActionListen, body, nil)
}

// WriteCallback reports the terminal outcome of a put/merge/transaction
// write: nil on ack, a typed *model.Error otherwise (permission_denied,
// invalid_data, datastale, ...).
type WriteCallback func(err error)

// Put stages and sends a full-value write at path, guarded by an optional
// precondition hash (empty for an unconditional write, as transactions
// use a non-empty one).
func (c *Connection) Put(writeID int64, path model.Path, data model.Node, hash string, cb WriteCallback) {
	c.trackWrite(outstandingWrite{writeID: writeID, isMerge: false, path: path, data: data.Wire(), hash: hash, cb: cb})
}

// Merge stages and sends a child-map write (update()).
func (c *Connection) Merge(writeID int64, path model.Path, children map[model.Key]model.Node, hash string, cb WriteCallback) {
	wire := make(map[string]interface{}, len(children))
	for k, v := range children {
		wire[string(k)] = v.Wire()
	}
	c.trackWrite(outstandingWrite{writeID: writeID, isMerge: true, path: path, data: wire, hash: hash, cb: cb})
}

// trackWrite appends w to the replay log and, if currently online, sends
// it immediately; otherwise it is sent by replayAfterConnect once a
// socket reaches CONNECTED.
func (c *Connection) trackWrite(w outstandingWrite) {
	c.writes = append(c.writes, w)
	metrics.PendingWrites.Set(float64(len(c.writes)))
	c.resetIdleTimer()
	if c.State().IsOnline() {
		c.sendWrite(w)
	}
	c.ensureConnected()
}

// untrackWrite removes writeID from the replay log once its terminal
// outcome (ack or revert) is known.
func (c *Connection) untrackWrite(writeID int64) {
	for i, w := range c.writes {
		if w.writeID == writeID {
			c.writes = append(c.writes[:i], c.writes[i+1:]...)
			break
		}
	}
	metrics.PendingWrites.Set(float64(len(c.writes)))
}

// PurgeOutstandingWrites drops every tracked write without sending
// anything further to the server; the caller (write queue) is
// responsible for invoking each write's completion callback with the
// cancel outcome before or after calling this.
func (c *Connection) PurgeOutstandingWrites() {
	c.writes = nil
	metrics.PendingWrites.Set(0)
}

// sendWrite puts w on the wire, used both for a fresh write and for
// replaying an outstanding one after reconnect.
func (c *Connection) sendWrite(w outstandingWrite) {
	action := ActionPut
	if w.isMerge {
		action = ActionMerge
	}
	body := putBody{P: w.path.String(), D: w.data, H: w.hash}
	writeID := w.writeID
	cb := w.cb
	c.sendRequest(action, body, func(resp response, err error) {
		c.untrackWrite(writeID)
		if err != nil {
			metrics.WriteOutcomesTotal.WithLabelValues("revert").Inc()
			if cb != nil {
				cb(err)
			}
			return
		}
		switch resp.B.S {
		case StatusOK:
			metrics.WriteOutcomesTotal.WithLabelValues("ok").Inc()
			if cb != nil {
				cb(nil)
			}
		case StatusDataStale:
			metrics.WriteOutcomesTotal.WithLabelValues("revert").Inc()
			if cb != nil {
				cb(model.NewError(model.ErrDataStale, "write precondition hash mismatch"))
			}
		case StatusPermDenied:
			metrics.WriteOutcomesTotal.WithLabelValues("revert").Inc()
			if cb != nil {
				cb(model.NewError(model.ErrPermissionDenied, "write rejected by security rules"))
			}
		default:
			metrics.WriteOutcomesTotal.WithLabelValues("revert").Inc()
			if cb != nil {
				cb(model.NewError(model.ErrInvalidData, fmt.Sprintf("write rejected: %s", resp.B.S)))
			}
		}
	})
}

// OnDisconnectPut stages a server-side write to apply if this socket
// closes ungracefully.
func (c *Connection) OnDisconnectPut(path model.Path, data model.Node, cb WriteCallback) {
	c.onDisconnectRequest(ActionOnDisconnectPut, path, data.Wire(), cb)
}

// OnDisconnectMerge stages a server-side child merge for disconnect.
func (c *Connection) OnDisconnectMerge(path model.Path, children map[model.Key]model.Node, cb WriteCallback) {
	wire := make(map[string]interface{}, len(children))
	for k, v := range children {
		wire[string(k)] = v.Wire()
	}
	c.onDisconnectRequest(ActionOnDisconnectMerge, path, wire, cb)
}

// OnDisconnectCancel removes any onDisconnect write staged at path.
func (c *Connection) OnDisconnectCancel(path model.Path, cb WriteCallback) {
	c.onDisconnectRequest(ActionOnDisconnectCancel, path, nil, cb)
}

func (c *Connection) onDisconnectRequest(action string, path model.Path, data interface{}, cb WriteCallback) {
	body := putBody{P: path.String(), D: data}
	if !c.State().IsOnline() {
		if cb != nil {
			cb(model.NewError(model.ErrDisconnected, "onDisconnect request requires an online connection"))
		}
		return
	}
	c.sendRequest(action, body, func(resp response, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(err)
			return
		}
		if resp.B.S != StatusOK {
			cb(model.NewError(model.ErrPermissionDenied, "onDisconnect rejected by security rules"))
			return
		}
		cb(nil)
	})
}

// RefreshAuthToken sends a new bearer token on the current socket; a
// no-op if offline (the next connect's handshake will pick up the
// current token via the TokenProvider).
func (c *Connection) RefreshAuthToken(token string) {
	if !c.State().IsOnline() {
		return
	}
	c.sendRequest(ActionAuth, token, nil)
}

// Unauth clears server-side auth state for this socket.
func (c *Connection) Unauth() {
	if !c.State().IsOnline() {
		return
	}
	c.sendRequest(ActionUnauth, nil, nil)
}

// Stats sends client-side usage counters to the server for diagnostics.
func (c *Connection) Stats(counters map[string]interface{}) {
	if !c.State().IsOnline() {
		return
	}
	c.sendRequest(ActionStats, counters, nil)
}

// GetCallback delivers the one-shot get() result: data is the decoded
// server value, err is non-nil (typically ErrCancelled) if the engine
// went offline or the connection closed before a response arrived.
type GetCallback func(data interface{}, err error)

// Get performs a one-shot read of spec without registering a listener.
func (c *Connection) Get(spec model.QuerySpec, cb GetCallback) {
	if !c.State().IsOnline() {
		cb(nil, model.NewError(model.ErrCancelled, "get() requires an online connection"))
		return
	}
	body := listenBody{P: spec.Path.String(), Q: wireQueryParams(spec)}
	c.sendRequest(ActionGet, body, func(resp response, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		if resp.B.S != StatusOK {
			cb(nil, model.NewError(model.ErrPermissionDenied, "get() rejected by security rules"))
			return
		}
		cb(resp.B.D, nil)
	})
}
