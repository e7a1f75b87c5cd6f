package synctree

import (
	"github.com/firebase/rtdb-go/pkg/conn"
	"github.com/firebase/rtdb-go/pkg/log"
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

var (
	infoConnectedPath     = model.MustPath(".info/connected")
	infoAuthenticatedPath = model.MustPath(".info/authenticated")
)

// ListenSender is the subset of *conn.Connection the tree needs to
// register and remove server listens and issue one-shot reads.
type ListenSender interface {
	Listen(spec model.QuerySpec, hash string) uint64
	Unlisten(spec model.QuerySpec)
	Get(spec model.QuerySpec, cb conn.GetCallback)
}

// WriteShadow is the subset of *writequeue.Queue the tree needs to fold
// pending local writes over a server snapshot.
type WriteShadow interface {
	VisibleNode(p model.Path, serverNode model.Node) model.Node
}

// Tree is the sync engine's authoritative in-memory view. It implements
// conn.Delegate, driving itself from server pushes and connection state
// transitions; it is owned by the run loop like Connection and Queue.
type Tree struct {
	sender ListenSender
	shadow WriteShadow
	events *runloop.EventTarget

	points         map[string]*syncPoint
	tagIndex       map[uint64]*view
	nextListenerID uint64

	// PersistHook, if set, is called after the server-known node at a
	// non-.info path changes, so a caller-supplied persistence layer can
	// mirror the cache to disk without this package depending on
	// pkg/persistence directly.
	PersistHook func(path model.Path, node model.Node)
}

// NewTree builds a Tree that registers listens through sender, resolves
// write shadows through shadow, and posts listener dispatches to events.
func NewTree(sender ListenSender, shadow WriteShadow, events *runloop.EventTarget) *Tree {
	t := &Tree{
		sender:   sender,
		shadow:   shadow,
		events:   events,
		points:   make(map[string]*syncPoint),
		tagIndex: make(map[uint64]*view),
	}
	t.setInfo(infoConnectedPath, model.BoolNode(false))
	t.setInfo(infoAuthenticatedPath, model.BoolNode(false))
	return t
}

func (t *Tree) pointAt(p model.Path) *syncPoint {
	key := p.String()
	sp, ok := t.points[key]
	if !ok {
		sp = newSyncPoint(p)
		t.points[key] = sp
	}
	return sp
}

// ServerNode implements writequeue.DataSource: the raw (unshadowed)
// server value at path, read from the nearest known ancestor sync point.
// A path with no cached ancestor reads as null — a transaction against
// never-listened data should pair RunTransaction with an active listen or
// a prior Get so this always has something to compare against.
func (t *Tree) ServerNode(path model.Path) model.Node {
	best := model.RootPath()
	found := false
	for key, sp := range t.points {
		_ = key
		if sp.serverKnown && sp.path.Contains(path) && sp.path.Len() >= best.Len() {
			best, found = sp.path, true
		}
	}
	if !found {
		return model.Null()
	}
	sp := t.points[best.String()]
	return sp.serverNode.GetPath(path.RelativeTo(best))
}

// AddEventListener registers l on the view for spec, reusing an existing
// view when one already exists and, when spec is covered by a default
// listen already registered at the same path, satisfying it locally with
// no new server listen (per the listen-consolidation invariant, §4.2).
func (t *Tree) AddEventListener(spec model.QuerySpec, l *Listener) {
	sp := t.pointAt(spec.Path)
	key := paramsKey(spec.Params)
	v, existing := sp.views[key]
	if !existing {
		v = newView(spec)
		sp.views[key] = v
		if def := sp.defaultView(); def != nil && !spec.IsDefault() {
			v.tag = 0 // covered by the default listen; no server round trip
		} else {
			v.tag = t.sender.Listen(spec, "")
			if v.tag != 0 {
				t.tagIndex[v.tag] = v
			}
		}
	}
	v.addListener(l)

	var dispatches []runloop.Dispatch
	switch {
	case !existing && sp.serverKnown:
		// A brand new view over already-cached data (e.g. a second
		// listener at a known path, or any listener on .info/*) gets its
		// initial value immediately rather than waiting on a network push.
		full := t.shadow.VisibleNode(sp.path, sp.serverNode)
		dispatches = v.recompute(full)
	case existing && v.hasValue:
		// Replay the current value so a late-joining listener on an
		// already-materialized view doesn't wait for the next change.
		dispatches = replayDispatch(v, l)
	}
	t.events.PostBatch(dispatches)
}

func replayDispatch(v *view, l *Listener) []runloop.Dispatch {
	var out []runloop.Dispatch
	if l.OnValue != nil {
		val := v.lastValue
		out = append(out, func() { l.OnValue(val) })
	}
	if l.OnChild != nil {
		for i, e := range v.lastEntries {
			e := e
			pk := prevKeyAt(v.lastEntries, i)
			out = append(out, func() { l.OnChild(ChildEvent{Type: runloop.EventChildAdded, Key: e.key, Node: e.node, PrevKey: pk}) })
		}
	}
	return out
}

// RemoveListener unregisters listener id from spec's view. A spec with no
// matching view is a no-op, matching the idempotent-unlisten invariant.
// Removing the last listener on a default view promotes the
// most-recently-registered locally-satisfied covered view (if any) into
// the new server listen.
func (t *Tree) RemoveListener(spec model.QuerySpec, listenerID uint64) {
	sp, ok := t.points[spec.Path.String()]
	if !ok {
		return
	}
	key := paramsKey(spec.Params)
	v, ok := sp.views[key]
	if !ok {
		return
	}
	if !v.removeListener(listenerID) {
		return
	}

	delete(sp.views, key)
	if v.tag != 0 {
		delete(t.tagIndex, v.tag)
		t.sender.Unlisten(v.spec)
	}

	if spec.IsDefault() {
		t.promoteCoveredView(sp)
	}
	if len(sp.views) == 0 {
		delete(t.points, spec.Path.String())
	}
}

// promoteCoveredView picks the remaining locally-satisfied view at sp that
// holds the most recently registered listener and gives it its own server
// listen, now that the default listen covering it is gone.
func (t *Tree) promoteCoveredView(sp *syncPoint) {
	var v *view
	var newestID uint64
	for _, cand := range sp.views {
		if cand.tag != 0 || len(cand.listeners) == 0 {
			continue
		}
		if id := cand.listeners[len(cand.listeners)-1].ID; v == nil || id > newestID {
			v, newestID = cand, id
		}
	}
	if v == nil {
		return
	}
	v.tag = t.sender.Listen(v.spec, "")
	if v.tag != 0 {
		t.tagIndex[v.tag] = v
		log.WithPath(sp.path.String()).Debug().Uint64("query_tag", v.tag).
			Msg("promoted covered view to its own listen")
	}
}

// Get performs a one-shot read, folding the response through any pending
// local writes before returning it.
func (t *Tree) Get(spec model.QuerySpec, cb func(model.Node, error)) {
	t.sender.Get(spec, func(data interface{}, err error) {
		if err != nil {
			cb(model.Null(), err)
			return
		}
		full := t.shadow.VisibleNode(spec.Path, model.NodeFromWire(data))
		cb(materialize(full, spec.Params), nil)
	})
}

// RecomputeAffected recomputes and redelivers every view whose path
// intersects writePath, after a local write is staged, acked, reverted,
// or cancelled. Callers (the write queue's integration point) call this
// once per mutation.
func (t *Tree) RecomputeAffected(writePath model.Path) {
	var dispatches []runloop.Dispatch
	for _, sp := range t.points {
		if sp.path.IsInfo() {
			continue
		}
		if !writePath.Contains(sp.path) && !sp.path.Contains(writePath) {
			continue
		}
		full := t.shadow.VisibleNode(sp.path, sp.serverNode)
		for _, v := range sp.views {
			dispatches = append(dispatches, v.recompute(full)...)
		}
	}
	t.events.PostBatch(dispatches)
}

func (t *Tree) setInfo(path model.Path, value model.Node) {
	sp := t.pointAt(path)
	sp.serverNode = value
	sp.serverKnown = true
	var dispatches []runloop.Dispatch
	for _, v := range sp.views {
		dispatches = append(dispatches, v.recompute(sp.serverNode)...)
	}
	t.events.PostBatch(dispatches)
}

// OnConnected implements conn.Delegate.
func (t *Tree) OnConnected() {
	t.setInfo(infoConnectedPath, model.BoolNode(true))
	t.setInfo(infoAuthenticatedPath, model.BoolNode(true))
}

// OnDisconnected implements conn.Delegate.
func (t *Tree) OnDisconnected(willReconnect bool) {
	t.setInfo(infoConnectedPath, model.BoolNode(false))
	t.setInfo(infoAuthenticatedPath, model.BoolNode(false))
}

// OnAuthRevoked implements conn.Delegate: every live view is cancelled
// and removed, and its server listen is dropped from the connection so a
// later reconnect does not replay it.
func (t *Tree) OnAuthRevoked(err error) {
	var dispatches []runloop.Dispatch
	for key, sp := range t.points {
		if sp.path.IsInfo() {
			continue
		}
		for vk, v := range sp.views {
			dispatches = append(dispatches, v.cancel(err)...)
			if v.tag != 0 {
				t.sender.Unlisten(v.spec)
			}
			delete(sp.views, vk)
		}
		if len(sp.views) == 0 {
			delete(t.points, key)
		}
	}
	t.tagIndex = make(map[uint64]*view)
	t.events.PostBatch(dispatches)
}

func (t *Tree) viewForTag(tag uint64) (*view, *syncPoint) {
	v, ok := t.tagIndex[tag]
	if !ok {
		return nil, nil
	}
	return v, t.points[v.spec.Path.String()]
}

// OnDataUpdate implements conn.Delegate: a full-snapshot push ("put").
func (t *Tree) OnDataUpdate(path model.Path, data interface{}, tag uint64) {
	v, sp := t.viewForTag(tag)
	if v == nil || !sp.path.Contains(path) {
		log.WithQueryTag(tag).Debug().Str("path", path.String()).Msg("data update for unknown or stale listen tag")
		return
	}
	sp.applyAt(path.RelativeTo(sp.path), data)
	t.recomputePoint(sp)
}

// OnDataMerge implements conn.Delegate: a partial update push ("merge").
func (t *Tree) OnDataMerge(path model.Path, data interface{}, tag uint64) {
	v, sp := t.viewForTag(tag)
	if v == nil || !sp.path.Contains(path) {
		return
	}
	sp.mergeAt(path.RelativeTo(sp.path), data)
	t.recomputePoint(sp)
}

// OnRangeMerge implements conn.Delegate: a keyed-range replacement push,
// used by limit/window queries when the server re-windows a view.
func (t *Tree) OnRangeMerge(path model.Path, startKey, endKey string, data interface{}, tag uint64) {
	v, sp := t.viewForTag(tag)
	if v == nil || !sp.path.Contains(path) {
		return
	}
	sp.rangeMergeAt(path.RelativeTo(sp.path), startKey, endKey, data)
	t.recomputePoint(sp)
}

func (t *Tree) recomputePoint(sp *syncPoint) {
	if t.PersistHook != nil && !sp.path.IsInfo() {
		t.PersistHook(sp.path, sp.serverNode)
	}
	full := t.shadow.VisibleNode(sp.path, sp.serverNode)
	var dispatches []runloop.Dispatch
	for _, v := range sp.views {
		dispatches = append(dispatches, v.recompute(full)...)
	}
	t.events.PostBatch(dispatches)
}

// NextListenerID mints a listener identity for AddEventListener/
// RemoveListener pairing.
func (t *Tree) NextListenerID() uint64 {
	t.nextListenerID++
	return t.nextListenerID
}
