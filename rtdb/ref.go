package rtdb

import (
	"context"
	"fmt"

	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
	"github.com/firebase/rtdb-go/pkg/synctree"
	"github.com/firebase/rtdb-go/pkg/writequeue"
)

// Ref is a location in the database. It is a thin value type: all state
// lives on the Client it was created from, and a Ref may be freely copied.
type Ref struct {
	client *Client
	path   model.Path
}

// Child returns the ref at the named child of r.
func (r Ref) Child(name string) Ref {
	return Ref{client: r.client, path: r.path.Child(model.Key(name))}
}

// Parent returns the ref one level up. Parent of the root is the root.
func (r Ref) Parent() Ref {
	return Ref{client: r.client, path: r.path.Parent()}
}

// Key is the last path segment, or "" at the root.
func (r Ref) Key() string {
	k, _ := r.path.Back()
	return string(k)
}

// Path is the ref's slash-separated location.
func (r Ref) Path() string { return r.path.String() }

func decodeValue(v interface{}) model.Node {
	return model.NodeFromWire(v)
}

// Set overwrites the value at r, waiting for the server's ack (or ctx
// cancellation) per spec §4.3's set() semantics.
func (r Ref) Set(ctx context.Context, value interface{}) error {
	return r.set(ctx, decodeValue(value))
}

func (r Ref) set(ctx context.Context, node model.Node) error {
	result := make(chan error, 1)
	r.client.rl.Post(func() {
		writeID := r.client.queue.NextWriteID()
		r.client.queue.Set(writeID, r.path, node, r.writeCompletionCallback(writeID, result))
		r.client.tree.RecomputeAffected(r.path)
		r.client.trackPersistedWrite(writeID, r.path, node)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update performs a shallow merge of children into r, per update()'s
// partial-write semantics.
func (r Ref) Update(ctx context.Context, children map[string]interface{}) error {
	nodes := make(map[model.Key]model.Node, len(children))
	for k, v := range children {
		nodes[model.Key(k)] = decodeValue(v)
	}
	result := make(chan error, 1)
	r.client.rl.Post(func() {
		writeID := r.client.queue.NextWriteID()
		r.client.queue.Update(writeID, r.path, nodes, r.writeCompletionCallback(writeID, result))
		r.client.tree.RecomputeAffected(r.path)
		r.client.trackPersistedMerge(writeID, r.path, nodes)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r Ref) writeCompletionCallback(writeID int64, result chan<- error) writequeue.Callback {
	return func(o writequeue.Outcome, err error) {
		r.client.tree.RecomputeAffected(r.path)
		r.client.clearPersistedWrite(writeID)
		if o == writequeue.OutcomeCancel {
			result <- fmt.Errorf("rtdb: write cancelled")
			return
		}
		result <- err
	}
}

// Get performs a one-shot read of r's current value, folding in any
// pending local writes, bypassing any active listener.
func (r Ref) Get(ctx context.Context) (model.Node, error) {
	type outcome struct {
		node model.Node
		err  error
	}
	result := make(chan outcome, 1)
	r.client.rl.Post(func() {
		r.client.tree.Get(model.DefaultQuery(r.path), func(n model.Node, err error) {
			result <- outcome{n, err}
		})
	})
	select {
	case o := <-result:
		return o.node, o.err
	case <-ctx.Done():
		return model.Null(), ctx.Err()
	}
}

// Listener is a handle returned by the On* methods; call Remove to stop
// receiving events.
type Listener struct {
	client *Client
	spec   model.QuerySpec
	id     uint64
}

// Remove unregisters the listener, per the idempotent-unlisten invariant
// of spec §4.2 (safe to call more than once).
func (l Listener) Remove() {
	l.client.runSync(func() {
		l.client.tree.RemoveListener(l.spec, l.id)
	})
}

// OnValue registers cb to receive the full materialized value at r (and
// its Query, if built from one) every time it changes, including once
// immediately with the current value if already known.
func (r Ref) OnValue(cb func(model.Node)) Listener {
	return listen(r.client, model.DefaultQuery(r.path), &synctree.Listener{OnValue: cb})
}

// OnChildAdded registers cb for each existing and newly added child.
func (r Ref) OnChildAdded(cb func(synctree.ChildEvent)) Listener {
	return r.onChildType(runloop.EventChildAdded, cb)
}

// OnChildChanged registers cb for each child whose value changes in place.
func (r Ref) OnChildChanged(cb func(synctree.ChildEvent)) Listener {
	return r.onChildType(runloop.EventChildChanged, cb)
}

// OnChildRemoved registers cb for each child removed from r.
func (r Ref) OnChildRemoved(cb func(synctree.ChildEvent)) Listener {
	return r.onChildType(runloop.EventChildRemoved, cb)
}

// OnChildMoved registers cb for each child whose ordering position changes
// without its value changing.
func (r Ref) OnChildMoved(cb func(synctree.ChildEvent)) Listener {
	return r.onChildType(runloop.EventChildMoved, cb)
}

// onChildType wraps cb so it only fires for evt, since a view's single
// ChildListener slot otherwise delivers every child_* event kind.
func (r Ref) onChildType(evt runloop.EventType, cb func(synctree.ChildEvent)) Listener {
	return listen(r.client, model.DefaultQuery(r.path), &synctree.Listener{OnChild: childFilter(evt, cb)})
}

func childFilter(evt runloop.EventType, cb func(synctree.ChildEvent)) synctree.ChildListener {
	return func(e synctree.ChildEvent) {
		if e.Type == evt {
			cb(e)
		}
	}
}

// listen registers l on spec's view and returns a handle to remove it
// later. Shared by Ref and Query so both surfaces go through the same
// run-loop-synchronous registration path.
func listen(client *Client, spec model.QuerySpec, l *synctree.Listener) Listener {
	var id uint64
	client.runSync(func() {
		id = client.tree.NextListenerID()
		l.ID = id
		client.tree.AddEventListener(spec, l)
	})
	return Listener{client: client, spec: spec, id: id}
}

// RunTransaction runs updater against r's current visible value, retrying
// on conflict, per spec §4.3. applyLocally controls whether the optimistic
// intermediate value is visible to other listeners while the transaction
// is outstanding.
func (r Ref) RunTransaction(ctx context.Context, updater func(current model.Node) (next model.Node, commit bool), applyLocally bool) (writequeue.Result, error) {
	result := make(chan writequeue.Result, 1)
	r.client.rl.Post(func() {
		r.client.runner.RunTransaction(r.path, writequeue.Updater(updater), applyLocally, func(res writequeue.Result) {
			r.client.tree.RecomputeAffected(r.path)
			result <- res
		})
	})
	select {
	case res := <-result:
		return res, nil
	case <-ctx.Done():
		return writequeue.Result{}, ctx.Err()
	}
}

// OnDisconnectSet queues a value to be written by the server if this
// client disconnects without explicitly cancelling it.
func (r Ref) OnDisconnectSet(ctx context.Context, value interface{}) error {
	result := make(chan error, 1)
	r.client.rl.Post(func() {
		r.client.conn.OnDisconnectPut(r.path, decodeValue(value), func(err error) { result <- err })
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnDisconnectUpdate queues a merge to run on disconnect.
func (r Ref) OnDisconnectUpdate(ctx context.Context, children map[string]interface{}) error {
	nodes := make(map[model.Key]model.Node, len(children))
	for k, v := range children {
		nodes[model.Key(k)] = decodeValue(v)
	}
	result := make(chan error, 1)
	r.client.rl.Post(func() {
		r.client.conn.OnDisconnectMerge(r.path, nodes, func(err error) { result <- err })
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnDisconnectCancel cancels any queued onDisconnect operation at r.
func (r Ref) OnDisconnectCancel(ctx context.Context) error {
	result := make(chan error, 1)
	r.client.rl.Post(func() {
		r.client.conn.OnDisconnectCancel(r.path, func(err error) { result <- err })
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
