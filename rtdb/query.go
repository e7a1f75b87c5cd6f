package rtdb

import (
	"context"

	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
	"github.com/firebase/rtdb-go/pkg/synctree"
)

// Query is a Ref narrowed by an ordering, a range, and/or a limit. Each
// With* method returns a new Query; the zero-value Query built from a Ref
// is equivalent to that Ref's default (unordered, unbounded) query.
type Query struct {
	client *Client
	path   model.Path
	params model.Params
}

// Query starts building a query over r, initially equivalent to r itself.
func (r Ref) Query() Query {
	return Query{client: r.client, path: r.path}
}

// OrderByPriority orders children by their priority, the default index.
func (q Query) OrderByPriority() Query {
	q.params.Index = model.IndexByPriority
	return q
}

// OrderByKey orders children by key: integer keys first, numerically, then
// the rest lexicographically.
func (q Query) OrderByKey() Query {
	q.params.Index = model.IndexByKey
	return q
}

// OrderByValue orders children by their own value.
func (q Query) OrderByValue() Query {
	q.params.Index = model.IndexByValue
	return q
}

// OrderByChild orders children by the value at the given descendant path
// under each child (e.g. "score" or "stats/wins").
func (q Query) OrderByChild(path string) Query {
	q.params.Index = model.IndexByChildPath
	q.params.ChildPath = model.MustPath(path)
	return q
}

// StartAt restricts the query to entries at or after value (and, if key is
// given, breaks ties at value by key).
func (q Query) StartAt(value interface{}, key ...string) Query {
	q.params.Start = bound(value, key)
	return q
}

// EndAt restricts the query to entries at or before value.
func (q Query) EndAt(value interface{}, key ...string) Query {
	q.params.End = bound(value, key)
	return q
}

// EqualTo restricts the query to entries exactly matching value, expressed
// as a one-point [value, value] range per the wire protocol's convention.
func (q Query) EqualTo(value interface{}, key ...string) Query {
	b := bound(value, key)
	q.params.Start = b
	q.params.End = b
	return q
}

func bound(value interface{}, key []string) model.Bound {
	b := model.Bound{Set: true, Value: decodeValue(value)}
	if len(key) > 0 {
		b.Key = model.Key(key[0])
	}
	return b
}

// LimitToFirst keeps only the first n entries of the ordered result.
func (q Query) LimitToFirst(n int) Query {
	q.params.Limit = n
	q.params.Anchor = model.AnchorFirst
	return q
}

// LimitToLast keeps only the last n entries of the ordered result.
func (q Query) LimitToLast(n int) Query {
	q.params.Limit = n
	q.params.Anchor = model.AnchorLast
	return q
}

func (q Query) spec() model.QuerySpec {
	return model.QuerySpec{Path: q.path, Params: q.params}
}

// Get performs a one-shot read of q's current window, folding in any
// pending local writes.
func (q Query) Get(ctx context.Context) (model.Node, error) {
	type outcome struct {
		node model.Node
		err  error
	}
	result := make(chan outcome, 1)
	q.client.rl.Post(func() {
		q.client.tree.Get(q.spec(), func(n model.Node, err error) {
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

// OnValue registers cb to receive q's materialized window every time it
// changes.
func (q Query) OnValue(cb func(model.Node)) Listener {
	return listen(q.client, q.spec(), &synctree.Listener{OnValue: cb})
}

// OnChildAdded registers cb for each existing and newly added entry within
// q's window, in the query's order.
func (q Query) OnChildAdded(cb func(synctree.ChildEvent)) Listener {
	return q.onChildType(runloop.EventChildAdded, cb)
}

// OnChildChanged registers cb for each entry within q's window whose value
// changes in place.
func (q Query) OnChildChanged(cb func(synctree.ChildEvent)) Listener {
	return q.onChildType(runloop.EventChildChanged, cb)
}

// OnChildRemoved registers cb for each entry that leaves q's window,
// whether deleted outright or pushed out by a limit re-window.
func (q Query) OnChildRemoved(cb func(synctree.ChildEvent)) Listener {
	return q.onChildType(runloop.EventChildRemoved, cb)
}

// OnChildMoved registers cb for each entry whose position within q's
// window changes without its value changing.
func (q Query) OnChildMoved(cb func(synctree.ChildEvent)) Listener {
	return q.onChildType(runloop.EventChildMoved, cb)
}

func (q Query) onChildType(evt runloop.EventType, cb func(synctree.ChildEvent)) Listener {
	return listen(q.client, q.spec(), &synctree.Listener{OnChild: childFilter(evt, cb)})
}
