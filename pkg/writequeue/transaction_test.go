package writequeue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firebase/rtdb-go/pkg/model"
)

// fakeDataSource is a DataSource backed by a single in-memory node that a
// test can mutate between attempts to simulate a server-side update
// landing mid-transaction.
type fakeDataSource struct {
	node model.Node
}

func (d *fakeDataSource) ServerNode(path model.Path) model.Node {
	return d.node.GetPath(path)
}

func TestTransactionCommitsOnFirstTry(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	src := &fakeDataSource{node: model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(10))}
	r := NewRunner(q, src)

	var res Result
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		return model.NumberNode(cur.Number() + 1), true
	}, true, func(got Result) { res = got })

	require.Len(t, s.puts, 1)
	s.puts[0].cb(nil)

	assert.Equal(t, Committed, res.Status)
	assert.Equal(t, float64(11), res.Value.Number())
}

func TestTransactionAbortLeavesStateUnchanged(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	src := &fakeDataSource{node: model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(10))}
	r := NewRunner(q, src)

	var res Result
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		return model.Node{}, false
	}, true, func(got Result) { res = got })

	assert.Equal(t, Aborted, res.Status)
	assert.Empty(t, s.puts)
	assert.Equal(t, 0, q.Len())
}

func TestTransactionRerunsOnDataStaleAndCommits(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	src := &fakeDataSource{node: model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(10))}
	r := NewRunner(q, src)

	var res Result
	var runs int
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		runs++
		return model.NumberNode(cur.Number() + 1), true
	}, true, func(got Result) { res = got })

	require.Len(t, s.puts, 1)
	// server advanced to 20 between the read and the put landing.
	src.node = model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(20))
	s.puts[0].cb(model.NewError(model.ErrDataStale, "stale"))

	require.Len(t, s.puts, 2)
	s.puts[1].cb(nil)

	assert.Equal(t, 2, runs)
	assert.Equal(t, Committed, res.Status)
	assert.Equal(t, float64(21), res.Value.Number())
}

func TestTransactionGivesUpAfterMaxRetries(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	src := &fakeDataSource{node: model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(0))}
	r := NewRunner(q, src)

	var res Result
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		return model.NumberNode(cur.Number() + 1), true
	}, true, func(got Result) { res = got })

	for len(s.puts) <= maxTransactionRetries {
		i := len(s.puts) - 1
		s.puts[i].cb(model.NewError(model.ErrDataStale, "stale"))
	}
	i := len(s.puts) - 1
	s.puts[i].cb(model.NewError(model.ErrDataStale, "stale"))

	assert.Equal(t, NotCommitted, res.Status)
	assert.Equal(t, model.ErrMaxRetries, model.KindOf(res.Err))
}

func TestSamePathTransactionsSerializeInFirstRunOrder(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	src := &fakeDataSource{node: model.Null().UpdatePath(model.MustPath("/n"), model.NumberNode(0))}
	r := NewRunner(q, src)

	var order []int
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		order = append(order, 1)
		return model.NumberNode(1), true
	}, true, func(Result) {})
	r.RunTransaction(model.MustPath("/n"), func(cur model.Node) (model.Node, bool) {
		order = append(order, 2)
		return model.NumberNode(2), true
	}, true, func(Result) {})

	// the second transaction's updater must not have run yet: only one
	// in-flight put is outstanding for this path.
	require.Len(t, s.puts, 1)
	assert.Equal(t, []int{1}, order)

	s.puts[0].cb(nil)
	require.Len(t, s.puts, 2)
	assert.Equal(t, []int{1, 2}, order)

	s.puts[1].cb(nil)
}
