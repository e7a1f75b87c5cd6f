package writequeue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firebase/rtdb-go/pkg/conn"
	"github.com/firebase/rtdb-go/pkg/model"
)

// fakeSender records every Put/Merge call and lets the test decide when
// (and how) each completes, so queue tests never need a real connection.
type fakeSender struct {
	puts   []fakeWrite
	merges []fakeWrite
}

type fakeWrite struct {
	writeID int64
	path    model.Path
	hash    string
	cb      conn.WriteCallback
}

func (s *fakeSender) Put(writeID int64, path model.Path, data model.Node, hash string, cb conn.WriteCallback) {
	s.puts = append(s.puts, fakeWrite{writeID: writeID, path: path, hash: hash, cb: cb})
}

func (s *fakeSender) Merge(writeID int64, path model.Path, children map[model.Key]model.Node, hash string, cb conn.WriteCallback) {
	s.merges = append(s.merges, fakeWrite{writeID: writeID, path: path, hash: hash, cb: cb})
}

func TestSetStagesAndAcksInOrder(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	path := model.MustPath("/rooms/1/name")

	var outcome Outcome
	var gotErr error
	q.Set(q.NextWriteID(), path, model.StringNode("lobby"), func(o Outcome, err error) {
		outcome, gotErr = o, err
	})

	require.Len(t, s.puts, 1)
	assert.Equal(t, 1, q.Len())

	s.puts[0].cb(nil)
	assert.Equal(t, OutcomeOK, outcome)
	assert.NoError(t, gotErr)
	assert.Equal(t, 0, q.Len())
}

func TestPutRevertRestoresVisibleState(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	path := model.MustPath("/x")

	var outcome Outcome
	q.Set(q.NextWriteID(), path, model.NumberNode(2), func(o Outcome, err error) { outcome = o })

	server := model.NumberNode(1)
	assert.Equal(t, float64(2), q.VisibleNode(path, server).Number())

	s.puts[0].cb(model.NewError(model.ErrPermissionDenied, "nope"))
	assert.Equal(t, OutcomeRevert, outcome)
	assert.Equal(t, float64(1), q.VisibleNode(path, server).Number())
}

func TestUpdateAppliesDeepKeysUnderPath(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	base := model.MustPath("/rooms/1")

	children := map[model.Key]model.Node{
		"name":          model.StringNode("lobby"),
		"members/alice": model.BoolNode(true),
	}
	q.Update(q.NextWriteID(), base, children, func(Outcome, error) {})

	server := model.Null()
	visible := q.VisibleNode(base, server)
	assert.Equal(t, "lobby", visible.GetChild("name").Str())
	assert.True(t, visible.GetPath(model.MustPath("members/alice")).Bool())
}

func TestVisibleNodeIgnoresSiblingWrites(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	q.Set(q.NextWriteID(), model.MustPath("/a/b"), model.NumberNode(9), func(Outcome, error) {})

	sibling := model.MustPath("/a/c")
	assert.True(t, q.VisibleNode(sibling, model.Null()).IsNull())
}

func TestVisibleNodeAppliesAncestorOverwriteToDescendantView(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	value := model.Null().UpdatePath(model.MustPath("c"), model.NumberNode(9))
	q.Set(q.NextWriteID(), model.MustPath("/a/b"), value, func(Outcome, error) {})

	visible := q.VisibleNode(model.MustPath("/a/b/c"), model.NumberNode(1))
	assert.Equal(t, float64(9), visible.Number())
}

func TestVisibleNodeAppliesAncestorMergeOnlyToTouchedDescendants(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	q.Update(q.NextWriteID(), model.MustPath("/a"), map[model.Key]model.Node{
		"b/c": model.NumberNode(9),
	}, func(Outcome, error) {})

	touched := q.VisibleNode(model.MustPath("/a/b/c"), model.NumberNode(1))
	assert.Equal(t, float64(9), touched.Number())

	untouched := q.VisibleNode(model.MustPath("/a/b/d"), model.NumberNode(2))
	assert.Equal(t, float64(2), untouched.Number())
}

func TestPurgeOutstandingWritesCancelsEveryPendingWrite(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)

	var outcomes []Outcome
	q.Set(q.NextWriteID(), model.MustPath("/x"), model.NumberNode(1), func(o Outcome, err error) { outcomes = append(outcomes, o) })
	q.Set(q.NextWriteID(), model.MustPath("/y"), model.NumberNode(2), func(o Outcome, err error) { outcomes = append(outcomes, o) })

	q.PurgeOutstandingWrites()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, OutcomeCancel, o)
	}
	assert.Equal(t, 0, q.Len())
}

func TestWritesApplyInWriteIDOrder(t *testing.T) {
	s := &fakeSender{}
	q := NewQueue(s)
	path := model.MustPath("/counter")

	q.Set(q.NextWriteID(), path, model.NumberNode(1), func(Outcome, error) {})
	q.Set(q.NextWriteID(), path, model.NumberNode(2), func(Outcome, error) {})

	assert.Equal(t, float64(2), q.VisibleNode(path, model.Null()).Number())
}
