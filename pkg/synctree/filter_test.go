package synctree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/firebase/rtdb-go/pkg/model"
)

func childrenFixture() model.Node {
	return model.ChildrenNode(map[model.Key]model.Node{
		"alice": model.NumberNode(3).WithPriority(model.NumberPriority(2)),
		"bob":   model.NumberNode(1).WithPriority(model.NumberPriority(1)),
		"carol": model.NumberNode(2).WithPriority(model.NumberPriority(3)),
	})
}

func TestProjectOrdersByPriority(t *testing.T) {
	full := childrenFixture()
	entries := project(full, model.Params{Index: model.IndexByPriority})
	assert.Equal(t, []model.Key{"bob", "alice", "carol"}, keysOf(entries))
}

func TestProjectOrdersByKey(t *testing.T) {
	full := childrenFixture()
	entries := project(full, model.Params{Index: model.IndexByKey})
	assert.Equal(t, []model.Key{"alice", "bob", "carol"}, keysOf(entries))
}

func TestProjectOrdersByValue(t *testing.T) {
	full := childrenFixture()
	entries := project(full, model.Params{Index: model.IndexByValue})
	assert.Equal(t, []model.Key{"bob", "carol", "alice"}, keysOf(entries))
}

func TestProjectLimitFirstAndLast(t *testing.T) {
	full := childrenFixture()
	first := project(full, model.Params{Index: model.IndexByKey, Limit: 2, Anchor: model.AnchorFirst})
	assert.Equal(t, []model.Key{"alice", "bob"}, keysOf(first))

	last := project(full, model.Params{Index: model.IndexByKey, Limit: 2, Anchor: model.AnchorLast})
	assert.Equal(t, []model.Key{"bob", "carol"}, keysOf(last))
}

func TestProjectStartEndBoundsByValue(t *testing.T) {
	full := childrenFixture()
	entries := project(full, model.Params{
		Index: model.IndexByValue,
		Start: model.Bound{Set: true, Value: model.NumberNode(2)},
		End:   model.Bound{Set: true, Value: model.NumberNode(3)},
	})
	assert.Equal(t, []model.Key{"carol", "alice"}, keysOf(entries))
}

func TestMaterializeDefaultQueryReturnsFullNode(t *testing.T) {
	full := childrenFixture()
	out := materialize(full, model.Params{})
	assert.True(t, out.Equal(full))
}

func TestMaterializeNonDefaultOverLeafIsNull(t *testing.T) {
	out := materialize(model.NumberNode(1), model.Params{Limit: 1, Anchor: model.AnchorFirst})
	assert.True(t, out.IsNull())
}

func keysOf(entries []entry) []model.Key {
	out := make([]model.Key, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}
