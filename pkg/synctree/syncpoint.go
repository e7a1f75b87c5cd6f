package synctree

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/rtdb-go/pkg/model"
)

// syncPoint is the tree's unit of server-side state: the cache at one
// path, plus every view (one per distinct query spec) anchored there.
type syncPoint struct {
	path        model.Path
	serverNode  model.Node
	serverKnown bool
	views       map[string]*view
}

func newSyncPoint(p model.Path) *syncPoint {
	return &syncPoint{path: p, views: make(map[string]*view)}
}

// defaultView returns the point's default-query view, if one is
// registered; default listens subsume every other query at the same path
// per spec §4.2.
func (sp *syncPoint) defaultView() *view {
	return sp.views[paramsKey(model.Params{})]
}

// applyAt folds data (wire-decoded) into sp's cache at path rel beneath
// sp.path, marking the point's server state known.
func (sp *syncPoint) applyAt(rel model.Path, data interface{}) {
	sp.serverNode = sp.serverNode.UpdatePath(rel, model.NodeFromWire(data))
	sp.serverKnown = true
}

// mergeAt folds a child map into sp's cache at path rel, one key at a
// time (an "m" push), rather than overwriting the whole subtree.
func (sp *syncPoint) mergeAt(rel model.Path, data interface{}) {
	children, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	for k, v := range children {
		childPath := rel.Child(model.Key(k))
		sp.serverNode = sp.serverNode.UpdatePath(childPath, model.NodeFromWire(v))
	}
	sp.serverKnown = true
}

// rangeMergeAt replaces every child of the node at rel whose key falls in
// [startKey, endKey] (either bound empty meaning unbounded) with the
// supplied children, leaving keys outside the range untouched.
func (sp *syncPoint) rangeMergeAt(rel model.Path, startKey, endKey string, data interface{}) {
	base := sp.serverNode.GetPath(rel)
	kept := make(map[model.Key]model.Node)
	base.ForEach(func(k model.Key, v model.Node) bool {
		if inKeyRange(string(k), startKey, endKey) {
			return true
		}
		kept[k] = v
		return true
	})
	if children, ok := data.(map[string]interface{}); ok {
		for k, v := range children {
			kept[model.Key(k)] = model.NodeFromWire(v)
		}
	}
	sp.serverNode = sp.serverNode.UpdatePath(rel, model.ChildrenNode(kept))
	sp.serverKnown = true
}

func inKeyRange(key, start, end string) bool {
	if start != "" && key < start {
		return false
	}
	if end != "" && key > end {
		return false
	}
	return true
}

// paramsKey builds the flat-index identity for a query spec's params, per
// the "identify the view by (path, params-hash)" design note.
func paramsKey(p model.Params) string {
	enc := struct {
		Index     model.IndexKind
		ChildPath string
		StartSet  bool
		StartVal  interface{}
		StartKey  model.Key
		EndSet    bool
		EndVal    interface{}
		EndKey    model.Key
		Limit     int
		Anchor    model.LimitAnchor
	}{
		Index:     p.Index,
		ChildPath: p.ChildPath.String(),
		StartSet:  p.Start.Set,
		StartVal:  p.Start.Value.Wire(),
		StartKey:  p.Start.Key,
		EndSet:    p.End.Set,
		EndVal:    p.End.Value.Wire(),
		EndKey:    p.End.Key,
		Limit:     p.Limit,
		Anchor:    p.Anchor,
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return fmt.Sprintf("%+v", enc) // Wire() only emits JSON-safe scalars/maps, so this never triggers in practice
	}
	return string(b)
}
