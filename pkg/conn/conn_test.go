package conn

import (
	"testing"

	"github.com/firebase/rtdb-go/pkg/auth"
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

type stubDelegate struct{}

func (stubDelegate) OnConnected()                                                 {}
func (stubDelegate) OnDisconnected(bool)                                          {}
func (stubDelegate) OnAuthRevoked(error)                                          {}
func (stubDelegate) OnDataUpdate(model.Path, interface{}, uint64)                 {}
func (stubDelegate) OnDataMerge(model.Path, interface{}, uint64)                  {}
func (stubDelegate) OnRangeMerge(model.Path, string, string, interface{}, uint64) {}

func newTestConnection() *Connection {
	rl := runloop.NewRunLoop(16)
	return NewConnection(Config{Namespace: "test-ns"}, rl, auth.StaticTokenProvider("tok"), stubDelegate{})
}

func TestListenAssignsTagAndIsIdempotent(t *testing.T) {
	c := newTestConnection()
	spec := model.DefaultQuery(model.MustPath("/rooms"))

	tag1 := c.Listen(spec, "")
	tag2 := c.Listen(spec, "")
	if tag1 != tag2 {
		t.Fatalf("re-registering the same spec changed the tag: %d vs %d", tag1, tag2)
	}
	if len(c.listens) != 1 {
		t.Fatalf("expected 1 consolidated listen, got %d", len(c.listens))
	}
}

func TestListenDistinctSpecsGetDistinctTags(t *testing.T) {
	c := newTestConnection()
	a := model.DefaultQuery(model.MustPath("/rooms"))
	b := model.QuerySpec{Path: model.MustPath("/rooms"), Params: model.Params{Limit: 1, Anchor: model.AnchorFirst}}

	tagA := c.Listen(a, "")
	tagB := c.Listen(b, "")
	if tagA == tagB {
		t.Fatal("distinct query specs must not share a tag")
	}
	if len(c.listens) != 2 {
		t.Fatalf("expected 2 listens, got %d", len(c.listens))
	}
}

func TestUnlistenUnknownSpecIsNoOp(t *testing.T) {
	c := newTestConnection()
	spec := model.DefaultQuery(model.MustPath("/never-registered"))
	c.Unlisten(spec) // must not panic
	if len(c.listens) != 0 {
		t.Fatalf("expected no listens, got %d", len(c.listens))
	}
}

func TestUnlistenRemovesRegisteredSpec(t *testing.T) {
	c := newTestConnection()
	spec := model.DefaultQuery(model.MustPath("/rooms"))
	c.Listen(spec, "")
	c.Unlisten(spec)
	if len(c.listens) != 0 {
		t.Fatalf("expected listen to be removed, got %d remaining", len(c.listens))
	}
}

func TestPutWhileOfflineStaysQueued(t *testing.T) {
	c := newTestConnection()
	path := model.MustPath("/x")
	c.Put(1, path, model.NumberNode(1), "", nil)
	if len(c.writes) != 1 {
		t.Fatalf("expected 1 outstanding write, got %d", len(c.writes))
	}
	if c.writes[0].writeID != 1 {
		t.Fatalf("writeID = %d, want 1", c.writes[0].writeID)
	}
}

func TestPurgeOutstandingWritesClearsQueue(t *testing.T) {
	c := newTestConnection()
	path := model.MustPath("/x")
	c.Put(1, path, model.NumberNode(1), "", nil)
	c.Put(2, path, model.NumberNode(2), "", nil)
	c.PurgeOutstandingWrites()
	if len(c.writes) != 0 {
		t.Fatalf("expected writes purged, got %d remaining", len(c.writes))
	}
}

func TestListenKeyDistinguishesParams(t *testing.T) {
	a := model.DefaultQuery(model.MustPath("/rooms"))
	b := model.QuerySpec{Path: model.MustPath("/rooms"), Params: model.Params{Limit: 1, Anchor: model.AnchorLast}}
	if listenKey(a) == listenKey(b) {
		t.Fatal("listenKey must distinguish a default query from a windowed one")
	}
	if listenKey(a) != listenKey(model.DefaultQuery(model.MustPath("/rooms"))) {
		t.Fatal("listenKey must be stable for equal specs")
	}
}
