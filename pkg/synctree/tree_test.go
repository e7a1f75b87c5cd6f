package synctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firebase/rtdb-go/pkg/conn"
	"github.com/firebase/rtdb-go/pkg/model"
	"github.com/firebase/rtdb-go/pkg/runloop"
)

// fakeConn stubs ListenSender with an incrementing tag, mirroring
// *conn.Connection's actual nextTag-starts-at-1 behavior.
type fakeConn struct {
	nextTag   uint64
	listens   []model.QuerySpec
	unlistens []model.QuerySpec
	getCb     conn.GetCallback
}

func (f *fakeConn) Listen(spec model.QuerySpec, hash string) uint64 {
	f.nextTag++
	f.listens = append(f.listens, spec)
	return f.nextTag
}

func (f *fakeConn) Unlisten(spec model.QuerySpec) {
	f.unlistens = append(f.unlistens, spec)
}

func (f *fakeConn) Get(spec model.QuerySpec, cb conn.GetCallback) {
	f.getCb = cb
}

type passthroughShadow struct{}

func (passthroughShadow) VisibleNode(p model.Path, serverNode model.Node) model.Node {
	return serverNode
}

func newTestTree(sender ListenSender) (*Tree, *runloop.EventTarget) {
	events := runloop.NewEventTarget(32)
	events.Start()
	return NewTree(sender, passthroughShadow{}, events), events
}

func TestAddEventListenerRegistersListenAndDeliversPush(t *testing.T) {
	sender := &fakeConn{}
	tree, events := newTestTree(sender)

	var got model.Node
	path := model.MustPath("/rooms/1")
	spec := model.DefaultQuery(path)
	tree.AddEventListener(spec, &Listener{ID: tree.NextListenerID(), OnValue: func(n model.Node) { got = n }})

	require.Len(t, sender.listens, 1)
	tag := sender.nextTag

	tree.OnDataUpdate(path, map[string]interface{}{"name": "lobby"}, tag)
	events.Stop()

	assert.Equal(t, "lobby", got.GetChild("name").Str())
}

func TestCoveredQueryIsSatisfiedLocallyWithoutServerListen(t *testing.T) {
	sender := &fakeConn{}
	tree, events := newTestTree(sender)
	path := model.MustPath("/rooms/1/members")

	var defaultVal, limitedVal model.Node
	defaultSpec := model.DefaultQuery(path)
	tree.AddEventListener(defaultSpec, &Listener{ID: tree.NextListenerID(), OnValue: func(n model.Node) { defaultVal = n }})

	limitedSpec := model.QuerySpec{Path: path, Params: model.Params{Index: model.IndexByKey, Limit: 1, Anchor: model.AnchorFirst}}
	tree.AddEventListener(limitedSpec, &Listener{ID: tree.NextListenerID(), OnValue: func(n model.Node) { limitedVal = n }})

	require.Len(t, sender.listens, 1) // only the default query hit the network

	tree.OnDataUpdate(path, map[string]interface{}{"alice": true, "bob": true}, sender.nextTag)
	events.Stop()

	assert.Equal(t, 2, defaultVal.NumChildren())
	assert.Equal(t, 1, limitedVal.NumChildren())
}

func TestPromoteCoveredViewOnDefaultRemoval(t *testing.T) {
	sender := &fakeConn{}
	tree, events := newTestTree(sender)
	path := model.MustPath("/rooms/1/members")

	defaultSpec := model.DefaultQuery(path)
	defaultListenerID := tree.NextListenerID()
	tree.AddEventListener(defaultSpec, &Listener{ID: defaultListenerID})

	limitedSpec := model.QuerySpec{Path: path, Params: model.Params{Index: model.IndexByKey, Limit: 1, Anchor: model.AnchorFirst}}
	tree.AddEventListener(limitedSpec, &Listener{ID: tree.NextListenerID()})

	require.Len(t, sender.listens, 1)

	tree.RemoveListener(defaultSpec, defaultListenerID)
	events.Stop()

	require.Len(t, sender.unlistens, 1)
	assert.True(t, sender.unlistens[0].IsDefault())
	require.Len(t, sender.listens, 2) // the covered limited query was promoted
	assert.False(t, sender.listens[1].IsDefault())
}

func TestOnAuthRevokedCancelsListenersExceptInfo(t *testing.T) {
	sender := &fakeConn{}
	tree, events := newTestTree(sender)

	var cancelErr error
	spec := model.DefaultQuery(model.MustPath("/rooms/1"))
	tree.AddEventListener(spec, &Listener{ID: tree.NextListenerID(), OnCancel: func(err error) { cancelErr = err }})

	var infoCancelled bool
	infoSpec := model.DefaultQuery(infoConnectedPath)
	tree.AddEventListener(infoSpec, &Listener{ID: tree.NextListenerID(), OnCancel: func(err error) { infoCancelled = true }})

	tree.OnAuthRevoked(model.NewError(model.ErrPermissionDenied, "revoked"))
	events.Stop()

	require.Error(t, cancelErr)
	assert.Equal(t, model.ErrPermissionDenied, model.KindOf(cancelErr))
	assert.False(t, infoCancelled)
}

func TestInfoConnectedTransitionsFalseThenTrue(t *testing.T) {
	sender := &fakeConn{}
	tree, events := newTestTree(sender)

	var seen []bool
	spec := model.DefaultQuery(infoConnectedPath)
	tree.AddEventListener(spec, &Listener{ID: tree.NextListenerID(), OnValue: func(n model.Node) { seen = append(seen, n.Bool()) }})

	tree.OnConnected()
	tree.OnDisconnected(true)
	events.Stop()

	require.Len(t, seen, 3) // initial false at registration replay, then true, then false
	assert.False(t, seen[0])
	assert.True(t, seen[1])
	assert.False(t, seen[2])
}

func TestRecomputeAffectedFoldsPendingWrites(t *testing.T) {
	sender := &fakeConn{}
	events := runloop.NewEventTarget(32)
	events.Start()
	shadow := &stubShadow{extra: model.StringNode("pending")}
	tree := NewTree(sender, shadow, events)

	var got model.Node
	path := model.MustPath("/doc")
	spec := model.DefaultQuery(path)
	tree.AddEventListener(spec, &Listener{ID: tree.NextListenerID(), OnValue: func(n model.Node) { got = n }})

	tree.OnDataUpdate(path, "server-value", sender.nextTag)
	tree.RecomputeAffected(path)
	events.Stop()

	assert.Equal(t, "pending", got.Str())
}

// stubShadow always reports extra regardless of the server node, modeling
// a write queue with one outstanding overwrite shadowing everything.
type stubShadow struct{ extra model.Node }

func (s *stubShadow) VisibleNode(p model.Path, serverNode model.Node) model.Node {
	return s.extra
}
