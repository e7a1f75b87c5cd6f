package writequeue

import (
	"github.com/firebase/rtdb-go/pkg/conn"
	"github.com/firebase/rtdb-go/pkg/log"
	"github.com/firebase/rtdb-go/pkg/model"
)

// Sender is the subset of *conn.Connection the queue needs to put records
// on the wire. Kept as an interface so the queue can be unit-tested
// without a real connection.
type Sender interface {
	Put(writeID int64, path model.Path, data model.Node, hash string, cb conn.WriteCallback)
	Merge(writeID int64, path model.Path, children map[model.Key]model.Node, hash string, cb conn.WriteCallback)
}

// Queue is the ordered log of pending local writes, kept in write-id
// (i.e. append) order per spec §4.3. It is owned by the run loop: no
// internal locking.
type Queue struct {
	sender  Sender
	records []*Record
	nextID  int64
}

// NewQueue builds an empty write queue that sends through sender.
func NewQueue(sender Sender) *Queue {
	return &Queue{sender: sender}
}

// NextWriteID mints the next monotonically increasing write id. Callers
// (set/update/transaction) reserve one before staging a record so
// transactions can track "the write id the updater first ran under" for
// same-path serialization.
func (q *Queue) NextWriteID() int64 {
	q.nextID++
	return q.nextID
}

// ObserveWriteID advances the write-id counter past id if it isn't
// already, without minting or staging anything. A persistence layer
// replaying writes recorded under their original ids calls this so the
// next NextWriteID call doesn't collide with one it just restored.
func (q *Queue) ObserveWriteID(id int64) {
	if id > q.nextID {
		q.nextID = id
	}
}

// Set stages an overwrite record at path and sends it immediately.
func (q *Queue) Set(writeID int64, path model.Path, value model.Node, cb Callback) {
	r := &Record{WriteID: writeID, Kind: KindOverwrite, Path: path, Overwrite: value, Visible: true, Callback: cb}
	q.stage(r)
}

// Update stages a merge record at path and sends it immediately.
func (q *Queue) Update(writeID int64, path model.Path, children map[model.Key]model.Node, cb Callback) {
	r := &Record{WriteID: writeID, Kind: KindMerge, Path: path, Merge: children, Visible: true, Callback: cb}
	q.stage(r)
}

func (q *Queue) stage(r *Record) {
	q.records = append(q.records, r)
	q.send(r)
}

func (q *Queue) send(r *Record) {
	switch r.Kind {
	case KindMerge:
		q.sender.Merge(r.WriteID, r.Path, r.Merge, "", func(err error) { q.complete(r, err) })
	default:
		q.sender.Put(r.WriteID, r.Path, r.Overwrite, r.hashPrecondition(), func(err error) { q.complete(r, err) })
	}
}

// hashPrecondition returns the hash a record's Put should be conditioned
// on; only transactions carry one.
func (r *Record) hashPrecondition() string {
	if r.txn != nil {
		return r.txn.precondition
	}
	return ""
}

func (q *Queue) complete(r *Record, err error) {
	q.remove(r)
	if err != nil && model.KindOf(err) == model.ErrDataStale && r.onDataStale != nil {
		r.onDataStale()
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeRevert
		log.WithWriteID(r.WriteID).Warn().Str("path", r.Path.String()).Err(err).Msg("write reverted")
	}
	if r.Callback != nil {
		r.Callback(outcome, err)
	}
}

func (q *Queue) remove(r *Record) {
	for i, rec := range q.records {
		if rec == r {
			q.records = append(q.records[:i], q.records[i+1:]...)
			return
		}
	}
}

// PurgeOutstandingWrites cancels every un-acked local write in write-id
// order, per spec §4.3, invoking each callback with OutcomeCancel. The
// caller is responsible for also telling the connection to drop its own
// replay log (conn.PurgeOutstandingWrites).
func (q *Queue) PurgeOutstandingWrites() {
	pending := q.records
	q.records = nil
	for _, r := range pending {
		if r.Callback != nil {
			r.Callback(OutcomeCancel, model.NewError(model.ErrCancelled, "purgeOutstandingWrites"))
		}
	}
}

// VisibleNode computes the materialized value at p: the server-known node
// (serverNode, which the sync tree supplies) with every pending write that
// can affect p — at or under p, or at an ancestor of p — folded in, in
// write-id (append) order.
func (q *Queue) VisibleNode(p model.Path, serverNode model.Node) model.Node {
	out := serverNode
	for _, r := range q.records {
		if !r.Visible {
			continue
		}
		if !r.Affects(p) {
			continue
		}
		if p.Contains(r.Path) {
			rel := r.Path.RelativeTo(p)
			sub := out.GetPath(rel)
			out = out.UpdatePath(rel, r.apply(sub))
			continue
		}
		out = r.ancestorValue(p, out)
	}
	return out
}

// Pending returns the current write-id-ordered log, for callers (tests,
// persistence) that need to inspect or serialize it. The returned slice is
// shared; callers must not mutate it.
func (q *Queue) Pending() []*Record {
	return q.records
}

// Len reports how many writes are currently un-acked.
func (q *Queue) Len() int {
	return len(q.records)
}
