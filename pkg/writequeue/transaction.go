package writequeue

import (
	"github.com/firebase/rtdb-go/pkg/log"
	"github.com/firebase/rtdb-go/pkg/metrics"
	"github.com/firebase/rtdb-go/pkg/model"
)

// maxTransactionRetries bounds the optimistic re-run loop per spec §4.3.
const maxTransactionRetries = 25

// transactionState tracks the precondition a staged transaction record was
// sent with, and how many datastale re-runs produced it.
type transactionState struct {
	precondition string
	retries      int
}

// Status is a transaction's terminal disposition.
type Status uint8

const (
	Committed Status = iota
	NotCommitted
	Aborted
	TransactionError
)

// Result is delivered to a transaction's completion callback exactly once.
type Result struct {
	Status Status
	Value  model.Node
	Err    error
}

// Updater computes the next value for a transaction given the currently
// visible node at its path. Returning commit=false aborts the transaction
// without changing anything, matching the updater's "abort" contract.
type Updater func(current model.Node) (next model.Node, commit bool)

// TransactionCallback reports a transaction's terminal Result.
type TransactionCallback func(Result)

// DataSource supplies the server-known (unshadowed) node the runner needs
// to compute a transaction's push-hash precondition; the sync tree
// implements this.
type DataSource interface {
	ServerNode(path model.Path) model.Node
}

// Runner drives optimistic client transactions on top of a Queue. Same-path
// transactions are serialized in the order RunTransaction was first called
// for that path, per spec §4.3.
type Runner struct {
	queue  *Queue
	source DataSource
	chains map[string][]*txnJob
}

type txnJob struct {
	path         model.Path
	updater      Updater
	applyLocally bool
	cb           TransactionCallback
}

// NewRunner builds a transaction runner staging its writes through queue,
// reading server state through source.
func NewRunner(queue *Queue, source DataSource) *Runner {
	return &Runner{queue: queue, source: source, chains: make(map[string][]*txnJob)}
}

// RunTransaction stages updater to run against path, optimistically,
// retrying on a datastale conflict up to maxTransactionRetries times.
func (r *Runner) RunTransaction(path model.Path, updater Updater, applyLocally bool, cb TransactionCallback) {
	job := &txnJob{path: path, updater: updater, applyLocally: applyLocally, cb: cb}
	key := path.String()
	chain := append(r.chains[key], job)
	r.chains[key] = chain
	if len(chain) == 1 {
		r.attempt(job, 0)
	}
}

func (r *Runner) attempt(job *txnJob, retry int) {
	serverNode := r.source.ServerNode(job.path)
	visible := r.queue.VisibleNode(job.path, serverNode)
	next, commit := job.updater(visible)
	if !commit {
		r.finish(job, Result{Status: Aborted})
		return
	}

	writeID := r.queue.NextWriteID()
	rec := &Record{
		WriteID:   writeID,
		Kind:      KindTransaction,
		Path:      job.path,
		Overwrite: next,
		Visible:   job.applyLocally,
		txn:       &transactionState{precondition: pushHash(serverNode), retries: retry},
	}
	rec.Callback = func(o Outcome, err error) {
		if o == OutcomeOK {
			r.finish(job, Result{Status: Committed, Value: next})
			return
		}
		r.finish(job, Result{Status: TransactionError, Err: err})
	}
	rec.onDataStale = func() {
		if retry >= maxTransactionRetries {
			log.WithWriteID(writeID).Warn().Str("path", job.path.String()).Int("retries", retry).
				Msg("transaction exceeded retry cap")
			r.finish(job, Result{Status: NotCommitted, Err: model.NewError(model.ErrMaxRetries, "transaction exceeded retry cap")})
			return
		}
		metrics.TransactionRetriesTotal.Inc()
		r.attempt(job, retry+1)
	}
	r.queue.stage(rec)
}

func (r *Runner) finish(job *txnJob, res Result) {
	if job.cb != nil {
		job.cb(res)
	}
	key := job.path.String()
	chain := r.chains[key]
	for i, j := range chain {
		if j == job {
			chain = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	if len(chain) == 0 {
		delete(r.chains, key)
	} else {
		r.chains[key] = chain
		r.attempt(chain[0], 0)
	}
}
