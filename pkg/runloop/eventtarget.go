package runloop

// EventType names one of the listener callback kinds the sync tree emits.
type EventType string

const (
	EventValue        EventType = "value"
	EventChildAdded   EventType = "child_added"
	EventChildMoved   EventType = "child_moved"
	EventChildChanged EventType = "child_changed"
	EventChildRemoved EventType = "child_removed"
	EventCancelled    EventType = "cancelled"
)

// Dispatch is one bound user-callback invocation: a closure over the
// listener function and the event data it should receive, ready to run on
// the event-target goroutine. Building the closure is the caller's job
// (typically pkg/synctree), so this package stays free of listener types.
type Dispatch func()

// EventTarget runs user listener callbacks on a goroutine separate from the
// RunLoop, so slow application code never stalls engine state mutation.
// Batches posted together execute back-to-back with no other batch's
// dispatches interleaved, so listeners never observe a partially-applied
// mutation as two unrelated halves.
type EventTarget struct {
	batches chan []Dispatch
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewEventTarget builds an EventTarget with the given batch-queue depth.
func NewEventTarget(queueSize int) *EventTarget {
	return &EventTarget{
		batches: make(chan []Dispatch, queueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins draining posted batches on a dedicated goroutine.
func (t *EventTarget) Start() {
	go t.run()
}

// Stop drains any already-queued batches, then exits.
func (t *EventTarget) Stop() {
	close(t.stopCh)
	<-t.doneCh
}

// PostBatch enqueues a group of dispatches produced by a single mutation.
// All dispatches in the batch run, in order, before the next batch starts.
func (t *EventTarget) PostBatch(batch []Dispatch) {
	if len(batch) == 0 {
		return
	}
	select {
	case t.batches <- batch:
	case <-t.stopCh:
	}
}

func (t *EventTarget) run() {
	defer close(t.doneCh)
	for {
		select {
		case batch := <-t.batches:
			runBatch(batch)
		case <-t.stopCh:
			t.drain()
			return
		}
	}
}

func (t *EventTarget) drain() {
	for {
		select {
		case batch := <-t.batches:
			runBatch(batch)
		default:
			return
		}
	}
}

func runBatch(batch []Dispatch) {
	for _, d := range batch {
		d()
	}
}
