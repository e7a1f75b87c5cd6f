package runloop

import (
	"sync"
	"time"
)

// Task is a unit of work posted to the run loop. Tasks never block: engine
// state is only ever touched from inside a Task running on the loop
// goroutine.
type Task func()

// RunLoop is the engine's single-writer work queue. All sync-tree mutation,
// connection-protocol handling, and write-queue bookkeeping executes here,
// in FIFO post order, so no internal locking is needed for that state.
type RunLoop struct {
	tasks   chan Task
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewRunLoop builds a RunLoop with the given task-queue depth.
func NewRunLoop(queueSize int) *RunLoop {
	return &RunLoop{
		tasks:  make(chan Task, queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins draining the task queue on a dedicated goroutine. Start must
// be called once before Post.
func (r *RunLoop) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()
	go r.run()
}

// Stop signals the loop to drain remaining queued tasks and exit, then
// blocks until it has.
func (r *RunLoop) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// Post enqueues a task for FIFO execution on the loop goroutine. Post never
// blocks the caller on task completion; it blocks only if the queue is full,
// matching the engine's "non-blocking message post" scheduling invariant
// under normal operation (the queue is sized to never fill in practice).
func (r *RunLoop) Post(t Task) {
	select {
	case r.tasks <- t:
	case <-r.stopCh:
	}
}

// PostDelayed schedules t to run on the loop goroutine after d, and returns
// a cancel function. Calling cancel before the timer fires prevents t from
// ever being posted; it has no effect once t has been posted or run.
func (r *RunLoop) PostDelayed(d time.Duration, t Task) (cancel func()) {
	var once sync.Once
	cancelled := false
	var mu sync.Mutex

	timer := time.AfterFunc(d, func() {
		mu.Lock()
		skip := cancelled
		mu.Unlock()
		if skip {
			return
		}
		r.Post(t)
	})

	return func() {
		once.Do(func() {
			mu.Lock()
			cancelled = true
			mu.Unlock()
			timer.Stop()
		})
	}
}

func (r *RunLoop) run() {
	defer close(r.doneCh)
	for {
		select {
		case task := <-r.tasks:
			task()
		case <-r.stopCh:
			r.drain()
			return
		}
	}
}

// drain runs any tasks already queued before returning, so a Stop doesn't
// silently discard work that was posted just before shutdown.
func (r *RunLoop) drain() {
	for {
		select {
		case task := <-r.tasks:
			task()
		default:
			return
		}
	}
}
