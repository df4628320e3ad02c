package broker

import (
	"log/slog"
	"sync"
)

// serialQueue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submit never blocks.
type serialQueue struct {
	log *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

func newSerialQueue(log *slog.Logger) *serialQueue {
	q := &serialQueue{log: log, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// submit enqueues fn. It reports false once the queue has been closed.
func (q *serialQueue) submit(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return true
}

// flush blocks until every task submitted before the call has run.
// Calling it from a task deadlocks.
func (q *serialQueue) flush() {
	marker := make(chan struct{})
	if !q.submit(func() { close(marker) }) {
		<-q.done
		return
	}
	<-marker
}

// close stops accepting tasks, runs what is already queued and waits for the
// loop to exit.
func (q *serialQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

func (q *serialQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()

		for _, fn := range batch {
			q.run(fn)
		}
	}
}

func (q *serialQueue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("subscriber panicked", "panic", r)
		}
	}()
	fn()
}
