package stream

import "sync"

// queue is an unbounded FIFO between the producer goroutine and the
// consumer. push never blocks.
type queue struct {
	mu      sync.Mutex
	items   []string
	closed  bool
	err     error
	tripped bool
	notify  chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(s string) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
	q.signal()
}

// finish marks the end of the primary sequence.
// tripped is set when the producer stopped on the liveness gate.
func (q *queue) finish(err error, tripped bool) {
	q.mu.Lock()
	q.closed = true
	q.err = err
	q.tripped = tripped
	q.mu.Unlock()
	q.signal()
}

type popState int

const (
	popEmpty popState = iota
	popItem
	popDone
)

func (q *queue) pop() (string, popState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		s := q.items[0]
		q.items[0] = ""
		q.items = q.items[1:]
		return s, popItem
	}
	if q.closed {
		return "", popDone
	}
	return "", popEmpty
}

func (q *queue) result() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tripped, q.err
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
