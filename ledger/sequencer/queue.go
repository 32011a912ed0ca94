package sequencer

import (
	"sync"

	"github.com/gammazero/deque"
)

// requestQueue is an unbounded FIFO of submitted transactions.
// Writers never block, the consumer blocks until an element arrives or the queue is closed
type requestQueue struct {
	mutex   sync.Mutex
	d       *deque.Deque[*request]
	out     chan *request
	closing bool
	once    sync.Once
}

type request struct {
	txBytes []byte
	result  chan error
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		d:   new(deque.Deque[*request]),
		out: make(chan *request),
	}
}

// write pushes the request. Returns false if the queue is closing
func (q *requestQueue) write(req *request) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closing {
		return false
	}
	q.d.PushBack(req)

	select {
	case q.out <- q.d.Front():
		q.d.PopFront()
	default:
	}
	return true
}

// close makes the consumer stop after all buffered requests are read
func (q *requestQueue) close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closing = true
	if q.d.Len() == 0 {
		q.once.Do(func() {
			close(q.out)
		})
	}
}

func (q *requestQueue) read() (*request, bool) {
	select {
	case ret, ok := <-q.out:
		return ret, ok
	default:
	}

	q.mutex.Lock()
	if q.d.Len() > 0 {
		defer q.mutex.Unlock()
		return q.d.PopFront(), true
	}
	if q.closing {
		q.once.Do(func() {
			close(q.out)
		})
	}
	q.mutex.Unlock()

	ret, ok := <-q.out
	return ret, ok
}

func (q *requestQueue) consume(fun func(req *request)) {
	for {
		req, ok := q.read()
		if !ok {
			return
		}
		fun(req)
	}
}

func (q *requestQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.d.Len()
}
