package fifoqueue

import (
	"sync"

	"github.com/gammazero/deque"
)

// Queue is an unbounded synchronized FIFO queue. Writers never block
type Queue[T any] struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	d       *deque.Deque[T]
	closing bool
	dropped bool
}

func New[T any]() *Queue[T] {
	ret := &Queue[T]{
		d: new(deque.Deque[T]),
	}
	ret.cond = sync.NewCond(&ret.mutex)
	return ret
}

// Write pushes element to the back. Returns false if the queue is already closed
func (q *Queue[T]) Write(elem T) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closing {
		return false
	}
	q.d.PushBack(elem)
	q.cond.Signal()
	return true
}

// Close stops accepting new elements. Elements already in the queue are still delivered
func (q *Queue[T]) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closing = true
	q.cond.Broadcast()
}

// CloseNow closes the queue immediately. Elements in the buffer are not delivered
func (q *Queue[T]) CloseNow() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closing = true
	q.dropped = true
	q.cond.Broadcast()
}

// read blocks until an element is available or the queue is closed and drained
func (q *Queue[T]) read() (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.d.Len() == 0 && !q.closing {
		q.cond.Wait()
	}
	if q.dropped || q.d.Len() == 0 {
		var nilElem T
		return nilElem, false
	}
	return q.d.PopFront(), true
}

// Consume calls fun for each element in the order of writing until the queue is closed
func (q *Queue[T]) Consume(fun func(elem T)) {
	for {
		e, ok := q.read()
		if !ok {
			return
		}
		fun(e)
	}
}

// Len returns number of buffered elements. Non-deterministic with concurrent writers
func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.d.Len()
}
