package telemetry

import "sync"

// Queue is the unbounded FIFO between the capture pipeline and the batch
// writer. Push and PopN each hold the lock for the whole call, so a batch of
// samples pushed together is never interleaved with another push, and two
// drains never split the same run of samples.
type Queue struct {
	mu    sync.Mutex
	items []Sample
	head  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends samples in order.
func (q *Queue) Push(samples ...Sample) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, samples...)
}

// PushFront puts samples back at the head of the queue, ahead of anything
// pushed since they were popped. Used to retry a batch the sink rejected.
func (q *Queue) PushFront(samples []Sample) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(samples) {
		q.head -= len(samples)
		copy(q.items[q.head:], samples)
		return
	}
	rest := q.items[q.head:]
	items := make([]Sample, 0, len(samples)+len(rest))
	items = append(items, samples...)
	items = append(items, rest...)
	q.items = items
	q.head = 0
}

// PopN removes and returns up to n samples from the head of the queue,
// preserving order. It returns nil when the queue is empty.
func (q *Queue) PopN(n int) []Sample {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	avail := len(q.items) - q.head
	if avail == 0 {
		return nil
	}
	if n > avail {
		n = avail
	}
	out := make([]Sample, n)
	copy(out, q.items[q.head:q.head+n])
	q.head += n

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		q.items = append([]Sample(nil), q.items[q.head:]...)
		q.head = 0
	}
	return out
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
