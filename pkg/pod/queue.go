package pod

import (
	"sort"
	"sync"
)

// Queue is the bounded signal buffer between pods and the coordinator.
// Publish never blocks a pod: when the buffer is full the oldest entry
// is dropped to make room, and the drop is counted.
type Queue struct {
	mu       sync.Mutex
	buf      []Signal
	capacity int
	dropped  uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{capacity: capacity}
}

// Publish appends a signal, evicting the oldest entry when full.
func (q *Queue) Publish(s Signal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) >= q.capacity {
		copy(q.buf, q.buf[1:])
		q.buf = q.buf[:len(q.buf)-1]
		q.dropped++
	}
	q.buf = append(q.buf, s)
}

// Drain returns the buffered signals ordered by priority descending,
// ties broken oldest first, and clears the buffer.
func (q *Queue) Drain() []Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := make([]Signal, len(q.buf))
	copy(out, q.buf)
	q.buf = q.buf[:0]

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of buffered signals.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped returns how many signals have been evicted so far.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
