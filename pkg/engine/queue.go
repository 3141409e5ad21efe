// ABOUTME: FIFO sample queue between the decode loop and the device writer
// ABOUTME: Mutex-guarded, unbounded, consumed strictly from the front
package engine

import "sync"

// compactThreshold is the consumed prefix size that triggers a copy-down
const compactThreshold = 1 << 16

// SampleQueue holds interleaved int16 samples awaiting the device
type SampleQueue struct {
	mu   sync.Mutex
	buf  []int16
	head int
}

// NewSampleQueue creates an empty queue
func NewSampleQueue() *SampleQueue {
	return &SampleQueue{}
}

// Push appends a copy of samples to the back
func (q *SampleQueue) Push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	q.buf = append(q.buf, samples...)
	q.mu.Unlock()
}

// Len returns the number of queued samples
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// Peek copies up to len(dst) samples from the front without removing them
func (q *SampleQueue) Peek(dst []int16) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copy(dst, q.buf[q.head:])
}

// Discard removes n samples from the front
func (q *SampleQueue) Discard(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.buf)-q.head {
		n = len(q.buf) - q.head
	}
	q.head += n

	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	} else if q.head >= compactThreshold && q.head*2 >= len(q.buf) {
		remaining := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:remaining]
		q.head = 0
	}
}

// Clear drops every queued sample and returns how many were dropped
func (q *SampleQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.buf) - q.head
	q.buf = nil
	q.head = 0
	return dropped
}

// WhenEmpty runs fn while holding the queue lock if the queue is empty.
// It reports whether fn ran. fn must not call back into the queue.
func (q *SampleQueue) WhenEmpty(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf)-q.head != 0 {
		return false
	}
	fn()
	return true
}
