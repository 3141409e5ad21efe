// ABOUTME: Tests for the sample queue
// ABOUTME: Verifies FIFO order, partial discard, compaction and the empty check
package engine

import (
	"sync"
	"testing"
)

func TestSampleQueueFIFO(t *testing.T) {
	q := NewSampleQueue()
	q.Push([]int16{1, 2, 3})
	q.Push([]int16{4, 5})

	if q.Len() != 5 {
		t.Fatalf("expected 5 samples, got %d", q.Len())
	}

	buf := make([]int16, 2)
	q.Peek(buf)
	if buf[0] != 1 || buf[1] != 2 {
		t.Errorf("unexpected front %v", buf)
	}
	q.Discard(2)

	buf = make([]int16, 10)
	n := q.Peek(buf)
	if n != 3 || buf[0] != 3 || buf[2] != 5 {
		t.Errorf("unexpected remainder n=%d %v", n, buf[:n])
	}
}

func TestSampleQueueDiscardBeyondLength(t *testing.T) {
	q := NewSampleQueue()
	q.Push([]int16{1, 2})
	q.Discard(10)
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestSampleQueuePushCopies(t *testing.T) {
	q := NewSampleQueue()
	src := []int16{7, 8}
	q.Push(src)
	src[0] = 0

	buf := make([]int16, 1)
	q.Peek(buf)
	if buf[0] != 7 {
		t.Error("queue must not alias the caller's slice")
	}
}

func TestSampleQueueCompaction(t *testing.T) {
	q := NewSampleQueue()
	chunk := make([]int16, compactThreshold)
	for i := range chunk {
		chunk[i] = int16(i)
	}
	q.Push(chunk)
	q.Push([]int16{42})

	q.Discard(compactThreshold)
	if q.head != 0 {
		t.Errorf("expected compaction to reset head, got %d", q.head)
	}

	buf := make([]int16, 1)
	q.Peek(buf)
	if buf[0] != 42 {
		t.Errorf("expected 42 after compaction, got %d", buf[0])
	}
}

func TestSampleQueueWhenEmpty(t *testing.T) {
	q := NewSampleQueue()
	ran := false
	if !q.WhenEmpty(func() { ran = true }) || !ran {
		t.Error("expected fn to run on empty queue")
	}

	q.Push([]int16{1})
	ran = false
	if q.WhenEmpty(func() { ran = true }) || ran {
		t.Error("fn must not run on a non-empty queue")
	}

	if dropped := q.Clear(); dropped != 1 {
		t.Errorf("expected 1 dropped sample, got %d", dropped)
	}
}

func TestSampleQueueConcurrentProducerConsumer(t *testing.T) {
	q := NewSampleQueue()
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i += 100 {
			chunk := make([]int16, 100)
			for j := range chunk {
				chunk[j] = int16((i + j) % 30000)
			}
			q.Push(chunk)
		}
	}()

	consumed := 0
	buf := make([]int16, 64)
	for consumed < total {
		n := q.Peek(buf)
		for i := 0; i < n; i++ {
			if buf[i] != int16((consumed+i)%30000) {
				t.Fatalf("out of order at %d: %d", consumed+i, buf[i])
			}
		}
		q.Discard(n)
		consumed += n
	}
	wg.Wait()
}
