package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolProcessesSubmittedJobs(t *testing.T) {
	var processed atomic.Int32
	done := make(chan struct{})
	pool := newWorkerPool(2, 4, func(ctx context.Context, ex Exchange) (struct{}, error) {
		if processed.Add(1) == 3 {
			close(done)
		}
		return struct{}{}, nil
	})
	pool.start()
	defer pool.stop()

	for i := 0; i < 3; i++ {
		if !pool.submit(job{id: "j", data: Exchange{ConversationID: "c"}}) {
			t.Fatal("submit() = false, want true for a queue with room")
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("processed %d/3 jobs before timeout", processed.Load())
	}
}

func TestWorkerPoolSubmitFailsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := newWorkerPool(1, 1, func(ctx context.Context, ex Exchange) (struct{}, error) {
		<-block
		return struct{}{}, nil
	})
	pool.start()
	defer func() {
		close(block)
		pool.stop()
	}()

	if !pool.submit(job{id: "1", data: Exchange{}}) {
		t.Fatal("first submit should succeed and be picked up by the worker")
	}
	time.Sleep(10 * time.Millisecond)
	if !pool.submit(job{id: "2", data: Exchange{}}) {
		t.Fatal("second submit should fit in the queue")
	}
	if pool.submit(job{id: "3", data: Exchange{}}) {
		t.Fatal("third submit should fail: worker busy, queue full")
	}
}

func TestWorkerPoolSubmitFailsAfterStop(t *testing.T) {
	pool := newWorkerPool(1, 4, func(ctx context.Context, ex Exchange) (struct{}, error) {
		return struct{}{}, nil
	})
	pool.start()
	pool.stop()

	if pool.submit(job{id: "1", data: Exchange{}}) {
		t.Fatal("submit() after stop() should return false")
	}
}
