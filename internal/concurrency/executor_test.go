package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/htcore/api"
)

var _ api.Executor = (*Executor)(nil)

func TestExecutor_SubmitRunsOnWorker(t *testing.T) {
	e := NewExecutor(2, 0)
	defer e.Close()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		if err := e.Submit(func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete in time")
	}

	if atomic.LoadInt64(&counter) != 50 {
		t.Fatalf("expected 50 executions, got %d", counter)
	}
}

func TestExecutor_SubmitAfterCloseFails(t *testing.T) {
	e := NewExecutor(1, 0)
	e.Close()

	if err := e.Submit(func() {}); err != ErrExecutorClosed {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
}

func TestExecutor_ResizeChangesWorkerCount(t *testing.T) {
	e := NewExecutor(2, 0)
	defer e.Close()

	if e.NumWorkers() != 2 {
		t.Fatalf("expected 2 workers, got %d", e.NumWorkers())
	}
	e.Resize(5)
	if e.NumWorkers() != 5 {
		t.Fatalf("expected 5 workers after resize, got %d", e.NumWorkers())
	}
}
