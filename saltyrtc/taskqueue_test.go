package saltyrtc

import (
	"context"
	"testing"
	"time"
)

func TestTaskQueueFIFOOrder(t *testing.T) {
	tq := newTaskQueue()
	order := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		i := i
		tq.Enqueue(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tsk, ok, err := tq.Dequeue(ctx)
		if !ok || err != nil {
			t.Fatalf("Dequeue #%d: ok=%v err=%v", i, ok, err)
		}
		if err := tsk(ctx); err != nil {
			t.Fatalf("task #%d: %v", i, err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want 0,1,2", order)
		}
	}
}

func TestTaskQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	tq := newTaskQueue()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok, err := tq.Dequeue(context.Background())
		if !ok || err != nil {
			t.Errorf("Dequeue: ok=%v err=%v", ok, err)
		}
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before anything was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	tq.Enqueue(func(ctx context.Context) error { return nil })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up after Enqueue")
	}
}

func TestTaskQueueDequeueRespectsContextCancellation(t *testing.T) {
	tq := newTaskQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := tq.Dequeue(ctx)
	if ok || err == nil {
		t.Fatalf("expected cancellation error, got ok=%v err=%v", ok, err)
	}
}

func TestTaskQueueCloseDrainsThenReportsClosed(t *testing.T) {
	tq := newTaskQueue()
	ran := false
	tq.Enqueue(func(ctx context.Context) error { ran = true; return nil })
	tq.Close()

	tsk, ok, err := tq.Dequeue(context.Background())
	if !ok || err != nil {
		t.Fatalf("expected the already-queued task to still drain, got ok=%v err=%v", ok, err)
	}
	if err := tsk(context.Background()); err != nil {
		t.Fatalf("task: %v", err)
	}
	if !ran {
		t.Fatal("task did not run")
	}

	if _, ok, err := tq.Dequeue(context.Background()); ok || err != nil {
		t.Fatalf("expected ok=false, err=nil once drained, got ok=%v err=%v", ok, err)
	}

	tq.Enqueue(func(ctx context.Context) error { return nil })
	if _, ok, _ := tq.Dequeue(context.Background()); ok {
		t.Fatal("Enqueue after Close should be silently dropped")
	}
}
