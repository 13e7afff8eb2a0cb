package filequeue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/objstore"
	"github.com/xufeisofly/bff/internal/taskqueue"
)

func newQueue(t *testing.T, retryFailed bool) *Queue {
	t.Helper()
	store := objstore.NewLocalStore(t.TempDir())
	return New(store, "tasks/shard-0.jsonl", "tasks/shard-0.lock", "worker-a", retryFailed)
}

func TestPutAcquireComplete(t *testing.T) {
	q := newQueue(t, false)
	task := taskqueue.Task{ID: "t1", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}

	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := q.Acquire(time.Second, "worker-a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got.ID != "t1" {
		t.Fatalf("Acquire got ID %q, want t1", got.ID)
	}
	if got.Worker == nil || got.Worker.Status != taskqueue.WorkerProcessing {
		t.Fatalf("Acquire did not assign a processing worker: %+v", got.Worker)
	}

	done, err := q.AllFinished()
	if err != nil {
		t.Fatalf("AllFinished: %v", err)
	}
	if done {
		t.Fatalf("expected AllFinished to be false while task in flight")
	}

	if err := q.Complete(got); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	done, err = q.AllFinished()
	if err != nil {
		t.Fatalf("AllFinished: %v", err)
	}
	if !done {
		t.Fatalf("expected AllFinished to be true after Complete")
	}
}

func TestAcquireTimesOutWhenEmpty(t *testing.T) {
	q := newQueue(t, false)

	origPoll := pollInterval
	pollInterval = time.Millisecond
	defer func() { pollInterval = origPoll }()

	_, err := q.Acquire(10*time.Millisecond, "worker-a")
	if !errors.Is(err, bfferr.ErrTaskAbsent) {
		t.Errorf("err = %v, want ErrTaskAbsent", err)
	}
}

func TestAcquireSkipsInFlightTask(t *testing.T) {
	q := newQueue(t, false)
	task := taskqueue.Task{ID: "t1", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}
	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := q.Acquire(time.Second, "worker-a"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	origPoll := pollInterval
	pollInterval = time.Millisecond
	defer func() { pollInterval = origPoll }()

	_, err := q.Acquire(10*time.Millisecond, "worker-b")
	if !errors.Is(err, bfferr.ErrTaskAbsent) {
		t.Errorf("second Acquire err = %v, want ErrTaskAbsent (task already leased)", err)
	}
}

func TestRequeueMakesTaskAssignableAgain(t *testing.T) {
	q := newQueue(t, false)
	task := taskqueue.Task{ID: "t1", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}
	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := q.Acquire(time.Second, "worker-a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := q.Requeue(got); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	again, err := q.Acquire(time.Second, "worker-b")
	if err != nil {
		t.Fatalf("Acquire after Requeue: %v", err)
	}
	if again.ID != "t1" {
		t.Fatalf("Acquire after Requeue got %q, want t1", again.ID)
	}
}

func TestSweepExpiredReclaimsStaleLease(t *testing.T) {
	q := newQueue(t, false)
	task := taskqueue.Task{ID: "t1", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}
	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := q.Acquire(time.Second, "worker-a"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx := context.Background()
	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err == nil && len(tasks) == 1 {
		tasks[0].Worker.ProcessTime = time.Now().Add(-3 * time.Hour)
		if err := q.writeTasks(ctx, q.tasksKey, tasks); err != nil {
			t.Fatalf("writeTasks: %v", err)
		}
	}

	if err := q.SweepExpired(); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}

	again, err := q.Acquire(time.Second, "worker-b")
	if err != nil {
		t.Fatalf("Acquire after sweep: %v", err)
	}
	if again.ID != "t1" {
		t.Fatalf("Acquire after sweep got %q, want t1", again.ID)
	}
}

func TestLeaseCacheSkipsUnchangedPoll(t *testing.T) {
	q := newQueue(t, false)
	if err := q.EnableLeaseCache(t.TempDir() + "/leases.db"); err != nil {
		t.Fatalf("EnableLeaseCache: %v", err)
	}
	defer q.Close()

	ctx := context.Background()
	task := taskqueue.Task{ID: "t1", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}
	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if q.skipPollAttempt(ctx) {
		t.Errorf("first peek after Put should prime the cache, not skip")
	}
	if !q.skipPollAttempt(ctx) {
		t.Errorf("second peek over an unchanged task file should skip")
	}

	task2 := taskqueue.Task{ID: "t2", ShardDir: "shard-0", FileRange: taskqueue.FileRange{0, 10}}
	if err := q.Put(task2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if q.skipPollAttempt(ctx) {
		t.Errorf("peek after the task file changed should not skip")
	}
}

func TestAcquireRetriesFailedTaskWhenEnabled(t *testing.T) {
	q := newQueue(t, true)
	task := taskqueue.Task{
		ID:       "t1",
		ShardDir: "shard-0",
		Worker:   &taskqueue.Worker{Key: "worker-a", Status: taskqueue.WorkerFailed, ProcessTime: time.Now()},
	}
	if err := q.Put(task); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := q.Acquire(time.Second, "worker-b")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got.ID != "t1" || got.Worker.Key != "worker-b" {
		t.Fatalf("Acquire did not reassign failed task: %+v", got)
	}
}
