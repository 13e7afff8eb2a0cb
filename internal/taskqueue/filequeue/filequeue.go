// Package filequeue implements taskqueue.Queue directly on an object store,
// grounded on the source implementation's get_task_item/mark_task_item_finished/
// mark_task_item_failed: the whole task list lives in one JSON-lines object,
// guarded by an internal/lock file lock for every read-modify-write cycle.
package filequeue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/lock"
	"github.com/xufeisofly/bff/internal/objstore"
	"github.com/xufeisofly/bff/internal/taskqueue"
)

// lockTimeout is how long Acquire/Complete/Requeue wait to acquire the file
// lock before giving up, matching the source's fixed 7200-second wait.
const lockTimeout = 7200 * time.Second

// pollInterval is how often Acquire re-scans the task file while waiting for
// a pending task to appear. A var, not a const, so tests can shrink it.
var pollInterval = 1 * time.Second

// Queue is a file-backed taskqueue.Queue. All pending and in-flight tasks
// live as JSON lines in one object at tasksKey; completed tasks are appended
// to a sibling "<tasksKey>_finished" object, matching the source's
// single-file-plus-finished-sidecar layout.
type Queue struct {
	store       objstore.Store
	tasksKey    string
	finishedKey string
	lock        *lock.Lock
	retryFailed bool
	cache       *leaseCache
}

// New returns a Queue over tasksKey, using lockKey as the guarding file lock
// and workerKey to identify this process as the lock holder. When
// retryFailed is set, Acquire also hands out tasks whose last lease ended in
// taskqueue.WorkerFailed, matching the source's --retry-tasks flag.
func New(store objstore.Store, tasksKey, lockKey, workerKey string, retryFailed bool) *Queue {
	return &Queue{
		store:       store,
		tasksKey:    tasksKey,
		finishedKey: tasksKey + "_finished",
		lock:        lock.New(store, lockKey, workerKey),
		retryFailed: retryFailed,
		cache:       &leaseCache{enabled: false},
	}
}

// EnableLeaseCache opens a local BoltDB lease cache at path so Acquire's
// poll loop can skip the lock-guarded scan when the task file hasn't
// changed since the last failed attempt.
func (q *Queue) EnableLeaseCache(path string) error {
	c, err := openLeaseCache(path)
	if err != nil {
		return err
	}
	q.cache = c
	return nil
}

// Close releases the lease cache, if one was opened.
func (q *Queue) Close() error {
	return q.cache.Close()
}

func (q *Queue) readTasks(ctx context.Context, key string) ([]taskqueue.Task, error) {
	r, err := q.store.Get(ctx, key)
	if errors.Is(err, objstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var tasks []taskqueue.Task
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var task taskqueue.Task
		if err := json.Unmarshal(line, &task); err != nil {
			return nil, fmt.Errorf("%w: unmarshal task in %s: %w", bfferr.ErrParse, key, err)
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", bfferr.ErrIO, key, err)
	}
	return tasks, nil
}

func (q *Queue) writeTasks(ctx context.Context, key string, tasks []taskqueue.Task) error {
	var buf bytes.Buffer
	for _, task := range tasks {
		body, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("%w: marshal task: %w", bfferr.ErrParse, err)
		}
		buf.Write(body)
		buf.WriteByte('\n')
	}
	return q.store.Put(ctx, key, buf.Bytes())
}

func (q *Queue) Put(task taskqueue.Task) error {
	ctx := context.Background()
	if err := q.lock.AcquireOrBlock(ctx, lockTimeout); err != nil {
		return err
	}
	defer q.lock.Release(ctx)

	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return err
	}
	tasks = append(tasks, task)
	return q.writeTasks(ctx, q.tasksKey, tasks)
}

// Acquire scans the task file for the first task with no active lease,
// assigns it to workerKey, and writes the list back. It polls at
// pollInterval, re-acquiring the file lock each attempt, until a task
// becomes available or timeout elapses.
func (q *Queue) Acquire(timeout time.Duration, workerKey string) (taskqueue.Task, error) {
	ctx := context.Background()
	deadline := time.Now().Add(timeout)

	for {
		if q.skipPollAttempt(ctx) {
			if time.Now().After(deadline) {
				return taskqueue.Task{}, bfferr.ErrTaskAbsent
			}
			select {
			case <-ctx.Done():
				return taskqueue.Task{}, ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		task, ok, err := q.tryAcquire(ctx, workerKey)
		if err != nil {
			return taskqueue.Task{}, err
		}
		if ok {
			return task, nil
		}
		if time.Now().After(deadline) {
			return taskqueue.Task{}, bfferr.ErrTaskAbsent
		}
		select {
		case <-ctx.Done():
			return taskqueue.Task{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// skipPollAttempt does a lockless peek at the task file and reports whether
// it's byte-identical to the last snapshot this worker saw, so a contended
// poller can skip the expensive lock-guarded scan. Any error (including the
// peek itself failing) falls through to the real attempt.
func (q *Queue) skipPollAttempt(ctx context.Context) bool {
	r, err := q.store.Get(ctx, q.tasksKey)
	if err != nil {
		return false
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return false
	}
	unchanged, err := q.cache.Unchanged(q.tasksKey, body)
	if err != nil || !unchanged {
		_ = q.cache.Store(q.tasksKey, body)
		return false
	}
	return true
}

func (q *Queue) tryAcquire(ctx context.Context, workerKey string) (taskqueue.Task, bool, error) {
	if err := q.lock.AcquireOrBlock(ctx, lockTimeout); err != nil {
		return taskqueue.Task{}, false, err
	}
	defer q.lock.Release(ctx)

	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return taskqueue.Task{}, false, err
	}

	idx := -1
	for i, task := range tasks {
		if q.assignable(task) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return taskqueue.Task{}, false, nil
	}

	now := time.Now()
	tasks[idx].Worker = &taskqueue.Worker{Key: workerKey, Status: taskqueue.WorkerProcessing, ProcessTime: now}
	assigned := tasks[idx]

	if err := q.writeTasks(ctx, q.tasksKey, tasks); err != nil {
		return taskqueue.Task{}, false, err
	}
	return assigned, true, nil
}

func (q *Queue) assignable(task taskqueue.Task) bool {
	if task.Worker == nil {
		return true
	}
	return q.retryFailed && task.Worker.Status == taskqueue.WorkerFailed
}

// Complete removes the matching task from the task file and appends it,
// marked finished, to the finished sidecar file.
func (q *Queue) Complete(task taskqueue.Task) error {
	ctx := context.Background()
	if err := q.lock.AcquireOrBlock(ctx, lockTimeout); err != nil {
		return err
	}
	defer q.lock.Release(ctx)

	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return err
	}

	idx := -1
	for i, t := range tasks {
		if t.Matches(task) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	finished := tasks[idx]
	now := time.Now()
	if finished.Worker == nil {
		var key string
		if task.Worker != nil {
			key = task.Worker.Key
		}
		finished.Worker = &taskqueue.Worker{Key: key}
	}
	finished.Worker.Status = taskqueue.WorkerFinished
	finished.Worker.FinishTime = &now
	tasks = append(tasks[:idx], tasks[idx+1:]...)

	if err := q.writeTasks(ctx, q.tasksKey, tasks); err != nil {
		return err
	}

	finishedTasks, err := q.readTasks(ctx, q.finishedKey)
	if err != nil {
		return err
	}
	finishedTasks = append(finishedTasks, finished)
	return q.writeTasks(ctx, q.finishedKey, finishedTasks)
}

// Requeue clears the matching task's lease so a future Acquire can hand it
// out again. This departs from the source's mark_task_item_failed, which
// mislabels a failed task's worker status as "finished" without actually
// returning it to circulation; Requeue here does what the interface promises.
func (q *Queue) Requeue(task taskqueue.Task) error {
	ctx := context.Background()
	if err := q.lock.AcquireOrBlock(ctx, lockTimeout); err != nil {
		return err
	}
	defer q.lock.Release(ctx)

	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return err
	}

	for i, t := range tasks {
		if t.Matches(task) {
			tasks[i].Worker = nil
			break
		}
	}
	return q.writeTasks(ctx, q.tasksKey, tasks)
}

// SweepExpired moves every in-flight task whose lease is older than
// leaseTimeout back to pending.
func (q *Queue) SweepExpired() error {
	ctx := context.Background()
	if err := q.lock.AcquireOrBlock(ctx, lockTimeout); err != nil {
		return err
	}
	defer q.lock.Release(ctx)

	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-leaseTimeout)
	changed := false
	for i, t := range tasks {
		if t.Worker != nil && t.Worker.Status == taskqueue.WorkerProcessing && t.Worker.ProcessTime.Before(cutoff) {
			tasks[i].Worker = nil
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return q.writeTasks(ctx, q.tasksKey, tasks)
}

// leaseTimeout is how long a processing lease is honored before SweepExpired
// reclaims it, matching internal/lock's AcquireOrBlock 7200s wait used
// elsewhere in this package for the same order of magnitude.
const leaseTimeout = 2 * time.Hour

// AllFinished reports whether no task in the file is currently leased.
func (q *Queue) AllFinished() (bool, error) {
	ctx := context.Background()
	tasks, err := q.readTasks(ctx, q.tasksKey)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.Worker != nil && t.Worker.Status == taskqueue.WorkerProcessing {
			return false, nil
		}
	}
	return true, nil
}
