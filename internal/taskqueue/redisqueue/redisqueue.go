// Package redisqueue implements taskqueue.Queue on Redis lists, grounded
// directly on the source implementation's TaskQueue: BRPOPLPUSH to move a
// task from pending to in-flight, a per-task processing:<id> key with a TTL
// as the lease, and LREM+LPUSH to move a task back out of in-flight.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/taskqueue"
)

// leaseTTL is the processing-key TTL after which SweepExpired reclaims a task.
const leaseTTL = 1 * time.Hour

// Queue is a Redis-backed taskqueue.Queue. Queue names are namespaced by
// queueID, matching the source's "<queue_id>_task_queue" convention.
type Queue struct {
	client            *redis.Client
	ctx               context.Context
	pendingKey        string
	inFlightKey       string
	finishedKey       string
	processingKeyBase string
}

// New returns a Queue backed by client, namespaced under queueID.
func New(ctx context.Context, client *redis.Client, queueID string) *Queue {
	return &Queue{
		client:            client,
		ctx:               ctx,
		pendingKey:        queueID + "_task_queue",
		inFlightKey:       queueID + "_processing_queue",
		finishedKey:       queueID + "_finished_queue",
		processingKeyBase: queueID + "_processing:",
	}
}

func (q *Queue) processingKey(taskID string) string {
	return q.processingKeyBase + taskID
}

func (q *Queue) Put(task taskqueue.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("%w: marshal task: %w", bfferr.ErrParse, err)
	}
	if err := q.client.LPush(q.ctx, q.pendingKey, body).Err(); err != nil {
		return fmt.Errorf("%w: lpush %s: %w", bfferr.ErrIO, q.pendingKey, err)
	}
	return nil
}

// Acquire mirrors acquire_task: BRPOPLPUSH pending → in-flight, then SET
// EX the processing:<id> lease key to workerKey.
func (q *Queue) Acquire(timeout time.Duration, workerKey string) (taskqueue.Task, error) {
	raw, err := q.client.BRPopLPush(q.ctx, q.pendingKey, q.inFlightKey, timeout).Result()
	if err == redis.Nil {
		return taskqueue.Task{}, bfferr.ErrTaskAbsent
	}
	if err != nil {
		return taskqueue.Task{}, fmt.Errorf("%w: brpoplpush %s: %w", bfferr.ErrIO, q.pendingKey, err)
	}

	var task taskqueue.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return taskqueue.Task{}, fmt.Errorf("%w: unmarshal task: %w", bfferr.ErrParse, err)
	}

	if err := q.client.Set(q.ctx, q.processingKey(task.ID), workerKey, leaseTTL).Err(); err != nil {
		return taskqueue.Task{}, fmt.Errorf("%w: set lease for %s: %w", bfferr.ErrIO, task.ID, err)
	}
	now := time.Now()
	task.Worker = &taskqueue.Worker{Key: workerKey, Status: taskqueue.WorkerProcessing, ProcessTime: now}
	return task, nil
}

func (q *Queue) Complete(task taskqueue.Task) error {
	return q.moveOut(task, q.finishedKey)
}

func (q *Queue) Requeue(task taskqueue.Task) error {
	return q.moveOut(task, q.pendingKey)
}

// moveOut mirrors complete_task/requeue_task: LREM the task out of
// in-flight, and only if that removed something, LPUSH it onto dest and
// drop its processing lease key. The in-flight entry is the task as Put
// stored it, so the lease record Acquire attached is cleared before
// marshaling the body to match.
func (q *Queue) moveOut(task taskqueue.Task, dest string) error {
	task.Worker = nil
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("%w: marshal task: %w", bfferr.ErrParse, err)
	}

	removed, err := q.client.LRem(q.ctx, q.inFlightKey, 0, body).Result()
	if err != nil {
		return fmt.Errorf("%w: lrem %s: %w", bfferr.ErrIO, q.inFlightKey, err)
	}
	if removed == 0 {
		return nil
	}

	if err := q.client.LPush(q.ctx, dest, body).Err(); err != nil {
		return fmt.Errorf("%w: lpush %s: %w", bfferr.ErrIO, dest, err)
	}
	if err := q.client.Del(q.ctx, q.processingKey(task.ID)).Err(); err != nil {
		return fmt.Errorf("%w: del lease for %s: %w", bfferr.ErrIO, task.ID, err)
	}
	return nil
}

// SweepExpired mirrors requeue_expired_tasks: for every in-flight task
// whose processing key no longer exists (TTL elapsed), move it back to
// pending.
func (q *Queue) SweepExpired() error {
	raws, err := q.client.LRange(q.ctx, q.inFlightKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: lrange %s: %w", bfferr.ErrIO, q.inFlightKey, err)
	}

	for _, raw := range raws {
		var task taskqueue.Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			continue
		}
		exists, err := q.client.Exists(q.ctx, q.processingKey(task.ID)).Result()
		if err != nil {
			return fmt.Errorf("%w: exists %s: %w", bfferr.ErrIO, q.processingKey(task.ID), err)
		}
		if exists != 0 {
			continue
		}
		if err := q.client.LRem(q.ctx, q.inFlightKey, 0, raw).Err(); err != nil {
			return fmt.Errorf("%w: lrem expired %s: %w", bfferr.ErrIO, q.inFlightKey, err)
		}
		if err := q.client.LPush(q.ctx, q.pendingKey, raw).Err(); err != nil {
			return fmt.Errorf("%w: lpush expired %s: %w", bfferr.ErrIO, q.pendingKey, err)
		}
	}
	return nil
}

func (q *Queue) AllFinished() (bool, error) {
	n, err := q.client.LLen(q.ctx, q.inFlightKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: llen %s: %w", bfferr.ErrIO, q.inFlightKey, err)
	}
	return n == 0, nil
}
