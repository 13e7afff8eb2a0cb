// Package taskqueue defines the Task type and Queue interface shared by the
// file-backed (internal/taskqueue/filequeue) and Redis-backed
// (internal/taskqueue/redisqueue) implementations.
package taskqueue

import "time"

// WorkerStatus is the lease status recorded on a Task's Worker field.
type WorkerStatus string

const (
	WorkerProcessing WorkerStatus = "processing"
	WorkerFinished   WorkerStatus = "finished"
	WorkerFailed     WorkerStatus = "failed"
)

// FileRange is a half-open-by-convention shard file index range; End == -1
// means "open-ended", i.e. through the last file in ShardDir.
type FileRange [2]int

// OpenEnded reports whether r has no upper bound.
func (r FileRange) OpenEnded() bool { return r[1] == -1 }

// Worker is the lease record attached to a task while it is in flight.
type Worker struct {
	Key         string       `json:"key"`
	Status      WorkerStatus `json:"status"`
	ProcessTime time.Time    `json:"process_time"`
	FinishTime  *time.Time   `json:"finish_time,omitempty"`
}

// Task is one unit of shard-processing work.
type Task struct {
	ID                 string    `json:"id"`
	ShardDir           string    `json:"shard_dir"`
	FileRange          FileRange `json:"file_range"`
	Files              []string  `json:"files,omitempty"`
	ExpectedNgramCount *uint64   `json:"expected_ngram_count,omitempty"`
	Worker             *Worker   `json:"worker,omitempty"`
}

// Matches reports whether t and other refer to the same unit of work, per
// spec's matching rule: match by id when both have one, else by
// (shard_dir, file_range, files) with files compared only when non-empty
// on either side.
func (t Task) Matches(other Task) bool {
	if t.ID != "" && other.ID != "" {
		return t.ID == other.ID
	}
	if t.ShardDir != other.ShardDir || t.FileRange != other.FileRange {
		return false
	}
	if len(t.Files) == 0 && len(other.Files) == 0 {
		return true
	}
	return stringSlicesEqual(t.Files, other.Files)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Queue is the logical task-queue surface shared by every backend: a
// pending list, an in-flight (leased) list, and a finished list.
type Queue interface {
	// Put appends task to pending.
	Put(task Task) error
	// Acquire atomically moves the head of pending to in-flight, recording
	// workerKey on a leased copy of the task, blocking up to timeout when
	// pending is empty. Returns bfferr.ErrTaskAbsent if nothing became
	// available within timeout.
	Acquire(timeout time.Duration, workerKey string) (Task, error)
	// Complete removes the matching task from in-flight and appends it to
	// finished, dropping its lease.
	Complete(task Task) error
	// Requeue removes the matching task from in-flight and appends it back
	// to pending, dropping its lease.
	Requeue(task Task) error
	// SweepExpired moves every in-flight task whose lease has expired back
	// to pending.
	SweepExpired() error
	// AllFinished reports whether in-flight is empty.
	AllFinished() (bool, error)
}
