package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/config"
	"github.com/xufeisofly/bff/internal/engine"
	"github.com/xufeisofly/bff/internal/logging"
	"github.com/xufeisofly/bff/internal/objstore"
	"github.com/xufeisofly/bff/internal/taskqueue"
	"github.com/xufeisofly/bff/internal/taskqueue/filequeue"
	"github.com/xufeisofly/bff/internal/taskqueue/redisqueue"
	"github.com/xufeisofly/bff/internal/telemetry"
	"github.com/xufeisofly/bff/internal/workerpool"
)

// acquireTimeout bounds how long a single Acquire call blocks when the
// queue is momentarily empty, before the worker re-checks all_finished.
const acquireTimeout = 10 * time.Second

// runBFF wires every component together: resolve paths, load or size the
// bloom filter, run either the --inputs or --tasks-file pipeline, then
// persist the filter, the same four-phase shape as the teacher's
// runDedupe (scan -> screen -> verify -> dedupe), generalized to bff's
// domain.
func runBFF(opts config.Options, env config.Env) error {
	ctx := context.Background()
	logger := logging.Default()

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdown(ctx)

	resolver := config.NewStoreResolver(env)

	eng, err := engine.New(opts.RemoveType)
	if err != nil {
		return fmt.Errorf("%w: %w", bfferr.ErrInvalidFile, err)
	}

	filter, sizing, err := loadOrCreateFilter(ctx, resolver, opts)
	if err != nil {
		return err
	}
	logger.Info().
		Uint64("bits", sizing.Bits).
		Int("num_hashers", sizing.NumHashers).
		Float64("realized_fp_rate", sizing.RealizedFPRate).
		Bool("hit_memory_cap", sizing.HitMemoryCap).
		Msg("bloom filter sized")

	outStore, outKey, err := resolver.Resolve(ctx, opts.OutputDirectory)
	if err != nil {
		return fmt.Errorf("resolve --output-directory: %w", err)
	}

	engOpts := engine.Options{
		MinNgramSize:        opts.MinNgramSize,
		MaxNgramSize:        opts.MaxNgramSize,
		FilteringThreshold:  opts.FilteringThreshold,
		SubstrSeqLen:        opts.SubstrSeqLen,
		NoUpdateBloomFilter: opts.NoUpdateBloomFilter,
		Annotate:            opts.Annotate,
	}

	if opts.TasksFile != "" {
		err = runTasksMode(ctx, resolver, opts, env, eng, filter, engOpts, outStore, outKey)
	} else {
		err = runInputsMode(ctx, logger, resolver, opts, eng, filter, engOpts, outStore, outKey)
	}
	if err != nil {
		return err
	}

	if !opts.NoSaveBloomFilter && opts.BloomFilterFile != "" {
		if saveErr := saveFilter(ctx, resolver, opts.BloomFilterFile, filter); saveErr != nil {
			// Filter persistence is best-effort at shutdown: log, don't fail the run.
			logger.Error().Err(saveErr).Msg("failed to persist bloom filter")
		}
	}
	return nil
}

// loadOrCreateFilter loads opts.BloomFilterFile if it already exists,
// otherwise sizes and builds a fresh filter via bloom.Size, capped at 90%
// of system memory the way compute_bloom_size bounds its binary search.
func loadOrCreateFilter(ctx context.Context, resolver *config.StoreResolver, opts config.Options) (*bloom.Filter, bloom.SizingReport, error) {
	if opts.BloomFilterFile != "" {
		store, key, err := resolver.Resolve(ctx, opts.BloomFilterFile)
		if err != nil {
			return nil, bloom.SizingReport{}, fmt.Errorf("resolve --bloom-filter-file: %w", err)
		}
		r, err := store.Get(ctx, key)
		if err == nil {
			defer r.Close()
			filter, err := bloom.ReadFrom(r)
			if err != nil {
				return nil, bloom.SizingReport{}, err
			}
			return filter, bloom.SizingReport{
				Bits:       filter.NumBits(),
				NumHashers: filter.NumHashers(),
			}, nil
		}
		if !errors.Is(err, objstore.ErrNotFound) {
			return nil, bloom.SizingReport{}, fmt.Errorf("%w: read %s: %w", bfferr.ErrIO, opts.BloomFilterFile, err)
		}
	}

	report := bloom.Size(opts.FPRate, opts.ExpectedNgramCount, opts.NumHashers, bloom.SystemMemoryCapBytes())
	return bloom.New(report.Bits, report.NumHashers), report, nil
}

func saveFilter(ctx context.Context, resolver *config.StoreResolver, filterPath string, filter *bloom.Filter) error {
	store, key, err := resolver.Resolve(ctx, filterPath)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := filter.WriteTo(&buf); err != nil {
		return err
	}
	return store.Put(ctx, key, buf.Bytes())
}

// runInputsMode expands --inputs into this worker's virtual shard, shuffles
// it, and runs the whole shard through one pool, matching spec §4.7's
// "expand -> stride-select -> shuffle -> one job per file" sequence.
func runInputsMode(ctx context.Context, logger zerolog.Logger, resolver *config.StoreResolver, opts config.Options, eng engine.Engine, filter *bloom.Filter, engOpts engine.Options, outStore objstore.Store, outKey string) error {
	files, err := workerpool.ExpandAndShard(ctx, resolver, opts.Inputs, opts.ShardNum, opts.TotalShards)
	if err != nil {
		return fmt.Errorf("expand --inputs: %w", err)
	}
	workerpool.Shuffle(files)

	errCh := make(chan error, 100)
	go drainErrors(errCh)
	defer close(errCh)

	pool := workerpool.New(opts.Threads, !opts.NoProgressBar, errCh)
	stats := pool.Run(ctx, files, outStore, outKey, opts.RemainFilePathSuffixLevel, eng, filter, engOpts)
	logger.Info().Str("stats", stats.String()).Msg("inputs run complete")
	return nil
}

// runTasksMode drives a task queue (file- or Redis-backed) instead of a
// static --inputs expansion, the distributed-worker path §4.8 describes:
// acquire, process, complete-or-requeue, loop until the queue reports no
// more work and nothing is in flight.
func runTasksMode(ctx context.Context, resolver *config.StoreResolver, opts config.Options, env config.Env, eng engine.Engine, filter *bloom.Filter, engOpts engine.Options, outStore objstore.Store, outKey string) error {
	logger := logging.Default()

	queue, closeQueue, err := openQueue(ctx, resolver, opts, env)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer closeQueue()
	}

	workerKey := workerIdentity()

	for {
		if err := queue.SweepExpired(); err != nil {
			return fmt.Errorf("sweep expired tasks: %w", err)
		}

		task, err := queue.Acquire(acquireTimeout, workerKey)
		if errors.Is(err, bfferr.ErrTaskAbsent) {
			done, finErr := queue.AllFinished()
			if finErr != nil {
				return fmt.Errorf("check all_finished: %w", finErr)
			}
			if done {
				return nil
			}
			continue
		}
		if err != nil {
			// Contention is treated as "no task available": sleep and retry.
			time.Sleep(time.Second)
			continue
		}

		taskLogger := logging.WithTask(logger, task.ID, task.ShardDir)
		if err := processTask(ctx, resolver, opts, eng, filter, engOpts, outStore, outKey, task); err != nil {
			taskLogger.Error().Err(err).Msg("task failed, requeueing")
			if reqErr := queue.Requeue(task); reqErr != nil {
				return fmt.Errorf("requeue failed task %s: %w", task.ID, reqErr)
			}
			continue
		}
		if err := queue.Complete(task); err != nil {
			return fmt.Errorf("complete task %s: %w", task.ID, err)
		}
		taskLogger.Info().Msg("task complete")
	}
}

func openQueue(ctx context.Context, resolver *config.StoreResolver, opts config.Options, env config.Env) (taskqueue.Queue, func(), error) {
	if opts.UseRedisTask {
		client := redis.NewClient(&redis.Options{Addr: env.RedisHost + ":" + env.RedisPort})
		return redisqueue.New(ctx, client, opts.QueueID), func() { _ = client.Close() }, nil
	}

	store, key, err := resolver.Resolve(ctx, opts.TasksFile)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve --tasks-file: %w", err)
	}
	q := filequeue.New(store, key, key+".lock", workerIdentity(), opts.RetryTasks)
	if err := q.EnableLeaseCache(filepath.Join(os.TempDir(), "bff-lease-cache", opts.QueueID+".db")); err != nil {
		logging.Default().Warn().Err(err).Msg("lease cache disabled")
	}
	return q, func() { _ = q.Close() }, nil
}

func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// processTask resolves a task's shard files (explicit Files, or a sorted
// listing of ShardDir sliced by FileRange), runs them through one pool,
// and reports any per-file error back to the caller so it can requeue.
func processTask(ctx context.Context, resolver *config.StoreResolver, opts config.Options, eng engine.Engine, filter *bloom.Filter, engOpts engine.Options, outStore objstore.Store, outKey string, task taskqueue.Task) error {
	files, err := resolveTaskFiles(ctx, resolver, task)
	if err != nil {
		return err
	}

	errCh := make(chan error, len(files)+1)
	pool := workerpool.New(opts.Threads, !opts.NoProgressBar, errCh)
	pool.Run(ctx, files, outStore, outKey, opts.RemainFilePathSuffixLevel, eng, filter, engOpts)
	close(errCh)

	for taskErr := range errCh {
		return taskErr
	}
	return nil
}

func resolveTaskFiles(ctx context.Context, resolver *config.StoreResolver, task taskqueue.Task) ([]workerpool.ShardFile, error) {
	store, prefix, err := resolver.Resolve(ctx, task.ShardDir)
	if err != nil {
		return nil, fmt.Errorf("resolve task shard_dir %q: %w", task.ShardDir, err)
	}

	if len(task.Files) > 0 {
		files := make([]workerpool.ShardFile, len(task.Files))
		for i, f := range task.Files {
			files[i] = workerpool.ShardFile{Store: store, Key: path.Join(prefix, f)}
		}
		return files, nil
	}

	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list task shard_dir %q: %w", task.ShardDir, err)
	}
	var keys []string
	for _, info := range infos {
		if objstore.IsShardFile(info.Key) {
			keys = append(keys, info.Key)
		}
	}
	sort.Strings(keys)

	start := task.FileRange[0]
	end := task.FileRange[1]
	if task.FileRange.OpenEnded() || end > len(keys) {
		end = len(keys)
	}
	if start < 0 || start > len(keys) {
		start = len(keys)
	}
	if start > end {
		start = end
	}

	files := make([]workerpool.ShardFile, 0, end-start)
	for _, k := range keys[start:end] {
		files = append(files, workerpool.ShardFile{Store: store, Key: k})
	}
	return files, nil
}

// drainErrors mirrors the teacher's drainErrors: consume a shared error
// channel and write each failure to stderr without aborting the run,
// matching spec's "a failing file logs and continues".
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

