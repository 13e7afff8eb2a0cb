// Package workerpool runs bff's shard worker pool: a bounded set of
// goroutines that each stream one shard file through a duplicate-decision
// engine, structured the way the teacher's internal/scanner fans out
// per-directory work — a semaphore-bounded goroutine per unit of work, a
// shared atomic stats block, and a progress.Bar describing it live.
package workerpool

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/docproc"
	"github.com/xufeisofly/bff/internal/engine"
	"github.com/xufeisofly/bff/internal/objstore"
	"github.com/xufeisofly/bff/internal/progress"
	"github.com/xufeisofly/bff/internal/telemetry"
	"github.com/xufeisofly/bff/internal/types"

	"go.opentelemetry.io/otel/metric"
)

// ShardFile is one input shard resolved to the Store that serves it, so the
// pool never has to re-resolve a bucket per file.
type ShardFile struct {
	Store objstore.Store
	Key   string
}

// storeLister is the subset of config.StoreResolver that ExpandAndShard
// needs, kept narrow so this package doesn't import internal/config.
type storeLister interface {
	Resolve(ctx context.Context, path string) (objstore.Store, string, error)
}

// ExpandAndShard lists every shard file under each input path, merges and
// sorts the result for determinism, then keeps only the virtual shard
// selected by (shardNum, totalShards): index i survives iff
// i % totalShards == shardNum.
func ExpandAndShard(ctx context.Context, resolver storeLister, inputs []string, shardNum, totalShards int) ([]ShardFile, error) {
	var all []ShardFile
	for _, input := range inputs {
		store, prefix, err := resolver.Resolve(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("resolve input %q: %w", input, err)
		}
		infos, err := store.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", input, err)
		}
		for _, info := range infos {
			if objstore.IsShardFile(info.Key) {
				all = append(all, ShardFile{Store: store, Key: info.Key})
			}
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	if totalShards <= 1 {
		return all, nil
	}
	var sharded []ShardFile
	for i, f := range all {
		if i%totalShards == shardNum {
			sharded = append(sharded, f)
		}
	}
	return sharded, nil
}

// Shuffle randomizes file order in place, matching spec's "shuffles it
// (uniform random)" work-distribution step.
func Shuffle(files []ShardFile) {
	rand.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
}

// deriveOutputPath keeps the trailing suffixLevel path segments of key and
// joins them onto outBaseKey, matching --remain-file-path-suffix-level.
func deriveOutputPath(key, outBaseKey string, suffixLevel int) string {
	parts := strings.Split(filepath.ToSlash(key), "/")
	if suffixLevel <= 0 {
		suffixLevel = 1
	}
	if suffixLevel > len(parts) {
		suffixLevel = len(parts)
	}
	kept := parts[len(parts)-suffixLevel:]
	return filepath.Join(append([]string{outBaseKey}, kept...)...)
}

// Stats accumulates byte and file counters across the whole pool run using
// atomics, the same lock-free update pattern internal/scanner uses for
// concurrent progress tracking.
type Stats struct {
	TotalBytes     atomic.Int64
	RemovedBytes   atomic.Int64
	FilesProcessed atomic.Int64
	FilesWritten   atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("processed %d files (%s total, %s removed), wrote %d",
		s.FilesProcessed.Load(),
		humanize.IBytes(uint64(s.TotalBytes.Load())),
		humanize.IBytes(uint64(s.RemovedBytes.Load())),
		s.FilesWritten.Load(),
	)
}

// Pool is a bounded set of worker goroutines, each processing one shard
// file at a time via internal/docproc.
type Pool struct {
	threads      int
	showProgress bool
	errCh        chan error
	bytesCounter metric.Int64Counter
}

// New returns a Pool with threads worker slots. threads <= 0 auto-sizes to
// runtime.GOMAXPROCS(0), matching spec's "auto-sized to available
// parallelism when 0".
func New(threads int, showProgress bool, errCh chan error) *Pool {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	counter, _ := telemetry.BytesProcessedCounter()
	return &Pool{threads: threads, showProgress: showProgress, errCh: errCh, bytesCounter: counter}
}

// Run streams every file in files through eng, writing survivors under
// outStore at a path derived from outBaseKey and the input's trailing path
// segments. Errors for individual files are reported on the pool's errCh
// (if set) rather than aborting the run, matching spec's "a failing file
// logs and continues".
func (p *Pool) Run(ctx context.Context, files []ShardFile, outStore objstore.Store, outBaseKey string, suffixLevel int, eng engine.Engine, filter *bloom.Filter, opts engine.Options) *Stats {
	sem := types.NewSemaphore(p.threads)
	var wg sync.WaitGroup
	stats := &Stats{}

	bar := progress.New(p.showProgress, int64(len(files)))
	bar.Describe(stats)

	for _, file := range files {
		wg.Add(1)
		go func(file ShardFile) {
			defer wg.Done()
			sem.Acquire()
			defer sem.Release()

			p.processFile(ctx, file, outStore, outBaseKey, suffixLevel, eng, filter, opts, stats)
			bar.Set(uint64(stats.FilesProcessed.Load()))
			bar.Describe(stats)
		}(file)
	}

	wg.Wait()
	bar.Finish(stats)
	return stats
}

func (p *Pool) processFile(ctx context.Context, file ShardFile, outStore objstore.Store, outBaseKey string, suffixLevel int, eng engine.Engine, filter *bloom.Filter, opts engine.Options, stats *Stats) {
	ctx, span := telemetry.SpanForShard(ctx, file.Key)
	defer span.End()

	outputKey := deriveOutputPath(file.Key, outBaseKey, suffixLevel)

	r, err := file.Store.Get(ctx, file.Key)
	if err != nil {
		p.sendError(fmt.Errorf("%s: %w", file.Key, err))
		return
	}
	defer r.Close()

	var buf bytes.Buffer
	docStats, wrote, err := docproc.ProcessShard(r, file.Key, &buf, outputKey, eng, filter, opts)
	if err != nil {
		p.sendError(fmt.Errorf("%s: %w", file.Key, err))
		return
	}

	stats.TotalBytes.Add(docStats.TotalBytes)
	stats.RemovedBytes.Add(docStats.RemovedBytes)
	stats.FilesProcessed.Add(1)
	if p.bytesCounter != nil {
		p.bytesCounter.Add(ctx, docStats.TotalBytes)
	}

	if !wrote {
		return
	}
	if err := outStore.Put(ctx, outputKey, buf.Bytes()); err != nil {
		p.sendError(fmt.Errorf("%s: write %s: %w", file.Key, outputKey, err))
		return
	}
	stats.FilesWritten.Add(1)
}

func (p *Pool) sendError(err error) {
	if p.errCh != nil {
		p.errCh <- err
	}
}
