package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xufeisofly/bff/internal/config"
	"github.com/xufeisofly/bff/internal/engine"
)

// runFlags mirrors the teacher's dedupeOptions: one struct cobra binds
// flags into directly, later translated into a config.Options.
type runFlags struct {
	inputs          []string
	tasksFile       string
	outputDirectory string
	bloomFilterFile string

	expectedNgramCount uint64
	fpRate             float64
	minNgramSize       int
	maxNgramSize       int
	filteringThreshold float64
	substrSeqLen       int
	removeType         string
	numHashers         int

	noUpdateBloomFilter bool
	annotate            bool
	threads             int
	noSaveBloomFilter   bool
	noProgressBar       bool

	shardNum                  int
	totalShards               int
	remainFilePathSuffixLevel int

	queueID      string
	useRedisTask bool
	retryTasks   bool
}

// newRunCmd builds the top-level "bff" command: no subcommand name of its
// own (it *is* the root), the way the source tool's single binary runs the
// dedup pipeline directly rather than through a named verb.
func newRunCmd() *cobra.Command {
	def := config.Default()
	f := &runFlags{
		outputDirectory:           def.OutputDirectory,
		minNgramSize:              def.MinNgramSize,
		maxNgramSize:              def.MaxNgramSize,
		filteringThreshold:        def.FilteringThreshold,
		substrSeqLen:              def.SubstrSeqLen,
		removeType:                string(def.RemoveType),
		remainFilePathSuffixLevel: def.RemainFilePathSuffixLevel,
		totalShards:               1,
	}

	cmd := &cobra.Command{
		Use:   "bff",
		Short: "Distributed near-duplicate and exact-duplicate eliminator for newline-delimited JSON corpora",
		RunE: func(_ *cobra.Command, _ []string) error {
			opts, err := f.toOptions()
			if err != nil {
				return err
			}
			return runBFF(opts, config.LoadEnv())
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.inputs, "inputs", nil, "One or more local directories/files or object-store URIs")
	flags.StringVar(&f.tasksFile, "tasks-file", "", "Task list file; overrides --inputs")
	flags.StringVar(&f.outputDirectory, "output-directory", f.outputDirectory, "Directory surviving shard files are written under")
	flags.StringVar(&f.bloomFilterFile, "bloom-filter-file", "", "Bloom filter file; loaded if it exists, saved at end")
	flags.Uint64Var(&f.expectedNgramCount, "expected-ngram-count", 0, "Expected number of n-grams inserted (required)")
	flags.Float64Var(&f.fpRate, "fp-rate", 0, "Target false-positive rate (required)")
	flags.IntVar(&f.minNgramSize, "min-ngram-size", f.minNgramSize, "Minimum n-gram size")
	flags.IntVar(&f.maxNgramSize, "max-ngram-size", f.maxNgramSize, "Maximum n-gram size")
	flags.Float64Var(&f.filteringThreshold, "filtering-threshold", f.filteringThreshold, "Containment fraction above which a unit is removed")
	flags.IntVar(&f.substrSeqLen, "substr-seqlen", f.substrSeqLen, "Substring sequence length for substring mode")
	flags.StringVar(&f.removeType, "remove-type", f.removeType, "paragraph|document|both|naive-both|old-both|substring|exact")
	flags.IntVar(&f.numHashers, "num-hashers", 0, "Number of hash functions (0 = optimal)")
	flags.BoolVar(&f.noUpdateBloomFilter, "no-update-bloom-filter", false, "Do not insert surviving n-grams back into the filter")
	flags.BoolVar(&f.annotate, "annotate", false, "Annotate duplicate spans instead of removing them")
	flags.IntVar(&f.threads, "threads", 0, "Worker threads (0 = auto)")
	flags.BoolVar(&f.noSaveBloomFilter, "no-save-bloom-filter", false, "Do not persist the filter at the end of the run")
	flags.BoolVar(&f.noProgressBar, "no-progress-bar", false, "Disable the progress bar")
	flags.IntVar(&f.shardNum, "shard-num", 0, "This worker's virtual shard index")
	flags.IntVar(&f.totalShards, "total-shards", f.totalShards, "Total number of virtual shards")
	flags.IntVar(&f.remainFilePathSuffixLevel, "remain-file-path-suffix-level", f.remainFilePathSuffixLevel, "Trailing input path segments kept under --output-directory")
	flags.StringVar(&f.queueID, "queue-id", "", "Task queue namespace (Redis mode)")
	flags.BoolVar(&f.useRedisTask, "use-redis-task", false, "Use the Redis-backed task queue instead of the file-backed one")
	flags.BoolVar(&f.retryTasks, "retry-tasks", false, "Also acquire tasks a previous worker marked failed")

	return cmd
}

func (f *runFlags) toOptions() (config.Options, error) {
	if f.tasksFile == "" && len(f.inputs) == 0 {
		return config.Options{}, fmt.Errorf("one of --inputs or --tasks-file is required")
	}

	removeType := engine.RemoveType(f.removeType)
	if _, err := engine.New(removeType); err != nil {
		return config.Options{}, fmt.Errorf("invalid --remove-type: %w", err)
	}

	return config.Options{
		Inputs:                    f.inputs,
		TasksFile:                 f.tasksFile,
		OutputDirectory:           f.outputDirectory,
		BloomFilterFile:           f.bloomFilterFile,
		ExpectedNgramCount:        f.expectedNgramCount,
		FPRate:                    f.fpRate,
		MinNgramSize:              f.minNgramSize,
		MaxNgramSize:              f.maxNgramSize,
		FilteringThreshold:        f.filteringThreshold,
		SubstrSeqLen:              f.substrSeqLen,
		RemoveType:                removeType,
		NumHashers:                f.numHashers,
		NoUpdateBloomFilter:       f.noUpdateBloomFilter,
		Annotate:                  f.annotate,
		Threads:                   f.threads,
		NoSaveBloomFilter:         f.noSaveBloomFilter,
		NoProgressBar:             f.noProgressBar,
		ShardNum:                  f.shardNum,
		TotalShards:               f.totalShards,
		RemainFilePathSuffixLevel: f.remainFilePathSuffixLevel,
		QueueID:                   f.queueID,
		UseRedisTask:              f.useRedisTask,
		RetryTasks:                f.retryTasks,
	}, nil
}
