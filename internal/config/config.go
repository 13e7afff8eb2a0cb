// Package config loads bff's runtime configuration: the flag-bound run
// options (shaped like the teacher's dedupeOptions) and the environment
// variables that supply object-store and Redis credentials.
package config

import (
	"os"

	"github.com/xufeisofly/bff/internal/engine"
)

// Options holds every CLI-configurable run parameter, populated by cmd/bff's
// flag bindings the same way the teacher's dedupeOptions is populated by
// newDedupeCmd.
type Options struct {
	Inputs          []string
	TasksFile       string
	OutputDirectory string
	BloomFilterFile string

	ExpectedNgramCount uint64
	FPRate             float64
	MinNgramSize       int
	MaxNgramSize       int
	FilteringThreshold float64
	SubstrSeqLen       int
	RemoveType         engine.RemoveType
	NumHashers         int

	NoUpdateBloomFilter bool
	Annotate            bool
	Threads             int
	NoSaveBloomFilter   bool
	NoProgressBar       bool

	ShardNum                  int
	TotalShards               int
	RemainFilePathSuffixLevel int

	QueueID      string
	UseRedisTask bool
	RetryTasks   bool
}

// Default returns an Options populated with spec's documented CLI defaults.
func Default() Options {
	return Options{
		OutputDirectory:           "./output",
		MinNgramSize:              20,
		MaxNgramSize:              20,
		FilteringThreshold:        0.80,
		SubstrSeqLen:              50,
		RemoveType:                engine.Paragraph,
		RemainFilePathSuffixLevel: 1,
	}
}

// Env holds the credentials and endpoints read from the process
// environment, matching spec's Environment section.
type Env struct {
	OSSAccessKeyID     string
	OSSAccessKeySecret string
	RedisHost          string
	RedisPort          string
}

// LoadEnv reads Env from the process environment, applying the same
// fallback defaults the teacher applies to its own CLI flags.
func LoadEnv() Env {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}
	return Env{
		OSSAccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
		OSSAccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
		RedisHost:          redisHost,
		RedisPort:          redisPort,
	}
}
