package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xufeisofly/bff/internal/bloom"
)

// newSysreqCmd prints the same sizing advice the bloom filter's binary
// search arrives at when New() would build one for the given parameters,
// without running a job, matching the source's sysreq advisory subcommand.
func newSysreqCmd() *cobra.Command {
	var (
		expectedNgramCount uint64
		fpRate             float64
		numHashers         int
	)

	cmd := &cobra.Command{
		Use:   "sysreq",
		Short: "Print bloom filter sizing advice for expected-ngram-count/fp-rate/num-hashers",
		RunE: func(_ *cobra.Command, _ []string) error {
			report := bloom.Size(fpRate, expectedNgramCount, numHashers, bloom.SystemMemoryCapBytes())
			fmt.Printf("size:            %s (%d bits)\n", humanize.IBytes(report.Bytes), report.Bits)
			fmt.Printf("num_hashers:     %d\n", report.NumHashers)
			fmt.Printf("realized fp:     %.6f\n", report.RealizedFPRate)
			fmt.Printf("hit memory cap:  %t\n", report.HitMemoryCap)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&expectedNgramCount, "expected-ngram-count", 0, "Expected number of n-grams inserted")
	cmd.Flags().Float64Var(&fpRate, "fp-rate", 0, "Target false-positive rate")
	cmd.Flags().IntVar(&numHashers, "num-hashers", 0, "Number of hash functions (0 = optimal)")

	return cmd
}
