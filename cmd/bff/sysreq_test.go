package main

import "testing"

func TestSysreqCmdRuns(t *testing.T) {
	cmd := newSysreqCmd()
	cmd.SetArgs([]string{"--expected-ngram-count", "1000", "--fp-rate", "0.01"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sysreq Execute: %v", err)
	}
}
