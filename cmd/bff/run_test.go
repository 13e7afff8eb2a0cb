package main

import (
	"testing"

	"github.com/xufeisofly/bff/internal/engine"
)

func TestRunFlagsToOptionsDefaults(t *testing.T) {
	cmd := newRunCmd()

	if v := cmd.Flags().Lookup("output-directory").DefValue; v != "./output" {
		t.Errorf("--output-directory default = %q, want ./output", v)
	}
	if v := cmd.Flags().Lookup("min-ngram-size").DefValue; v != "20" {
		t.Errorf("--min-ngram-size default = %q, want 20", v)
	}
	if v := cmd.Flags().Lookup("remove-type").DefValue; v != "paragraph" {
		t.Errorf("--remove-type default = %q, want paragraph", v)
	}
	if v := cmd.Flags().Lookup("total-shards").DefValue; v != "1" {
		t.Errorf("--total-shards default = %q, want 1", v)
	}
}

func TestToOptionsRequiresInputsOrTasksFile(t *testing.T) {
	f := &runFlags{removeType: string(engine.Paragraph)}
	if _, err := f.toOptions(); err == nil {
		t.Fatal("expected an error when neither --inputs nor --tasks-file is set")
	}
}

func TestToOptionsRejectsUnknownRemoveType(t *testing.T) {
	f := &runFlags{inputs: []string{"a"}, removeType: "bogus"}
	if _, err := f.toOptions(); err == nil {
		t.Fatal("expected an error for an unrecognized --remove-type")
	}
}

func TestToOptionsTranslatesFields(t *testing.T) {
	f := &runFlags{
		inputs:             []string{"a", "b"},
		outputDirectory:    "out",
		removeType:         string(engine.Exact),
		expectedNgramCount: 42,
		fpRate:             0.01,
		totalShards:        4,
	}
	opts, err := f.toOptions()
	if err != nil {
		t.Fatalf("toOptions: %v", err)
	}
	if opts.RemoveType != engine.Exact {
		t.Errorf("RemoveType = %q, want exact", opts.RemoveType)
	}
	if opts.TotalShards != 4 {
		t.Errorf("TotalShards = %d, want 4", opts.TotalShards)
	}
	if len(opts.Inputs) != 2 {
		t.Errorf("Inputs = %v, want 2 entries", opts.Inputs)
	}
}
