package ingest

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Topic != "carbontrace.activities" {
		t.Fatalf("topic = %q", cfg.Topic)
	}
	if cfg.GroupID != "carbontrace-ingest" {
		t.Fatalf("group = %q", cfg.GroupID)
	}
}

func TestBrokerList(t *testing.T) {
	cfg := Config{Brokers: "one:9092, two:9092 ,,three:9092"}
	got := cfg.BrokerList()
	want := []string{"one:9092", "two:9092", "three:9092"}
	if len(got) != len(want) {
		t.Fatalf("brokers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broker %d = %q, want %q", i, got[i], want[i])
		}
	}
}
