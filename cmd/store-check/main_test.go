package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCLIReportsSeededMemoryStore(t *testing.T) {
	t.Setenv("PLANCORE_STORAGE_DRIVER", "memory")
	var stdout, stderr bytes.Buffer
	code := cli(nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	var rep report
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Driver != "memory" {
		t.Fatalf("driver %q, want memory", rep.Driver)
	}
	if rep.Factories == 0 || rep.Projects == 0 || rep.Tasks == 0 || rep.Categories == 0 {
		t.Fatalf("seed data missing from report: %+v", rep)
	}
	if rep.Blocking {
		t.Fatalf("seed data must not produce blocking violations: %+v", rep.Violations)
	}
}

func TestCLISkipsSeedWhenDisabled(t *testing.T) {
	t.Setenv("PLANCORE_STORAGE_DRIVER", "memory")
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-seed=false"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	var rep report
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Factories != 0 || rep.Tasks != 0 {
		t.Fatalf("expected empty store without seeding: %+v", rep)
	}
}

func TestCLIRejectsUnknownDriver(t *testing.T) {
	t.Setenv("PLANCORE_STORAGE_DRIVER", "carrier-pigeon")
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-seed=false"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "unknown storage driver") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestCLIRejectsUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-definitely-not-a-flag"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code %d, want 2", code)
	}
}
