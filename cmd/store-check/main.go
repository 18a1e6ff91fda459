// Command store-check boots the configured persistent store, seeds it when
// empty, evaluates the scheduling and hierarchy rules against the full state,
// and prints a JSON report. It exits non-zero when any blocking violation is
// found, which makes it usable as a CI or deployment gate.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"plancore/internal/core"
	"plancore/pkg/domain"
)

var exitFunc = os.Exit

type report struct {
	Driver     string             `json:"driver"`
	Fallback   string             `json:"fallback,omitempty"`
	Factories  int                `json:"factories"`
	Projects   int                `json:"projects"`
	Tasks      int                `json:"tasks"`
	Categories int                `json:"categories"`
	Violations []domain.Violation `json:"violations"`
	Blocking   bool               `json:"blocking"`
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("store-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var seed bool
	fs.BoolVar(&seed, "seed", true, "seed an empty store with fixture data")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rep, err := run(seed)
	if err != nil {
		fmt.Fprintf(stderr, "store-check failed: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return 1
	}
	if rep.Blocking {
		return 1
	}
	return 0
}

func run(seed bool) (report, error) {
	engine := core.NewDefaultRulesEngine()
	var (
		svc *core.Service
		rep report
	)
	if seed {
		boot, err := core.Boot(engine)
		if err != nil {
			return report{}, err
		}
		svc = boot.Service
		rep.Driver = string(boot.Driver)
		if boot.Fallback != nil {
			rep.Fallback = boot.Fallback.Error()
		}
	} else {
		store, err := core.OpenPersistentStore(engine)
		if err != nil {
			return report{}, err
		}
		svc = core.NewService(store)
		rep.Driver = os.Getenv("PLANCORE_STORAGE_DRIVER")
		if rep.Driver == "" {
			rep.Driver = string(core.StorageSQLite)
		}
	}
	store := svc.Store()
	rep.Factories = len(store.ListFactories())
	rep.Projects = len(store.ListProjects())
	rep.Tasks = len(store.ListTasks())
	rep.Categories = len(store.ListCategories())

	var result core.Result
	err := store.View(context.Background(), func(v core.TransactionView) error {
		var evalErr error
		result, evalErr = engine.Evaluate(context.Background(), v, nil)
		return evalErr
	})
	if err != nil {
		return report{}, err
	}
	rep.Violations = result.Violations
	rep.Blocking = result.HasBlocking()
	return rep, nil
}
