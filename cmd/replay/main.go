package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ebrodeur/recoupement/internal/cache"
	"github.com/ebrodeur/recoupement/internal/config"
	"github.com/ebrodeur/recoupement/internal/pipeline"
	"github.com/ebrodeur/recoupement/internal/replay"
	"github.com/ebrodeur/recoupement/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to recoupement.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/recoupement.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	fixture, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	fmt.Printf("replaying fixture: %s (%d documents)\n", fixture.Description, len(fixture.Documents))
	return run(fixture)
}

// #endregion fixture-mode

// #region db-mode

// runDBMode re-runs every stored document through a fresh in-memory pipeline.
// The source database is only read, never written.
func runDBMode(path string) int {
	src, err := store.NewSQLiteStore(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer src.Close()

	docs, err := src.GetAllDocuments(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load documents: %v\n", err)
		return 2
	}
	if len(docs) == 0 {
		fmt.Fprintln(os.Stderr, "no documents found")
		return 0
	}
	fmt.Printf("replaying %d documents from %s\n", len(docs), path)
	return run(replay.FromDocuments(docs))
}

// #endregion db-mode

// #region run

func run(fixture *replay.Fixture) int {
	// Scratch database so the replay never touches live state.
	dir, err := os.MkdirTemp("", "recoupement-replay-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scratch dir: %v\n", err)
		return 2
	}
	defer os.RemoveAll(dir)

	scratch, err := store.NewSQLiteStore(filepath.Join(dir, "replay.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open scratch db: %v\n", err)
		return 2
	}
	defer scratch.Close()

	cfg := config.Default()
	orch := pipeline.New(scratch, cache.New(), nil, nil, cfg).
		WithProvenance(scratch.DB())
	harness := replay.NewHarness(orch, scratch)

	summary, steps, err := harness.Run(context.Background(), fixture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay aborted: %v\n", err)
		return 2
	}

	for _, step := range steps {
		switch {
		case step.Err != nil:
			fmt.Printf("  [%d] ERROR %v\n", step.Index, step.Err)
		case len(step.Mismatches) > 0:
			fmt.Printf("  [%d] DIVERGED %v\n", step.Index, step.Mismatches)
		default:
			shape := "isolated"
			if !step.Result.Isolated {
				shape = fmt.Sprintf("cluster size=%d", step.Result.ClusterSize)
			}
			fmt.Printf("  [%d] ok %s threats=+%d~%d requests=%d\n",
				step.Index, shape,
				len(step.Result.ThreatsCreated), len(step.Result.ThreatsUpdated),
				len(step.Result.CollectionRequests))
		}
	}

	fmt.Printf("done: %d documents, %d threats created, %d rescored, %d requests, %d errors, %d divergences\n",
		summary.Total, summary.ThreatsCreated, summary.ThreatsUpdated,
		summary.Requests, summary.Errors, summary.Mismatches)

	if summary.Errors > 0 || summary.Mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion run
