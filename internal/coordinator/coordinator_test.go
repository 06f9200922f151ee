package coordinator

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/pkg/analyzer"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerEnv = "AUGUR_COORDINATOR_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		if err := ServeWorker(os.Stdin, os.Stdout, analyzer.DefaultRegistry()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func testLauncher() *ExecLauncher {
	return &ExecLauncher{Command: []string{os.Args[0]}, Env: []string{workerEnv + "=1"}}
}

type fakeDetector struct {
	id        string
	expensive bool
	issues    []graph.Issue
	err       error
	panics    bool
	block     chan struct{}
	calls     atomic.Int32
}

func (f *fakeDetector) ID() string      { return f.id }
func (f *fakeDetector) Expensive() bool { return f.expensive }

func (f *fakeDetector) Detect(*graph.CodeGraph) ([]graph.Issue, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	return f.issues, f.err
}

func issue(detectorID, id string) graph.Issue {
	return graph.Issue{ID: id, Detector: detectorID, Severity: graph.SeverityWarn, Message: id}
}

// sumFunc builds: def name(param): total = 0; for v in param: total += v; return total
func sumFunc(name, param, v string, line int) *syntax.Node {
	return syntax.Func(name, []string{param},
		syntax.Assign("=", syntax.Ident("total"), syntax.Num("0")).At(line+1, line+1),
		syntax.For(v, syntax.Ident(param),
			syntax.Assign("+=", syntax.Ident("total"), syntax.Ident(v)).At(line+3, line+3),
		).At(line+2, line+3),
		syntax.Return(syntax.Ident("total")).At(line+4, line+4),
	).At(line, line+4)
}

func cloneGraph() *graph.CodeGraph {
	b := graph.NewBuilder()
	add := func(module, file, name, param string, line int) {
		tree := sumFunc(name, param, "x", line)
		b.AddFile(file, graph.FileInfo{Hash: cache.HashBytes([]byte(file)), Language: "python"})
		b.Add(module, &graph.Symbol{
			FQName:     module + "." + name,
			Kind:       graph.KindFunction,
			Tree:       tree,
			Location:   graph.Location{File: file, Line: tree.Line, EndLine: tree.EndLine},
			References: []string{"helpers.total"},
		})
	}
	add("a", "a.py", "total", "xs", 1)
	add("b", "b.py", "total", "xs", 10)
	add("c", "c.py", "add_all", "items", 3)
	add("helpers", "helpers.py", "total", "values", 1)
	return b.Build()
}

func issueIDs(issues []graph.Issue) []string {
	ids := make([]string, len(issues))
	for i, is := range issues {
		ids[i] = is.ID
	}
	sort.Strings(ids)
	return ids
}

func realDetectors(t *testing.T) []detector.Detector {
	t.Helper()
	dets, err := analyzer.DefaultRegistry().Build(config.DefaultConfig())
	require.NoError(t, err)
	return dets
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":           ModeAuto,
		"auto":       ModeAuto,
		"Goroutine":  ModeGoroutine,
		"process":    ModeProcess,
		"SEQUENTIAL": ModeSequential,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("threads")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	c, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, c.Mode())
	assert.Equal(t, 4, c.workers)
	assert.Equal(t, 5*time.Minute, c.timeout)

	cfg.Parallel.Enabled = false
	c, err = FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ModeSequential, c.Mode())

	cfg.Parallel.Mode = "threads"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}

func TestSequentialAndPoolProduceSameIssues(t *testing.T) {
	g := cloneGraph()
	ctx := context.Background()

	seq := New(WithMode(ModeSequential)).Run(ctx, g, realDetectors(t))
	par := New(WithMode(ModeGoroutine), WithWorkers(4)).Run(ctx, g, realDetectors(t))

	assert.Equal(t, ModeSequential, seq.Mode)
	assert.Equal(t, ModeGoroutine, par.Mode)
	assert.Empty(t, seq.Failed())
	assert.Empty(t, par.Failed())
	require.NotEmpty(t, seq.Issues, "the graph contains exact clones")
	assert.Equal(t, issueIDs(seq.Issues), issueIDs(par.Issues))
	assert.Len(t, par.Results, 6)
}

func TestAutoRunsOnGoroutines(t *testing.T) {
	rep := New().Run(context.Background(), cloneGraph(), nil)
	assert.Equal(t, ModeGoroutine, rep.Mode)
	assert.Empty(t, rep.Results)
	assert.Empty(t, rep.Issues)
}

func TestFailuresAreIsolated(t *testing.T) {
	ok := &fakeDetector{id: "ok", issues: []graph.Issue{issue("ok", "ok:1")}}
	failing := &fakeDetector{id: "failing", err: errors.New("bad input")}
	panicking := &fakeDetector{id: "panicking", panics: true}

	for _, mode := range []Mode{ModeSequential, ModeGoroutine} {
		t.Run(string(mode), func(t *testing.T) {
			rep := New(WithMode(mode)).Run(context.Background(), cloneGraph(),
				[]detector.Detector{failing, ok, panicking})

			assert.Equal(t, []string{"ok:1"}, issueIDs(rep.Issues))
			require.Len(t, rep.Failed(), 2)
			for _, res := range rep.Results {
				switch res.Detector {
				case "failing":
					assert.ErrorContains(t, res.Err, "bad input")
				case "panicking":
					assert.ErrorIs(t, res.Err, ErrPanic)
					assert.Empty(t, res.Issues)
				case "ok":
					assert.NoError(t, res.Err)
				}
			}
		})
	}
}

func TestTimeoutAbandonsDetector(t *testing.T) {
	slow := &fakeDetector{id: "slow", block: make(chan struct{})}
	defer close(slow.block)
	fast := &fakeDetector{id: "fast", issues: []graph.Issue{issue("fast", "fast:1")}}

	rep := New(WithMode(ModeGoroutine), WithTimeout(50*time.Millisecond)).
		Run(context.Background(), cloneGraph(), []detector.Detector{slow, fast})

	assert.Equal(t, []string{"fast:1"}, issueIDs(rep.Issues))
	failed := rep.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "slow", failed[0].Detector)
	assert.ErrorIs(t, failed[0].Err, ErrTimeout)
}

func TestExpensiveDetectorsUseCache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	expensive := &fakeDetector{id: "expensive", expensive: true, issues: []graph.Issue{issue("expensive", "e:1")}}
	cheap := &fakeDetector{id: "cheap", issues: []graph.Issue{issue("cheap", "c:1")}}
	c := New(WithStore(store), WithMode(ModeSequential))
	g := cloneGraph()

	first := c.Run(context.Background(), g, []detector.Detector{expensive, cheap})
	assert.Equal(t, 0, first.CacheHits())

	second := c.Run(context.Background(), g, []detector.Detector{expensive, cheap})
	assert.Equal(t, 1, second.CacheHits())
	assert.Equal(t, []string{"c:1", "e:1"}, issueIDs(second.Issues))
	assert.Equal(t, int32(1), expensive.calls.Load())
	assert.Equal(t, int32(2), cheap.calls.Load(), "cheap detectors are never cached")
}

func TestFailedResultsAreNotCached(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	d := &fakeDetector{id: "flaky", expensive: true, err: errors.New("transient")}
	c := New(WithStore(store), WithMode(ModeSequential))
	c.Run(context.Background(), cloneGraph(), []detector.Detector{d})
	c.Run(context.Background(), cloneGraph(), []detector.Detector{d})
	assert.Equal(t, int32(2), d.calls.Load())
	assert.Zero(t, store.Stats(context.Background()).Entries)
}

func TestTrackerCountsDetectors(t *testing.T) {
	tr := analyzer.NewTracker(nil)
	ctx := analyzer.WithTracker(context.Background(), tr)
	dets := []detector.Detector{
		&fakeDetector{id: "a"},
		&fakeDetector{id: "b", err: errors.New("no")},
	}
	New().Run(ctx, cloneGraph(), dets)
	assert.Equal(t, 2, tr.Total())
	assert.Equal(t, 2, tr.Current())
	assert.Equal(t, 1, tr.Failed())
}

func TestProcessModeFallsBackWhenUnavailable(t *testing.T) {
	d := &fakeDetector{id: "ok", issues: []graph.Issue{issue("ok", "ok:1")}}
	rep := New(WithMode(ModeProcess), WithLauncher(&ExecLauncher{Command: []string{"/nonexistent/augur-worker"}})).
		Run(context.Background(), cloneGraph(), []detector.Detector{d})

	assert.True(t, rep.FellBack)
	assert.Equal(t, ModeSequential, rep.Mode)
	assert.Equal(t, []string{"ok:1"}, issueIDs(rep.Issues))
}

func TestProcessModeMatchesInProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns worker processes")
	}
	g := cloneGraph()
	ctx := context.Background()

	seq := New(WithMode(ModeSequential)).Run(ctx, g, realDetectors(t))
	proc := New(WithMode(ModeProcess), WithWorkers(4), WithLauncher(testLauncher())).Run(ctx, g, realDetectors(t))

	assert.False(t, proc.FellBack)
	assert.Equal(t, ModeProcess, proc.Mode)
	assert.Empty(t, proc.Failed())
	assert.Equal(t, issueIDs(seq.Issues), issueIDs(proc.Issues))
}

func TestProcessModeUnknownDetector(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns worker processes")
	}
	rep := New(WithMode(ModeProcess), WithLauncher(testLauncher())).
		Run(context.Background(), cloneGraph(), []detector.Detector{&fakeDetector{id: "not-registered"}})

	require.Len(t, rep.Failed(), 1)
	assert.ErrorContains(t, rep.Failed()[0].Err, "unknown detector")
}

func TestServeWorker(t *testing.T) {
	var in, out bytes.Buffer
	req := &Request{DetectorID: "exact-clones", Config: config.DefaultConfig(), Snapshot: cloneGraph().Snapshot()}
	require.NoError(t, gob.NewEncoder(&in).Encode(req))

	require.NoError(t, ServeWorker(&in, &out, analyzer.DefaultRegistry()))

	var resp Response
	require.NoError(t, gob.NewDecoder(&out).Decode(&resp))
	assert.Empty(t, resp.Err)
	require.NotEmpty(t, resp.Issues)
	for _, is := range resp.Issues {
		assert.Equal(t, "exact-clones", is.Detector)
	}
}

func TestServeWorkerRejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	err := ServeWorker(bytes.NewBufferString("not gob"), &out, analyzer.DefaultRegistry())
	assert.Error(t, err)
}
