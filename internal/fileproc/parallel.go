// Package fileproc maps a function over files concurrently, giving each task
// its own tree-sitter parser.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/panbanda/augur/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError is the failure of one file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error { return e.Err }

// ProcessingErrors collects per-file failures. It is safe for concurrent use.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add records a failure for path.
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors reports whether any failure was recorded.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of failures.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

func (e *ProcessingErrors) sort() {
	sort.Slice(e.Errors, func(i, j int) bool { return e.Errors[i].Path < e.Errors[j].Path })
}

// DefaultWorkerMultiplier is applied to NumCPU when no worker count is given.
// Parsing mixes file I/O with CGO calls, so twice the core count keeps CPUs busy.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called once per file, whether it succeeded or not.
type ProgressFunc func()

// Options tunes MapFiles.
type Options struct {
	Workers    int // <= 0 means NumCPU * DefaultWorkerMultiplier
	OnProgress ProgressFunc
}

// MapFiles calls fn for every file on a bounded pool and returns the
// successful results in input order. Failures, including files skipped after
// ctx is cancelled, are collected into the returned ProcessingErrors, which
// is nil when every file succeeded.
func MapFiles[T any](ctx context.Context, files []string, opts Options, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(workers)
	for i, path := range files {
		p.Go(func() {
			defer func() {
				if opts.OnProgress != nil {
					opts.OnProgress()
				}
			}()
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				return
			}

			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, path)
			if err != nil {
				errs.Add(path, err)
				return
			}
			slots[i], ok[i] = result, true
		})
	}
	p.Wait()

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}
	if !errs.HasErrors() {
		return results, nil
	}
	errs.sort()
	return results, errs
}
