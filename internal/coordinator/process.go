package coordinator

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
)

// Request is what a worker process reads from stdin.
type Request struct {
	DetectorID string
	Config     *config.Config
	Snapshot   *graph.Snapshot
}

// Response is what a worker process writes to stdout.
type Response struct {
	Issues []graph.Issue
	Err    string
}

// Launcher runs one detector in a separate process.
type Launcher interface {
	// Preflight reports whether workers can be started at all.
	Preflight() error
	// Launch runs the request in a fresh worker and returns its issues.
	Launch(ctx context.Context, req *Request) ([]graph.Issue, error)
}

// ExecLauncher starts Command (argv) with Env appended to the parent environment.
type ExecLauncher struct {
	Command []string
	Env     []string
}

// SelfLauncher re-executes the running binary as `<self> worker`.
func SelfLauncher() (*ExecLauncher, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessUnavailable, err)
	}
	return &ExecLauncher{Command: []string{self, "worker"}}, nil
}

// Preflight checks that the worker command resolves to an executable.
func (l *ExecLauncher) Preflight() error {
	if len(l.Command) == 0 {
		return fmt.Errorf("%w: empty worker command", ErrProcessUnavailable)
	}
	if _, err := exec.LookPath(l.Command[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessUnavailable, err)
	}
	return nil
}

// Launch writes req to a new worker and decodes its response. The worker is
// killed when ctx is done.
func (l *ExecLauncher) Launch(ctx context.Context, req *Request) ([]graph.Issue, error) {
	var stdin bytes.Buffer
	if err := gob.NewEncoder(&stdin).Encode(req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.Command[0], l.Command[1:]...)
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("worker: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := gob.NewDecoder(&stdout).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Err != "" {
		return nil, errors.New(resp.Err)
	}
	return resp.Issues, nil
}

// ServeWorker handles exactly one request: it decodes a Request from r,
// builds the detector from reg, runs it and writes a Response to w. Detector
// failures travel in the Response; the returned error covers only I/O.
func ServeWorker(r io.Reader, w io.Writer, reg *detector.Registry) error {
	var req Request
	if err := gob.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	resp := Response{}
	cfg := req.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d, err := reg.New(req.DetectorID, cfg)
	if err == nil && req.Snapshot == nil {
		err = errors.New("request has no graph snapshot")
	}
	if err == nil {
		resp.Issues, err = SafeDetect(d, req.Snapshot.Graph())
	}
	if err != nil {
		resp.Err = err.Error()
	}

	if err := gob.NewEncoder(w).Encode(&resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
