// Package detector defines the analysis pass contract and the registry that
// maps detector ids to constructors.
package detector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/graph"
)

// ErrUnknownDetector is returned when an id has no registered factory.
var ErrUnknownDetector = errors.New("unknown detector")

// Detector is one analysis pass over a read-only CodeGraph.
//
// Detect must not mutate the graph and must not block on I/O; the
// coordinator relies on both to share one graph across concurrent passes.
type Detector interface {
	// ID is the stable identifier used for configuration, caching and issue ids.
	ID() string

	// Expensive reports whether results should go through the persistent cache.
	Expensive() bool

	// Detect returns the issues found in g.
	Detect(g *graph.CodeGraph) ([]graph.Issue, error)
}

// Factory builds a configured detector.
type Factory func(cfg *config.Config) (Detector, error)

// Info describes a registered detector.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Expensive   bool   `json:"expensive" yaml:"expensive"`
	Duplicates  bool   `json:"duplicates" yaml:"duplicates"`
}

type entry struct {
	info    Info
	factory Factory
}

// Registry maps detector ids to factories. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a factory. Registering the same id twice is an error.
func (r *Registry) Register(info Info, f Factory) error {
	if info.ID == "" {
		return errors.New("detector id is empty")
	}
	if f == nil {
		return fmt.Errorf("detector %s: nil factory", info.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[info.ID]; ok {
		return fmt.Errorf("detector %s already registered", info.ID)
	}
	r.entries[info.ID] = entry{info: info, factory: f}
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(info Info, f Factory) {
	if err := r.Register(info, f); err != nil {
		panic(err)
	}
}

// New constructs the detector registered under id.
func (r *Registry) New(id string, cfg *config.Config) (Detector, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDetector, id)
	}
	d, err := e.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build detector %s: %w", id, err)
	}
	return d, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Describe returns the info of every registered detector, sorted by id.
func (r *Registry) Describe() []Info {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id].info)
	}
	return out
}

// Build constructs the detectors named in ids, or every detector enabled by
// cfg when ids is empty. Unknown ids fail the whole build.
func (r *Registry) Build(cfg *config.Config, ids ...string) ([]Detector, error) {
	if len(ids) == 0 {
		for _, id := range r.IDs() {
			if cfg.DetectorEnabled(id) {
				ids = append(ids, id)
			}
		}
	}
	out := make([]Detector, 0, len(ids))
	for _, id := range ids {
		d, err := r.New(id, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// DuplicateIDs returns the ids of the registered clone detectors.
func (r *Registry) DuplicateIDs() []string {
	var ids []string
	for _, info := range r.Describe() {
		if info.Duplicates {
			ids = append(ids, info.ID)
		}
	}
	return ids
}

// IssueID derives a deterministic issue id from the detector id and the
// identities of the symbols or spans involved.
func IssueID(detectorID string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("%s:%016x", detectorID, h.Sum64())
}

// IdentityKey renders a symbol identity for use with IssueID.
func IdentityKey(id graph.Identity) string {
	var sb strings.Builder
	sb.WriteString(id.File)
	sb.WriteByte(':')
	fmt.Fprintf(&sb, "%d", id.Line)
	sb.WriteByte(':')
	sb.WriteString(id.FQName)
	return sb.String()
}
