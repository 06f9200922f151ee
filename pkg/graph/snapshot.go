package graph

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Snapshot is the serializable form of a CodeGraph, used when a detector runs
// in a separate worker process.
type Snapshot struct {
	Symbols []Symbol
	Modules map[string][]string
	Files   map[string]FileInfo
}

// Snapshot captures the graph. Symbol trees are shared, not copied; the graph is read-only.
func (g *CodeGraph) Snapshot() *Snapshot {
	s := &Snapshot{
		Symbols: make([]Symbol, len(g.arena)),
		Modules: g.modules,
		Files:   g.files,
	}
	for i, sym := range g.arena {
		s.Symbols[i] = *sym
	}
	return s
}

// Graph rebuilds a CodeGraph from the snapshot.
func (s *Snapshot) Graph() *CodeGraph {
	b := NewBuilder()
	for p, info := range s.Files {
		b.AddFile(p, info)
	}
	owner := make(map[string]string)
	for m, members := range s.Modules {
		for _, fq := range members {
			owner[fq] = m
		}
	}
	for i := range s.Symbols {
		sym := s.Symbols[i]
		b.Add(owner[sym.FQName], &sym)
	}
	for m := range s.Modules {
		if _, ok := b.modules[m]; !ok {
			b.modules[m] = make(map[string]struct{})
		}
	}
	return b.Build()
}

// EncodeSnapshot writes the graph to w.
func EncodeSnapshot(w io.Writer, g *CodeGraph) error {
	if err := gob.NewEncoder(w).Encode(g.Snapshot()); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a graph written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*CodeGraph, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Graph(), nil
}
