package cycles

import (
	"testing"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(fq, file string, refs ...string) *graph.Symbol {
	return &graph.Symbol{FQName: fq, Kind: graph.KindFunction, Location: graph.Location{File: file, Line: 3}, References: refs}
}

func TestCycles(t *testing.T) {
	b := graph.NewBuilder()
	b.Add("a", sym("a.f", "a.py", "b.g"))
	b.Add("b", sym("b.g", "b.py", "c.h"))
	b.Add("c", sym("c.h", "c.py", "a.f"))
	b.Add("d", sym("d.k", "d.py", "a.f", "d.k"))
	b.Add("e", sym("e.x", "e.py", "f.y"))
	b.Add("f", sym("f.y", "f.py", "e.x"))
	g := b.Build()

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"e", "f"}}, Cycles(g))

	d, err := New(config.DefaultConfig())
	require.NoError(t, err)
	issues, err := d.Detect(g)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, graph.SeverityWarn, issues[0].Severity)
	assert.Equal(t, "a", issues[0].Symbol)
	require.NotNil(t, issues[0].Location)
	assert.Equal(t, "a.py", issues[0].Location.File)
	assert.Len(t, issues[0].Related, 2)
	assert.Contains(t, issues[0].Message, "a <-> b <-> c")
}

func TestCycles_Acyclic(t *testing.T) {
	b := graph.NewBuilder()
	b.Add("a", sym("a.f", "a.py", "b.g"))
	b.Add("b", sym("b.g", "b.py"))
	assert.Empty(t, Cycles(b.Build()))
}
