package graph

import (
	"bytes"
	"testing"

	"github.com/panbanda/augur/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(fq, file string, line int) *Symbol {
	return &Symbol{
		FQName:   fq,
		Kind:     KindFunction,
		Location: Location{File: file, Line: line, EndLine: line + 2},
		Tree:     syntax.Func(fq, []string{"a"}, syntax.Return(syntax.Ident("a"))),
	}
}

func TestBuilder_StableOrder(t *testing.T) {
	g1 := NewBuilder().
		Add("b", sym("b.f", "b.py", 1)).
		Add("a", sym("a.g", "a.py", 10)).
		Add("a", sym("a.f", "a.py", 2)).
		Build()
	g2 := NewBuilder().
		Add("a", sym("a.f", "a.py", 2)).
		Add("a", sym("a.g", "a.py", 10)).
		Add("b", sym("b.f", "b.py", 1)).
		Build()

	require.Equal(t, 3, g1.Len())
	for i := range g1.Len() {
		assert.Equal(t, g1.At(i).FQName, g2.At(i).FQName)
	}
	assert.Equal(t, "a.f", g1.At(0).FQName)
	assert.Equal(t, 2, g1.Index("b.f"))
	assert.Equal(t, -1, g1.Index("missing"))
	assert.Equal(t, []string{"a", "b"}, g1.Modules())
	assert.Equal(t, []string{"a.f", "a.g"}, g1.ModuleSymbols("a"))
	assert.Equal(t, []string{"a.py", "b.py"}, g1.FilePaths())
}

func TestSymbol_Identity(t *testing.T) {
	a := sym("pkg.mod.f", "m.py", 3)
	b := sym("pkg.mod.f", "m.py", 3)
	c := sym("pkg.mod.f", "m.py", 4)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "f", a.Name())
}

func TestBuilder_QualifiesCollidingNames(t *testing.T) {
	b := NewBuilder().
		Add("p", sym("p.init", "p/a.go", 3)).
		Add("p", sym("p.init", "p/b.go", 3)).
		Add("p", sym("p.init", "p/a.go", 3))
	g := b.Build()

	require.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"p.init#p/b.go:3"}, b.Renamed())
	dup, ok := g.Symbol("p.init#p/b.go:3")
	require.True(t, ok)
	assert.Equal(t, "init", dup.Name())
	assert.Equal(t, "p.init", BaseName(dup.FQName))
	assert.Equal(t, "p", g.ModuleOf(dup.FQName))
	assert.Equal(t, []string{"p.init", "p.init#p/b.go:3"}, g.ModuleSymbols("p"))
}

func TestModuleOf(t *testing.T) {
	g := NewBuilder().
		Add("pkg", sym("pkg.f", "pkg.py", 1)).
		Add("pkg.sub", sym("pkg.sub.Cls.m", "sub.py", 1)).
		Build()
	assert.Equal(t, "pkg.sub", g.ModuleOf("pkg.sub.Cls.m"))
	assert.Equal(t, "pkg", g.ModuleOf("pkg.f"))
	assert.Equal(t, "", g.ModuleOf("other.f"))
}

func TestLocation(t *testing.T) {
	a := Location{File: "x.py", Line: 3, EndLine: 8}
	b := Location{File: "x.py", Line: 8, EndLine: 10}
	c := Location{File: "x.py", Line: 9, EndLine: 10}
	d := Location{File: "y.py", Line: 3, EndLine: 8}
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
	assert.False(t, a.Overlaps(d))
	assert.Equal(t, 6, a.Lines())
	assert.Equal(t, "x.py:3-8", a.String())
	assert.Equal(t, "y.py:4", Location{File: "y.py", Line: 4}.String())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := sym("m.f", "m.py", 1)
	s.References = []string{"m.g"}
	s.Metadata = map[string]any{"language": "python"}
	g := NewBuilder().
		AddFile("m.py", FileInfo{Hash: "abc", Language: "python"}).
		Add("m", s).
		Add("m", sym("m.g", "m.py", 5)).
		Build()

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, g))
	got, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	require.Equal(t, g.Len(), got.Len())
	f, ok := got.Symbol("m.f")
	require.True(t, ok)
	assert.Equal(t, []string{"m.g"}, f.References)
	assert.Equal(t, "python", f.Metadata["language"])
	assert.Equal(t, syntax.KindFunction, f.Tree.Kind)
	assert.Equal(t, []string{"m.f", "m.g"}, got.ModuleSymbols("m"))
	assert.Equal(t, "abc", got.Files()["m.py"].Hash)
}

func TestSeverity(t *testing.T) {
	sev, err := ParseSeverity("WARNING")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarn, sev)
	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
	assert.Greater(t, SeverityError.Rank(), SeverityWarn.Rank())
}

func TestSortIssues(t *testing.T) {
	issues := []Issue{
		{ID: "b", Location: &Location{File: "b.py", Line: 1}},
		{ID: "a2", Location: &Location{File: "a.py", Line: 9}},
		{ID: "a1", Location: &Location{File: "a.py", Line: 2}},
		{ID: "none"},
	}
	SortIssues(issues)
	ids := []string{issues[0].ID, issues[1].ID, issues[2].ID, issues[3].ID}
	assert.Equal(t, []string{"none", "a1", "a2", "b"}, ids)
}
