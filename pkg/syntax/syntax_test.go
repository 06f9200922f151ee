package syntax

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFunc() *Node {
	return Func("total_of", []string{"xs"},
		Assign("=", Ident("total"), Num("0")),
		For("x", Ident("xs"),
			Assign("+=", Ident("total"), Ident("x")),
		),
		Return(Ident("total")),
	)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "loop", KindLoop.String())
	assert.Equal(t, "kind(200)", Kind(200).String())
	assert.False(t, KindInvalid.Valid())
	assert.True(t, KindOther.Valid())
}

func TestPrint_Function(t *testing.T) {
	got, err := Print(sumFunc(), PrintOptions{})
	require.NoError(t, err)

	want := "def total_of(xs) {\n" +
		"  total = 0\n" +
		"  for x in xs {\n" +
		"    total += x\n" +
		"  }\n" +
		"  return total\n" +
		"}"
	assert.Equal(t, want, got)
}

func TestPrint_NestingSurvivesIndentLoss(t *testing.T) {
	after := Func("f", []string{"xs"},
		Assign("=", Ident("total"), Num("0")),
		For("x", Ident("xs"), Assign("+=", Ident("total"), Ident("x"))),
		Return(Ident("total")),
	)
	inside := Func("f", []string{"xs"},
		Assign("=", Ident("total"), Num("0")),
		For("x", Ident("xs"), Assign("+=", Ident("total"), Ident("x")), Return(Ident("total"))),
	)
	a, err := Print(after, PrintOptions{Indent: " "})
	require.NoError(t, err)
	b, err := Print(inside, PrintOptions{Indent: " "})
	require.NoError(t, err)

	flat := func(s string) string { return strings.Join(strings.Fields(s), "") }
	assert.NotEqual(t, flat(a), flat(b))
	assert.Equal(t, strings.Count(a, "{"), strings.Count(a, "}"))
}

func TestPrint_LoopHeaders(t *testing.T) {
	pairs := &Node{Kind: KindLoop, Text: "in", Children: []*Node{
		Param("i"), Param("x"), Call(Ident("enumerate"), Ident("xs")), Block(Return(Ident("x"))),
	}}
	got, err := Print(pairs, PrintOptions{})
	require.NoError(t, err)
	assert.Equal(t, "for i, x in enumerate(xs) {\n  return x\n}", got)

	clause := &Node{Kind: KindLoop, Text: "for", Children: []*Node{
		Assign(":=", Ident("i"), Num("0")),
		BinOp("<", Ident("i"), Ident("n")),
		{Kind: KindUnaryOp, Text: "++", Children: []*Node{Ident("i")}},
		Block(),
	}}
	got, err = Print(clause, PrintOptions{})
	require.NoError(t, err)
	assert.Equal(t, "for i := 0; (i < n); (++ i) {\n}", got)

	forever := &Node{Kind: KindLoop, Children: []*Node{Block(Expr(Call(Ident("tick"))))}}
	got, err = Print(forever, PrintOptions{})
	require.NoError(t, err)
	assert.Equal(t, "while {\n  tick()\n}", got)
}

func TestPrint_Comments(t *testing.T) {
	fn := Func("f", nil, Comment(" note "), Return(Num("1")))

	without, err := Print(fn, PrintOptions{})
	require.NoError(t, err)
	assert.NotContains(t, without, "note")

	with, err := Print(fn, PrintOptions{Comments: true})
	require.NoError(t, err)
	assert.Contains(t, with, "# note")
}

func TestPrint_Malformed(t *testing.T) {
	tests := []struct {
		name string
		node *Node
	}{
		{"nil statement", Func("f", nil, nil)},
		{"invalid kind", Func("f", nil, &Node{Kind: KindInvalid})},
		{"undeclared kind", Func("f", nil, Expr(&Node{Kind: Kind(99)}))},
		{"short assignment", Func("f", nil, &Node{Kind: KindAssign, Children: []*Node{Ident("a")}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Print(tt.node, PrintOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestPrint_BranchesAndTry(t *testing.T) {
	n := Func("g", []string{"a"},
		If(BinOp(">", Ident("a"), Num("0")),
			[]*Node{Return(Ident("a"))},
			[]*Node{Return(Num("0"))},
		),
		&Node{Kind: KindTry, Children: []*Node{
			Block(Expr(Call(Ident("work")))),
			{Kind: KindHandler, Text: "ValueError", Name: "e", Children: []*Node{&Node{Kind: KindRaise}}},
			Block(Expr(Call(Ident("cleanup")))),
		}},
	)
	got, err := Print(n, PrintOptions{})
	require.NoError(t, err)
	assert.Contains(t, got, "if (a > 0) {")
	assert.Contains(t, got, "} else {")
	assert.Contains(t, got, "try {")
	assert.Contains(t, got, "} except ValueError as e {")
	assert.Contains(t, got, "} finally {")
	assert.Equal(t, strings.Count(got, "{"), strings.Count(got, "}"))
}

func TestClone_IsDeep(t *testing.T) {
	orig := sumFunc()
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Children[0].Children[0].Name = "changed"
	cp.Params[0].Name = "ys"
	assert.Equal(t, "total", orig.Children[0].Children[0].Name)
	assert.Equal(t, "xs", orig.Params[0].Name)
}

func TestWalkAndCount(t *testing.T) {
	counts := Count(sumFunc())
	assert.Equal(t, 1, counts[KindFunction])
	assert.Equal(t, 1, counts[KindLoop])
	assert.Equal(t, 2, counts[KindAssign])
	assert.Equal(t, 1, counts[KindReturn])

	nested := Func("outer", nil, Func("inner", nil, For("i", Ident("r"))))
	counts = Count(nested)
	assert.Equal(t, 2, counts[KindFunction])
	assert.Zero(t, counts[KindLoop], "nested definitions are not descended")
}

func TestBodyAndLines(t *testing.T) {
	fn := sumFunc().At(3, 7)
	assert.Len(t, fn.Body(), 3)
	assert.Equal(t, 5, fn.Lines())
	assert.Len(t, fn.Children[1].Body(), 1)

	var nilNode *Node
	assert.Zero(t, nilNode.Lines())
	assert.Nil(t, nilNode.Body())
}
