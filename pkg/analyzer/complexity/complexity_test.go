package complexity

import (
	"testing"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
)

func branchy(n int) *syntax.Node {
	var body []*syntax.Node
	for i := 0; i < n; i++ {
		body = append(body, syntax.If(syntax.Ident("x"), []*syntax.Node{syntax.Return()}, nil))
	}
	return syntax.Func("f", []string{"x"}, body...).At(1, n+1)
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name           string
		tree           *syntax.Node
		wantCyclomatic int
		wantNesting    int
	}{
		{"empty", syntax.Func("f", nil, syntax.Return()), 1, 0},
		{"two ifs", branchy(2), 3, 1},
		{
			"bool operators",
			syntax.Func("f", nil, syntax.If(syntax.BinOp("and", syntax.Ident("a"), syntax.BinOp("or", syntax.Ident("b"), syntax.Ident("c"))), nil, nil)),
			4, 1,
		},
		{
			"nested loop",
			syntax.Func("f", nil, syntax.For("i", syntax.Ident("xs"), syntax.While(syntax.Ident("ok")))),
			3, 2,
		},
		{
			"nested def ignored",
			syntax.Func("outer", nil, syntax.Func("inner", nil, syntax.If(syntax.Ident("x"), nil, nil))),
			1, 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Measure(tt.tree)
			if m.Cyclomatic != tt.wantCyclomatic {
				t.Errorf("Cyclomatic = %d, want %d", m.Cyclomatic, tt.wantCyclomatic)
			}
			if m.MaxNesting != tt.wantNesting {
				t.Errorf("MaxNesting = %d, want %d", m.MaxNesting, tt.wantNesting)
			}
		})
	}
}

func TestDetector(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Complexity.Threshold = 3

	b := graph.NewBuilder()
	for _, s := range []struct {
		name string
		ifs  int
	}{{"simple", 1}, {"busy", 4}, {"awful", 9}} {
		tree := branchy(s.ifs)
		b.Add("m", &graph.Symbol{
			FQName:   "m." + s.name,
			Kind:     graph.KindFunction,
			Tree:     tree,
			Location: graph.Location{File: "m.py", Line: s.ifs * 10, EndLine: s.ifs*10 + s.ifs},
		})
	}

	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	issues, err := d.Detect(b.Build())
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
	if issues[0].Symbol != "m.busy" || issues[0].Severity != graph.SeverityWarn {
		t.Errorf("issues[0] = %s %s, want m.busy warn", issues[0].Symbol, issues[0].Severity)
	}
	if issues[1].Symbol != "m.awful" || issues[1].Severity != graph.SeverityError {
		t.Errorf("issues[1] = %s %s, want m.awful error", issues[1].Symbol, issues[1].Severity)
	}

	cfg.Complexity.Threshold = 0
	if _, err := New(cfg); err == nil {
		t.Error("New() should reject a non-positive threshold")
	}
}
