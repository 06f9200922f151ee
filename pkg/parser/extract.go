package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Definition is a function, method or class found in a file.
type Definition struct {
	Name    string // qualified within the file, e.g. "Stack.push"
	Parent  string // enclosing class or receiver, empty at top level
	Kind    graph.SymbolKind
	Tree    *syntax.Node
	Line    int
	EndLine int
	Col     int
	Doc     string
	Source  string
}

// File is the lowered form of one source file.
type File struct {
	Path        string
	Language    Language
	Module      *syntax.Node
	Definitions []Definition
	Imports     []Import
}

// importName names the Other nodes that carry one imported module.
const importName = "import"

// Lower converts a parse result into the language-neutral tree and extracts
// its definitions and imports.
func Lower(result *ParseResult) *File {
	module := LowerTree(result)
	return &File{
		Path:        result.Path,
		Language:    result.Language,
		Module:      module,
		Imports:     Imports(module),
		Definitions: Extract(module, result.Source),
	}
}

// LowerTree converts a parse result into a Module node.
func LowerTree(result *ParseResult) *syntax.Node {
	l := &lowerer{src: result.Source, lang: result.Language}
	root := result.Tree.RootNode()

	module := &syntax.Node{Kind: syntax.KindModule, Name: result.Path}
	l.span(module, root)
	module.Line = 1
	module.Children = l.docBody(l.topLevel(root))
	return module
}

// LowerFile parses and lowers the file at path.
func (p *Parser) LowerFile(path string) (*File, error) {
	result, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Lower(result), nil
}

// LowerSource parses and lowers source as lang.
func (p *Parser) LowerSource(source []byte, lang Language, path string) (*File, error) {
	result, err := p.Parse(source, lang, path)
	if err != nil {
		return nil, err
	}
	if result.Tree == nil {
		return nil, fmt.Errorf("no syntax tree for %s", path)
	}
	return Lower(result), nil
}

// topLevel lowers the root's children, looking through namespace wrappers.
func (l *lowerer) topLevel(root *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range namedChildren(root) {
		switch c.Type() {
		case "package_clause", "package_declaration":
			continue
		case "namespace_declaration", "file_scoped_namespace_declaration", "namespace_definition":
			if body := field(c, "body"); body != nil {
				out = append(out, l.topLevel(body)...)
				continue
			}
		}
		if s := l.lower(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Extract walks a lowered module and collects its named definitions. src is
// the file content the module was lowered from.
func Extract(module *syntax.Node, src []byte) []Definition {
	lines := strings.Split(string(src), "\n")
	var defs []Definition

	var visit func(stmts []*syntax.Node, scope string, inClass bool, prev *syntax.Node)
	visit = func(stmts []*syntax.Node, scope string, inClass bool, prev *syntax.Node) {
		for _, n := range stmts {
			switch n.Kind {
			case syntax.KindFunction, syntax.KindClass:
				if n.Name == "" {
					break
				}
				def := Definition{
					Name:    n.Name,
					Parent:  scope,
					Kind:    graph.KindFunction,
					Tree:    n,
					Line:    n.Line,
					EndLine: n.EndLine,
					Col:     n.Col,
					Doc:     docOf(n, prev),
					Source:  sourceLines(lines, n.Line, n.EndLine),
				}
				switch {
				case n.Kind == syntax.KindClass:
					def.Kind = graph.KindClass
				case n.Text != "":
					// method declared outside its type, e.g. Go receivers
					def.Parent = n.Text
					def.Kind = graph.KindMethod
				case inClass:
					def.Kind = graph.KindMethod
				}
				if def.Parent != "" {
					def.Name = def.Parent + "." + n.Name
				}
				defs = append(defs, def)
				visit(n.Children, def.Name, n.Kind == syntax.KindClass, nil)
			case syntax.KindOther, syntax.KindBlock:
				// export statements, type declarations and namespaces wrap definitions
				visit(n.Children, scope, inClass, prev)
			case syntax.KindAssign:
				// const add = (a, b) => a + b
				visit(n.Children[len(n.Children)-1:], scope, inClass, prev)
			}
			prev = n
		}
	}
	visit(module.Children, "", false, nil)

	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Line != defs[j].Line {
			return defs[i].Line < defs[j].Line
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Imports lists the modules a lowered module imports, in source order.
// Ruby require calls count as imports.
func Imports(module *syntax.Node) []Import {
	var out []Import
	syntax.Walk(module, func(n *syntax.Node) bool {
		switch n.Kind {
		case syntax.KindOther:
			if n.Name != importName {
				return true
			}
			imp := Import{Module: n.Text, Line: n.Line}
			for _, c := range n.Children {
				imp.Names = append(imp.Names, c.Name)
			}
			out = append(out, imp)
			return false
		case syntax.KindCall:
			if len(n.Children) == 2 && n.Children[0].Kind == syntax.KindIdent && n.Children[1].Kind == syntax.KindString {
				switch n.Children[0].Name {
				case "require", "require_relative":
					out = append(out, Import{Module: unquote(n.Children[1].Text), Line: n.Line})
				}
			}
		}
		return true
	})
	return out
}

// docOf returns the docstring of n, or the comment directly above it.
func docOf(n, prev *syntax.Node) string {
	if len(n.Children) > 0 && n.Children[0].Kind == syntax.KindDoc {
		return n.Children[0].Text
	}
	if prev != nil && prev.Kind == syntax.KindComment && prev.EndLine >= n.Line-1 {
		return prev.Text
	}
	return ""
}

func sourceLines(lines []string, start, end int) string {
	if start < 1 || start > len(lines) {
		return ""
	}
	if end < start {
		end = start
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// References returns the names a tree refers to: identifiers, attribute
// names and dotted "object.attribute" chains rooted at an identifier. The
// result is deduplicated and sorted.
func References(tree *syntax.Node) []string {
	seen := make(map[string]struct{})
	syntax.Walk(tree, func(n *syntax.Node) bool {
		switch n.Kind {
		case syntax.KindIdent:
			seen[n.Name] = struct{}{}
		case syntax.KindAttribute:
			seen[n.Name] = struct{}{}
			if chain := dotted(n); chain != "" {
				seen[chain] = struct{}{}
			}
		}
		return true
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func dotted(n *syntax.Node) string {
	switch n.Kind {
	case syntax.KindIdent:
		return n.Name
	case syntax.KindAttribute:
		if len(n.Children) == 0 {
			return ""
		}
		if base := dotted(n.Children[0]); base != "" {
			return base + "." + n.Name
		}
	}
	return ""
}
