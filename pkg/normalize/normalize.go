// Package normalize turns a symbol's syntax subtree into a comparison-ready form.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
)

// Sentinels substituted for literal values.
const (
	StringSentinel = "STRING_LITERAL"
	NumberSentinel = "0"
)

// Whitespace selects how the canonical text is post-processed.
type Whitespace int

const (
	WhitespaceKeep Whitespace = iota
	WhitespaceCollapse
	WhitespaceRemove
)

// ParseWhitespace converts a config string into a Whitespace mode.
func ParseWhitespace(s string) Whitespace {
	switch strings.ToLower(s) {
	case "keep":
		return WhitespaceKeep
	case "remove":
		return WhitespaceRemove
	default:
		return WhitespaceCollapse
	}
}

// Options toggles each normalization rule independently.
type Options struct {
	StripDocs         bool
	RenameIdentifiers bool
	ReplaceLiterals   bool
	StripComments     bool
	Whitespace        Whitespace
}

// Strict is the profile used for exact clone matching.
func Strict() Options {
	return Options{
		StripDocs:         true,
		RenameIdentifiers: true,
		ReplaceLiterals:   true,
		StripComments:     true,
		Whitespace:        WhitespaceCollapse,
	}
}

// Light strips literals, docs and comments but keeps identifiers.
func Light() Options {
	return Options{
		StripDocs:       true,
		ReplaceLiterals: true,
		StripComments:   true,
		Whitespace:      WhitespaceCollapse,
	}
}

// FromConfig maps the configured toggles onto Options.
func FromConfig(c config.NormalizeConfig) Options {
	return Options{
		StripDocs:         c.StripDocs,
		RenameIdentifiers: c.RenameIdentifiers,
		ReplaceLiterals:   c.ReplaceLiterals,
		StripComments:     c.StripComments,
		Whitespace:        ParseWhitespace(c.Whitespace),
	}
}

// Result is the normalized form of one subtree.
type Result struct {
	Text        string
	Fingerprint string
	// Degraded is set when the subtree could not be serialized and Text
	// holds the symbol's unmodified source instead.
	Degraded bool
}

// Normalizer applies a fixed set of options. It is stateless and safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New creates a normalizer.
func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Options returns the configured options.
func (n *Normalizer) Options() Options { return n.opts }

// Normalize normalizes a function-like or class-like symbol. The symbol's tree is not modified.
func (n *Normalizer) Normalize(sym *graph.Symbol) Result {
	return n.NormalizeNode(sym.Tree, sym.Source)
}

// NormalizeNode normalizes an arbitrary subtree, falling back to source when
// the subtree cannot be serialized.
func (n *Normalizer) NormalizeNode(tree *syntax.Node, source string) Result {
	if tree == nil {
		return n.degraded(source)
	}
	work := n.prepare(tree)
	text, err := syntax.Print(work, syntax.PrintOptions{Comments: !n.opts.StripComments})
	if err != nil {
		return n.degraded(source)
	}
	return Result{
		Text:        applyWhitespace(text, n.opts.Whitespace),
		Fingerprint: StructuralFingerprint(work),
	}
}

// Tokens returns the token stream of the normalized subtree.
func (n *Normalizer) Tokens(tree *syntax.Node, source string) []string {
	res := n.NormalizeNode(tree, source)
	return Tokenize(res.Text)
}

func (n *Normalizer) degraded(source string) Result {
	return Result{
		Text:        applyWhitespace(source, n.opts.Whitespace),
		Fingerprint: hashString(""),
		Degraded:    true,
	}
}

// prepare builds the transformed copy that gets printed.
func (n *Normalizer) prepare(tree *syntax.Node) *syntax.Node {
	work := tree.Clone()
	if work.Kind == syntax.KindClass {
		work.Children = classMembers(work.Children)
	}
	if work.Kind == syntax.KindFunction || work.Kind == syntax.KindClass {
		work.Name = ""
	}
	if n.opts.StripDocs {
		stripDocs(work)
	}
	if n.opts.ReplaceLiterals {
		syntax.Walk(work, func(node *syntax.Node) bool {
			switch node.Kind {
			case syntax.KindString:
				node.Text = StringSentinel
			case syntax.KindNumber:
				node.Text = NumberSentinel
			}
			return true
		})
	}
	if n.opts.RenameIdentifiers {
		renameLocals(work)
	}
	return work
}

// classMembers keeps method definitions and field assignments of a class body.
func classMembers(body []*syntax.Node) []*syntax.Node {
	kept := make([]*syntax.Node, 0, len(body))
	for _, c := range body {
		if c == nil {
			kept = append(kept, c)
			continue
		}
		switch c.Kind {
		case syntax.KindFunction, syntax.KindAssign:
			kept = append(kept, c)
		case syntax.KindBlock:
			kept = append(kept, classMembers(c.Children)...)
		}
	}
	return kept
}

// stripDocs removes leading documentation statements from every definition body.
func stripDocs(root *syntax.Node) {
	syntax.Walk(root, func(node *syntax.Node) bool {
		switch node.Kind {
		case syntax.KindFunction, syntax.KindClass, syntax.KindModule:
			i := 0
			for i < len(node.Children) && node.Children[i] != nil && node.Children[i].Kind == syntax.KindDoc {
				i++
			}
			node.Children = node.Children[i:]
		}
		return true
	})
}

// renameLocals replaces parameters and locally bound names with var_N
// placeholders numbered in first-seen (pre-order) order.
func renameLocals(root *syntax.Node) {
	locals := make(map[string]struct{})
	syntax.Walk(root, func(node *syntax.Node) bool {
		switch node.Kind {
		case syntax.KindParameter:
			if node.Name != "" {
				locals[node.Name] = struct{}{}
			}
		case syntax.KindHandler:
			if node.Name != "" {
				locals[node.Name] = struct{}{}
			}
		case syntax.KindAssign:
			last := len(node.Children) - 1
			for _, target := range node.Children[:max(last, 0)] {
				bindTargets(target, locals)
			}
		}
		return true
	})

	placeholders := make(map[string]string, len(locals))
	rename := func(name string) string {
		if _, ok := locals[name]; !ok {
			return name
		}
		if p, ok := placeholders[name]; ok {
			return p
		}
		p := "var_" + strconv.Itoa(len(placeholders))
		placeholders[name] = p
		return p
	}
	syntax.Walk(root, func(node *syntax.Node) bool {
		switch node.Kind {
		case syntax.KindIdent, syntax.KindParameter, syntax.KindHandler:
			if node.Name != "" {
				node.Name = rename(node.Name)
			}
		}
		return true
	})
}

func bindTargets(target *syntax.Node, locals map[string]struct{}) {
	if target == nil {
		return
	}
	switch target.Kind {
	case syntax.KindIdent:
		locals[target.Name] = struct{}{}
	case syntax.KindOther:
		for _, c := range target.Children {
			bindTargets(c, locals)
		}
	}
}

// StructuralFingerprint hashes the statement-kind sequence of a subtree into a short hex string.
func StructuralFingerprint(root *syntax.Node) string {
	var sb strings.Builder
	writeShape(&sb, root)
	return hashString(sb.String())
}

// writeShape writes the statement kinds of n in pre-order, bracketing the
// statements nested under each one.
func writeShape(sb *strings.Builder, n *syntax.Node) {
	if n == nil {
		return
	}
	stmt := n.Kind.IsStatement() && n.Kind != syntax.KindComment
	if stmt {
		sb.WriteString(n.Kind.String())
		sb.WriteByte('{')
	}
	for _, c := range n.Children {
		writeShape(sb, c)
	}
	if stmt {
		sb.WriteString("};")
	}
}

func hashString(s string) string {
	return fmt.Sprintf("%08x", uint32(xxhash.Sum64String(s)))
}

func applyWhitespace(text string, mode Whitespace) string {
	switch mode {
	case WhitespaceCollapse:
		lines := strings.Split(text, "\n")
		out := lines[:0]
		for _, l := range lines {
			if f := strings.Fields(l); len(f) > 0 {
				out = append(out, strings.Join(f, " "))
			}
		}
		return strings.Join(out, "\n")
	case WhitespaceRemove:
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, text)
	default:
		return text
	}
}
