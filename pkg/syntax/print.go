package syntax

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a subtree cannot be serialized.
var ErrMalformed = errors.New("malformed syntax tree")

// PrintOptions controls canonical serialization.
type PrintOptions struct {
	// Comments emits comment statements as "# text" lines.
	Comments bool
	// Indent is the per-level indentation (default two spaces).
	Indent string
}

// Print renders the subtree in a canonical, language-neutral textual form with
// one statement per line. Compound statements open with a header ending in
// "{" and close with a "}" line, so nesting survives whitespace removal. It
// fails with ErrMalformed on nil children or nodes carrying an undeclared kind.
func Print(n *Node, opts PrintOptions) (string, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	p := &printer{opts: opts}
	p.stmt(n, 0)
	if p.err != nil {
		return "", p.err
	}
	return strings.TrimRight(p.sb.String(), "\n"), nil
}

type printer struct {
	sb   strings.Builder
	opts PrintOptions
	err  error
}

func (p *printer) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
	}
}

func (p *printer) line(depth int, text string) {
	for range depth {
		p.sb.WriteString(p.opts.Indent)
	}
	p.sb.WriteString(text)
	p.sb.WriteByte('\n')
}

// open writes a header line and the statements nested under it, leaving the
// closing line to the caller.
func (p *printer) open(depth int, head string, body []*Node) {
	p.line(depth, head+" {")
	p.stmts(body, depth+1)
}

func (p *printer) close(depth int) { p.line(depth, "}") }

func (p *printer) stmts(nodes []*Node, depth int) {
	for _, c := range nodes {
		p.stmt(c, depth)
	}
}

func (p *printer) stmt(n *Node, depth int) {
	if p.err != nil {
		return
	}
	if n == nil {
		p.fail("nil statement")
		return
	}
	switch n.Kind {
	case KindModule, KindBlock:
		p.stmts(n.Children, depth)
	case KindFunction:
		p.open(depth, "def "+n.Name+"("+p.list(n.Params)+")", n.Children)
		p.close(depth)
	case KindClass:
		p.open(depth, "class "+n.Name+"("+p.list(n.Bases)+")", n.Children)
		p.close(depth)
	case KindIf:
		p.branch(n, depth)
	case KindLoop:
		p.loop(n, depth)
	case KindTry:
		p.try(n, depth)
	case KindHandler:
		p.open(depth, p.handlerHead(n), n.Children)
		p.close(depth)
	case KindReturn:
		p.keyword(depth, "return", n.Children)
	case KindRaise:
		p.keyword(depth, "raise", n.Children)
	case KindAssign, KindExprStmt:
		p.line(depth, p.simple(n))
	case KindDoc:
		p.line(depth, "doc "+strconv.Quote(n.Text))
	case KindComment:
		if p.opts.Comments {
			p.line(depth, "# "+strings.TrimSpace(n.Text))
		}
	case KindOther:
		p.other(n, depth)
	case KindParameter, KindCall, KindBinaryOp, KindUnaryOp, KindAttribute, KindIndex,
		KindIdent, KindString, KindNumber, KindLiteral:
		p.line(depth, p.expr(n))
	case KindInvalid:
		p.fail("invalid node")
	default:
		p.fail("unknown kind %d", n.Kind)
	}
}

func (p *printer) keyword(depth int, kw string, values []*Node) {
	if len(values) == 0 {
		p.line(depth, kw)
		return
	}
	p.line(depth, kw+" "+p.list(values))
}

func (p *printer) branch(n *Node, depth int) {
	var header []*Node
	blocks := 0
	for _, c := range n.Children {
		if c == nil {
			p.fail("nil branch child")
			return
		}
		if c.Kind != KindBlock {
			header = append(header, c)
			continue
		}
		switch blocks {
		case 0:
			p.open(depth, "if "+p.list(header), c.Children)
		default:
			p.open(depth, "} else", c.Children)
		}
		blocks++
	}
	if blocks == 0 {
		p.line(depth, "if "+p.list(header)+" {")
	}
	p.close(depth)
}

func (p *printer) loop(n *Node, depth int) {
	var header []*Node
	var body *Node
	for _, c := range n.Children {
		if c == nil {
			p.fail("nil loop child")
			return
		}
		if c.Kind == KindBlock && body == nil {
			body = c
			continue
		}
		header = append(header, c)
	}
	var head string
	switch {
	case n.Text == "for" && len(header) == 3:
		head = "for " + p.simple(header[0]) + "; " + p.expr(header[1]) + "; " + p.simple(header[2])
	case n.Text == "in" || (len(header) >= 2 && header[0].Kind == KindParameter):
		targets := 0
		for targets < len(header)-1 && header[targets].Kind == KindParameter {
			targets++
		}
		head = strings.TrimSpace("for "+p.list(header[:targets])) + " in " + p.list(header[targets:])
	case len(header) == 0:
		head = "while"
	default:
		head = "while " + p.list(header)
	}
	var stmts []*Node
	if body != nil {
		stmts = body.Children
	}
	p.open(depth, head, stmts)
	p.close(depth)
}

func (p *printer) try(n *Node, depth int) {
	blocks := 0
	opened := false
	cont := func(head string) string {
		if opened {
			return "} " + head
		}
		opened = true
		return head
	}
	for _, c := range n.Children {
		if c == nil {
			p.fail("nil try child")
			return
		}
		switch c.Kind {
		case KindBlock:
			head := "finally"
			if blocks == 0 {
				head = "try"
			}
			p.open(depth, cont(head), c.Children)
			blocks++
		case KindHandler:
			p.open(depth, cont(p.handlerHead(c)), c.Children)
		default:
			p.stmt(c, depth+1)
		}
	}
	if opened {
		p.close(depth)
	}
}

func (p *printer) handlerHead(n *Node) string {
	head := "except"
	if n.Text != "" {
		head += " " + n.Text
	}
	if n.Name != "" {
		head += " as " + n.Name
	}
	return head
}

func (p *printer) other(n *Node, depth int) {
	var inline, nested []*Node
	for _, c := range n.Children {
		if c == nil {
			p.fail("nil child of %s", n.Name)
			return
		}
		if c.Kind.IsStatement() && c.Kind != KindOther {
			nested = append(nested, c)
		} else {
			inline = append(inline, c)
		}
	}
	head := n.Name
	if len(inline) > 0 {
		head += " " + p.list(inline)
	} else if n.Text != "" {
		head += " " + n.Text
	}
	if len(nested) == 0 {
		p.line(depth, strings.TrimSpace(head))
		return
	}
	p.open(depth, strings.TrimSpace(head), nested)
	p.close(depth)
}

// simple renders an assignment or expression statement on one line. Other
// nodes render as expressions, which lets loop headers hold either.
func (p *printer) simple(n *Node) string {
	if n == nil {
		p.fail("nil statement")
		return ""
	}
	switch n.Kind {
	case KindAssign:
		if len(n.Children) < 2 {
			p.fail("assignment with %d operands", len(n.Children))
			return ""
		}
		last := len(n.Children) - 1
		op := n.Text
		if op == "" {
			op = "="
		}
		return p.list(n.Children[:last]) + " " + op + " " + p.expr(n.Children[last])
	case KindExprStmt:
		return p.list(n.Children)
	}
	return p.expr(n)
}

func (p *printer) list(nodes []*Node) string {
	parts := make([]string, 0, len(nodes))
	for _, c := range nodes {
		parts = append(parts, p.expr(c))
	}
	return strings.Join(parts, ", ")
}

func (p *printer) expr(n *Node) string {
	if n == nil {
		p.fail("nil expression")
		return ""
	}
	switch n.Kind {
	case KindIdent, KindParameter:
		return n.Name
	case KindString, KindNumber, KindLiteral:
		return n.Text
	case KindCall:
		if len(n.Children) == 0 {
			p.fail("call without callee")
			return ""
		}
		return p.expr(n.Children[0]) + "(" + p.list(n.Children[1:]) + ")"
	case KindBinaryOp:
		if len(n.Children) != 2 {
			p.fail("binary operator with %d operands", len(n.Children))
			return ""
		}
		return "(" + p.expr(n.Children[0]) + " " + n.Text + " " + p.expr(n.Children[1]) + ")"
	case KindUnaryOp:
		return "(" + n.Text + " " + p.list(n.Children) + ")"
	case KindAttribute:
		if len(n.Children) == 0 {
			return n.Name
		}
		return p.expr(n.Children[0]) + "." + n.Name
	case KindIndex:
		if len(n.Children) == 0 {
			p.fail("index without operand")
			return ""
		}
		return p.expr(n.Children[0]) + "[" + p.list(n.Children[1:]) + "]"
	case KindFunction:
		body := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			body = append(body, p.expr(c))
		}
		return "lambda(" + p.list(n.Params) + "): " + strings.Join(body, "; ")
	case KindClass:
		return "class " + n.Name
	case KindOther:
		if len(n.Children) == 0 {
			if n.Text != "" {
				return n.Text
			}
			return n.Name
		}
		return n.Name + "(" + p.list(n.Children) + ")"
	case KindBlock, KindModule, KindHandler:
		return p.list(n.Children)
	case KindIf, KindLoop, KindTry, KindReturn, KindRaise, KindAssign, KindExprStmt:
		return n.Kind.String() + "(" + p.list(n.Children) + ")"
	case KindDoc:
		return strconv.Quote(n.Text)
	case KindComment:
		return ""
	case KindInvalid:
		p.fail("invalid node")
		return ""
	default:
		p.fail("unknown kind %d", n.Kind)
		return ""
	}
}
