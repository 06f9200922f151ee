// Package syntax defines the language-neutral syntax tree that detectors inspect.
//
// Every parsed language is lowered into the same small set of node kinds so
// that normalizers and signature extractors can switch over Kind exhaustively
// instead of inspecting grammar-specific type names.
package syntax

import "fmt"

// Kind tags the variant a Node represents.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindModule
	KindFunction
	KindClass
	KindParameter
	KindBlock
	KindIf
	KindLoop
	KindTry
	KindHandler
	KindReturn
	KindRaise
	KindAssign
	KindExprStmt
	KindCall
	KindBinaryOp
	KindUnaryOp
	KindAttribute
	KindIndex
	KindIdent
	KindString
	KindNumber
	KindLiteral
	KindComment
	KindDoc
	KindOther

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:   "invalid",
	KindModule:    "module",
	KindFunction:  "function",
	KindClass:     "class",
	KindParameter: "parameter",
	KindBlock:     "block",
	KindIf:        "if",
	KindLoop:      "loop",
	KindTry:       "try",
	KindHandler:   "handler",
	KindReturn:    "return",
	KindRaise:     "raise",
	KindAssign:    "assign",
	KindExprStmt:  "expr",
	KindCall:      "call",
	KindBinaryOp:  "binop",
	KindUnaryOp:   "unop",
	KindAttribute: "attr",
	KindIndex:     "index",
	KindIdent:     "ident",
	KindString:    "string",
	KindNumber:    "number",
	KindLiteral:   "literal",
	KindComment:   "comment",
	KindDoc:       "doc",
	KindOther:     "other",
}

// String returns the short name of the kind.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// IsStatement reports whether nodes of this kind appear as statements in a block.
func (k Kind) IsStatement() bool {
	switch k {
	case KindFunction, KindClass, KindIf, KindLoop, KindTry, KindReturn, KindRaise,
		KindAssign, KindExprStmt, KindDoc, KindComment, KindOther, KindBlock:
		return true
	case KindInvalid, KindModule, KindParameter, KindHandler, KindCall, KindBinaryOp,
		KindUnaryOp, KindAttribute, KindIndex, KindIdent, KindString, KindNumber, KindLiteral:
		return false
	}
	return false
}

// Node is one element of the lowered syntax tree.
//
// The meaning of Name and Text depends on Kind:
//
//	Function, Class, Parameter: Name is the declared name
//	Function:                   Text is the receiver type of a method declared outside its class
//	Ident, Attribute:           Name is the referenced name (Attribute keeps its object in Children[0])
//	Handler:                    Name is the bound exception variable, if any
//	String, Number, Literal:    Text is the literal source text
//	BinaryOp, UnaryOp, Assign:  Text is the operator ("=", "+=", "and", ...)
//	Comment, Doc:               Text is the comment or docstring body
//	Other:                      Name is the grammar type, Text is the leaf text when there are no children
//
// Statement containers (Module, Function, Class, Block, If, Loop, Try, Handler)
// keep their statements in Children. If is [cond, then-block, else-block?];
// Loop is [target?, iter?, body-block] with targets marked by a leading Parameter;
// Try is [body-block, handlers..., finally-block?].
type Node struct {
	Kind     Kind
	Name     string
	Text     string
	Line     int // 1-based
	EndLine  int // 1-based, inclusive
	Col      int // 0-based
	Params   []*Node
	Bases    []*Node
	Children []*Node
}

// New creates a node of the given kind.
func New(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

// Ident creates an identifier reference.
func Ident(name string) *Node { return &Node{Kind: KindIdent, Name: name} }

// Str creates a string literal node.
func Str(text string) *Node { return &Node{Kind: KindString, Text: text} }

// Num creates a numeric literal node.
func Num(text string) *Node { return &Node{Kind: KindNumber, Text: text} }

// Param creates a parameter declaration.
func Param(name string) *Node { return &Node{Kind: KindParameter, Name: name} }

// Block groups statements.
func Block(stmts ...*Node) *Node { return &Node{Kind: KindBlock, Children: stmts} }

// Func creates a function definition with the given parameters and body statements.
func Func(name string, params []string, body ...*Node) *Node {
	n := &Node{Kind: KindFunction, Name: name, Children: body}
	for _, p := range params {
		n.Params = append(n.Params, Param(p))
	}
	return n
}

// Class creates a class definition.
func Class(name string, bases []*Node, body ...*Node) *Node {
	return &Node{Kind: KindClass, Name: name, Bases: bases, Children: body}
}

// Assign creates an assignment statement target op value.
func Assign(op string, target, value *Node) *Node {
	return &Node{Kind: KindAssign, Text: op, Children: []*Node{target, value}}
}

// BinOp creates a binary expression.
func BinOp(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinaryOp, Text: op, Children: []*Node{left, right}}
}

// Call creates a call expression.
func Call(callee *Node, args ...*Node) *Node {
	return &Node{Kind: KindCall, Children: append([]*Node{callee}, args...)}
}

// Return creates a return statement.
func Return(value ...*Node) *Node { return &Node{Kind: KindReturn, Children: value} }

// For creates a loop binding target over iter.
func For(target string, iter *Node, body ...*Node) *Node {
	return &Node{Kind: KindLoop, Text: "in", Children: []*Node{Param(target), iter, Block(body...)}}
}

// While creates a condition-controlled loop.
func While(cond *Node, body ...*Node) *Node {
	return &Node{Kind: KindLoop, Children: []*Node{cond, Block(body...)}}
}

// If creates a branch with an optional else block.
func If(cond *Node, then []*Node, els []*Node) *Node {
	n := &Node{Kind: KindIf, Children: []*Node{cond, Block(then...)}}
	if els != nil {
		n.Children = append(n.Children, Block(els...))
	}
	return n
}

// Expr wraps an expression as a statement.
func Expr(e *Node) *Node { return &Node{Kind: KindExprStmt, Children: []*Node{e}} }

// Doc creates a documentation statement.
func Doc(text string) *Node { return &Node{Kind: KindDoc, Text: text} }

// Comment creates a comment statement.
func Comment(text string) *Node { return &Node{Kind: KindComment, Text: text} }

// At sets the source span of n and returns it.
func (n *Node) At(line, endLine int) *Node {
	n.Line = line
	n.EndLine = endLine
	return n
}

// Lines returns the number of source lines spanned by the node.
func (n *Node) Lines() int {
	if n == nil || n.Line == 0 {
		return 0
	}
	if n.EndLine < n.Line {
		return 1
	}
	return n.EndLine - n.Line + 1
}

// Body returns the statements of a definition or block.
// For If, Loop and Try it returns the first block's statements.
func (n *Node) Body() []*Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindModule, KindFunction, KindClass, KindBlock, KindHandler:
		return n.Children
	case KindIf, KindLoop, KindTry:
		for _, c := range n.Children {
			if c != nil && c.Kind == KindBlock {
				return c.Children
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Params = cloneAll(n.Params)
	cp.Bases = cloneAll(n.Bases)
	cp.Children = cloneAll(n.Children)
	return &cp
}

func cloneAll(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, c := range nodes {
		out[i] = c.Clone()
	}
	return out
}

// Visitor is called for each node in pre-order. Returning false skips the node's children.
type Visitor func(n *Node) bool

// Walk traverses the subtree in pre-order: Params, Bases, then Children.
func Walk(n *Node, visit Visitor) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Params {
		Walk(c, visit)
	}
	for _, c := range n.Bases {
		Walk(c, visit)
	}
	for _, c := range n.Children {
		Walk(c, visit)
	}
}

// Count returns the number of nodes of each kind in the subtree, not descending
// into nested function or class definitions below the root.
func Count(root *Node) map[Kind]int {
	counts := make(map[Kind]int)
	Walk(root, func(n *Node) bool {
		counts[n.Kind]++
		if n != root && (n.Kind == KindFunction || n.Kind == KindClass) {
			return false
		}
		return true
	})
	return counts
}
