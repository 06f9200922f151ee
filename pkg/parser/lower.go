package parser

import (
	"strings"

	"github.com/panbanda/augur/pkg/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// category groups grammar node types of every supported language by the
// syntax kind they lower to.
type category uint8

const (
	catOther category = iota
	catFunction
	catClass
	catIf
	catLoop
	catTry
	catHandler
	catFinally
	catReturn
	catRaise
	catAssign
	catDeclaration
	catExprStmt
	catCall
	catBinary
	catUnary
	catAttribute
	catIndex
	catIdent
	catString
	catNumber
	catLiteral
	catComment
	catBlock
	catParens
	catDecorated
	catImport
)

var categories = map[string]category{}

func register(c category, types ...string) {
	for _, t := range types {
		categories[t] = c
	}
}

func init() {
	register(catFunction, "function_definition", "function_declaration", "method_declaration", "function_item",
		"method_definition", "arrow_function", "function", "function_expression", "generator_function_declaration",
		"method", "singleton_method", "constructor_declaration", "lambda", "lambda_expression",
		"closure_expression", "func_literal", "local_function_statement", "anonymous_function_creation_expression")
	register(catClass, "class_definition", "class_declaration", "class_specifier", "struct_specifier",
		"struct_item", "impl_item", "trait_item", "interface_declaration", "struct_declaration",
		"trait_declaration", "record_declaration", "class")
	register(catIf, "if_statement", "if_expression", "if", "unless")
	register(catLoop, "for_statement", "for_in_statement", "while_statement", "do_statement", "for_expression",
		"while_expression", "loop_expression", "enhanced_for_statement", "foreach_statement", "for_range_loop",
		"for_each_statement", "while", "until", "for")
	register(catTry, "try_statement", "try_expression", "begin")
	register(catHandler, "except_clause", "except_group_clause", "catch_clause", "rescue")
	register(catFinally, "finally_clause", "ensure")
	register(catReturn, "return_statement", "return_expression", "return")
	register(catRaise, "raise_statement", "throw_statement", "throw_expression")
	register(catAssign, "assignment", "augmented_assignment", "assignment_expression",
		"augmented_assignment_expression", "assignment_statement", "short_var_declaration",
		"compound_assignment_expr", "operator_assignment", "variable_declarator", "let_declaration",
		"var_spec", "const_spec")
	register(catDeclaration, "lexical_declaration", "variable_declaration", "local_variable_declaration",
		"var_declaration", "const_declaration", "field_declaration")
	register(catExprStmt, "expression_statement")
	register(catCall, "call", "call_expression", "method_invocation", "invocation_expression",
		"function_call_expression", "member_call_expression", "new_expression", "object_creation_expression")
	register(catBinary, "binary_expression", "binary_operator", "boolean_operator", "comparison_operator", "binary")
	register(catUnary, "unary_expression", "not_operator", "unary_operator", "unary", "update_expression",
		"inc_statement", "dec_statement")
	register(catAttribute, "attribute", "member_expression", "field_expression", "selector_expression", "field_access")
	register(catIndex, "subscript", "subscript_expression", "index_expression", "element_reference", "array_access")
	register(catIdent, "identifier", "field_identifier", "property_identifier", "type_identifier", "constant",
		"shorthand_property_identifier", "name", "this", "self", "super")
	register(catString, "string", "string_literal", "interpreted_string_literal", "raw_string_literal",
		"template_string", "char_literal", "rune_literal", "character_literal", "encapsed_string",
		"concatenated_string")
	register(catNumber, "integer", "float", "number", "int_literal", "float_literal", "integer_literal",
		"decimal_integer_literal", "hex_integer_literal", "number_literal", "decimal_floating_point_literal",
		"real_literal", "imaginary_literal")
	register(catLiteral, "true", "false", "none", "null", "nil", "null_literal", "boolean_literal",
		"undefined", "boolean")
	register(catComment, "comment", "line_comment", "block_comment")
	register(catBlock, "block", "statement_block", "compound_statement", "body_statement", "declaration_list",
		"class_body", "field_declaration_list", "do_block", "then", "else")
	register(catParens, "parenthesized_expression")
	register(catDecorated, "decorated_definition")
	register(catImport, "import_statement", "import_from_statement", "import_declaration", "use_declaration",
		"using_directive", "namespace_use_declaration")
}

// Import is one import statement found while lowering.
type Import struct {
	Module string
	Names  []string
	Line   int
}

type lowerer struct {
	src  []byte
	lang Language
}

func (l *lowerer) text(n *sitter.Node) string { return GetNodeText(n, l.src) }

func (l *lowerer) span(out *syntax.Node, n *sitter.Node) *syntax.Node {
	out.Line = int(n.StartPoint().Row) + 1
	out.EndLine = int(n.EndPoint().Row) + 1
	out.Col = int(n.StartPoint().Column)
	return out
}

func (l *lowerer) categoryOf(n *sitter.Node) category {
	t := n.Type()
	// Ruby modules are namespaces; Python's root is also called module.
	if t == "module" && l.lang == LangRuby {
		return catClass
	}
	if t == "type_spec" && l.lang == LangGo {
		if typ := n.ChildByFieldName("type"); typ != nil && (typ.Type() == "struct_type" || typ.Type() == "interface_type") {
			return catClass
		}
	}
	return categories[t]
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func field(n *sitter.Node, names ...string) *sitter.Node {
	for _, name := range names {
		if c := n.ChildByFieldName(name); c != nil {
			return c
		}
	}
	return nil
}

// statements lowers the named children of a statement container, dropping
// nodes that lower to nothing.
func (l *lowerer) statements(n *sitter.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	if l.categoryOf(n) != catBlock {
		if s := l.lower(n); s != nil {
			return []*syntax.Node{s}
		}
		return nil
	}
	var out []*syntax.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "statement_list" {
			for _, inner := range namedChildren(c) {
				if s := l.lower(inner); s != nil {
					out = append(out, s)
				}
			}
			continue
		}
		if s := l.lower(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// block wraps the statements of n in a Block node spanning n.
func (l *lowerer) block(n *sitter.Node) *syntax.Node {
	b := syntax.Block(l.statements(n)...)
	if n != nil {
		l.span(b, n)
	}
	return b
}

// lower converts one grammar node. It returns nil for nodes without a
// counterpart (punctuation, empty wrappers).
func (l *lowerer) lower(n *sitter.Node) *syntax.Node {
	if n == nil || !n.IsNamed() {
		return nil
	}
	switch l.categoryOf(n) {
	case catFunction:
		return l.function(n)
	case catClass:
		return l.class(n)
	case catIf:
		return l.branch(n)
	case catLoop:
		return l.loop(n)
	case catTry:
		return l.try(n)
	case catHandler:
		return l.handler(n)
	case catFinally:
		return l.block(field(n, "body"))
	case catReturn:
		return l.span(syntax.Return(l.exprs(namedChildren(n))...), n)
	case catRaise:
		return l.span(&syntax.Node{Kind: syntax.KindRaise, Children: l.exprs(namedChildren(n))}, n)
	case catAssign:
		return l.assign(n)
	case catDeclaration:
		return l.declaration(n)
	case catExprStmt:
		return l.exprStmt(n)
	case catCall:
		return l.call(n)
	case catBinary:
		return l.binary(n)
	case catUnary:
		return l.unary(n)
	case catAttribute:
		return l.attribute(n)
	case catIndex:
		return l.index(n)
	case catIdent:
		return l.span(syntax.Ident(l.text(n)), n)
	case catString:
		return l.span(syntax.Str(l.text(n)), n)
	case catNumber:
		return l.span(syntax.Num(l.text(n)), n)
	case catLiteral:
		return l.span(&syntax.Node{Kind: syntax.KindLiteral, Text: l.text(n)}, n)
	case catComment:
		return l.span(syntax.Comment(commentText(l.text(n))), n)
	case catBlock:
		return l.block(n)
	case catParens:
		inner := namedChildren(n)
		if len(inner) == 1 {
			return l.lower(inner[0])
		}
		return l.other(n)
	case catDecorated:
		if def := field(n, "definition"); def != nil {
			return l.lower(def)
		}
		return l.other(n)
	case catImport:
		return l.importNode(n)
	}
	return l.other(n)
}

func (l *lowerer) other(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindOther, Name: n.Type()}
	children := namedChildren(n)
	if len(children) == 0 {
		out.Text = l.text(n)
	}
	for _, c := range children {
		if s := l.lower(c); s != nil {
			out.Children = append(out.Children, s)
		}
	}
	return l.span(out, n)
}

func (l *lowerer) exprs(nodes []*sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range nodes {
		if c.Type() == "expression_list" || c.Type() == "argument_list" || c.Type() == "arguments" {
			out = append(out, l.exprs(namedChildren(c))...)
			continue
		}
		if s := l.lower(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// expr lowers a single expression, packing lists into one node.
func (l *lowerer) expr(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "expression_list" {
		items := l.exprs(namedChildren(n))
		if len(items) == 1 {
			return items[0]
		}
		return l.span(&syntax.Node{Kind: syntax.KindOther, Name: "tuple", Children: items}, n)
	}
	return l.lower(n)
}

func (l *lowerer) function(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindFunction, Name: l.functionName(n)}
	for _, p := range l.params(n) {
		out.Params = append(out.Params, syntax.Param(p))
	}

	body := field(n, "body", "block")
	switch {
	case body == nil:
		out.Children = l.bodyWithout(n, field(n, "name"), field(n, "parameters"))
	case l.categoryOf(body) == catBlock:
		out.Children = l.docBody(l.statements(body))
	default:
		// expression-bodied lambdas and arrow functions
		if e := l.lower(body); e != nil {
			if e.Kind.IsStatement() && e.Kind != syntax.KindOther {
				out.Children = []*syntax.Node{e}
			} else {
				out.Children = []*syntax.Node{l.span(syntax.Return(e), body)}
			}
		}
	}

	out.Text = l.receiver(n)
	return l.span(out, n)
}

func (l *lowerer) functionName(n *sitter.Node) string {
	if name := field(n, "name"); name != nil {
		return l.text(name)
	}
	if decl := field(n, "declarator"); decl != nil {
		// C and C++ nest the name inside function_declarator.
		for d := decl; d != nil; d = field(d, "declarator") {
			switch d.Type() {
			case "identifier", "field_identifier", "qualified_identifier", "destructor_name", "operator_name":
				return l.text(d)
			}
		}
	}
	if n.Type() == "arrow_function" || n.Type() == "function_expression" || n.Type() == "function" {
		return arrowFunctionName(n, l.src)
	}
	return ""
}

// arrowFunctionName names an anonymous function after the variable it is assigned to.
func arrowFunctionName(node *sitter.Node, source []byte) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}
	if parent.Type() == "variable_declarator" {
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
			return GetNodeText(nameNode, source)
		}
	}
	return ""
}

// receiver returns the receiver type of a Go method.
func (l *lowerer) receiver(n *sitter.Node) string {
	if l.lang != LangGo {
		return ""
	}
	recv := field(n, "receiver")
	for _, child := range namedChildren(recv) {
		if child.Type() == "parameter_declaration" {
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				return strings.TrimPrefix(l.text(typeNode), "*")
			}
		}
	}
	return ""
}

func (l *lowerer) params(n *sitter.Node) []string {
	list := field(n, "parameters", "parameter")
	if list == nil {
		if decl := field(n, "declarator"); decl != nil {
			list = field(decl, "parameters")
		}
	}
	if list == nil {
		return nil
	}
	if l.categoryOf(list) == catIdent {
		return []string{l.text(list)}
	}
	var names []string
	for _, p := range namedChildren(list) {
		names = append(names, l.paramNames(p)...)
	}
	return names
}

func (l *lowerer) paramNames(p *sitter.Node) []string {
	switch p.Type() {
	case "identifier", "self", "this":
		return []string{l.text(p)}
	case "comment", "line_comment", "block_comment":
		return nil
	}
	// Go declares several names per parameter_declaration.
	var names []string
	if l.lang != LangGo {
		if name := field(p, "name", "pattern"); name != nil {
			if id := l.firstIdent(name); id != "" {
				return []string{id}
			}
		}
	}
	for _, c := range namedChildren(p) {
		if c.Type() == "identifier" {
			names = append(names, l.text(c))
		}
	}
	if len(names) > 0 {
		return names
	}
	if id := l.firstIdent(p); id != "" {
		return []string{id}
	}
	return nil
}

func (l *lowerer) firstIdent(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "identifier" || n.Type() == "self" {
		return l.text(n)
	}
	for _, c := range namedChildren(n) {
		if id := l.firstIdent(c); id != "" {
			return id
		}
	}
	return ""
}

// bodyWithout lowers the children of n that are not one of skip, for
// grammars that put statements directly under the definition.
func (l *lowerer) bodyWithout(n *sitter.Node, skip ...*sitter.Node) []*syntax.Node {
	var out []*syntax.Node
next:
	for _, c := range namedChildren(n) {
		for _, s := range skip {
			if sameNode(c, s) {
				continue next
			}
		}
		if s := l.lower(c); s != nil {
			if s.Kind == syntax.KindBlock {
				out = append(out, s.Children...)
				continue
			}
			out = append(out, s)
		}
	}
	return l.docBody(out)
}

// docBody turns a leading bare string statement into a Doc node.
func (l *lowerer) docBody(stmts []*syntax.Node) []*syntax.Node {
	if len(stmts) == 0 {
		return stmts
	}
	first := stmts[0]
	if first.Kind == syntax.KindExprStmt && len(first.Children) == 1 && first.Children[0].Kind == syntax.KindString {
		doc := syntax.Doc(docText(first.Children[0].Text)).At(first.Line, first.EndLine)
		doc.Col = first.Col
		stmts[0] = doc
	}
	return stmts
}

func (l *lowerer) class(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindClass, Name: l.className(n)}
	out.Bases = l.bases(n)
	if body := field(n, "body"); body != nil {
		out.Children = l.docBody(l.classBody(body))
	} else {
		out.Children = l.bodyWithout(n, field(n, "name"), field(n, "superclass"), field(n, "superclasses"), field(n, "type"))
	}
	return l.span(out, n)
}

func (l *lowerer) classBody(body *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range namedChildren(body) {
		s := l.lower(c)
		if s == nil {
			continue
		}
		// unwrap single-declarator member declarations and blocks
		if s.Kind == syntax.KindBlock {
			out = append(out, s.Children...)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (l *lowerer) className(n *sitter.Node) string {
	if nameNode := field(n, "name"); nameNode != nil {
		return l.text(nameNode)
	}
	if typeNode := field(n, "type"); typeNode != nil {
		return l.text(typeNode)
	}
	for _, child := range namedChildren(n) {
		if child.Type() == "type_identifier" || child.Type() == "identifier" || child.Type() == "constant" {
			return l.text(child)
		}
	}
	return ""
}

func (l *lowerer) bases(n *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	add := func(c *sitter.Node) {
		if c == nil || c.Type() == "keyword_argument" || c.Type() == "comment" {
			return
		}
		if s := l.lower(c); s != nil && !s.Kind.IsStatement() {
			out = append(out, s)
		}
	}
	if sup := field(n, "superclasses", "superclass", "interfaces"); sup != nil {
		kids := namedChildren(sup)
		if len(kids) == 0 || sup.Type() == "identifier" || sup.Type() == "constant" {
			add(sup)
		}
		for _, c := range kids {
			if c.Type() == "type_list" {
				for _, t := range namedChildren(c) {
					add(t)
				}
				continue
			}
			add(c)
		}
	}
	for _, c := range namedChildren(n) {
		if c.Type() == "class_heritage" || c.Type() == "extends_clause" {
			for _, h := range namedChildren(c) {
				if h.Type() == "extends_clause" || h.Type() == "implements_clause" {
					for _, t := range namedChildren(h) {
						add(t)
					}
					continue
				}
				add(h)
			}
		}
	}
	return out
}

// branch lowers if statements into [cond, then-block, else-block?], chaining
// elif/else-if clauses as nested Ifs inside the else block.
func (l *lowerer) branch(n *sitter.Node) *syntax.Node {
	cond := l.expr(field(n, "condition"))
	if cond == nil {
		cond = l.span(&syntax.Node{Kind: syntax.KindLiteral, Text: "true"}, n)
	}
	out := &syntax.Node{Kind: syntax.KindIf, Children: []*syntax.Node{cond, l.block(field(n, "consequence", "body"))}}

	var alts []*sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "elif_clause", "else_clause", "elsif", "else":
			alts = append(alts, c)
		}
	}
	if len(alts) == 0 {
		if alt := field(n, "alternative"); alt != nil {
			alts = append(alts, alt)
		}
	}
	if len(alts) > 0 {
		out.Children = append(out.Children, l.elseChain(alts))
	}
	return l.span(out, n)
}

func (l *lowerer) elseChain(alts []*sitter.Node) *syntax.Node {
	alt := alts[0]
	switch alt.Type() {
	case "elif_clause", "elsif":
		nested := &syntax.Node{Kind: syntax.KindIf, Children: []*syntax.Node{
			l.exprOr(field(alt, "condition"), alt),
			l.block(field(alt, "consequence", "body")),
		}}
		l.span(nested, alt)
		if len(alts) > 1 {
			nested.Children = append(nested.Children, l.elseChain(alts[1:]))
		} else if inner := field(alt, "alternative"); inner != nil {
			nested.Children = append(nested.Children, l.elseChain([]*sitter.Node{inner}))
		}
		return l.span(syntax.Block(nested), alt)
	case "else_clause", "else":
		if body := field(alt, "body"); body != nil {
			return l.block(body)
		}
		stmts := l.bodyWithout(alt)
		return l.span(syntax.Block(stmts...), alt)
	}
	// Go and C-like grammars put an if statement or block directly in alternative.
	if l.categoryOf(alt) == catBlock {
		return l.block(alt)
	}
	var stmts []*syntax.Node
	if s := l.lower(alt); s != nil {
		stmts = append(stmts, s)
	}
	return l.span(syntax.Block(stmts...), alt)
}

func (l *lowerer) exprOr(n, fallback *sitter.Node) *syntax.Node {
	if e := l.expr(n); e != nil {
		return e
	}
	return l.span(&syntax.Node{Kind: syntax.KindLiteral, Text: "true"}, fallback)
}

// loop lowers iteration loops into [Param targets..., iter, body-block]
// (Text "in"), three-clause loops into [init, cond, update, body-block]
// (Text "for") and condition loops into [cond?, body-block].
func (l *lowerer) loop(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindLoop}
	body := field(n, "body")

	target := field(n, "left", "pattern", "name", "declarator", "variable")
	iter := field(n, "right", "value")
	if clause := childOfType(n, "range_clause"); clause != nil {
		target, iter = field(clause, "left"), field(clause, "right")
	}
	clause := childOfType(n, "for_clause")
	if clause == nil {
		clause = n
	}
	initial := field(clause, "initializer", "init")
	cond := field(clause, "condition")
	update := field(clause, "update", "increment")
	if cond == nil && iter == nil && clause == n && l.lang == LangGo {
		// Go's condition-only loop leaves the expression unnamed.
		for _, c := range namedChildren(n) {
			if !sameNode(c, body) && l.categoryOf(c) != catComment {
				cond = c
				break
			}
		}
	}

	switch {
	case iter != nil:
		out.Text = "in"
		for _, name := range l.boundNames(target) {
			out.Children = append(out.Children, l.span(syntax.Param(name.text), name.node))
		}
		if e := l.expr(iter); e != nil {
			out.Children = append(out.Children, e)
		}
	case initial != nil || update != nil:
		out.Text = "for"
		out.Children = append(out.Children, l.clause(initial, n), l.clause(cond, n), l.clause(update, n))
	default:
		if e := l.clause(cond, nil); e != nil {
			out.Children = append(out.Children, e)
		}
	}

	if body != nil {
		out.Children = append(out.Children, l.block(body))
	} else {
		skip := []*sitter.Node{cond, target, iter, initial, update}
		out.Children = append(out.Children, l.span(syntax.Block(l.bodyWithout(n, skip...)...), n))
	}
	return l.span(out, n)
}

// clause lowers one loop header clause, unwrapping expression statements.
// An absent clause becomes an empty literal spanning fallback, or nil when
// fallback is nil.
func (l *lowerer) clause(n, fallback *sitter.Node) *syntax.Node {
	if e := l.expr(n); e != nil {
		if e.Kind == syntax.KindExprStmt && len(e.Children) == 1 {
			return e.Children[0]
		}
		return e
	}
	if fallback == nil {
		return nil
	}
	return l.span(&syntax.Node{Kind: syntax.KindLiteral}, fallback)
}

type boundName struct {
	text string
	node *sitter.Node
}

// boundNames returns every identifier a loop target binds, in source order.
// Attribute and subscript targets bind nothing.
func (l *lowerer) boundNames(n *sitter.Node) []boundName {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "variable_name", "self":
		return []boundName{{l.text(n), n}}
	}
	switch l.categoryOf(n) {
	case catAttribute, catIndex:
		return nil
	}
	var out []boundName
	for _, c := range namedChildren(n) {
		out = append(out, l.boundNames(c)...)
	}
	return out
}

func childOfType(n *sitter.Node, t string) *sitter.Node {
	for _, c := range namedChildren(n) {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// try lowers into [body-block, handlers..., finally-block?].
func (l *lowerer) try(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindTry}
	body := field(n, "body")
	var handlers []*syntax.Node
	var finally *syntax.Node
	var rest []*syntax.Node

	for _, c := range namedChildren(n) {
		if sameNode(c, body) {
			continue
		}
		switch l.categoryOf(c) {
		case catHandler:
			handlers = append(handlers, l.handler(c))
		case catFinally:
			if b := field(c, "body"); b != nil {
				finally = l.block(b)
			} else {
				finally = l.span(syntax.Block(l.bodyWithout(c)...), c)
			}
		default:
			if body == nil {
				// Ruby begin blocks hold their statements directly.
				if s := l.lower(c); s != nil {
					rest = append(rest, s)
				}
			}
		}
	}

	if body != nil {
		out.Children = append(out.Children, l.block(body))
	} else {
		out.Children = append(out.Children, l.span(syntax.Block(rest...), n))
	}
	out.Children = append(out.Children, handlers...)
	if finally != nil {
		out.Children = append(out.Children, finally)
	}
	return l.span(out, n)
}

func (l *lowerer) handler(n *sitter.Node) *syntax.Node {
	out := &syntax.Node{Kind: syntax.KindHandler}
	body := field(n, "body")
	var skip []*sitter.Node
	if p := field(n, "parameter", "alias", "variable"); p != nil {
		out.Name = l.firstIdent(p)
		if t := field(p, "type"); t != nil {
			out.Text = l.text(t)
		}
		skip = append(skip, p)
	}

	for _, c := range namedChildren(n) {
		switch {
		case sameNode(c, body):
		case c.Type() == "block" || c.Type() == "then":
			if body == nil {
				body = c
			}
		case c.Type() == "as_pattern":
			// Python: except E as e
			kids := namedChildren(c)
			if len(kids) > 0 {
				out.Text = l.text(kids[0])
			}
			if alias := field(c, "alias"); alias != nil {
				out.Name = l.firstIdent(alias)
			}
		case c.Type() == "catch_formal_parameter":
			if name := field(c, "name"); name != nil {
				out.Name = l.text(name)
			}
		case c.Type() == "exceptions" || c.Type() == "exception_variable":
			if c.Type() == "exceptions" {
				out.Text = l.text(c)
			} else {
				out.Name = l.firstIdent(c)
			}
		case l.categoryOf(c) == catComment || containsNode(skip, c):
		case out.Text == "":
			out.Text = l.text(c)
		case out.Name == "" && l.categoryOf(c) == catIdent:
			// Python 2 style: except E, e
			out.Name = l.text(c)
		}
	}
	if body != nil {
		out.Children = l.statements(body)
	}
	return l.span(out, n)
}

func containsNode(nodes []*sitter.Node, n *sitter.Node) bool {
	for _, c := range nodes {
		if sameNode(c, n) {
			return true
		}
	}
	return false
}

func (l *lowerer) assign(n *sitter.Node) *syntax.Node {
	left := field(n, "left", "name", "pattern")
	right := field(n, "right", "value")
	if left == nil {
		return l.other(n)
	}
	targets := l.exprs([]*sitter.Node{left})
	if len(targets) == 0 {
		return l.other(n)
	}
	if right == nil {
		// a declaration without initializer binds its name only
		if len(targets) == 1 {
			return targets[0]
		}
		return l.span(&syntax.Node{Kind: syntax.KindOther, Name: n.Type(), Children: targets}, n)
	}
	value := l.expr(right)
	if value == nil {
		return l.other(n)
	}
	op := "="
	switch {
	case field(n, "operator") != nil:
		op = l.text(field(n, "operator"))
	case n.Type() == "short_var_declaration":
		op = ":="
	default:
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c != nil && !c.IsNamed() && strings.HasSuffix(c.Type(), "=") {
				op = c.Type()
				break
			}
		}
	}
	out := &syntax.Node{Kind: syntax.KindAssign, Text: op, Children: append(targets, value)}
	return l.span(out, n)
}

// declaration unwraps a declaration holding a single declarator.
func (l *lowerer) declaration(n *sitter.Node) *syntax.Node {
	var decls []*syntax.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "variable_declarator", "var_spec", "const_spec", "init_declarator":
			if s := l.lower(c); s != nil {
				decls = append(decls, s)
			}
		case "var_spec_list", "const_spec_list":
			for _, spec := range namedChildren(c) {
				if s := l.lower(spec); s != nil {
					decls = append(decls, s)
				}
			}
		}
	}
	if len(decls) == 1 && decls[0].Kind == syntax.KindAssign {
		return l.span(decls[0], n)
	}
	if len(decls) == 0 {
		return l.other(n)
	}
	return l.span(&syntax.Node{Kind: syntax.KindOther, Name: n.Type(), Children: decls}, n)
}

func (l *lowerer) exprStmt(n *sitter.Node) *syntax.Node {
	items := l.exprs(namedChildren(n))
	if len(items) == 1 && items[0].Kind.IsStatement() && items[0].Kind != syntax.KindOther {
		return items[0]
	}
	if len(items) == 0 {
		return nil
	}
	return l.span(&syntax.Node{Kind: syntax.KindExprStmt, Children: items}, n)
}

func (l *lowerer) call(n *sitter.Node) *syntax.Node {
	var callee *syntax.Node
	fn := field(n, "function", "constructor", "type")
	switch {
	case fn != nil:
		callee = l.expr(fn)
	case field(n, "name", "method") != nil:
		name := field(n, "name", "method")
		callee = l.span(syntax.Ident(l.text(name)), name)
		if obj := field(n, "object", "receiver"); obj != nil {
			if o := l.expr(obj); o != nil {
				callee = l.span(&syntax.Node{Kind: syntax.KindAttribute, Name: l.text(name), Children: []*syntax.Node{o}}, name)
			}
		}
	}
	if callee == nil {
		return l.other(n)
	}

	return l.span(syntax.Call(callee, l.arguments(field(n, "arguments"))...), n)
}

func (l *lowerer) arguments(n *sitter.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	var out []*syntax.Node
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "keyword_argument", "pair":
			if v := field(c, "value"); v != nil {
				if s := l.expr(v); s != nil {
					out = append(out, s)
				}
			}
			continue
		case "argument":
			// C# wraps each argument
			for _, inner := range namedChildren(c) {
				if s := l.expr(inner); s != nil {
					out = append(out, s)
				}
			}
			continue
		case "comment":
			continue
		}
		if s := l.expr(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *lowerer) operator(n *sitter.Node) string {
	if op := field(n, "operator"); op != nil {
		return l.text(op)
	}
	var parts []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || c.IsNamed() {
			continue
		}
		switch t := c.Type(); t {
		case "(", ")", ",":
		default:
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (l *lowerer) binary(n *sitter.Node) *syntax.Node {
	left, right := field(n, "left"), field(n, "right")
	var operands []*syntax.Node
	if left != nil && right != nil {
		operands = []*syntax.Node{l.expr(left), l.expr(right)}
	} else {
		operands = l.exprs(namedChildren(n))
	}
	for _, o := range operands {
		if o == nil {
			return l.other(n)
		}
	}
	if len(operands) < 2 {
		return l.other(n)
	}
	op := l.operator(n)
	// fold chained comparisons left to right
	acc := operands[0]
	for _, next := range operands[1:] {
		acc = l.span(syntax.BinOp(op, acc, next), n)
	}
	return acc
}

func (l *lowerer) unary(n *sitter.Node) *syntax.Node {
	operand := field(n, "argument", "operand")
	var children []*syntax.Node
	if operand != nil {
		if s := l.expr(operand); s != nil {
			children = append(children, s)
		}
	} else {
		children = l.exprs(namedChildren(n))
	}
	if len(children) == 0 {
		return l.other(n)
	}
	return l.span(&syntax.Node{Kind: syntax.KindUnaryOp, Text: l.operator(n), Children: children}, n)
}

func (l *lowerer) attribute(n *sitter.Node) *syntax.Node {
	obj := field(n, "object", "operand", "value", "argument")
	name := field(n, "attribute", "property", "field", "name")
	if obj == nil || name == nil {
		return l.other(n)
	}
	o := l.expr(obj)
	if o == nil {
		return l.other(n)
	}
	return l.span(&syntax.Node{Kind: syntax.KindAttribute, Name: l.text(name), Children: []*syntax.Node{o}}, n)
}

func (l *lowerer) index(n *sitter.Node) *syntax.Node {
	obj := field(n, "value", "object", "operand", "array")
	idx := field(n, "subscript", "index")
	if obj == nil {
		return l.other(n)
	}
	o := l.expr(obj)
	if o == nil {
		return l.other(n)
	}
	out := &syntax.Node{Kind: syntax.KindIndex, Children: []*syntax.Node{o}}
	if idx != nil {
		if i := l.expr(idx); i != nil {
			out.Children = append(out.Children, i)
		}
	}
	return l.span(out, n)
}

// importNode lowers an import statement into one Other node named "import"
// per imported module, carrying the module in Text and imported names as
// Ident children.
func (l *lowerer) importNode(n *sitter.Node) *syntax.Node {
	var specs []*syntax.Node
	add := func(at *sitter.Node, module string, names ...string) {
		module = unquote(module)
		if module == "" {
			return
		}
		spec := &syntax.Node{Kind: syntax.KindOther, Name: importName, Text: module}
		for _, name := range names {
			spec.Children = append(spec.Children, l.span(syntax.Ident(name), at))
		}
		specs = append(specs, l.span(spec, at))
	}

	switch l.lang {
	case LangGo:
		Walk(n, l.src, func(c *sitter.Node, src []byte) bool {
			if c.Type() == "import_spec" {
				add(c, GetNodeText(c.ChildByFieldName("path"), src))
				return false
			}
			return true
		})
	case LangPython:
		if n.Type() == "import_from_statement" {
			module := field(n, "module_name")
			var names []string
			for _, c := range namedChildren(n) {
				switch {
				case sameNode(c, module):
				case c.Type() == "dotted_name" || c.Type() == "identifier":
					names = append(names, l.text(c))
				case c.Type() == "aliased_import":
					names = append(names, l.text(field(c, "name")))
				}
			}
			add(n, l.text(module), names...)
			break
		}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "dotted_name":
				add(c, l.text(c))
			case "aliased_import":
				add(c, l.text(field(c, "name")))
			}
		}
	case LangTypeScript, LangJavaScript, LangTSX:
		add(n, l.text(field(n, "source")))
	case LangRust:
		add(n, l.text(field(n, "argument")))
	default:
		if p := field(n, "path", "source", "name"); p != nil {
			add(n, l.text(p))
			break
		}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "scoped_identifier", "identifier", "qualified_name", "namespace_use_clause":
				add(c, l.text(c))
			}
		}
	}

	switch len(specs) {
	case 0:
		return l.span(&syntax.Node{Kind: syntax.KindOther, Name: n.Type(), Text: strings.Join(strings.Fields(l.text(n)), " ")}, n)
	case 1:
		return specs[0]
	}
	return l.span(syntax.Block(specs...), n)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`, "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func docText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

func commentText(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimSuffix(strings.TrimPrefix(s, "/*"), "*/")
	case strings.HasPrefix(s, "//"):
		s = strings.TrimPrefix(s, "//")
	case strings.HasPrefix(s, "#"):
		s = strings.TrimPrefix(s, "#")
	}
	return strings.TrimSpace(s)
}
