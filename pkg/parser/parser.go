// Package parser parses source files with tree-sitter and lowers them into
// the language-neutral syntax tree.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language.
type Language string

const (
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangTSX        Language = "tsx"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangBash       Language = "bash"
	LangUnknown    Language = "unknown"
)

type grammar struct {
	load       func() *sitter.Language
	extensions []string
}

// grammars maps each language to its tree-sitter grammar and file extensions.
// JSX shares the TSX grammar.
var grammars = map[Language]grammar{
	LangGo:         {golang.GetLanguage, []string{".go"}},
	LangRust:       {rust.GetLanguage, []string{".rs"}},
	LangPython:     {python.GetLanguage, []string{".py", ".pyw", ".pyi"}},
	LangTypeScript: {typescript.GetLanguage, []string{".ts", ".mts", ".cts"}},
	LangTSX:        {tsx.GetLanguage, []string{".tsx", ".jsx"}},
	LangJavaScript: {javascript.GetLanguage, []string{".js", ".mjs", ".cjs"}},
	LangJava:       {java.GetLanguage, []string{".java"}},
	LangC:          {c.GetLanguage, []string{".c", ".h"}},
	LangCPP:        {cpp.GetLanguage, []string{".cpp", ".cc", ".cxx", ".hpp", ".hxx", ".hh"}},
	LangCSharp:     {csharp.GetLanguage, []string{".cs"}},
	LangRuby:       {ruby.GetLanguage, []string{".rb"}},
	LangPHP:        {php.GetLanguage, []string{".php"}},
	LangBash:       {bash.GetLanguage, []string{".sh", ".bash"}},
}

var byExtension = func() map[string]Language {
	m := make(map[string]Language)
	for lang, g := range grammars {
		for _, ext := range g.extensions {
			m[ext] = lang
		}
	}
	return m
}()

// Languages returns every supported language, sorted.
func Languages() []Language {
	out := make([]Language, 0, len(grammars))
	for lang := range grammars {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DetectLanguage determines the language from a file extension.
func DetectLanguage(path string) Language {
	if lang, ok := byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// GetTreeSitterLanguage returns the grammar for lang.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return g.load(), nil
}

// Parser wraps one tree-sitter parser. It is not safe for concurrent use;
// give each goroutine its own.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult holds a concrete syntax tree and the source it was built from.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
	// HasErrors is set when tree-sitter recovered from syntax errors. The
	// tree is still usable; erroneous regions appear as ERROR nodes.
	HasErrors bool
}

func New() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// ParseFile reads and parses path, choosing the grammar by extension.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(source, lang, path)
}

// Parse parses source as lang. path is recorded for error messages only.
func (p *Parser) Parse(source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &ParseResult{
		Tree:      tree,
		Language:  lang,
		Source:    source,
		Path:      path,
		HasErrors: tree.RootNode().HasError(),
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is called for each node; returning false skips its children.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the tree in pre-order.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil || !visitor(node, source) {
		return
	}
	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// GetNodeText returns the source text of node, or "" when node is nil or its
// byte range falls outside source.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}
