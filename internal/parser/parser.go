// Package parser turns source text into function-level definitions and call
// sites using tree-sitter. It is purely syntactic: names are resolved to bare
// identifiers with no scope or overload awareness, so call attribution can be
// wrong when names collide or calls go through indirection. That imprecision
// is a property of the design, not a fault to work around here.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"funcdiff/internal/lang"
)

// Function is one function or method definition found in a source file.
// Lines are 1-based and inclusive.
type Function struct {
	Name       string `json:"name"`
	Signature  string `json:"signature"`
	ReturnType string `json:"return_type"`
	Code       string `json:"code"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// Registry owns the tree-sitter grammars for the supported language set. It
// is constructed once per process and passed by reference into every parse;
// nothing in this package keeps package-level parser state.
//
// A Registry is safe for concurrent use: grammars are immutable after
// construction and each parse creates its own sitter.Parser.
type Registry struct {
	grammars map[lang.Language]*sitter.Language
	log      *slog.Logger
}

// NewRegistry builds a Registry covering every supported language.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	grammars := make(map[lang.Language]*sitter.Language, len(lang.All()))
	for _, l := range lang.All() {
		grammars[l] = l.Grammar()
	}
	return &Registry{grammars: grammars, log: logger}
}

func (r *Registry) parse(ctx context.Context, src []byte, l lang.Language) (*sitter.Tree, error) {
	grammar, ok := r.grammars[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", l)
	}
	p := sitter.NewParser()
	p.SetLanguage(grammar)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", l, err)
	}
	return tree, nil
}

// Functions extracts every function/method definition from src. Syntax errors
// do not abort the walk: commit snapshots are frequently not compilable in
// isolation, so whatever definitions survive in the partial tree are returned.
func (r *Registry) Functions(ctx context.Context, src []byte, l lang.Language) ([]Function, error) {
	tree, err := r.parse(ctx, src, l)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	syn := l.Syntax()
	root := tree.RootNode()
	if root.HasError() {
		r.log.Debug("recovering definitions from partial tree", "language", string(l))
	}

	var funcs []Function
	walk(root, func(n *sitter.Node) {
		if n.Type() != syn.DefinitionKind {
			return
		}
		funcs = append(funcs, extractFunction(n, src, syn))
	})
	return funcs, nil
}

// Calls extracts the set of bare names invoked anywhere in src, de-duplicated
// and sorted. Call order and counts are not preserved; a callee expression
// that is not a single identifier (member access, function pointer) resolves
// to the first identifier found in its subtree.
func (r *Registry) Calls(ctx context.Context, src []byte, l lang.Language) ([]string, error) {
	tree, err := r.parse(ctx, src, l)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	syn := l.Syntax()
	seen := make(map[string]struct{})
	walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != syn.CallKind {
			return
		}
		callee := n.ChildByFieldName(syn.CalleeField)
		if callee == nil {
			return
		}
		if name := firstIdentifier(callee, src, syn.IdentifierKind); name != "" {
			seen[name] = struct{}{}
		}
	})

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func extractFunction(n *sitter.Node, src []byte, syn lang.Syntax) Function {
	var name, signature, returnType string

	nameNode := n.ChildByFieldName(syn.NameField)
	if nameNode != nil {
		name = firstIdentifier(nameNode, src, syn.IdentifierKind)
	}

	paramsOwner := n
	if syn.ParamsOnName {
		paramsOwner = nameNode
	}
	if paramsOwner != nil {
		for _, field := range syn.ParamsFields {
			if params := paramsOwner.ChildByFieldName(field); params != nil {
				signature = params.Content(src)
				break
			}
		}
	}

	if ret := n.ChildByFieldName(syn.ReturnField); ret != nil {
		returnType = ret.Content(src)
	}

	// tree-sitter rows are 0-based; report 1-based lines.
	return Function{
		Name:       name,
		Signature:  signature,
		ReturnType: returnType,
		Code:       n.Content(src),
		StartLine:  int(n.StartPoint().Row) + 1,
		EndLine:    int(n.EndPoint().Row) + 1,
	}
}

// walk visits every node of the tree in pre-order using an explicit stack, so
// deeply nested sources cannot blow the goroutine stack.
func walk(root *sitter.Node, visit func(*sitter.Node)) {
	if root == nil {
		return
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// firstIdentifier returns the text of the first identifier token found in a
// pre-order walk of the subtree, or "" if none exists. This is the shared
// name heuristic for declarators and callee expressions; it does not try to
// be clever about function pointers, templates, or operator names.
func firstIdentifier(root *sitter.Node, src []byte, identKind string) string {
	if root == nil {
		return ""
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == identKind {
			return n.Content(src)
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return ""
}
