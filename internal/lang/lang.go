// Package lang defines the closed set of languages the analyzer understands
// and the per-language syntax roles needed to locate function definitions and
// call sites in a tree-sitter parse tree.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
)

// Language identifies one supported source language.
type Language string

const (
	C    Language = "c"
	CPP  Language = "cpp"
	Java Language = "java"
)

// Syntax maps a language's tree-sitter node types and field names onto the
// roles the parser needs. Keeping this a plain value per language keeps the
// dispatch closed and exhaustive instead of scattering node-type string
// comparisons through the walkers.
type Syntax struct {
	// DefinitionKind is the node type of a function/method definition.
	DefinitionKind string
	// NameField yields the subtree searched for the declared name. For C and
	// C++ this is the declarator; for Java it is the name identifier itself.
	NameField string
	// ParamsFields are tried in order against the name subtree (C/C++) or
	// the definition node (Java) to find the parameter list.
	ParamsFields []string
	// ParamsOnName reports whether the parameter fields hang off the name
	// subtree rather than the definition node.
	ParamsOnName bool
	// ReturnField is the field holding the return type, on the definition node.
	ReturnField string
	// CallKind is the node type of a call expression.
	CallKind string
	// CalleeField is the field of a call node holding the callee expression.
	CalleeField string
	// IdentifierKind is the node type of a bare identifier token.
	IdentifierKind string
}

var cSyntax = Syntax{
	DefinitionKind: "function_definition",
	NameField:      "declarator",
	ParamsFields:   []string{"parameters", "parameter_list"},
	ParamsOnName:   true,
	ReturnField:    "type",
	CallKind:       "call_expression",
	CalleeField:    "function",
	IdentifierKind: "identifier",
}

var javaSyntax = Syntax{
	DefinitionKind: "method_declaration",
	NameField:      "name",
	ParamsFields:   []string{"parameters"},
	ParamsOnName:   false,
	ReturnField:    "type",
	CallKind:       "method_invocation",
	CalleeField:    "name",
	IdentifierKind: "identifier",
}

// extensions maps lowercased file extensions (without the dot) to languages.
// Note ".h" is deliberately absent: headers rarely carry definitions in C and
// routinely carry them in C++, so they are classified only via the explicit
// C++ header extensions.
var extensions = map[string]Language{
	"c":    C,
	"cc":   CPP,
	"cpp":  CPP,
	"cxx":  CPP,
	"hpp":  CPP,
	"hh":   CPP,
	"hxx":  CPP,
	"java": Java,
}

// FromPath classifies a file path by extension. The second return is false
// for files outside the supported set; such files are excluded from all scans.
func FromPath(path string) (Language, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	l, ok := extensions[ext]
	return l, ok
}

// All returns every supported language.
func All() []Language {
	return []Language{C, CPP, Java}
}

// Grammar returns the tree-sitter grammar for l.
func (l Language) Grammar() *sitter.Language {
	switch l {
	case C:
		return c.GetLanguage()
	case CPP:
		return cpp.GetLanguage()
	case Java:
		return java.GetLanguage()
	}
	return nil
}

// Syntax returns the node-role table for l.
func (l Language) Syntax() Syntax {
	switch l {
	case Java:
		return javaSyntax
	default:
		// C and C++ share grammar node names for everything we touch.
		return cSyntax
	}
}

// Supported reports whether l is one of the closed language set.
func (l Language) Supported() bool {
	switch l {
	case C, CPP, Java:
		return true
	}
	return false
}
