// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ir defines the language-neutral intermediate representation that
// every per-language extractor emits. It is the sole interface between
// extractors and the rest of the indexing pipeline: no extractor-specific
// detail leaks past this package.
package ir

// Language identifies a supported source language.
type Language string

const (
	LangPython     Language = "python"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangJava       Language = "java"
	LangCSS        Language = "css"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangRuby       Language = "ruby"
)

// Context names the entity enclosing a captured node, used to namespace
// methods inside classes and nested functions inside functions.
type Context struct {
	EnclosingFunction string
	EnclosingClass    string
	EnclosingLine     int
}

// Parameter is a single formal parameter of a Function.
type Parameter struct {
	Name string
	Type string
}

// Function is a function, method, or lambda bound by assignment.
type Function struct {
	Name                 string
	LineNumber           int
	EndLine              int
	Args                 []Parameter
	SourceText           string
	Docstring            string
	CyclomaticComplexity int
	Context              Context
	Decorators           []string
	Language             Language
	IsStatic             bool
	IsConstructor        bool
	ReturnType           string
}

// Class represents a class, struct, union, enum, or interface.
type Class struct {
	Name       string
	LineNumber int
	EndLine    int
	Bases      []string
	SourceText string
	Docstring  string
	Kind       string // "class", "struct", "union", "enum", "interface", "annotation", "trait", "module", "type_alias"
	Language   Language
}

// Variable is a global or module-level variable, or a C macro-adjacent
// declaration. Extractors drop locals; only module/file-scope bindings
// are captured here.
type Variable struct {
	Name       string
	LineNumber int
	Value      string
	Type       string
	Language   Language
	Modifiers  []string // const, static, extern, pointer, array
}

// Import represents an import/include/use statement.
type Import struct {
	Name       string // module or header name
	LineNumber int
	Alias      string
	IsSystem   bool // C: <system> vs "local"; other langs: stdlib heuristic
	IsWildcard bool // Java: import static X.*
	IsStatic   bool // Java: import static
}

// Call is a function-call site captured within a file.
type Call struct {
	FullName   string // dotted/qualified form, e.g. "pkg.Foo" or "obj.method"
	Args       []string
	LineNumber int
	Context    Context
	// ReceiverType is the syntactically-inferred type of the receiver
	// expression, when the extractor can determine one without full type
	// inference (e.g. `x := &T{}; x.M()` inside the same function).
	ReceiverType string
}

// Inheritance records a base-class relationship (Class INHERITS Class).
type Inheritance struct {
	ClassName  string
	BaseName   string
	LineNumber int
}

// Implementation records a Class IMPLEMENTS Interface relationship (Java).
type Implementation struct {
	ClassName     string
	InterfaceName string
	LineNumber    int
}

// Macro is a C preprocessor #define.
type Macro struct {
	Name           string
	LineNumber     int
	Value          string
	Parameters     []string
	IsFunctionLike bool
}

// Rule is a CSS rule set or at-rule.
type Rule struct {
	Name            string // first selector text, or at-rule name
	LineNumber      int
	EndLine         int
	SelectorText    string
	Specificity     int
	SourceText      string
	DeclarationCount int
	Context         string // enclosing at-rule name, if nested
}

// Selector is one selector within a Rule's selector list.
type Selector struct {
	Name        string
	LineNumber  int
	EndLine     int
	Specificity int
	RuleName    string
}

// Property is a CSS declaration (property:value).
type Property struct {
	Name       string
	LineNumber int
	Value      string
	RuleName   string
}

// MediaQuery is an @media (or @supports/@keyframes/@namespace) at-rule that
// CONTAINS nested Rule nodes.
type MediaQuery struct {
	Name       string // the raw media condition text
	LineNumber int
	EndLine    int
	AtRuleKind string // "media", "supports", "keyframes", "namespace"
}

// File is the complete IR record for one source file. It is the only
// payload extractors return, and the only payload the rest of the pipeline
// consumes.
type File struct {
	FilePath     string
	Language     Language
	IsDependency bool

	Functions []Function
	Classes   []Class
	Variables []Variable
	Imports   []Import

	FunctionCalls   []Call
	Inheritance     []Inheritance
	Implementations []Implementation

	// Language-specific collections.
	Macros       []Macro
	Rules        []Rule
	Selectors    []Selector
	Properties   []Property
	MediaQueries []MediaQuery

	// Error is set when parsing failed; collections above are then empty.
	Error string
}

// Empty reports whether the file produced no entities at all (used for the
// "empty or whitespace-only" fast path in the extractor algorithm).
func (f File) Empty() bool {
	return len(f.Functions) == 0 && len(f.Classes) == 0 && len(f.Variables) == 0 &&
		len(f.Imports) == 0 && len(f.FunctionCalls) == 0 && len(f.Macros) == 0 &&
		len(f.Rules) == 0
}
